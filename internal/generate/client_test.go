package generate

import (
	"context"
	"errors"
	"math/rand/v2"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsim/internal/model"
)

type step struct {
	text string
	err  error
}

type scriptedBackend struct {
	mu    sync.Mutex
	steps []step
	calls []BackendRequest
}

func (b *scriptedBackend) Generate(_ context.Context, req BackendRequest) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.calls = append(b.calls, req)
	if len(b.steps) == 0 {
		return "", errors.New("unexpected call")
	}
	s := b.steps[0]
	b.steps = b.steps[1:]
	return s.text, s.err
}

func (b *scriptedBackend) models() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, c := range b.calls {
		out = append(out, c.Model)
	}
	return out
}

const twoItems = `{"tweets":[{"name":"たなか","nameId":"@tanaka_01","message":"  ラーメン   うますぎる "},{"name":"すずき","nameId":"suzuki","message":"雨"}]}`

func newTestClient(b Backend, budget Budget) *Client {
	return New(b, Options{
		Delay:  time.Millisecond,
		Budget: budget,
		Rand:   rand.New(rand.NewPCG(1, 2)),
		Now:    func() time.Time { return time.Date(2025, 12, 1, 9, 0, 0, 0, time.UTC) },
	})
}

func isNotice(t *testing.T, ts []model.Tweet) {
	t.Helper()
	require.Len(t, ts, 1)
	assert.Equal(t, NoticeName, ts[0].Name)
	assert.Equal(t, NoticeHandle, ts[0].Handle)
	assert.Equal(t, NoticeMessage, ts[0].Message)
	assert.Zero(t, ts[0].FavoriteCount)
	assert.Equal(t, model.ReactionKinds[0], ts[0].ReactionKind)
}

func TestFallbackAdvancesOnRetryableError(t *testing.T) {
	b := &scriptedBackend{steps: []step{
		{err: &APIError{Status: http.StatusTooManyRequests, Code: "RESOURCE_EXHAUSTED", Message: "quota"}},
		{text: "```json\n" + twoItems + "\n```"},
	}}
	c := newTestClient(b, nil)

	got := c.Feed(context.Background(), 2, "日常の話題")
	require.Len(t, got, 2)
	assert.Equal(t, []string{"gemini-2.5-flash", "gemini-2.5-flash"}, b.models())
	assert.True(t, b.calls[0].UseSearch)
	assert.False(t, b.calls[1].UseSearch)
	assert.Contains(t, b.calls[0].Prompt, "日常の話題")

	first := got[0]
	assert.Equal(t, "tanaka_01", first.Handle)
	assert.Equal(t, "ラーメン うますぎる", first.Message)
	assert.True(t, first.SupportsBookmark)
	assert.Equal(t, first.FavoriteCount, first.Baseline.Favorites)
	assert.LessOrEqual(t, first.FavoriteCount, 10000)
	assert.GreaterOrEqual(t, first.ImpressionCount, int(float64(first.FavoriteCount)*1.5)-1)
	assert.NotEqual(t, got[0].ID, got[1].ID)
}

func TestTerminalErrorStopsChain(t *testing.T) {
	b := &scriptedBackend{steps: []step{{err: &APIError{Status: http.StatusBadRequest, Code: "INVALID_ARGUMENT", Message: "bad"}}}}
	c := newTestClient(b, nil)

	isNotice(t, c.Feed(context.Background(), 5, ""))
	assert.Len(t, b.calls, 1)
}

func TestEmptyOutputIsTerminal(t *testing.T) {
	b := &scriptedBackend{steps: []step{{text: "   "}}}
	isNotice(t, newTestClient(b, nil).Search(context.Background(), "猫"))
	assert.Len(t, b.calls, 1)

	b = &scriptedBackend{steps: []step{{text: "sorry, I can't"}}}
	isNotice(t, newTestClient(b, nil).Search(context.Background(), "猫"))
	assert.Len(t, b.calls, 1)
}

func TestExhaustedChainYieldsOneNotice(t *testing.T) {
	overloaded := errors.New("model is overloaded")
	b := &scriptedBackend{steps: []step{
		{err: &APIError{Status: http.StatusServiceUnavailable, Code: "UNAVAILABLE"}},
		{err: overloaded},
		{err: &APIError{Status: http.StatusTooManyRequests}},
	}}
	c := newTestClient(b, nil)

	got := c.Replies(context.Background(), "新しいカフェができた")
	isNotice(t, got)
	assert.False(t, got[0].SupportsBookmark, "reply notices are not bookmarkable")
	assert.Len(t, b.calls, 3)
}

type fixedBudget struct {
	mu       sync.Mutex
	blocked  map[string]bool
	recorded []string
}

func (f *fixedBudget) Allow(_ context.Context, m string, _ int, _ time.Time) bool {
	return !f.blocked[m]
}

func (f *fixedBudget) Record(_ context.Context, m string, _ time.Time) {
	f.mu.Lock()
	f.recorded = append(f.recorded, m)
	f.mu.Unlock()
}

func TestBudgetSkipAdvancesWithoutCalling(t *testing.T) {
	budget := &fixedBudget{blocked: map[string]bool{"gemini-2.5-flash+search": true, "gemini-2.5-flash": true}}
	b := &scriptedBackend{steps: []step{{text: twoItems}}}
	c := New(b, Options{Delay: time.Hour, Budget: budget, Rand: rand.New(rand.NewPCG(3, 4))})

	start := time.Now()
	got := c.Feed(context.Background(), 2, "")
	assert.Len(t, got, 2)
	assert.Less(t, time.Since(start), time.Minute, "budget skips do not wait")
	assert.Equal(t, []string{"gemini-2.5-flash-lite"}, b.models())
	assert.Equal(t, []string{"gemini-2.5-flash-lite"}, budget.recorded)
}

func TestGroundedStepHasItsOwnBudget(t *testing.T) {
	budget := &fixedBudget{blocked: map[string]bool{"gemini-2.5-flash+search": true}}
	b := &scriptedBackend{steps: []step{{text: twoItems}}}
	c := New(b, Options{Delay: time.Hour, Budget: budget, Rand: rand.New(rand.NewPCG(5, 6))})

	require.Len(t, c.Feed(context.Background(), 2, ""), 2)
	require.Len(t, b.calls, 1)
	assert.Equal(t, "gemini-2.5-flash", b.calls[0].Model)
	assert.False(t, b.calls[0].UseSearch)
	assert.Equal(t, []string{"gemini-2.5-flash"}, budget.recorded)
}

func TestSearchResultsAreNotBookmarkable(t *testing.T) {
	b := &scriptedBackend{steps: []step{{text: twoItems}}}
	got := newTestClient(b, nil).Search(context.Background(), "猫")
	require.Len(t, got, 2)
	for _, tw := range got {
		assert.False(t, tw.SupportsBookmark)
		assert.Less(t, tw.FavoriteCount, 5000)
	}
}

func TestReplyProfile(t *testing.T) {
	b := &scriptedBackend{steps: []step{{text: twoItems}}}
	got := newTestClient(b, nil).Replies(context.Background(), "元ツイート")
	require.Len(t, got, 2)
	for _, tw := range got {
		assert.False(t, tw.SupportsBookmark)
		assert.Less(t, tw.FavoriteCount, 500)
	}
	assert.Contains(t, b.calls[0].Prompt, "「元ツイート」")
}

func TestRequestCountDefaults(t *testing.T) {
	c := newTestClient(&scriptedBackend{}, nil)
	for i := 0; i < 50; i++ {
		n := c.normalize(Request{Kind: KindSearch}).Count
		assert.GreaterOrEqual(t, n, 5)
		assert.LessOrEqual(t, n, 10)
	}
	assert.Equal(t, 5, c.normalize(Request{Kind: KindFeed}).Count)
	assert.Equal(t, 3, c.normalize(Request{Kind: KindFeed, Count: 3}).Count)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(&APIError{Status: 429}))
	assert.True(t, IsRetryable(&APIError{Status: 500, Code: "UNAVAILABLE"}))
	assert.True(t, IsRetryable(&APIError{Status: 500, Message: "The model is overloaded."}))
	assert.True(t, IsRetryable(ErrQuotaExhausted))
	assert.True(t, IsRetryable(errors.New("got 503 from upstream")))
	assert.False(t, IsRetryable(&APIError{Status: 400, Code: "INVALID_ARGUMENT"}))
	assert.False(t, IsRetryable(ErrEmptyResponse))
	assert.False(t, IsRetryable(nil))
}
