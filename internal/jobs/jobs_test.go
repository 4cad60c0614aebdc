package jobs

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedsim/internal/achievement"
	"feedsim/internal/config"
	"feedsim/internal/feed"
	"feedsim/internal/model"
	"feedsim/internal/persist"
	"feedsim/internal/search"
)

type fakeGen struct {
	seq     atomic.Int64
	calls   atomic.Int64
	topics  sync.Map
	block   chan struct{}
	entered chan struct{}
	panics  bool
}

func (g *fakeGen) batch(prefix string, n int) []model.Tweet {
	out := make([]model.Tweet, 0, n)
	for i := 0; i < n; i++ {
		id := fmt.Sprintf("%s-%d", prefix, g.seq.Add(1))
		out = append(out, model.NewTweet(id, "n", "h", "message "+id, model.Counts{Favorites: 3}, 4, model.ReactionDog))
	}
	return out
}

func (g *fakeGen) Feed(ctx context.Context, count int, topic string) []model.Tweet {
	g.calls.Add(1)
	if g.panics {
		panic("generator exploded")
	}
	g.topics.Store(topic, true)
	if g.entered != nil {
		g.entered <- struct{}{}
	}
	if g.block != nil {
		<-g.block
	}
	return g.batch("f", count)
}

func (g *fakeGen) Replies(ctx context.Context, message string) []model.Tweet {
	return g.batch("r", 3)
}

func (g *fakeGen) Search(ctx context.Context, query string) []model.Tweet {
	return g.batch("s", 2)
}

func newDeps(t *testing.T, gen *fakeGen) Deps {
	t.Helper()
	s := feed.New(persist.NewMemory())
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return Deps{
		Store: s,
		Gen:   gen,
		Feed:  config.FeedConfig{MinStock: 4, BatchSize: 6, PromoteMin: 2, PromoteMax: 5},
		IntN:  func(n int) int { return n - 1 },
	}
}

func TestRefreshTabFillsAndPromotes(t *testing.T) {
	gen := &fakeGen{}
	d := newDeps(t, gen)

	moved, err := RefreshTab(context.Background(), d, "tab1")
	require.NoError(t, err)
	assert.Len(t, moved, 5)
	assert.Equal(t, 1, d.Store.StockCount("tab1"))
	assert.Len(t, d.Store.TweetsForTab("tab1"), 5)
	_, ok := gen.topics.Load("日常の話題")
	assert.True(t, ok, "tab title is the topic")

	tab, _ := d.Store.Tab("tab1")
	assert.False(t, tab.IsGenerating, "lease released")

	// stock 1 < 4 so another batch is generated
	_, err = RefreshTab(context.Background(), d, "tab1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, gen.calls.Load())
}

func TestRefreshTabSkipsGenerationWhenStocked(t *testing.T) {
	gen := &fakeGen{}
	d := newDeps(t, gen)
	d.Store.AddTweetsToStock("tab2", gen.batch("pre", 10))

	moved, err := RefreshTab(context.Background(), d, "tab2")
	require.NoError(t, err)
	assert.Len(t, moved, 5)
	assert.EqualValues(t, 0, gen.calls.Load())
}

func TestRefreshTabRejects(t *testing.T) {
	d := newDeps(t, &fakeGen{})
	_, err := RefreshTab(context.Background(), d, "ghost")
	assert.ErrorIs(t, err, ErrUnknownTab)
	_, err = RefreshTab(context.Background(), d, model.BookmarksTabID)
	assert.ErrorIs(t, err, ErrUnknownTab)
}

func TestConcurrentRefreshIsExclusive(t *testing.T) {
	gen := &fakeGen{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	d := newDeps(t, gen)

	done := make(chan error, 1)
	go func() {
		_, err := RefreshTab(context.Background(), d, "tab1")
		done <- err
	}()
	<-gen.entered

	_, err := RefreshTab(context.Background(), d, "tab1")
	assert.ErrorIs(t, err, ErrBusy)

	close(gen.block)
	require.NoError(t, <-done)
	assert.EqualValues(t, 1, gen.calls.Load())
}

func TestTopUpStock(t *testing.T) {
	gen := &fakeGen{}
	d := newDeps(t, gen)
	d.Store.AddTweetsToStock("tab2", gen.batch("pre", 4))

	added := TopUpStock(context.Background(), d)
	assert.Equal(t, 6, added, "only tab1 was below the minimum")
	assert.Equal(t, 6, d.Store.StockCount("tab1"))
	assert.Equal(t, 4, d.Store.StockCount("tab2"))
}

func TestTopUpStockReleasesLeaseOnPanic(t *testing.T) {
	d := newDeps(t, &fakeGen{panics: true})
	assert.Panics(t, func() { TopUpStock(context.Background(), d) })

	tab, ok := d.Store.Tab("tab1")
	require.True(t, ok)
	assert.False(t, tab.IsGenerating)
	release, ok := d.Store.BeginGenerating("tab1")
	require.True(t, ok)
	release()
}

func TestRunStockLoopStopsOnCancel(t *testing.T) {
	d := newDeps(t, &fakeGen{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- RunStockLoop(ctx, d, time.Hour) }()

	require.Eventually(t, func() bool { return d.Store.StockCount("tab1") > 0 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestSearchPrependsAndClearsFlag(t *testing.T) {
	ss := search.New()
	gen := &fakeGen{}
	first := Search(context.Background(), ss, gen, " 深海魚 ")
	second := Search(context.Background(), ss, gen, "深海魚")

	assert.Equal(t, "深海魚", ss.Query())
	assert.False(t, ss.IsSearching())
	res := ss.Results()
	require.Len(t, res, 4)
	assert.Equal(t, second[0].ID, res[0].ID)
	assert.Equal(t, first[0].ID, res[2].ID)
	for _, r := range res {
		assert.False(t, r.SupportsBookmark)
	}
	assert.Nil(t, Search(context.Background(), ss, gen, "  "))
}

func TestGenerateReplies(t *testing.T) {
	gen := &fakeGen{}
	d := newDeps(t, gen)
	d.Store.AddTweetToTab("tab1", gen.batch("p", 1)[0])
	parent := d.Store.TweetsForTab("tab1")[0]

	replies, err := GenerateReplies(context.Background(), d.Store, gen, parent.ID)
	require.NoError(t, err)
	assert.Len(t, replies, 3)
	stored := d.Store.Replies(parent.ID)
	require.Len(t, stored, 3)
	assert.False(t, stored[0].SupportsBookmark)

	_, err = GenerateReplies(context.Background(), d.Store, gen, "ghost")
	assert.ErrorIs(t, err, ErrUnknownTweet)
}

func TestToggleReactionMovesAchievement(t *testing.T) {
	gen := &fakeGen{}
	d := newDeps(t, gen)
	ach := achievement.New(persist.NewMemory(), 0)
	defer ach.Close(context.Background())
	tw := gen.batch("a", 1)[0]
	d.Store.AddTweetToTab("tab1", tw)

	got, ok := ToggleReaction(d.Store, ach, tw.ID)
	require.True(t, ok)
	assert.True(t, got.IsReacted)
	assert.Equal(t, 1, ach.Count(model.ReactionDog))

	ToggleReaction(d.Store, ach, tw.ID)
	assert.Equal(t, 0, ach.Count(model.ReactionDog))

	_, ok = ToggleReaction(d.Store, ach, "ghost")
	assert.False(t, ok)
}
