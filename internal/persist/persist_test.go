package persist

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAdapter struct {
	*Memory
	mu     sync.Mutex
	writes []string
	fail   bool
	gate   chan struct{}
}

func (r *recordingAdapter) Set(ctx context.Context, key, value string) error {
	if r.gate != nil {
		<-r.gate
	}
	r.mu.Lock()
	r.writes = append(r.writes, key+"="+value)
	fail := r.fail
	r.mu.Unlock()
	if fail {
		return errors.New("disk full")
	}
	return r.Memory.Set(ctx, key, value)
}

func (r *recordingAdapter) log() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.writes...)
}

func TestMemoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "k", "v"))
	v, ok, err := m.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	require.NoError(t, m.Delete(ctx, "k"))
	_, ok, _ = m.Get(ctx, "k")
	assert.False(t, ok)
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	require.NoError(t, SetJSON(ctx, m, "order", []string{"a", "b"}))

	var out []string
	ok, err := GetJSON(ctx, m, "order", &out)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, out)

	ok, err = GetJSON(ctx, m, "missing", &out)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.Set(ctx, "broken", "{"))
	_, err = GetJSON(ctx, m, "broken", &out)
	assert.Error(t, err)
}

func TestWriterAppliesInOrderAndFlushes(t *testing.T) {
	ra := &recordingAdapter{Memory: NewMemory()}
	w := NewWriter(ra, time.Second)
	defer w.Close(context.Background())

	w.Set("a", "1")
	w.Set("b", "1")
	w.Set("a", "2")
	require.NoError(t, w.Flush(context.Background()))

	v, ok, _ := ra.Memory.Get(context.Background(), "a")
	require.True(t, ok)
	assert.Equal(t, "2", v)
	v, _, _ = ra.Memory.Get(context.Background(), "b")
	assert.Equal(t, "1", v)
}

func TestWriterCollapsesPendingWritesOfSameKey(t *testing.T) {
	gate := make(chan struct{})
	ra := &recordingAdapter{Memory: NewMemory(), gate: gate}
	w := NewWriter(ra, time.Second)

	w.Set("first", "x") // blocks in the adapter until the gate opens
	time.Sleep(20 * time.Millisecond)
	w.Set("k", "1")
	w.Set("k", "2")
	w.Set("k", "3")
	close(gate)
	require.NoError(t, w.Flush(context.Background()))
	require.NoError(t, w.Close(context.Background()))

	assert.Equal(t, []string{"first=x", "k=3"}, ra.log())
}

func TestWriterSurvivesAdapterErrors(t *testing.T) {
	ra := &recordingAdapter{Memory: NewMemory(), fail: true}
	w := NewWriter(ra, time.Second)
	w.Set("k", "v")
	require.NoError(t, w.Flush(context.Background()))
	require.NoError(t, w.Close(context.Background()))
	_, ok, _ := ra.Memory.Get(context.Background(), "k")
	assert.False(t, ok)
}

func TestWriterDeleteAndDropAfterClose(t *testing.T) {
	m := NewMemory()
	require.NoError(t, m.Set(context.Background(), "k", "v"))
	w := NewWriter(m, time.Second)
	w.Delete("k")
	require.NoError(t, w.Close(context.Background()))
	assert.Empty(t, m.Keys())

	w.Set("late", "v")
	require.NoError(t, w.Flush(context.Background()))
	assert.Empty(t, m.Keys())
}
