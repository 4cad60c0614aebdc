package persist

import (
	"context"
	"sync"
	"time"

	"feedsim/internal/logging"
	"feedsim/internal/metrics"
)

type writeOp struct {
	key     string
	value   string
	del     bool
	flushed chan struct{} // non-nil for flush markers
}

// Writer applies Set/Delete calls to an Adapter on a background goroutine,
// in the order they were queued. Queueing never blocks; failures are logged
// and counted, never returned. Consecutive writes of one key that have not
// started yet collapse into the newest.
type Writer struct {
	a       Adapter
	timeout time.Duration

	mu     sync.Mutex
	cond   *sync.Cond
	queue  []writeOp
	closed bool
	done   chan struct{}
}

// NewWriter starts the background goroutine. timeout bounds each adapter call;
// zero means 5s.
func NewWriter(a Adapter, timeout time.Duration) *Writer {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	w := &Writer{a: a, timeout: timeout, done: make(chan struct{})}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

// Set queues a write of value under key.
func (w *Writer) Set(key, value string) { w.push(writeOp{key: key, value: value}) }

// Delete queues removal of key.
func (w *Writer) Delete(key string) { w.push(writeOp{key: key, del: true}) }

func (w *Writer) push(op writeOp) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		logging.Warn("persist_write_after_close", map[string]any{"key": op.key})
		return
	}
	w.queue = append(w.queue, op)
	w.cond.Signal()
}

// Flush waits until every write queued before the call has been applied.
func (w *Writer) Flush(ctx context.Context) error {
	marker := writeOp{flushed: make(chan struct{})}
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		select {
		case <-w.done:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	w.queue = append(w.queue, marker)
	w.cond.Signal()
	w.mu.Unlock()
	select {
	case <-marker.flushed:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close drains the queue and stops the goroutine. Later writes are dropped.
func (w *Writer) Close(ctx context.Context) error {
	w.mu.Lock()
	w.closed = true
	w.cond.Broadcast()
	w.mu.Unlock()
	select {
	case <-w.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Writer) run() {
	defer close(w.done)
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.closed {
			w.cond.Wait()
		}
		if len(w.queue) == 0 && w.closed {
			w.mu.Unlock()
			return
		}
		batch := w.queue
		w.queue = nil
		w.mu.Unlock()
		w.apply(batch)
	}
}

func (w *Writer) apply(batch []writeOp) {
	// A write is superseded by a later write of the same key unless a flush
	// marker sits between them.
	skip := make([]bool, len(batch))
	seen := make(map[string]struct{})
	for i := len(batch) - 1; i >= 0; i-- {
		op := batch[i]
		if op.flushed != nil {
			seen = make(map[string]struct{})
			continue
		}
		if _, ok := seen[op.key]; ok {
			skip[i] = true
			continue
		}
		seen[op.key] = struct{}{}
	}
	for i, op := range batch {
		if op.flushed != nil {
			close(op.flushed)
			continue
		}
		if skip[i] {
			continue
		}
		w.write(op)
	}
}

func (w *Writer) write(op writeOp) {
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	var err error
	name := "set"
	if op.del {
		name = "delete"
		err = w.a.Delete(ctx, op.key)
	} else {
		err = w.a.Set(ctx, op.key, op.value)
	}
	if err != nil {
		metrics.IncPersistError(name)
		logging.Error("persist_write_failed", map[string]any{"key": op.key, "op": name, "error": err.Error()})
	}
}
