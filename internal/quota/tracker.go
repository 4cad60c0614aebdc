// Package quota keeps a local daily call budget per chain step so the generation
// chain can skip a model before the provider rejects it.
package quota

import (
	"context"
	"sync"
	"time"

	"feedsim/internal/logging"
	"feedsim/internal/metrics"
	"feedsim/internal/persist"
)

const keyPrefix = "@quota/"

// Tracker counts successful calls per budget key and UTC day. Keys come from
// generate.ModelConfig.BudgetKey, so one model used with and without search
// has two counters.
type Tracker struct {
	mu sync.Mutex
	a  persist.Adapter
}

func NewTracker(a persist.Adapter) *Tracker { return &Tracker{a: a} }

// Key is the storage key holding the counters for now's UTC day.
func Key(now time.Time) string { return keyPrefix + now.UTC().Format("2006-01-02") }

// Allow reports whether the key still has budget today. A non-positive
// dailyLimit means unlimited. Read failures allow the call.
func (t *Tracker) Allow(ctx context.Context, model string, dailyLimit int, now time.Time) bool {
	if dailyLimit <= 0 {
		return true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	counts, err := t.load(ctx, now)
	if err != nil {
		metrics.IncPersistError("quota_get")
		logging.Warn("quota_read_failed", map[string]any{"model": model, "error": err.Error()})
		return true
	}
	return counts[model] < dailyLimit
}

// Record counts one successful call against the key.
func (t *Tracker) Record(ctx context.Context, model string, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts, err := t.load(ctx, now)
	if err != nil {
		counts = map[string]int{}
	}
	counts[model]++
	if err := persist.SetJSON(ctx, t.a, Key(now), counts); err != nil {
		metrics.IncPersistError("quota_set")
		logging.Warn("quota_write_failed", map[string]any{"model": model, "error": err.Error()})
	}
}

// Used returns today's call count for the key.
func (t *Tracker) Used(ctx context.Context, model string, now time.Time) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	counts, err := t.load(ctx, now)
	if err != nil {
		return 0, err
	}
	return counts[model], nil
}

func (t *Tracker) load(ctx context.Context, now time.Time) (map[string]int, error) {
	counts := map[string]int{}
	if _, err := persist.GetJSON(ctx, t.a, Key(now), &counts); err != nil {
		return nil, err
	}
	if counts == nil {
		counts = map[string]int{}
	}
	return counts, nil
}
