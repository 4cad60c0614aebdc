// Package achievement counts reactions per animal kind.
package achievement

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"feedsim/internal/logging"
	"feedsim/internal/metrics"
	"feedsim/internal/model"
	"feedsim/internal/persist"
)

const Key = "@achievementStore/achievements"

type Store struct {
	mu       sync.RWMutex
	adapter  persist.Adapter
	writer   *persist.Writer
	counts   map[model.ReactionKind]int
	hydrated bool
}

// New returns a store with every kind at zero. writeTimeout bounds each
// background write; zero picks the writer default.
func New(a persist.Adapter, writeTimeout time.Duration) *Store {
	return &Store{
		adapter: a,
		writer:  persist.NewWriter(a, writeTimeout),
		counts:  seed(),
	}
}

func seed() map[model.ReactionKind]int {
	m := make(map[model.ReactionKind]int, len(model.ReactionKinds))
	for _, k := range model.ReactionKinds {
		m[k] = 0
	}
	return m
}

// Increment adds one to kind. Unknown kinds are ignored.
func (s *Store) Increment(kind model.ReactionKind) { s.add(kind, 1) }

// Decrement subtracts one from kind, never going below zero.
func (s *Store) Decrement(kind model.ReactionKind) { s.add(kind, -1) }

func (s *Store) add(kind model.ReactionKind, delta int) {
	if !kind.Valid() {
		logging.Debug("achievement_unknown_kind", map[string]any{"kind": string(kind)})
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[kind] = max(0, s.counts[kind]+delta)
	s.persistLocked()
}

func (s *Store) persistLocked() {
	out := make(map[string]int, len(s.counts))
	for k, v := range s.counts {
		out[string(k)] = v
	}
	b, err := json.Marshal(out)
	if err != nil {
		logging.Error("encode_achievements_failed", map[string]any{"error": err.Error()})
		return
	}
	s.writer.Set(Key, string(b))
}

// Hydrate loads persisted counters. Unknown stored kinds are dropped and
// missing kinds start at zero. The store is marked hydrated even on failure.
func (s *Store) Hydrate(ctx context.Context) {
	var stored map[string]int
	_, err := persist.GetJSON(ctx, s.adapter, Key, &stored)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.hydrated = true
	if err != nil {
		metrics.IncPersistError("hydrate")
		logging.Error("achievement_hydrate_failed", map[string]any{"error": err.Error()})
		return
	}
	counts := seed()
	for k, v := range stored {
		kind := model.ReactionKind(k)
		if !kind.Valid() {
			continue
		}
		counts[kind] = max(0, v)
	}
	s.counts = counts
}

func (s *Store) IsHydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrated
}

// Counts returns a copy of every counter.
func (s *Store) Counts() map[model.ReactionKind]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[model.ReactionKind]int, len(s.counts))
	for k, v := range s.counts {
		out[k] = v
	}
	return out
}

func (s *Store) Count(kind model.ReactionKind) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counts[kind]
}

// Total sums all counters.
func (s *Store) Total() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, v := range s.counts {
		n += v
	}
	return n
}

func (s *Store) Flush(ctx context.Context) error { return s.writer.Flush(ctx) }
func (s *Store) Close(ctx context.Context) error { return s.writer.Close(ctx) }
