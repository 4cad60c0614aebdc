package feed

import (
	"context"
	"fmt"
	"slices"

	"feedsim/internal/logging"
	"feedsim/internal/metrics"
	"feedsim/internal/model"
	"feedsim/internal/persist"
)

type snapshot struct {
	tabs       map[string]model.Tab
	order      []string
	bookmarked []model.Tweet
}

// IsHydrated reports whether Hydrate has finished, successfully or not.
func (s *Store) IsHydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrated
}

// Hydrate loads persisted tabs, tab order and bookmarked tweets. Read or
// decode failures are logged and leave the current state in place; the store
// is marked hydrated either way.
func (s *Store) Hydrate(ctx context.Context) {
	snap, err := s.load(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	defer func() { s.hydrated = true }()
	if err != nil {
		metrics.IncPersistError("hydrate")
		logging.Error("feed_hydrate_failed", map[string]any{"error": err.Error()})
		return
	}

	if snap.tabs != nil {
		s.tabs = make(map[string]*model.Tab, len(snap.tabs))
		for id, t := range snap.tabs {
			tab := t.Clone()
			if tab.ID == "" {
				tab.ID = id
			}
			tab.IsGenerating = false
			s.tabs[id] = &tab
		}
	}
	if _, ok := s.tabs[model.BookmarksTabID]; !ok {
		seed := model.DefaultTabs()[model.BookmarksTabID]
		s.tabs[model.BookmarksTabID] = &seed
	}

	for _, t := range snap.bookmarked {
		if t.ID == "" {
			continue
		}
		t.SupportsBookmark = true
		t.IsBookmarked = true
		s.putLocked(t)
	}

	// Stock content is never persisted, so ids that do not resolve go.
	for _, tab := range s.tabs {
		tab.TweetIDs = s.pruneLocked(tab.TweetIDs)
		tab.StockIDs = s.pruneLocked(tab.StockIDs)
	}

	order := snap.order
	if order == nil {
		order = s.order
	}
	s.order = nil
	s.order = s.sanitizeOrderLocked(order)
	s.active = s.firstContentTab()

	logging.Info("feed_hydrated", map[string]any{
		"tabs":       len(s.tabs),
		"bookmarked": len(snap.bookmarked),
	})
}

func (s *Store) load(ctx context.Context) (snapshot, error) {
	var snap snapshot
	if _, err := persist.GetJSON(ctx, s.adapter, KeyTabs, &snap.tabs); err != nil {
		return snapshot{}, fmt.Errorf("load tabs: %w", err)
	}
	if _, err := persist.GetJSON(ctx, s.adapter, KeyTabOrder, &snap.order); err != nil {
		return snapshot{}, fmt.Errorf("load tab order: %w", err)
	}
	if _, err := persist.GetJSON(ctx, s.adapter, KeyBookmarkedTwts, &snap.bookmarked); err != nil {
		return snapshot{}, fmt.Errorf("load bookmarks: %w", err)
	}
	return snap, nil
}

func (s *Store) pruneLocked(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.tweets[id]; ok && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}
