package jobs

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"feedsim/internal/config"
	"feedsim/internal/feed"
	"feedsim/internal/logging"
	"feedsim/internal/model"
)

var (
	ErrUnknownTab   = errors.New("jobs: unknown tab")
	ErrBusy         = errors.New("jobs: tab is already generating")
	ErrUnknownTweet = errors.New("jobs: unknown tweet")
)

// Generator is the part of generate.Client the jobs use.
type Generator interface {
	Feed(ctx context.Context, count int, topic string) []model.Tweet
	Replies(ctx context.Context, message string) []model.Tweet
	Search(ctx context.Context, query string) []model.Tweet
}

// Deps bundles what the feed jobs need.
type Deps struct {
	Store *feed.Store
	Gen   Generator
	Feed  config.FeedConfig
	// IntN picks the promote count; nil uses math/rand/v2.
	IntN func(n int) int
}

func (d Deps) intn(n int) int {
	if d.IntN != nil {
		return d.IntN(n)
	}
	return rand.IntN(n)
}

// RefreshTab tops up the tab's stock when it is low, then promotes a random
// slice of it to the visible list. Only one refresh per tab runs at a time.
func RefreshTab(ctx context.Context, d Deps, tabID string) ([]model.Tweet, error) {
	tab, ok := d.Store.Tab(tabID)
	if !ok || tabID == model.BookmarksTabID {
		return nil, ErrUnknownTab
	}
	release, ok := d.Store.BeginGenerating(tabID)
	if !ok {
		return nil, ErrBusy
	}
	defer release()

	start := time.Now()
	added := 0
	if d.Store.StockCount(tabID) < d.Feed.MinStock {
		added = fill(ctx, d, tab)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	lo, hi := d.Feed.PromoteMin, d.Feed.PromoteMax
	if lo <= 0 {
		lo = 1
	}
	if hi < lo {
		hi = lo
	}
	n := lo + d.intn(hi-lo+1)
	moved := d.Store.LoadTweetsFromStock(tabID, n)
	logging.Info("refresh_tab", map[string]any{
		"tab":      tabID,
		"stocked":  added,
		"promoted": len(moved),
		"stock":    d.Store.StockCount(tabID),
		"ms":       time.Since(start).Milliseconds(),
	})
	return moved, nil
}

func fill(ctx context.Context, d Deps, tab model.Tab) int {
	batch := d.Feed.BatchSize
	if batch <= 0 {
		batch = 5
	}
	tweets := d.Gen.Feed(ctx, batch, tab.Title)
	return d.Store.AddTweetsToStock(tab.ID, tweets)
}
