package jobs

import (
	"context"
	"time"

	"feedsim/internal/logging"
	"feedsim/internal/model"
)

// TopUpStock makes one pass over the content tabs and fills every stock
// that is below the minimum. Tabs that are generating are skipped.
func TopUpStock(ctx context.Context, d Deps) int {
	total := 0
	for _, tab := range d.Store.AllTabs() {
		if tab.ID == model.BookmarksTabID || len(tab.StockIDs) >= d.Feed.MinStock {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		total += topUpTab(ctx, d, tab)
	}
	return total
}

// topUpTab fills one tab's stock under its generation lease.
func topUpTab(ctx context.Context, d Deps, tab model.Tab) int {
	release, ok := d.Store.BeginGenerating(tab.ID)
	if !ok {
		return 0
	}
	defer release()
	return fill(ctx, d, tab)
}

// RunStockLoop runs TopUpStock on a ticker until ctx is cancelled.
func RunStockLoop(ctx context.Context, d Deps, interval time.Duration) error {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	// run immediately
	TopUpStock(ctx, d)
	for {
		select {
		case <-ctx.Done():
			logging.Info("stock_loop_stop", nil)
			return ctx.Err()
		case <-t.C:
			if n := TopUpStock(ctx, d); n > 0 {
				logging.Info("stock_topped_up", map[string]any{"added": n})
			}
		}
	}
}
