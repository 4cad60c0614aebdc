package jobs

import (
	"context"
	"strings"

	"feedsim/internal/achievement"
	"feedsim/internal/feed"
	"feedsim/internal/model"
	"feedsim/internal/search"
)

// Search runs a query through the generator and prepends the results.
func Search(ctx context.Context, ss *search.Store, gen Generator, query string) []model.Tweet {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	ss.SetQuery(query)
	ss.SetSearching(true)
	defer ss.SetSearching(false)
	results := gen.Search(ctx, query)
	for i := range results {
		results[i].SupportsBookmark = false
		results[i].IsBookmarked = false
	}
	ss.AddResults(results)
	return results
}

// GenerateReplies attaches a fresh batch of replies to the tweet.
func GenerateReplies(ctx context.Context, store *feed.Store, gen Generator, tweetID string) ([]model.Tweet, error) {
	t, ok := store.Tweet(tweetID)
	if !ok {
		return nil, ErrUnknownTweet
	}
	replies := gen.Replies(ctx, t.Message)
	for i := range replies {
		replies[i].SupportsBookmark = false
	}
	store.AddReplies(tweetID, replies)
	return replies, nil
}

// ToggleReaction flips the reaction and moves the achievement counter for the
// tweet's kind with it.
func ToggleReaction(store *feed.Store, ach *achievement.Store, tweetID string) (model.Tweet, bool) {
	t, ok := store.ToggleReaction(tweetID)
	if !ok {
		return t, false
	}
	if t.IsReacted {
		ach.Increment(t.ReactionKind)
	} else {
		ach.Decrement(t.ReactionKind)
	}
	return t, true
}
