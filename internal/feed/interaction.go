package feed

import "feedsim/internal/model"

// InteractionUpdate is a partial update of a tweet's user-movable state.
// Nil fields are left untouched. Like/retweet/reaction flags are not part of
// the update: the store derives them from the counts.
type InteractionUpdate struct {
	FavoriteCount *int
	RetweetCount  *int
	ReactionCount *int
	IsBookmarked  *bool
}

// Ptr returns a pointer to v, for building updates inline.
func Ptr[T any](v T) *T { return &v }

// UpdateTweetInteraction merges upd into the tweet and re-derives its flags.
// Unknown ids are ignored. A bookmark change on a tweet that does not
// support bookmarks is dropped.
func (s *Store) UpdateTweetInteraction(tweetID string, upd InteractionUpdate) (model.Tweet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.applyLocked(tweetID, upd)
}

func (s *Store) applyLocked(tweetID string, upd InteractionUpdate) (model.Tweet, bool) {
	e, ok := s.tweets[tweetID]
	if !ok {
		return model.Tweet{}, false
	}
	t := e.tweet
	if upd.FavoriteCount != nil {
		t.FavoriteCount = *upd.FavoriteCount
	}
	if upd.RetweetCount != nil {
		t.RetweetCount = *upd.RetweetCount
	}
	if upd.ReactionCount != nil {
		t.ReactionCount = *upd.ReactionCount
	}
	if upd.IsBookmarked != nil && t.SupportsBookmark {
		t.IsBookmarked = *upd.IsBookmarked
	}
	t.Derive()
	e.tweet = t
	if upd.IsBookmarked != nil {
		s.persistBookmarksLocked()
	}
	return t, true
}

// ToggleLike flips the like: favorites go to baseline+1 when not liked and
// back to baseline when liked.
func (s *Store) ToggleLike(tweetID string) (model.Tweet, bool) {
	return s.toggle(tweetID, func(t model.Tweet) InteractionUpdate {
		return InteractionUpdate{FavoriteCount: Ptr(toggled(t.IsLiked, t.Baseline.Favorites))}
	})
}

func (s *Store) ToggleRetweet(tweetID string) (model.Tweet, bool) {
	return s.toggle(tweetID, func(t model.Tweet) InteractionUpdate {
		return InteractionUpdate{RetweetCount: Ptr(toggled(t.IsRetweeted, t.Baseline.Retweets))}
	})
}

func (s *Store) ToggleReaction(tweetID string) (model.Tweet, bool) {
	return s.toggle(tweetID, func(t model.Tweet) InteractionUpdate {
		return InteractionUpdate{ReactionCount: Ptr(toggled(t.IsReacted, t.Baseline.Reactions))}
	})
}

// ToggleBookmark reports ok=false for unknown tweets and tweets that cannot
// be bookmarked.
func (s *Store) ToggleBookmark(tweetID string) (model.Tweet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tweets[tweetID]
	if !ok || !e.tweet.SupportsBookmark {
		return model.Tweet{}, false
	}
	return s.applyLocked(tweetID, InteractionUpdate{IsBookmarked: Ptr(!e.tweet.IsBookmarked)})
}

func (s *Store) toggle(tweetID string, next func(model.Tweet) InteractionUpdate) (model.Tweet, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.tweets[tweetID]
	if !ok {
		return model.Tweet{}, false
	}
	return s.applyLocked(tweetID, next(e.tweet))
}

func toggled(active bool, baseline int) int {
	if active {
		return baseline
	}
	return baseline + 1
}
