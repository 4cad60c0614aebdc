package model

// BookmarksTabID is the reserved id of the bookmarks pseudo-tab.
const BookmarksTabID = "bookmarks"

// Counts groups the engagement counters a user can move.
type Counts struct {
	Retweets  int `json:"retweets"`
	Favorites int `json:"favorites"`
	Reactions int `json:"reactions"`
}

// Tweet represents a generated feed item.
type Tweet struct {
	ID              string       `json:"id"`
	Image           string       `json:"image"`
	Name            string       `json:"name"`
	Handle          string       `json:"handle"`
	Message         string       `json:"message"`
	RetweetCount    int          `json:"retweetCount"`
	FavoriteCount   int          `json:"favoriteCount"`
	ImpressionCount int          `json:"impressionCount"`
	ReactionCount   int          `json:"reactionCount"`
	ReactionKind    ReactionKind `json:"reactionKind"`
	// Baseline holds the counts the tweet was created with. It never changes.
	Baseline Counts `json:"baseline"`

	IsLiked     bool `json:"isLiked"`
	IsRetweeted bool `json:"isRetweeted"`
	IsReacted   bool `json:"isReacted"`

	// SupportsBookmark is false for tweets that cannot be bookmarked (replies).
	SupportsBookmark bool `json:"supportsBookmark"`
	IsBookmarked     bool `json:"isBookmarked"`
}

// NewTweet builds a tweet whose baseline equals its starting counts.
func NewTweet(id, name, handle, message string, c Counts, impressions int, kind ReactionKind) Tweet {
	return Tweet{
		ID:               id,
		Name:             name,
		Handle:           handle,
		Message:          message,
		RetweetCount:     c.Retweets,
		FavoriteCount:    c.Favorites,
		ReactionCount:    c.Reactions,
		ImpressionCount:  impressions,
		ReactionKind:     kind,
		Baseline:         c,
		SupportsBookmark: true,
	}
}

// Derive recomputes the interaction flags from the live counts.
func (t *Tweet) Derive() {
	if t.RetweetCount < 0 {
		t.RetweetCount = 0
	}
	if t.FavoriteCount < 0 {
		t.FavoriteCount = 0
	}
	if t.ReactionCount < 0 {
		t.ReactionCount = 0
	}
	if t.ImpressionCount < 0 {
		t.ImpressionCount = 0
	}
	t.IsLiked = t.FavoriteCount > t.Baseline.Favorites
	t.IsRetweeted = t.RetweetCount > t.Baseline.Retweets
	t.IsReacted = t.ReactionCount > t.Baseline.Reactions
	if !t.SupportsBookmark {
		t.IsBookmarked = false
	}
}

// Tab is a named feed partition with a visible list and a pending stock.
type Tab struct {
	ID           string   `json:"id"`
	Title        string   `json:"title"`
	Icon         string   `json:"icon"`
	TweetIDs     []string `json:"tweetIds"`
	StockIDs     []string `json:"stockIds"`
	IsGenerating bool     `json:"isGenerating"`
}

// TabSpec describes a tab to create.
type TabSpec struct {
	ID    string
	Title string
	Icon  string
}

// Clone returns a deep copy so callers cannot alias store internals.
func (t Tab) Clone() Tab {
	out := t
	out.TweetIDs = append([]string(nil), t.TweetIDs...)
	out.StockIDs = append([]string(nil), t.StockIDs...)
	if out.TweetIDs == nil {
		out.TweetIDs = []string{}
	}
	if out.StockIDs == nil {
		out.StockIDs = []string{}
	}
	return out
}

// DefaultTabs returns the seed tab set used when nothing is persisted.
func DefaultTabs() map[string]Tab {
	return map[string]Tab{
		BookmarksTabID: {ID: BookmarksTabID, Title: "ブックマーク", Icon: "bookmark", TweetIDs: []string{}, StockIDs: []string{}},
		"tab1":         {ID: "tab1", Title: "日常の話題", Icon: "information-circle-outline", TweetIDs: []string{}, StockIDs: []string{}},
		"tab2":         {ID: "tab2", Title: "生物雑学", Icon: "information-circle-outline", TweetIDs: []string{}, StockIDs: []string{}},
	}
}

// DefaultTabOrder is the display order of DefaultTabs.
func DefaultTabOrder() []string {
	return []string{BookmarksTabID, "tab1", "tab2"}
}
