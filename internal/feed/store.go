// Package feed holds the normalized tab/tweet store: every tweet lives once in
// a global map keyed by id, and tabs reference tweets by id through a visible
// list and a pending stock buffer.
package feed

import (
	"context"
	"encoding/json"
	"slices"
	"sort"
	"sync"
	"time"

	"feedsim/internal/logging"
	"feedsim/internal/metrics"
	"feedsim/internal/model"
	"feedsim/internal/persist"
)

const (
	KeyTabs           = "@tabStore/tabs"
	KeyTabOrder       = "@tabStore/tabOrder"
	KeyBookmarkedTwts = "@tabStore/bookmarkedTweets"
)

type entry struct {
	tweet model.Tweet
	seq   uint64 // global insertion order, kept across upserts
}

// Store is safe for concurrent use. Every exported method is atomic with
// respect to the others; persistence writes are queued, never awaited.
type Store struct {
	mu      sync.RWMutex
	adapter persist.Adapter
	writer  *persist.Writer

	tweets  map[string]*entry
	nextSeq uint64
	tabs    map[string]*model.Tab
	order   []string
	active  string

	replies map[string][]string // parent id -> reply ids
	replyOf map[string]string   // reply id -> parent id

	hydrated bool
}

// Option configures a Store.
type Option func(*options)

type options struct {
	writeTimeout time.Duration
}

// WithWriteTimeout bounds each background persistence write.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *options) { o.writeTimeout = d }
}

// New returns a store seeded with the default tabs. Call Hydrate to load
// persisted state.
func New(a persist.Adapter, opts ...Option) *Store {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	s := &Store{
		adapter: a,
		writer:  persist.NewWriter(a, o.writeTimeout),
		tweets:  make(map[string]*entry),
		replies: make(map[string][]string),
		replyOf: make(map[string]string),
	}
	s.tabs = make(map[string]*model.Tab)
	for id, t := range model.DefaultTabs() {
		tab := t.Clone()
		s.tabs[id] = &tab
	}
	s.order = model.DefaultTabOrder()
	s.active = s.firstContentTab()
	return s
}

// Flush waits for queued persistence writes.
func (s *Store) Flush(ctx context.Context) error { return s.writer.Flush(ctx) }

// Close drains queued writes and stops the writer.
func (s *Store) Close(ctx context.Context) error { return s.writer.Close(ctx) }

// ---- tweets in tabs ----

// AddTweetToTab appends tweet to the tab's visible list and upserts it.
// It is a no-op when the tab is unknown, is the bookmarks tab, or already
// shows the id.
func (s *Store) AddTweetToTab(tabID string, tweet model.Tweet) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab, ok := s.tabs[tabID]
	if !ok || tabID == model.BookmarksTabID || tweet.ID == "" {
		return false
	}
	if slices.Contains(tab.TweetIDs, tweet.ID) {
		return false
	}
	tab.TweetIDs = append(tab.TweetIDs, tweet.ID)
	s.upsertLocked(tweet)
	return true
}

// RemoveTweetFromTab drops the id from the tab's visible list and deletes
// the tweet once nothing references it any more.
func (s *Store) RemoveTweetFromTab(tabID, tweetID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab, ok := s.tabs[tabID]
	if !ok {
		return false
	}
	before := len(tab.TweetIDs)
	tab.TweetIDs = slices.DeleteFunc(tab.TweetIDs, func(id string) bool { return id == tweetID })
	if len(tab.TweetIDs) == before {
		return false
	}
	s.releaseLocked(tweetID)
	return true
}

// TweetsForTab resolves the tab's visible ids in insertion order, skipping
// ids that no longer resolve. The bookmarks tab yields BookmarkedTweets.
func (s *Store) TweetsForTab(tabID string) []model.Tweet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tweetsForTabLocked(tabID)
}

func (s *Store) tweetsForTabLocked(tabID string) []model.Tweet {
	if tabID == model.BookmarksTabID {
		return s.bookmarkedLocked()
	}
	tab, ok := s.tabs[tabID]
	if !ok {
		return []model.Tweet{}
	}
	return s.resolveLocked(tab.TweetIDs)
}

// BookmarkedTweets returns every bookmarked tweet in global insertion order.
func (s *Store) BookmarkedTweets() []model.Tweet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bookmarkedLocked()
}

func (s *Store) bookmarkedLocked() []model.Tweet {
	var es []*entry
	for _, e := range s.tweets {
		if e.tweet.IsBookmarked {
			es = append(es, e)
		}
	}
	sort.Slice(es, func(i, j int) bool { return es[i].seq < es[j].seq })
	out := make([]model.Tweet, 0, len(es))
	for _, e := range es {
		out = append(out, e.tweet)
	}
	return out
}

// Tweet looks up a single tweet.
func (s *Store) Tweet(id string) (model.Tweet, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.tweets[id]
	if !ok {
		return model.Tweet{}, false
	}
	return e.tweet, true
}

// TweetCount is the size of the global tweet map.
func (s *Store) TweetCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.tweets)
}

// ---- tabs ----

// SetActiveTab moves the active pointer; unknown ids are ignored.
func (s *Store) SetActiveTab(tabID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tabs[tabID]; !ok {
		return false
	}
	s.active = tabID
	return true
}

func (s *Store) ActiveTabID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

func (s *Store) ActiveTab() (model.Tab, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tab, ok := s.tabs[s.active]
	if !ok {
		return model.Tab{}, false
	}
	return tab.Clone(), true
}

func (s *Store) ActiveTweets() []model.Tweet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tweetsForTabLocked(s.active)
}

func (s *Store) Tab(id string) (model.Tab, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tab, ok := s.tabs[id]
	if !ok {
		return model.Tab{}, false
	}
	return tab.Clone(), true
}

// AllTabs returns the tabs in display order.
func (s *Store) AllTabs() []model.Tab {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Tab, 0, len(s.order))
	for _, id := range s.order {
		if tab, ok := s.tabs[id]; ok {
			out = append(out, tab.Clone())
		}
	}
	return out
}

func (s *Store) TabOrder() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

// AddTab appends a new empty tab. Empty or existing ids are refused.
func (s *Store) AddTab(spec model.TabSpec) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if spec.ID == "" {
		return false
	}
	if _, exists := s.tabs[spec.ID]; exists {
		return false
	}
	s.tabs[spec.ID] = &model.Tab{ID: spec.ID, Title: spec.Title, Icon: spec.Icon, TweetIDs: []string{}, StockIDs: []string{}}
	s.order = append(s.order, spec.ID)
	s.persistTabsLocked()
	return true
}

// RemoveTab deletes a tab. The bookmarks tab cannot be removed.
func (s *Store) RemoveTab(tabID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tabID == model.BookmarksTabID {
		logging.Debug("remove_bookmarks_tab_refused", nil)
		return false
	}
	tab, ok := s.tabs[tabID]
	if !ok {
		return false
	}
	delete(s.tabs, tabID)
	s.order = slices.DeleteFunc(s.order, func(id string) bool { return id == tabID })
	if s.active == tabID {
		s.active = ""
		if len(s.order) > 0 {
			s.active = s.order[0]
		}
	}
	for _, id := range append(slices.Clone(tab.TweetIDs), tab.StockIDs...) {
		s.releaseLocked(id)
	}
	s.persistTabsLocked()
	return true
}

// ReorderTabs applies newOrder with the bookmarks tab pinned first. Unknown
// and repeated ids are dropped; tabs missing from newOrder keep their
// relative order at the end.
func (s *Store) ReorderTabs(newOrder []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.sanitizeOrderLocked(newOrder)
	s.persistTabsLocked()
}

func (s *Store) sanitizeOrderLocked(in []string) []string {
	out := []string{model.BookmarksTabID}
	seen := map[string]bool{model.BookmarksTabID: true}
	add := func(id string) {
		if seen[id] {
			return
		}
		if _, ok := s.tabs[id]; !ok {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	for _, id := range in {
		add(id)
	}
	for _, id := range s.order {
		add(id)
	}
	var rest []string
	for id := range s.tabs {
		if !seen[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	for _, id := range rest {
		add(id)
	}
	return out
}

// UpdateTabTitle renames a tab. The bookmarks tab keeps its title.
func (s *Store) UpdateTabTitle(tabID, title string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tabID == model.BookmarksTabID {
		return false
	}
	tab, ok := s.tabs[tabID]
	if !ok {
		return false
	}
	tab.Title = title
	s.persistTabsLocked()
	return true
}

// ---- stock ----

// AddTweetsToStock buffers tweets for later display, in input order. Ids
// already in the tab's stock or visible list are skipped. Returns the
// number of tweets added.
func (s *Store) AddTweetsToStock(tabID string, tweets []model.Tweet) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab, ok := s.tabs[tabID]
	if !ok || tabID == model.BookmarksTabID {
		return 0
	}
	present := make(map[string]struct{}, len(tab.TweetIDs)+len(tab.StockIDs))
	for _, id := range tab.TweetIDs {
		present[id] = struct{}{}
	}
	for _, id := range tab.StockIDs {
		present[id] = struct{}{}
	}
	added := 0
	for _, t := range tweets {
		if t.ID == "" {
			continue
		}
		if _, dup := present[t.ID]; dup {
			continue
		}
		present[t.ID] = struct{}{}
		s.upsertLocked(t)
		tab.StockIDs = append(tab.StockIDs, t.ID)
		added++
	}
	return added
}

// LoadTweetsFromStock moves up to count of the oldest stocked ids to the
// end of the visible list and returns the moved tweets.
func (s *Store) LoadTweetsFromStock(tabID string, count int) []model.Tweet {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab, ok := s.tabs[tabID]
	if !ok || count <= 0 || len(tab.StockIDs) == 0 {
		return []model.Tweet{}
	}
	n := min(count, len(tab.StockIDs))
	moved := slices.Clone(tab.StockIDs[:n])
	tab.StockIDs = slices.Clone(tab.StockIDs[n:])
	for _, id := range moved {
		if !slices.Contains(tab.TweetIDs, id) {
			tab.TweetIDs = append(tab.TweetIDs, id)
		}
	}
	metrics.StockPromotions.Add(float64(n))
	return s.resolveLocked(moved)
}

func (s *Store) StockCount(tabID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if tab, ok := s.tabs[tabID]; ok {
		return len(tab.StockIDs)
	}
	return 0
}

// SetGenerating sets the advisory in-flight flag. It does not exclude other
// callers; use BeginGenerating for that.
func (s *Store) SetGenerating(tabID string, v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if tab, ok := s.tabs[tabID]; ok {
		tab.IsGenerating = v
	}
}

// BeginGenerating atomically claims the tab's generation flag. It returns
// ok=false when the tab is unknown, is the bookmarks tab, or is already
// generating. release clears the flag and may be called more than once.
func (s *Store) BeginGenerating(tabID string) (release func(), ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tab, exists := s.tabs[tabID]
	if !exists || tabID == model.BookmarksTabID || tab.IsGenerating {
		return func() {}, false
	}
	tab.IsGenerating = true
	var once sync.Once
	return func() {
		once.Do(func() { s.SetGenerating(tabID, false) })
	}, true
}

// ---- replies ----

// AddReplies stores generated replies under their parent tweet. Returns the
// number stored; zero when the parent is unknown.
func (s *Store) AddReplies(parentID string, replies []model.Tweet) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tweets[parentID]; !ok {
		return 0
	}
	added := 0
	for _, r := range replies {
		if r.ID == "" || r.ID == parentID {
			continue
		}
		if _, dup := s.replyOf[r.ID]; dup {
			continue
		}
		s.upsertLocked(r)
		s.replies[parentID] = append(s.replies[parentID], r.ID)
		s.replyOf[r.ID] = parentID
		added++
	}
	return added
}

// Replies returns the replies stored for parentID, oldest first.
func (s *Store) Replies(parentID string) []model.Tweet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolveLocked(s.replies[parentID])
}

// ---- internals ----

// upsertLocked inserts t, or refreshes the content of a tweet the store
// already holds. An existing tweet keeps its counts, baseline, bookmark
// state and insertion sequence.
func (s *Store) upsertLocked(t model.Tweet) {
	e, ok := s.tweets[t.ID]
	if !ok {
		s.putLocked(t)
		return
	}
	old := e.tweet
	t.Baseline = old.Baseline
	t.FavoriteCount = old.FavoriteCount
	t.RetweetCount = old.RetweetCount
	t.ReactionCount = old.ReactionCount
	t.SupportsBookmark = old.SupportsBookmark
	t.IsBookmarked = old.IsBookmarked
	t.Derive()
	e.tweet = t
	if old.IsBookmarked && t != old {
		s.persistBookmarksLocked()
	}
}

// putLocked stores t as given, replacing any existing tweet but keeping
// its insertion sequence.
func (s *Store) putLocked(t model.Tweet) {
	t.Derive()
	if e, ok := s.tweets[t.ID]; ok {
		e.tweet = t
		return
	}
	s.nextSeq++
	s.tweets[t.ID] = &entry{tweet: t, seq: s.nextSeq}
}

func (s *Store) resolveLocked(ids []string) []model.Tweet {
	out := make([]model.Tweet, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.tweets[id]; ok {
			out = append(out, e.tweet)
		}
	}
	return out
}

// referencedLocked reports whether anything still needs the tweet: a tab's
// visible list or stock, the bookmark flag, or a live parent tweet.
func (s *Store) referencedLocked(id string) bool {
	for _, tab := range s.tabs {
		if slices.Contains(tab.TweetIDs, id) || slices.Contains(tab.StockIDs, id) {
			return true
		}
	}
	if e, ok := s.tweets[id]; ok && e.tweet.IsBookmarked {
		return true
	}
	if parent, ok := s.replyOf[id]; ok {
		if _, alive := s.tweets[parent]; alive {
			return true
		}
	}
	return false
}

func (s *Store) releaseLocked(id string) {
	if s.referencedLocked(id) {
		return
	}
	delete(s.tweets, id)
	if parent, ok := s.replyOf[id]; ok {
		delete(s.replyOf, id)
		s.replies[parent] = slices.DeleteFunc(s.replies[parent], func(r string) bool { return r == id })
	}
	children := s.replies[id]
	delete(s.replies, id)
	for _, rid := range children {
		delete(s.replyOf, rid)
		if !s.referencedLocked(rid) {
			delete(s.tweets, rid)
		}
	}
}

func (s *Store) firstContentTab() string {
	for _, id := range s.order {
		if id != model.BookmarksTabID {
			if _, ok := s.tabs[id]; ok {
				return id
			}
		}
	}
	if len(s.order) > 0 {
		return s.order[0]
	}
	return ""
}

func (s *Store) persistTabsLocked() {
	snapshot := make(map[string]model.Tab, len(s.tabs))
	for id, tab := range s.tabs {
		c := tab.Clone()
		c.IsGenerating = false
		snapshot[id] = c
	}
	tabsJSON, err := json.Marshal(snapshot)
	if err != nil {
		logging.Error("encode_tabs_failed", map[string]any{"error": err.Error()})
		return
	}
	orderJSON, err := json.Marshal(s.order)
	if err != nil {
		logging.Error("encode_tab_order_failed", map[string]any{"error": err.Error()})
		return
	}
	s.writer.Set(KeyTabs, string(tabsJSON))
	s.writer.Set(KeyTabOrder, string(orderJSON))
}

func (s *Store) persistBookmarksLocked() {
	b, err := json.Marshal(s.bookmarkedLocked())
	if err != nil {
		logging.Error("encode_bookmarks_failed", map[string]any{"error": err.Error()})
		return
	}
	s.writer.Set(KeyBookmarkedTwts, string(b))
}
