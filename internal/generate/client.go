// Package generate produces tweets from a text-generation backend, walking a
// fallback chain of model configurations and degrading to a single notice
// tweet when every step fails.
package generate

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"feedsim/internal/logging"
	"feedsim/internal/metrics"
	"feedsim/internal/model"
	"feedsim/internal/util"
)

// Kind selects the generation profile.
type Kind int

const (
	KindFeed Kind = iota
	KindReply
	KindSearch
)

func (k Kind) String() string {
	switch k {
	case KindReply:
		return "reply"
	case KindSearch:
		return "search"
	default:
		return "feed"
	}
}

const (
	NoticeName    = "システム通知"
	NoticeHandle  = "system"
	NoticeMessage = "AI生成エラー: すべてのモデルで制限に達しました。後でもう一度お試しください。"
	NoticeImage   = "avatar:system"
)

// Request describes one generation call. Count is honoured for feeds; replies
// and searches draw 5-10 items when Count is zero.
type Request struct {
	Kind            Kind
	Count           int
	Topic           string
	OriginalMessage string
	Query           string
}

// ModelConfig is one step of the fallback chain.
type ModelConfig struct {
	Model      string `yaml:"model"`
	UseSearch  bool   `yaml:"useSearch"`
	Quota      string `yaml:"quota"`      // informational, e.g. "250/day"
	DailyLimit int    `yaml:"dailyLimit"` // local budget; 0 disables
}

// BudgetKey names the quota counter for this step. The grounded and plain
// steps of one model are budgeted separately.
func (m ModelConfig) BudgetKey() string {
	if m.UseSearch {
		return m.Model + "+search"
	}
	return m.Model
}

// DefaultChain prefers grounded output, then the plain and lite models.
func DefaultChain() []ModelConfig {
	return []ModelConfig{
		{Model: "gemini-2.5-flash", UseSearch: true, Quota: "20/day (search)", DailyLimit: 20},
		{Model: "gemini-2.5-flash", Quota: "250/day", DailyLimit: 250},
		{Model: "gemini-2.5-flash-lite", Quota: "1000/day", DailyLimit: 1000},
	}
}

// BackendRequest is what a Backend needs for one call.
type BackendRequest struct {
	Model     string
	Prompt    string
	UseSearch bool
}

// Backend returns the raw model text for a prompt.
type Backend interface {
	Generate(ctx context.Context, req BackendRequest) (string, error)
}

// Budget gates calls per chain step and day, keyed by ModelConfig.BudgetKey.
// quota.Tracker implements it.
type Budget interface {
	Allow(ctx context.Context, model string, dailyLimit int, now time.Time) bool
	Record(ctx context.Context, model string, now time.Time)
}

type Options struct {
	Chain    []ModelConfig
	Delay    time.Duration // wait before the next chain step after a retryable error
	Language string        // "ja" (default) or "en"
	Weights  model.ReactionWeights
	Budget   Budget
	Rand     *rand.Rand
	Now      func() time.Time
}

type Client struct {
	backend Backend
	chain   []ModelConfig
	delay   time.Duration
	lang    string
	weights model.ReactionWeights
	budget  Budget
	now     func() time.Time
	mu      sync.Mutex // guards rnd
	rnd     *rand.Rand
}

func New(backend Backend, opts Options) *Client {
	c := &Client{
		backend: backend,
		chain:   opts.Chain,
		delay:   opts.Delay,
		lang:    opts.Language,
		weights: opts.Weights,
		budget:  opts.Budget,
		now:     opts.Now,
		rnd:     opts.Rand,
	}
	if len(c.chain) == 0 {
		c.chain = DefaultChain()
	}
	if c.delay <= 0 {
		c.delay = time.Second
	}
	if c.lang == "" {
		c.lang = "ja"
	}
	if len(c.weights) == 0 {
		c.weights = model.DefaultReactionWeights()
	}
	if c.now == nil {
		c.now = time.Now
	}
	if c.rnd == nil {
		seed := uint64(time.Now().UnixNano())
		c.rnd = rand.New(rand.NewPCG(seed, seed>>1|1))
	}
	return c
}

// Feed generates count tweets on topic.
func (c *Client) Feed(ctx context.Context, count int, topic string) []model.Tweet {
	return c.Generate(ctx, Request{Kind: KindFeed, Count: count, Topic: topic})
}

// Replies generates 5-10 replies to message. Replies cannot be bookmarked.
func (c *Client) Replies(ctx context.Context, message string) []model.Tweet {
	return c.Generate(ctx, Request{Kind: KindReply, OriginalMessage: message})
}

// Search generates 5-10 tweets about query.
func (c *Client) Search(ctx context.Context, query string) []model.Tweet {
	return c.Generate(ctx, Request{Kind: KindSearch, Query: query})
}

// Generate walks the chain until one step yields items. It never returns an
// error: when every step fails, or a step fails terminally, the result is a
// single notice tweet.
func (c *Client) Generate(ctx context.Context, req Request) []model.Tweet {
	req = c.normalize(req)
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = c.delay
	exp.RandomizationFactor = 0
	exp.Multiplier = 2
	exp.MaxInterval = 4 * c.delay
	exp.Reset()

	var lastErr error
chain:
	for i, cfg := range c.chain {
		last := i == len(c.chain)-1
		if c.budget != nil && !c.budget.Allow(ctx, cfg.BudgetKey(), cfg.DailyLimit, c.now()) {
			lastErr = fmt.Errorf("%s: %w", cfg.Model, ErrQuotaExhausted)
			metrics.IncGenerationAttempt(cfg.Model, "budget_skip")
			logging.Info("generation_budget_skip", map[string]any{"model": cfg.Model, "kind": req.Kind.String()})
			continue
		}

		logging.Debug("generation_attempt", map[string]any{"model": cfg.Model, "search": cfg.UseSearch, "quota": cfg.Quota, "kind": req.Kind.String()})
		items, err := c.attempt(ctx, cfg, req)
		if err == nil {
			metrics.IncGenerationAttempt(cfg.Model, "ok")
			return c.build(req.Kind, items)
		}
		lastErr = err
		if !IsRetryable(err) || last {
			metrics.IncGenerationAttempt(cfg.Model, "error")
			logging.Error("generation_failed", map[string]any{"model": cfg.Model, "kind": req.Kind.String(), "error": err.Error()})
			break
		}
		metrics.IncGenerationAttempt(cfg.Model, "retryable")
		metrics.GenerationFallbacks.Inc()
		next := c.chain[i+1].Model
		logging.Info("generation_fallback", map[string]any{"model": cfg.Model, "next": next, "error": err.Error()})
		select {
		case <-time.After(exp.NextBackOff()):
		case <-ctx.Done():
			lastErr = ctx.Err()
			break chain
		}
	}
	fields := map[string]any{"kind": req.Kind.String()}
	if lastErr != nil {
		fields["error"] = lastErr.Error()
	}
	logging.Warn("generation_notice", fields)
	metrics.GenerationNotices.WithLabelValues(req.Kind.String()).Inc()
	return []model.Tweet{c.notice(req.Kind)}
}

func (c *Client) attempt(ctx context.Context, cfg ModelConfig, req Request) ([]Item, error) {
	prompt := buildPrompt(req, cfg.UseSearch, c.lang, c.now())
	text, err := c.backend.Generate(ctx, BackendRequest{Model: cfg.Model, Prompt: prompt, UseSearch: cfg.UseSearch})
	if err != nil {
		return nil, err
	}
	if c.budget != nil {
		c.budget.Record(ctx, cfg.BudgetKey(), c.now())
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w from %s", ErrEmptyResponse, cfg.Model)
	}
	items := ParseItems(text)
	if len(items) == 0 {
		return nil, fmt.Errorf("%w from %s", ErrNoItems, cfg.Model)
	}
	return items, nil
}

func (c *Client) normalize(req Request) Request {
	if req.Count > 0 {
		return req
	}
	if req.Kind == KindFeed {
		req.Count = 5
		return req
	}
	c.mu.Lock()
	req.Count = 5 + c.rnd.IntN(6)
	c.mu.Unlock()
	return req
}

type profile struct {
	favorites    int // exclusive upper bound
	retweetMin   float64
	retweetSpan  float64
	impMin       float64
	impSpan      float64
	bookmarkable bool
}

var profiles = map[Kind]profile{
	KindFeed:   {favorites: 10001, retweetMin: 0.05, retweetSpan: 0.15, impMin: 1.5, impSpan: 0.5, bookmarkable: true},
	KindReply:  {favorites: 500, retweetMin: 0.03, retweetSpan: 0.10, impMin: 1.3, impSpan: 0.5},
	// search results live outside the feed store, so they cannot be bookmarked
	KindSearch: {favorites: 5000, retweetMin: 0.05, retweetSpan: 0.15, impMin: 1.5, impSpan: 0.5},
}

func (c *Client) build(kind Kind, items []Item) []model.Tweet {
	p := profiles[kind]
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]model.Tweet, 0, len(items))
	for _, it := range items {
		msg := util.NormalizeWhitespace(it.Message)
		if msg == "" {
			continue
		}
		fav := c.rnd.IntN(p.favorites)
		rt := int(float64(fav) * (p.retweetMin + c.rnd.Float64()*p.retweetSpan))
		imp := int(float64(fav) * (p.impMin + c.rnd.Float64()*p.impSpan))
		t := model.NewTweet(uuid.NewString(), strings.TrimSpace(it.Name), strings.TrimPrefix(strings.TrimSpace(it.NameID), "@"), msg,
			model.Counts{Favorites: fav, Retweets: rt}, imp, c.weights.Pick(c.rnd))
		t.Image = fmt.Sprintf("avatar:%d", 1+c.rnd.IntN(4))
		t.SupportsBookmark = p.bookmarkable
		out = append(out, t)
	}
	if len(out) == 0 {
		return []model.Tweet{c.notice(kind)}
	}
	return out
}

func (c *Client) notice(kind Kind) model.Tweet {
	t := model.NewTweet(uuid.NewString(), NoticeName, NoticeHandle, NoticeMessage, model.Counts{}, 0, model.ReactionKinds[0])
	t.Image = NoticeImage
	t.SupportsBookmark = profiles[kind].bookmarkable
	return t
}
