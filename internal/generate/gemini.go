package generate

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"feedsim/internal/logging"
)

const (
	DefaultGeminiURL = "https://generativelanguage.googleapis.com"
	validationModel  = "gemini-2.5-flash-lite"
)

// KeySource yields the API key to use for a call.
type KeySource interface {
	Get(ctx context.Context) string
}

// GeminiBackend calls the Gemini generateContent REST endpoint.
type GeminiBackend struct {
	client  *resty.Client
	keys    KeySource
	limiter *rate.Limiter
}

// GeminiOption customises a GeminiBackend.
type GeminiOption func(*GeminiBackend)

// WithRateLimit paces calls to rps with the given burst. Non-positive
// values keep the default of 1 call per second, burst 5.
func WithRateLimit(rps float64, burst int) GeminiOption {
	return func(g *GeminiBackend) {
		if rps <= 0 {
			rps = DefaultRPS
		}
		if burst <= 0 {
			burst = DefaultBurst
		}
		g.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

const (
	DefaultRPS   = 1.0
	DefaultBurst = 5
)

func NewGeminiBackend(baseURL string, keys KeySource, timeout time.Duration, opts ...GeminiOption) *GeminiBackend {
	if baseURL == "" {
		baseURL = DefaultGeminiURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	c := resty.New().
		SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Content-Type", "application/json").
		SetTimeout(timeout)
	g := &GeminiBackend{client: c, keys: keys, limiter: rate.NewLimiter(rate.Limit(DefaultRPS), DefaultBurst)}
	for _, o := range opts {
		o(g)
	}
	return g
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
	Tools    []map[string]any `json:"tools,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content           geminiContent `json:"content"`
		GroundingMetadata *struct {
			WebSearchQueries []string `json:"webSearchQueries"`
		} `json:"groundingMetadata"`
	} `json:"candidates"`
}

type geminiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (g *GeminiBackend) Generate(ctx context.Context, req BackendRequest) (string, error) {
	return g.call(ctx, g.keys.Get(ctx), req)
}

// ValidateKey makes a minimal call with key and reports whether it was accepted.
func (g *GeminiBackend) ValidateKey(ctx context.Context, key string) error {
	text, err := g.call(ctx, key, BackendRequest{Model: validationModel, Prompt: "Hello"})
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return ErrEmptyResponse
	}
	return nil
}

func (g *GeminiBackend) call(ctx context.Context, key string, req BackendRequest) (string, error) {
	if key == "" {
		return "", &APIError{Status: http.StatusUnauthorized, Code: "UNAUTHENTICATED", Message: "no api key configured"}
	}
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	body := geminiRequest{Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: req.Prompt}}}}}
	if req.UseSearch {
		body.Tools = []map[string]any{{"google_search": map[string]any{}}}
	}
	var (
		gr geminiResponse
		ge geminiError
	)
	resp, err := g.client.R().
		SetContext(ctx).
		SetHeader("x-goog-api-key", key).
		SetBody(&body).
		SetResult(&gr).
		SetError(&ge).
		ForceContentType("application/json").
		Post("/v1beta/models/" + url.PathEscape(req.Model) + ":generateContent")
	if err != nil {
		return "", fmt.Errorf("gemini request: %w", err)
	}
	if resp.IsError() {
		ae := &APIError{Status: resp.StatusCode(), Message: resp.String()}
		if ge.Error.Message != "" {
			ae.Code = ge.Error.Status
			ae.Message = ge.Error.Message
		}
		return "", ae
	}
	if len(gr.Candidates) == 0 {
		return "", nil
	}
	if gm := gr.Candidates[0].GroundingMetadata; gm != nil {
		logging.Debug("generation_grounding", map[string]any{"model": req.Model, "queries": gm.WebSearchQueries})
	}
	var sb strings.Builder
	for _, p := range gr.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
