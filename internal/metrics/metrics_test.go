package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsExposure(t *testing.T) {
	IncGenerationAttempt("gemini-2.5-flash", "ok")
	GenerationFallbacks.Inc()
	GenerationNotices.WithLabelValues("feed").Inc()
	StockPromotions.Add(3)
	IncPersistError("set")
	IncCommandRun("tabs")
	IncCommandError("tabs")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	for _, m := range []string{
		"feedsim_generation_attempts_total",
		"feedsim_generation_fallbacks_total",
		"feedsim_generation_notices_total",
		"feedsim_stock_promoted_tweets_total",
		"feedsim_persist_errors_total",
		"feedsim_command_runs_total",
		"feedsim_command_errors_total",
	} {
		assert.Contains(t, body, m)
	}
}
