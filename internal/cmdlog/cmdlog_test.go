package cmdlog

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/assert"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func TestRunCountsOutcome(t *testing.T) {
	assert.NoError(t, Run("cmdlog_ok", func() error { return nil }))
	boom := errors.New("boom")
	assert.ErrorIs(t, Run("cmdlog_fail", func() error { return boom }), boom)

	body := scrape(t)
	assert.Contains(t, body, `feedsim_command_runs_total{cmd="cmdlog_ok"} 1`)
	assert.Contains(t, body, `feedsim_command_runs_total{cmd="cmdlog_fail"} 1`)
	assert.Contains(t, body, `feedsim_command_errors_total{cmd="cmdlog_fail"} 1`)
	assert.NotContains(t, body, `feedsim_command_errors_total{cmd="cmdlog_ok"}`)
}
