package metrics

import (
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GenerationAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsim_generation_attempts_total",
		Help: "Generation backend calls by model and outcome",
	}, []string{"model", "outcome"})
	GenerationFallbacks = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feedsim_generation_fallbacks_total",
		Help: "Times the fallback chain advanced to the next model",
	})
	GenerationNotices = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsim_generation_notices_total",
		Help: "Synthetic notice tweets returned instead of content",
	}, []string{"kind"})
	StockPromotions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "feedsim_stock_promoted_tweets_total",
		Help: "Tweets moved from stock to visible lists",
	})
	PersistErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsim_persist_errors_total",
		Help: "Persistence adapter failures by operation",
	}, []string{"op"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsim_command_runs_total",
		Help: "CLI command invocations",
	}, []string{"cmd"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "feedsim_command_errors_total",
		Help: "CLI command failures",
	}, []string{"cmd"})
)

func init() {
	prometheus.MustRegister(GenerationAttempts, GenerationFallbacks, GenerationNotices,
		StockPromotions, PersistErrors, CommandRuns, CommandErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, mux) }()
}

func IncGenerationAttempt(model, outcome string) {
	GenerationAttempts.WithLabelValues(model, outcome).Inc()
}

func IncPersistError(op string) { PersistErrors.WithLabelValues(op).Inc() }

func IncCommandRun(cmd string)   { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string) { CommandErrors.WithLabelValues(cmd).Inc() }
