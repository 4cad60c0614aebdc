package cmdlog

import (
	"time"

	"feedsim/internal/logging"
	"feedsim/internal/metrics"
)

// Run executes f as CLI command cmd, logging and counting the outcome.
func Run(cmd string, f func() error) error {
	metrics.IncCommandRun(cmd)
	start := time.Now()
	err := f()
	if err != nil {
		metrics.IncCommandError(cmd)
		logging.Error(cmd+"_error", map[string]any{"error": err.Error()})
	} else {
		logging.Debug(cmd+"_ok", map[string]any{"ms": time.Since(start).Milliseconds()})
	}
	return err
}
