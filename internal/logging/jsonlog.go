package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup configures the global logger. console switches to the human
// readable writer used by the CLI; otherwise output is JSON on stdout.
func Setup(level string, console bool) {
	zerolog.TimeFieldFormat = time.RFC3339Nano
	var out io.Writer = os.Stdout
	if console {
		out = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: "15:04:05"}
	}
	log.Logger = zerolog.New(out).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(parseLevel(level))
}

func parseLevel(level string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func Log(level zerolog.Level, msg string, fields map[string]any) {
	ev := log.WithLevel(level)
	if len(fields) > 0 {
		ev = ev.Fields(fields)
	}
	ev.Msg(msg)
}

func Debug(msg string, fields map[string]any) { Log(zerolog.DebugLevel, msg, fields) }
func Info(msg string, fields map[string]any)  { Log(zerolog.InfoLevel, msg, fields) }
func Warn(msg string, fields map[string]any)  { Log(zerolog.WarnLevel, msg, fields) }
func Error(msg string, fields map[string]any) { Log(zerolog.ErrorLevel, msg, fields) }
