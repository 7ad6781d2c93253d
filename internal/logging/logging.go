// Package logging builds the process-wide slog logger. Dev gets a readable
// text handler, everything else ships JSON; debug level also records the
// caller so a misrouted 500 can be traced to its log site.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

func NewLogger(level, serviceName, env string) *slog.Logger {
	return newLogger(os.Stdout, level, serviceName, env)
}

func newLogger(w io.Writer, level, serviceName, env string) *slog.Logger {
	lvl := parseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var h slog.Handler
	if env == "dev" {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	return slog.New(h).With(
		slog.String("service", serviceName),
		slog.String("env", env),
	)
}

// ForRequest returns a logger carrying the request id, so every line a
// handler emits can be joined back to the access log entry.
func ForRequest(logger *slog.Logger, requestID string) *slog.Logger {
	if requestID == "" {
		return logger
	}
	return logger.With(slog.String("request_id", requestID))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
