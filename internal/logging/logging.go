// Package logging configures the process-wide structured logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

const (
	LevelTrace = slog.Level(-8)
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

var programLevel = new(slog.LevelVar)

// ParseLevel converts a level name to a slog.Level. Unknown names return
// LevelInfo with an error.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "TRACE":
		return LevelTrace, nil
	case "DEBUG":
		return LevelDebug, nil
	case "", "INFO":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("unknown log level: %s (defaulting to INFO)", s)
	}
}

// New returns a JSON logger writing to w at the shared program level.
func New(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: programLevel,
		ReplaceAttr: func(_ []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

// Setup reads LOG_LEVEL, installs a JSON logger on stderr as the slog
// default and returns it.
func Setup() *slog.Logger {
	level, err := ParseLevel(os.Getenv("LOG_LEVEL"))
	programLevel.Set(level)

	logger := New(os.Stderr)
	slog.SetDefault(logger)
	if err != nil {
		logger.Warn("invalid LOG_LEVEL", "error", err)
	}
	return logger
}

// SetLevel changes the level of every logger created by New.
func SetLevel(level slog.Level) {
	programLevel.Set(level)
}

// Level returns the current program level.
func Level() slog.Level {
	return programLevel.Level()
}

// Discard returns a logger that drops everything. Tests use it to keep output quiet.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
