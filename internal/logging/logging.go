// Package logging provides the configured slog logger used across the
// pipeline. Output format is text on a TTY and JSON otherwise, overridable
// with LOG_FORMAT; LOG_LEVEL selects debug/info/warn/error (default info).
package logging

import (
	"log/slog"
	"os"
	"strings"
)

// New creates a configured logger.
func New() *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(os.Getenv("LOG_LEVEL"))}

	format := os.Getenv("LOG_FORMAT")
	var handler slog.Handler
	if format == "text" || (format == "" && isatty(os.Stdout)) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

// SetDefault creates a logger and installs it as the process default.
func SetDefault() *slog.Logger {
	logger := New()
	slog.SetDefault(logger)
	return logger
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

func isatty(f *os.File) bool {
	stat, err := f.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) != 0
}
