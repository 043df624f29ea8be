// Package logging builds the process logger. JSON output goes through
// log/slog; the text format is rendered by charmbracelet/log.
package logging

import (
	"io"
	"log/slog"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

func ParseLevel(level string) slog.Level {
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

// New returns a logger writing to w. format is "json" or "text".
func New(w io.Writer, level, format string) *slog.Logger {
	l := ParseLevel(level)

	if strings.EqualFold(format, "text") {
		handler := charmlog.NewWithOptions(w, charmlog.Options{
			Level:           charmlog.Level(l),
			ReportTimestamp: true,
		})
		return slog.New(handler)
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: l,
	})
	return slog.New(handler)
}
