package privacylog

import (
	"io"
	"log/slog"
	"strings"
)

// NewLogger returns a JSON logger on w that sanitizes every record and scrubs
// the given endpoints from all string values.
func NewLogger(w io.Writer, level string, endpoints ...string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	return slog.New(WrapHandler(slog.NewJSONHandler(w, opts), endpoints...))
}

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
