package log

import (
	"log/slog"
	"strings"
)

// LevelFromString parses a log level from its string representation. The
// match is case-insensitive. Unrecognised strings return LevelInfo.
func LevelFromString(s string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewFromString creates a stderr JSON Logger at the named level. Intended
// for wiring a level flag or environment variable straight through.
func NewFromString(level string) *Logger {
	return New(LevelFromString(level))
}
