// Package logger builds the JSON slog.Logger used by both binaries.
package logger

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// New returns a JSON slog.Logger writing to stdout, tagged with service.
// Pass a *slog.LevelVar to change the level at runtime.
func New(service string, level slog.Leveler) *slog.Logger {
	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("service", service)
}

// ParseLevel maps debug|info|warn|error (case-insensitive) to a slog.Level.
// The empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logger: unknown level %q", s)
	}
}
