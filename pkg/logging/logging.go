package logging

import (
	"log/slog"
	"os"
	"strings"
)

// NewLogger creates a slog.Logger for the given level string.
// Unknown or empty levels fall back to INFO.
func NewLogger(levelString string) *slog.Logger {
	level := slog.LevelInfo
	trimmedLevel := strings.TrimSpace(levelString)
	if trimmedLevel != "" {
		var parsedLevel slog.Level
		if parseError := parsedLevel.UnmarshalText([]byte(trimmedLevel)); parseError == nil {
			level = parsedLevel
		}
	}

	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	})
	return slog.New(handler)
}
