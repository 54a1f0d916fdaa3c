package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New создает текстовый slog логгер с уровнем из строки
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stdout, level)
}

func NewWithWriter(w io.Writer, level string) *slog.Logger {
	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: levelFromString(level),
	})
	return slog.New(handler)
}

// Setup создает логгер и делает его логгером по умолчанию
func Setup(level string) *slog.Logger {
	logger := New(level)
	slog.SetDefault(logger)
	return logger
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
