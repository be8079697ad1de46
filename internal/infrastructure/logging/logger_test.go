package logging

import (
	"log/slog"
	"testing"

	"github.com/nerrad567/boomgate-core/internal/infrastructure/config"
)

func TestNew(t *testing.T) {
	logger := New(config.LoggingConfig{
		Level:  "debug",
		Format: "json",
		Output: "stdout",
	}, "1.0.0")

	if logger == nil {
		t.Fatal("New() returned nil")
	}

	// Should not panic on any level.
	logger.Debug("debug message", "key", "value")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"nonsense", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestWith(t *testing.T) {
	logger := Default()

	child := logger.With("component", "gate")
	if child == nil {
		t.Fatal("With() returned nil")
	}
	if child == logger {
		t.Error("With() should return a new logger")
	}

	child.Info("message with component field")
}

func TestTextFormat(t *testing.T) {
	logger := New(config.LoggingConfig{
		Level:  "info",
		Format: "text",
		Output: "stderr",
	}, "dev")

	logger.Info("text format message")
}
