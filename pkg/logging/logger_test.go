// pkg/logging/logger_test.go
package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func newBufferLogger(t *testing.T, level string) (*Logger, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger, err := New(Options{Level: level, Output: &buf})
	if err != nil {
		t.Fatalf("New() failed: %v", err)
	}
	return logger, &buf
}

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry); err != nil {
		t.Fatalf("log output is not JSON: %v (%q)", err, buf.String())
	}
	return entry
}

func TestNewLogger(t *testing.T) {
	t.Setenv("GIMBAL_GELF_ADDR", "")
	logger := NewLogger()
	if logger == nil || logger.Logger == nil {
		t.Fatal("NewLogger() returned an unusable logger")
	}
	if err := logger.Close(); err != nil {
		t.Errorf("Close() without GELF should be a no-op, got %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		value    string
		expected slog.Level
	}{
		{"debug level", "DEBUG", slog.LevelDebug},
		{"info level", "INFO", slog.LevelInfo},
		{"warn level", "WARN", slog.LevelWarn},
		{"warning level", "WARNING", slog.LevelWarn},
		{"error level", "ERROR", slog.LevelError},
		{"lowercase debug", "debug", slog.LevelDebug},
		{"invalid level", "INVALID", slog.LevelInfo},
		{"empty value", "", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if level := ParseLevel(tt.value); level != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.value, level, tt.expected)
			}
		})
	}
}

func TestRunID(t *testing.T) {
	t.Run("explicit run ID", func(t *testing.T) {
		ctx := WithRunID(context.Background(), "run-42")
		if got := GetRunID(ctx); got != "run-42" {
			t.Errorf("GetRunID() = %q, want run-42", got)
		}
	})

	t.Run("generated run ID", func(t *testing.T) {
		ctx := WithRunID(context.Background(), "")
		if got := GetRunID(ctx); len(got) != 36 {
			t.Errorf("GetRunID() = %q, want a UUID", got)
		}
		if NewRunID() == NewRunID() {
			t.Error("NewRunID() returned duplicate IDs")
		}
	})

	t.Run("missing run ID", func(t *testing.T) {
		if got := GetRunID(context.Background()); got != "" {
			t.Errorf("GetRunID() = %q, want empty string", got)
		}
	})
}

func TestLogger_IncludesRunID(t *testing.T) {
	logger, buf := newBufferLogger(t, "INFO")
	ctx := WithRunID(context.Background(), "run-7")

	logger.Info(ctx, "tick", "tick", 3)

	entry := decodeLine(t, buf)
	if entry["run_id"] != "run-7" {
		t.Errorf("run_id = %v, want run-7", entry["run_id"])
	}
	if entry["msg"] != "tick" {
		t.Errorf("msg = %v, want tick", entry["msg"])
	}
}

func TestLogger_ErrorAddsErrorField(t *testing.T) {
	logger, buf := newBufferLogger(t, "INFO")

	logger.Error(context.Background(), "step failed", errors.New("boom"))

	entry := decodeLine(t, buf)
	if entry["error"] != "boom" {
		t.Errorf("error = %v, want boom", entry["error"])
	}
	if entry["level"] != "ERROR" {
		t.Errorf("level = %v, want ERROR", entry["level"])
	}
}

func TestLogger_LevelFilters(t *testing.T) {
	logger, buf := newBufferLogger(t, "WARN")

	logger.Debug(context.Background(), "hidden")
	logger.Info(context.Background(), "hidden")
	if buf.Len() != 0 {
		t.Errorf("expected debug/info to be filtered, got %q", buf.String())
	}

	logger.Warn(context.Background(), "shown")
	if !strings.Contains(buf.String(), "shown") {
		t.Errorf("expected warning in output, got %q", buf.String())
	}
}

func TestSanitizeAttributes(t *testing.T) {
	logger, buf := newBufferLogger(t, "INFO")

	logger.Info(context.Background(), "connecting",
		"influx_token", "supersecret",
		"recorder_dsn", "host=db password=hunter2",
		"bucket", "flight",
	)

	out := buf.String()
	if strings.Contains(out, "supersecret") || strings.Contains(out, "hunter2") {
		t.Errorf("credentials leaked into log output: %s", out)
	}
	if !strings.Contains(out, "flight") {
		t.Errorf("non-sensitive value missing from output: %s", out)
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, "ignored") != nil {
		t.Error("WrapError(nil) should return nil")
	}

	base := errors.New("disk full")
	wrapped := WrapError(base, "flush batch %d", 3)
	if !errors.Is(wrapped, base) {
		t.Error("wrapped error lost its cause")
	}
	if wrapped.Error() != "flush batch 3: disk full" {
		t.Errorf("Error() = %q", wrapped.Error())
	}
}
