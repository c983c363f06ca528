package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/garyellow/dku-timetable-go/internal/ctxutil"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse JSON log %q: %v", buf.String(), err)
	}
	return entry
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		level string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARNING", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			t.Parallel()
			if got := ParseLevel(tt.level); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.level, got, tt.want)
			}
			if got := New(tt.level).Level(); got != tt.want {
				t.Errorf("New(%q).Level() = %v, want %v", tt.level, got, tt.want)
			}
		})
	}
}

func TestLogger_JSONFormat(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewWithWriter("info", &buf).Info("test message")

	entry := decodeLine(t, &buf)
	for _, field := range []string{"timestamp", "level", "message"} {
		if _, ok := entry[field]; !ok {
			t.Errorf("JSON log missing required field %q", field)
		}
	}
	if entry["message"] != "test message" {
		t.Errorf("message = %v, want %q", entry["message"], "test message")
	}
	if entry["level"] != "info" {
		t.Errorf("level = %v, want %q", entry["level"], "info")
	}
}

func TestLogger_WarnLevelName(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewWithWriter("debug", &buf).Warn("careful")

	if got := decodeLine(t, &buf)["level"]; got != "warning" {
		t.Errorf("level = %v, want warning", got)
	}
}

func TestLogger_Fields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)
	log.WithModule("schedule").
		WithField("group", "ИС-21").
		WithError(errors.New("boom")).
		WithFields(map[string]any{"week": "38"}).
		Error("operation failed")

	entry := decodeLine(t, &buf)
	want := map[string]string{
		"module": "schedule",
		"group":  "ИС-21",
		"error":  "boom",
		"week":   "38",
	}
	for key, value := range want {
		if got, _ := entry[key].(string); got != value {
			t.Errorf("%s = %v, want %q", key, entry[key], value)
		}
	}
}

func TestLogger_ContextValues(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter("info", &buf)
	ctx := ctxutil.WithRequestID(context.Background(), "ctx-req-456")
	log.InfoContext(ctx, "test message")

	if got := decodeLine(t, &buf)["request_id"]; got != "ctx-req-456" {
		t.Errorf("request_id = %v, want ctx-req-456", got)
	}
}

func TestLogger_LevelFiltering(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := NewWithWriter("warn", &buf)
	log.Info("hidden")
	log.Debug("hidden")

	if buf.Len() != 0 {
		t.Errorf("expected no output below warn, got %q", buf.String())
	}
}

func TestLogger_ShutdownWithoutRemote(t *testing.T) {
	t.Parallel()

	log := NewWithWriter("info", &bytes.Buffer{})
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := log.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
	var nilLogger *Logger
	if err := nilLogger.Shutdown(ctx); err != nil {
		t.Errorf("nil Shutdown() error = %v", err)
	}
}
