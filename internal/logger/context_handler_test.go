package logger

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/garyellow/dku-timetable-go/internal/ctxutil"
)

func TestContextHandler_Handle(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		setupContext   func(context.Context) context.Context
		expectedFields map[string]string
	}{
		{
			name: "extracts all context values",
			setupContext: func(ctx context.Context) context.Context {
				ctx = ctxutil.WithRequestID(ctx, "req-abc-123")
				ctx = ctxutil.WithClientIP(ctx, "203.0.113.9")
				return ctxutil.WithGroup(ctx, "1-CS")
			},
			expectedFields: map[string]string{
				"request_id": "req-abc-123",
				"client_ip":  "203.0.113.9",
				"group":      "1-CS",
			},
		},
		{
			name: "extracts partial context values",
			setupContext: func(ctx context.Context) context.Context {
				return ctxutil.WithRequestID(ctx, "req-only")
			},
			expectedFields: map[string]string{
				"request_id": "req-only",
			},
		},
		{
			name: "handles empty context",
			setupContext: func(ctx context.Context) context.Context {
				return ctx
			},
			expectedFields: map[string]string{},
		},
		{
			name: "skips empty string values",
			setupContext: func(ctx context.Context) context.Context {
				ctx = ctxutil.WithRequestID(ctx, "")
				return ctxutil.WithGroup(ctx, "2-ME")
			},
			expectedFields: map[string]string{
				"group": "2-ME",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var buf bytes.Buffer
			handler := NewContextHandler(slog.NewJSONHandler(&buf, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}))
			slog.New(handler).InfoContext(tt.setupContext(context.Background()), "test message")

			output := buf.String()
			for key, value := range tt.expectedFields {
				expectedJSON := `"` + key + `":"` + value + `"`
				if !strings.Contains(output, expectedJSON) {
					t.Errorf("Expected field %s=%s not found in output: %s", key, value, output)
				}
			}
			for _, field := range []string{"request_id", "client_ip", "group"} {
				if _, want := tt.expectedFields[field]; !want && strings.Contains(output, `"`+field+`"`) {
					t.Errorf("Unexpected field %s found in output: %s", field, output)
				}
			}
		})
	}
}

func TestContextHandler_Enabled(t *testing.T) {
	t.Parallel()

	handler := NewContextHandler(slog.NewJSONHandler(bytes.NewBuffer(nil), &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	tests := []struct {
		name     string
		level    slog.Level
		expected bool
	}{
		{"debug below threshold", slog.LevelDebug, false},
		{"info at threshold", slog.LevelInfo, true},
		{"warn above threshold", slog.LevelWarn, true},
		{"error above threshold", slog.LevelError, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := handler.Enabled(context.Background(), tt.level); got != tt.expected {
				t.Errorf("Enabled(%v) = %v, want %v", tt.level, got, tt.expected)
			}
		})
	}
}

func TestContextHandler_WithAttrsAndGroup(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := NewContextHandler(slog.NewJSONHandler(&buf, nil))

	withAttrs := handler.WithAttrs([]slog.Attr{slog.String("service", "dku-timetable")})
	slog.New(withAttrs.WithGroup("fetch")).Info("test message", "pages", 2)

	output := buf.String()
	if !strings.Contains(output, `"service":"dku-timetable"`) {
		t.Errorf("Expected service attribute not found in output: %s", output)
	}
	if !strings.Contains(output, `"fetch":{"pages":2}`) {
		t.Errorf("Expected grouped attribute not found in output: %s", output)
	}
}
