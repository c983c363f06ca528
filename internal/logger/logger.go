// Package logger provides structured logging utilities for the application.
// It wraps log/slog with JSON formatting, enriches records with tracing
// values from the context, and can ship a copy of every record to Better Stack
// through a bounded queue so a slow sink never stalls a request.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	slogbetterstack "github.com/samber/slog-betterstack"
)

// Logger is the application logger
type Logger struct {
	*slog.Logger
	level   slog.Level
	shipper *shipper
}

// Options configures optional log sinks.
type Options struct {
	// BetterStackToken enables the Better Stack sink when non-empty.
	BetterStackToken    string
	BetterStackEndpoint string
	// BetterStackLevel is the minimum level shipped to Better Stack.
	// Empty means the local level.
	BetterStackLevel string
	Ship             ShipOptions
}

// New creates a new logger instance with JSON formatting
func New(level string) *Logger {
	return NewWithWriter(level, os.Stdout)
}

// NewWithWriter creates a new logger instance with JSON formatting writing to the provided writer
func NewWithWriter(level string, w io.Writer) *Logger {
	return NewWithOptions(level, w, Options{})
}

// NewWithOptions creates a logger writing JSON to w and, when a token is
// set, queueing a copy of every record for Better Stack.
func NewWithOptions(level string, w io.Writer, opts Options) *Logger {
	if opts.BetterStackToken == "" {
		return newLogger(level, w, nil, opts.Ship)
	}

	remoteLevel := ParseLevel(level)
	if opts.BetterStackLevel != "" {
		remoteLevel = ParseLevel(opts.BetterStackLevel)
	}
	remote := slogbetterstack.Option{
		Level:    remoteLevel,
		Token:    opts.BetterStackToken,
		Endpoint: opts.BetterStackEndpoint,
		Timeout:  10 * time.Second,
	}.NewBetterstackHandler()
	return newLogger(level, w, remote, opts.Ship)
}

// newLogger wires the local JSON handler and, when remote is non-nil, the
// shipping queue in front of it.
func newLogger(level string, w io.Writer, remote slog.Handler, ship ShipOptions) *Logger {
	logLevel := ParseLevel(level)

	var handler slog.Handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level:       logLevel,
		ReplaceAttr: replaceAttr,
	})

	var s *shipper
	if remote != nil {
		s = startShipper(ship)
		handler = &teeHandler{local: handler, remote: &shipHandler{shipper: s, sink: remote}}
	}

	return &Logger{
		Logger:  slog.New(NewContextHandler(handler)),
		level:   logLevel,
		shipper: s,
	}
}

// ParseLevel maps a level name to a slog level. Unknown names map to info.
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

func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	switch a.Key {
	case slog.TimeKey:
		a.Key = "timestamp"
	case slog.LevelKey:
		a.Key = "level"
		level := a.Value.String()
		if level == "WARN" {
			level = "warning"
		} else {
			level = strings.ToLower(level)
		}
		a.Value = slog.StringValue(level)
	case slog.MessageKey:
		a.Key = "message"
	}
	return a
}

// Level returns the minimum level this logger emits.
func (l *Logger) Level() slog.Level {
	return l.level
}

// Shutdown flushes records queued for Better Stack. Records logged after
// it returns are written locally only.
func (l *Logger) Shutdown(ctx context.Context) error {
	if l == nil || l.shipper == nil {
		return nil
	}
	return l.shipper.stop(ctx)
}

// DroppedRecords counts records that never reached Better Stack because the
// queue was full or already shut down.
func (l *Logger) DroppedRecords() uint64 {
	if l == nil || l.shipper == nil {
		return 0
	}
	return l.shipper.dropped.Load()
}

func (l *Logger) derive(inner *slog.Logger) *Logger {
	return &Logger{Logger: inner, level: l.level, shipper: l.shipper}
}

// WithModule creates a new entry with module field
func (l *Logger) WithModule(module string) *Logger {
	return l.derive(l.With("module", module))
}

// WithError creates a new entry with error field
func (l *Logger) WithError(err error) *Logger {
	return l.derive(l.With("error", err))
}

// WithField creates a new entry with a single field
func (l *Logger) WithField(key string, value any) *Logger {
	return l.derive(l.With(key, value))
}

// WithFields creates a new entry with multiple fields
func (l *Logger) WithFields(fields map[string]any) *Logger {
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		args = append(args, k, v)
	}
	return l.derive(l.With(args...))
}
