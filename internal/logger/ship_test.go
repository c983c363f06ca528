package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyellow/dku-timetable-go/internal/ctxutil"
)

// syncBuffer collects JSON lines written from the shipping goroutine.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) entries(t *testing.T) []map[string]any {
	t.Helper()
	b.mu.Lock()
	defer b.mu.Unlock()

	var out []map[string]any
	for line := range strings.Lines(b.buf.String()) {
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		out = append(out, entry)
	}
	return out
}

// gatedSink blocks every Handle until release is closed and signals the
// first call on started.
type gatedSink struct {
	slog.Handler
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func newGatedSink(w *syncBuffer) *gatedSink {
	return &gatedSink{
		Handler: slog.NewJSONHandler(w, nil),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (s *gatedSink) Handle(ctx context.Context, r slog.Record) error {
	s.once.Do(func() { close(s.started) })
	<-s.release
	return s.Handler.Handle(ctx, r)
}

func shutdown(t *testing.T, log *Logger) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, log.Shutdown(ctx))
}

func TestNewLogger_MirrorsToRemote(t *testing.T) {
	t.Parallel()

	var local bytes.Buffer
	var remote syncBuffer
	log := newLogger("info", &local, slog.NewJSONHandler(&remote, nil), ShipOptions{})

	ctx := ctxutil.WithRequestID(context.Background(), "req-1")
	log.WithModule("scraper").WithField("group", "ИС-21").InfoContext(ctx, "timetable fetched")
	shutdown(t, log)

	localEntry := decodeLine(t, &local)
	assert.Equal(t, "timetable fetched", localEntry["message"])
	assert.Equal(t, "scraper", localEntry["module"])

	entries := remote.entries(t)
	require.Len(t, entries, 1)
	assert.Equal(t, "timetable fetched", entries[0]["msg"])
	assert.Equal(t, "scraper", entries[0]["module"])
	assert.Equal(t, "ИС-21", entries[0]["group"])
	assert.Equal(t, "req-1", entries[0]["request_id"])
	assert.Zero(t, log.DroppedRecords())
}

func TestNewLogger_LevelsFilterIndependently(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		localLevel  string
		remoteLevel slog.Level
		wantLocal   int
		wantRemote  int
	}{
		{"remote ships warnings only", "debug", slog.LevelWarn, 3, 1},
		{"remote ships more than stdout", "error", slog.LevelDebug, 0, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var local, remote syncBuffer
			sink := slog.NewJSONHandler(&remote, &slog.HandlerOptions{Level: tt.remoteLevel})
			log := newLogger(tt.localLevel, &local, sink, ShipOptions{})

			log.Debug("cache lookup skipped")
			log.Info("schedule refreshed")
			log.Warn("upstream slow")
			shutdown(t, log)

			assert.Len(t, local.entries(t), tt.wantLocal)
			assert.Len(t, remote.entries(t), tt.wantRemote)
		})
	}
}

func TestNewLogger_DropsWhenQueueFull(t *testing.T) {
	t.Parallel()

	var local, remote syncBuffer
	sink := newGatedSink(&remote)
	log := newLogger("info", &local, sink, ShipOptions{QueueSize: 1})

	log.Info("first")
	<-sink.started
	log.Info("queued")
	log.Info("dropped")

	assert.Equal(t, uint64(1), log.DroppedRecords())
	assert.Len(t, local.entries(t), 3, "stdout never drops")

	close(sink.release)
	shutdown(t, log)

	var got []any
	for _, e := range remote.entries(t) {
		got = append(got, e["msg"])
	}
	assert.Equal(t, []any{"first", "queued"}, got)
}

func TestLogger_ShutdownDrainTimeout(t *testing.T) {
	t.Parallel()

	var remote syncBuffer
	sink := newGatedSink(&remote)
	log := newLogger("info", &bytes.Buffer{}, sink, ShipOptions{DrainTimeout: 20 * time.Millisecond})
	t.Cleanup(func() { close(sink.release) })

	log.Info("stuck")
	<-sink.started
	log.Info("pending")

	err := log.Shutdown(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, err.Error(), "1 pending")
}

func TestLogger_LogAfterShutdown(t *testing.T) {
	t.Parallel()

	var local, remote syncBuffer
	log := newLogger("info", &local, slog.NewJSONHandler(&remote, nil), ShipOptions{})
	shutdown(t, log)
	shutdown(t, log)

	log.Info("shutdown complete")

	assert.Len(t, local.entries(t), 1)
	assert.Empty(t, remote.entries(t))
	assert.Equal(t, uint64(1), log.DroppedRecords())
}

func TestLogger_DroppedRecordsWithoutRemote(t *testing.T) {
	t.Parallel()

	var nilLogger *Logger
	assert.Zero(t, nilLogger.DroppedRecords())
	assert.Zero(t, NewWithWriter("info", &bytes.Buffer{}).DroppedRecords())
}
