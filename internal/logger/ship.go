package logger

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

const (
	defaultShipQueue = 1024
	defaultShipDrain = 5 * time.Second
)

// ShipOptions sizes the queue between request paths and the remote sink.
type ShipOptions struct {
	// QueueSize is the number of records held while the sink is slow.
	// Records beyond it are dropped and counted.
	QueueSize int
	// DrainTimeout bounds Shutdown when its context has no deadline.
	DrainTimeout time.Duration
}

type shipment struct {
	ctx    context.Context
	record slog.Record
	sink   slog.Handler
}

// shipper delivers queued records to remote sinks from one goroutine.
type shipper struct {
	mu      sync.RWMutex
	stopped bool
	queue   chan shipment
	drain   time.Duration
	dropped atomic.Uint64
	done    chan struct{}
}

func startShipper(opts ShipOptions) *shipper {
	size := opts.QueueSize
	if size <= 0 {
		size = defaultShipQueue
	}
	drain := opts.DrainTimeout
	if drain <= 0 {
		drain = defaultShipDrain
	}

	s := &shipper{
		queue: make(chan shipment, size),
		drain: drain,
		done:  make(chan struct{}),
	}
	go s.loop()
	return s
}

func (s *shipper) loop() {
	defer close(s.done)
	for sh := range s.queue {
		_ = sh.sink.Handle(sh.ctx, sh.record)
	}
}

// offer queues a record without blocking. It reports false when the record
// was dropped.
func (s *shipper) offer(ctx context.Context, record slog.Record, sink slog.Handler) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.stopped {
		select {
		case s.queue <- shipment{ctx: context.WithoutCancel(ctx), record: record, sink: sink}:
			return true
		default:
		}
	}
	s.dropped.Add(1)
	return false
}

// stop closes the queue and waits for it to drain.
func (s *shipper) stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	close(s.queue)
	s.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.drain)
		defer cancel()
	}
	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("drain remote log queue (%d pending): %w", len(s.queue), ctx.Err())
	}
}

// shipHandler is the slog.Handler face of a remote sink behind a shipper.
// Handle never blocks and never fails.
type shipHandler struct {
	shipper *shipper
	sink    slog.Handler
}

func (h *shipHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.sink.Enabled(ctx, level)
}

func (h *shipHandler) Handle(ctx context.Context, r slog.Record) error {
	h.shipper.offer(ctx, r.Clone(), h.sink)
	return nil
}

func (h *shipHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &shipHandler{shipper: h.shipper, sink: h.sink.WithAttrs(attrs)}
}

func (h *shipHandler) WithGroup(name string) slog.Handler {
	return &shipHandler{shipper: h.shipper, sink: h.sink.WithGroup(name)}
}
