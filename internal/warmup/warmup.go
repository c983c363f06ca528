// Package warmup refreshes the navbar and the current weeks of every group
// ahead of user traffic, and tracks when the service is ready to serve.
package warmup

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/garyellow/dku-timetable-go/internal/logger"
	"github.com/garyellow/dku-timetable-go/internal/metrics"
	"github.com/garyellow/dku-timetable-go/internal/schedule"
	"github.com/garyellow/dku-timetable-go/internal/timetable"
)

// DefaultWorkers bounds concurrent page refreshes when Options.Workers is 0.
const DefaultWorkers = 4

// Refresher reloads pages from upstream, bypassing the cache tiers.
// *schedule.Service satisfies it.
type Refresher interface {
	RefreshMeta(ctx context.Context) (*timetable.MetaPayload, error)
	RefreshSchedule(ctx context.Context, group timetable.GroupOption, week timetable.WeekOption) (*timetable.GroupWeekSchedule, error)
}

// Stats tracks refresh results.
// All fields use atomic operations for concurrent access
type Stats struct {
	Weeks     atomic.Int64
	Groups    atomic.Int64
	Schedules atomic.Int64
	Events    atomic.Int64
	Failed    atomic.Int64
}

// Options configures a refresh run
type Options struct {
	Weeks   int                             // Rolling weeks per group (0 = schedule.DefaultRollingWindow)
	Workers int                             // Concurrent page fetches (0 = DefaultWorkers)
	Reset   func(ctx context.Context) error // Optional cache reset before refreshing
	Metrics *metrics.Metrics                // Optional metrics recorder
	Now     func() time.Time                // Clock for week selection (nil = time.Now)
}

// Run refreshes the navbar and then the rolling weeks of every group.
// A failed page does not stop the others; Run returns an error describing
// the failures once every page has been tried. A navbar failure aborts the run.
func Run(ctx context.Context, svc Refresher, log *logger.Logger, opts Options) (*Stats, error) {
	log = log.WithModule("warmup")
	stats := &Stats{}
	startTime := time.Now()

	if opts.Reset != nil {
		log.Warn("Resetting cached timetable data...")
		if err := opts.Reset(ctx); err != nil {
			return nil, fmt.Errorf("failed to reset cache: %w", err)
		}
		log.Info("Cache reset complete")
	}

	meta, err := svc.RefreshMeta(ctx)
	if err != nil {
		recordTask(opts.Metrics, "meta", "error")
		return stats, fmt.Errorf("navbar: %w", err)
	}
	recordTask(opts.Metrics, "meta", "success")

	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	weeks := schedule.PickRollingWeeks(meta.Weeks, "", now(), opts.Weeks)
	stats.Weeks.Store(int64(len(weeks)))
	stats.Groups.Store(int64(len(meta.Groups)))

	workers := opts.Workers
	if workers <= 0 {
		workers = DefaultWorkers
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, week := range weeks {
		for _, group := range meta.Groups {
			if gctx.Err() != nil {
				break
			}
			g.Go(func() error {
				page, err := svc.RefreshSchedule(gctx, group, week)
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return err
					}
					stats.Failed.Add(1)
					recordTask(opts.Metrics, "schedule", "error")
					log.WithError(err).
						WithField("group", group.CodeRaw).
						WithField("week", week.Value).
						Warn("Schedule refresh failed")
					return nil
				}
				stats.Schedules.Add(1)
				stats.Events.Add(int64(len(page.Events)))
				recordTask(opts.Metrics, "schedule", "success")
				return nil
			})
		}
	}

	err = g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	duration := time.Since(startTime)
	if opts.Metrics != nil {
		opts.Metrics.RecordWarmupDuration(duration.Seconds())
	}
	log.WithField("duration", duration).
		WithField("weeks", stats.Weeks.Load()).
		WithField("groups", stats.Groups.Load()).
		WithField("schedules", stats.Schedules.Load()).
		WithField("events", stats.Events.Load()).
		WithField("failed", stats.Failed.Load()).
		Info("Timetable refresh complete")

	if err != nil {
		return stats, fmt.Errorf("warmup canceled: %w", err)
	}
	if failed := stats.Failed.Load(); failed > 0 {
		return stats, fmt.Errorf("%d of %d schedules failed", failed, failed+stats.Schedules.Load())
	}
	return stats, nil
}

func recordTask(m *metrics.Metrics, kind, status string) {
	if m != nil {
		m.RecordWarmupTask(kind, status)
	}
}
