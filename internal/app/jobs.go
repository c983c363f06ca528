package app

import (
	"context"
	"errors"
	"time"

	"github.com/garyellow/dku-timetable-go/internal/config"
	"github.com/garyellow/dku-timetable-go/internal/sentry"
	"github.com/garyellow/dku-timetable-go/internal/snapshot"
	"github.com/garyellow/dku-timetable-go/internal/warmup"
)

// startBackgroundJobs starts all background goroutines tracked by WaitGroup.
func (a *Application) startBackgroundJobs(ctx context.Context) {
	a.wg.Go(func() {
		a.refreshLoop(ctx)
	})
	a.wg.Go(func() {
		a.cacheCleanup(ctx)
	})
	a.wg.Go(func() {
		a.updateCacheSizeMetrics(ctx)
	})
	if a.snapshots != nil {
		a.wg.Go(func() {
			a.snapshots.Poll(ctx)
		})
	}
}

// refreshLoop seeds the store on startup, then refreshes from upstream every
// DataRefreshInterval. The service becomes ready after the first pass.
func (a *Application) refreshLoop(ctx context.Context) {
	a.logger.Debug("Refresh job started")
	defer a.logger.Debug("Refresh job stopped")

	if a.importSnapshot(ctx) {
		a.readinessState.MarkReady()
		a.logger.Info("Service marked as ready after snapshot import")
	}

	a.performRefresh(ctx)
	if !a.readinessState.RefreshCompleted() {
		a.readinessState.MarkReady()
		a.logger.Info("Service marked as ready after initial refresh")
	}

	if a.cfg.DataRefreshInterval <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(a.cfg.DataRefreshInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("Refresh job received shutdown signal")
			return
		case <-ticker.C:
			a.performRefresh(ctx)
		}
	}
}

// importSnapshot loads the shared snapshot into an empty store. Reports
// whether anything was imported.
func (a *Application) importSnapshot(ctx context.Context) bool {
	if a.snapshots == nil {
		return false
	}
	importCtx, cancel := context.WithTimeout(ctx, config.SnapshotPublish)
	defer cancel()

	imported, err := a.snapshots.ImportIfEmpty(importCtx)
	if err != nil {
		a.logger.WithError(err).Warn("Snapshot import failed, refreshing from upstream")
		return false
	}
	return imported
}

// performRefresh runs one warmup pass. With R2 enabled only the lock holder
// scrapes upstream and then publishes a snapshot for the other instances.
func (a *Application) performRefresh(ctx context.Context) {
	refreshCtx, cancel := context.WithTimeout(ctx, config.WarmupProactive)
	defer cancel()

	opts := warmup.Options{
		Weeks:   a.cfg.WarmupWeeks,
		Workers: a.cfg.ScraperWorkers,
		Metrics: a.metrics,
		Now:     a.now,
	}

	run := func(ctx context.Context) error {
		stats, err := warmup.Run(ctx, a.service, a.logger, opts)
		if stats != nil {
			a.logger.WithField("weeks", stats.Weeks.Load()).
				WithField("groups", stats.Groups.Load()).
				WithField("schedules", stats.Schedules.Load()).
				WithField("events", stats.Events.Load()).
				WithField("failed", stats.Failed.Load()).
				Info("Refresh pass finished")
		}
		if a.snapshots != nil && ctx.Err() == nil {
			a.publishSnapshot(ctx)
		}
		return err
	}

	var err error
	if a.snapshots == nil {
		err = run(refreshCtx)
	} else {
		err = a.snapshots.RunAsLeader(refreshCtx, run)
	}

	switch {
	case err == nil:
	case errors.Is(err, snapshot.ErrLockHeld):
		a.logger.Debug("Another instance holds the refresh lock, relying on its snapshot")
	case ctx.Err() != nil:
		a.logger.Debug("Refresh interrupted by shutdown")
	default:
		a.logger.WithError(err).Error("Refresh failed")
		sentry.CaptureExceptionWithContext(ctx, err)
	}
}

func (a *Application) publishSnapshot(ctx context.Context) {
	publishCtx, cancel := context.WithTimeout(ctx, config.SnapshotPublish)
	defer cancel()

	if _, err := a.snapshots.Publish(publishCtx); err != nil {
		if errors.Is(err, snapshot.ErrEmpty) {
			a.logger.Warn("Nothing cached yet, snapshot not published")
			return
		}
		a.logger.WithError(err).Error("Snapshot publish failed")
	}
}

// cacheCleanup drops expired schedules every DataCleanupInterval, exits on
// context cancellation.
func (a *Application) cacheCleanup(ctx context.Context) {
	if a.cfg.DataCleanupInterval <= 0 {
		return
	}
	a.logger.Debug("Cache cleanup job started")
	defer a.logger.Debug("Cache cleanup job stopped")

	ticker := time.NewTicker(a.cfg.DataCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("Cache cleanup received shutdown signal")
			return
		case <-ticker.C:
			a.runCacheCleanup(ctx)
		}
	}
}

// runCacheCleanup performs the actual cache cleanup operation.
func (a *Application) runCacheCleanup(ctx context.Context) {
	startTime := time.Now()

	deleted, err := a.db.DeleteExpiredSchedules(ctx, a.cfg.CacheTTL)
	if err != nil {
		a.logger.WithError(err).Error("Failed to cleanup expired schedules")
		return
	}

	a.logger.WithField("deleted", deleted).
		WithField("duration_ms", time.Since(startTime).Milliseconds()).
		Info("Cache cleanup completed")
}

// updateCacheSizeMetrics periodically records cache size to Prometheus.
func (a *Application) updateCacheSizeMetrics(ctx context.Context) {
	if a.metrics == nil {
		return
	}
	a.logger.Debug("Cache metrics job started")
	defer a.logger.Debug("Cache metrics job stopped")

	ticker := time.NewTicker(config.MetricsUpdateInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			a.logger.Debug("Cache metrics received shutdown signal")
			return
		case <-ticker.C:
			a.recordCacheSizeMetrics(ctx)
		}
	}
}

func (a *Application) recordCacheSizeMetrics(ctx context.Context) {
	count, err := a.db.CountSchedules(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to count schedules for metrics")
		return
	}
	a.metrics.SetStoredSchedules(count)
}
