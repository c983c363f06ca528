// Package main provides a one-shot refresh of the timetable cache, for
// deployments that prefill the store from cron instead of the server loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/garyellow/dku-timetable-go/internal/config"
	"github.com/garyellow/dku-timetable-go/internal/edgecache"
	"github.com/garyellow/dku-timetable-go/internal/logger"
	"github.com/garyellow/dku-timetable-go/internal/schedule"
	"github.com/garyellow/dku-timetable-go/internal/scraper"
	"github.com/garyellow/dku-timetable-go/internal/scraper/dku"
	"github.com/garyellow/dku-timetable-go/internal/storage"
	"github.com/garyellow/dku-timetable-go/internal/timetable"
	"github.com/garyellow/dku-timetable-go/internal/warmup"
)

// CLI flags
var (
	resetFlag   = flag.Bool("reset", false, "Delete all cached timetable data before refreshing")
	weeksFlag   = flag.Int("weeks", 0, "Rolling weeks per group (0 = use config default)")
	workersFlag = flag.Int("workers", 0, "Concurrent page fetches (0 = use config default)")
)

func main() {
	flag.Parse()

	cfg, err := config.LoadForMode(config.WarmupMode)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("Starting warmup tool")

	ctx, cancel := context.WithTimeout(context.Background(), config.WarmupProactive)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.WithError(err).Error("Warmup completed with errors")
		_, _ = fmt.Fprintf(os.Stderr, "\nWarmup failed: %v\n", err)
		cancel()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	db, err := storage.New(ctx, cfg.SQLitePath(), cfg.CacheTTL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer func() { _ = db.Close() }()
	log.WithField("path", cfg.SQLitePath()).
		WithField("cache_ttl", cfg.CacheTTL).
		Info("Database connected")

	edge, err := edgecache.New(ctx, edgecache.Options{URL: cfg.RedisURL, TTL: cfg.EdgeCacheTTL})
	if err != nil {
		log.WithError(err).Warn("Edge cache unavailable, refreshing SQLite only")
		edge = edgecache.NewWithClient(nil, cfg.EdgeCacheTTL)
	}
	defer func() { _ = edge.Close() }()

	workers := orDefault(*workersFlag, cfg.ScraperWorkers)
	client := scraper.NewClient(scraper.Config{
		BaseURLs:       cfg.UpstreamBaseURLs,
		Timeout:        cfg.ScraperTimeout,
		Workers:        workers,
		MinDelay:       config.ScraperMinDelay,
		MaxDelay:       config.ScraperMaxDelay,
		MaxRetries:     cfg.ScraperMaxRetries,
		InitialBackoff: config.ScraperRetryInitial,
	})
	fetcher := dku.NewFetcher(client, timetable.NewParser(timetable.Options{}), nil)
	svc := schedule.NewService(fetcher, db, edge, nil, log)

	opts := warmup.Options{
		Weeks:   orDefault(*weeksFlag, cfg.WarmupWeeks),
		Workers: workers,
	}
	if *resetFlag {
		opts.Reset = resetAll(db, edge)
	}

	start := time.Now()
	stats, err := warmup.Run(ctx, svc, log, opts)
	duration := time.Since(start).Round(time.Second)
	if stats != nil {
		fmt.Print(summary(stats, duration))
	}
	return err
}

// resetAll empties both cache tiers.
func resetAll(db *storage.DB, edge *edgecache.Cache) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := db.Reset(ctx); err != nil {
			return fmt.Errorf("reset store: %w", err)
		}
		if err := edge.Flush(ctx); err != nil {
			return fmt.Errorf("flush edge cache: %w", err)
		}
		return nil
	}
}

// orDefault returns flagValue when positive, otherwise configured.
func orDefault(flagValue, configured int) int {
	if flagValue > 0 {
		return flagValue
	}
	return configured
}

func summary(stats *warmup.Stats, duration time.Duration) string {
	return fmt.Sprintf("\nWarmup finished: %d groups x %d weeks, %d schedules (%d events) cached, %d failed\nTotal time: %v\n",
		stats.Groups.Load(),
		stats.Weeks.Load(),
		stats.Schedules.Load(),
		stats.Events.Load(),
		stats.Failed.Load(),
		duration)
}
