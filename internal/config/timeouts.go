// Package config provides centralized timeout constants for the application.
//
// The upstream timetable site serves static, generated HTML. Pages are small
// (tens of KiB) but the host is slow during the start of a semester, when
// every student refreshes the same few pages.
package config

import "time"

// HTTP server timeouts
const (
	// APIHTTPRead is the HTTP server read timeout. API requests carry at most
	// a small JSON body.
	APIHTTPRead = 10 * time.Second

	// APIHTTPWrite is the HTTP server write timeout. A calendar feed may need
	// several upstream fetches on a cold cache.
	APIHTTPWrite = 65 * time.Second

	// APIHTTPIdle is the HTTP server idle timeout for keep-alive connections.
	APIHTTPIdle = 120 * time.Second

	// APIRequest bounds the work done for a single API request.
	APIRequest = 60 * time.Second

	// ReadinessCheckTimeout bounds the dependency checks of /readyz.
	ReadinessCheckTimeout = 3 * time.Second
)

// Scraper timeouts
const (
	// ScraperRequest is the timeout for a single HTTP request to the upstream site.
	ScraperRequest = 15 * time.Second

	// ScraperRetryInitial is the initial delay before retrying a failed request.
	// Uses exponential backoff: 1s -> 2s -> 4s
	ScraperRetryInitial = 1 * time.Second

	// ScraperMinDelay and ScraperMaxDelay bound the random spacing between
	// consecutive upstream requests.
	ScraperMinDelay = 100 * time.Millisecond
	ScraperMaxDelay = 500 * time.Millisecond
)

// Database timeouts
const (
	// DatabaseBusyTimeout is SQLite busy_timeout pragma value.
	DatabaseBusyTimeout = 30 * time.Second

	// DatabaseConnMaxLifetime is the maximum lifetime of database connections.
	DatabaseConnMaxLifetime = time.Hour
)

// Background job intervals
const (
	// MetricsUpdateInterval is how often cache size metrics are updated.
	MetricsUpdateInterval = 5 * time.Minute

	// RateLimiterCleanupInterval is how often idle per-client limiters are dropped.
	RateLimiterCleanupInterval = 5 * time.Minute

	// WarmupProactive bounds one full warmup pass.
	WarmupProactive = 30 * time.Minute

	// SnapshotPublish bounds one snapshot upload including lock handling.
	SnapshotPublish = 2 * time.Minute
)

// Graceful shutdown
const (
	// GracefulShutdown is the timeout for graceful server shutdown.
	GracefulShutdown = 30 * time.Second

	// LogShipDrain bounds flushing queued Better Stack records when the
	// shutdown context carries no deadline of its own.
	LogShipDrain = 5 * time.Second
)
