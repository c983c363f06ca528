// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// Upstream fetch metrics
	ScraperRequestsTotal   *prometheus.CounterVec
	ScraperDurationSeconds *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec

	// API metrics
	APIDurationSeconds *prometheus.HistogramVec
	APIRequestsTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPErrorsTotal *prometheus.CounterVec

	// Markup drift
	ParseFailuresTotal *prometheus.CounterVec

	// Rate limiter metrics
	RateLimiterWaitDuration *prometheus.HistogramVec
	RateLimiterDropped      *prometheus.CounterVec
	RateLimiterActiveKeys   *prometheus.GaugeVec

	// Singleflight metrics
	SingleflightDedupTotal *prometheus.CounterVec

	// Calendar export metrics
	CalendarExportsTotal *prometheus.CounterVec

	// Stored schedules, refreshed by the background metrics job
	StoredSchedules prometheus.Gauge

	// Warmup metrics
	WarmupTasksTotal *prometheus.CounterVec
	WarmupDuration   prometheus.Histogram
}

// New creates a new Metrics instance with all metrics registered
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		ScraperRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dku_scraper_requests_total",
				Help: "Total number of upstream page fetches by page kind and status",
			},
			[]string{"page", "status"}, // status: success, error, not_found, parse_error
		),

		ScraperDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dku_scraper_duration_seconds",
				Help:    "Upstream page fetch duration in seconds by page kind",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 15, 30},
			},
			[]string{"page"}, // page: navbar, timetable
		),

		CacheHitsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dku_cache_hits_total",
				Help: "Total number of cache hits by tier and kind",
			},
			[]string{"tier", "kind"}, // tier: edge, store; kind: meta, schedule
		),

		CacheMissesTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dku_cache_misses_total",
				Help: "Total number of cache misses by tier and kind",
			},
			[]string{"tier", "kind"},
		),

		APIDurationSeconds: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dku_api_duration_seconds",
				Help:    "API request duration in seconds by route",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 15},
			},
			[]string{"route"},
		),

		APIRequestsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dku_api_requests_total",
				Help: "Total number of API requests by route and status class",
			},
			[]string{"route", "status"}, // status: 2xx, 4xx, 5xx
		),

		HTTPErrorsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dku_http_errors_total",
				Help: "Total HTTP errors by type and route",
			},
			[]string{"error_type", "route"}, // error_type: bad_request, not_found, upstream, rate_limit
		),

		ParseFailuresTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dku_parse_failures_total",
				Help: "Total number of upstream pages with missing structural anchors",
			},
			[]string{"page"},
		),

		RateLimiterWaitDuration: promauto.With(registry).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dku_rate_limiter_wait_duration_seconds",
				Help:    "Time spent waiting for rate limiter token by limiter type",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"limiter_type"}, // limiter_type: scraper
		),

		RateLimiterDropped: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dku_rate_limiter_dropped_total",
				Help: "Total number of requests dropped by rate limiter",
			},
			[]string{"limiter_type"}, // limiter_type: api, token
		),

		RateLimiterActiveKeys: promauto.With(registry).NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "dku_rate_limiter_active_keys",
				Help: "Number of client keys currently tracked by a keyed rate limiter",
			},
			[]string{"limiter_type"},
		),

		SingleflightDedupTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dku_singleflight_dedup_total",
				Help: "Total number of deduplicated requests (requests that waited instead of executing)",
			},
			[]string{"kind"},
		),

		CalendarExportsTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dku_calendar_exports_total",
				Help: "Total number of ICS feeds served by language",
			},
			[]string{"lang"},
		),

		StoredSchedules: promauto.With(registry).NewGauge(
			prometheus.GaugeOpts{
				Name: "dku_stored_schedules",
				Help: "Number of unexpired schedules in the local store",
			},
		),

		WarmupTasksTotal: promauto.With(registry).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dku_warmup_tasks_total",
				Help: "Total number of warmup tasks by kind and status",
			},
			[]string{"kind", "status"}, // status: success, error, skipped
		),

		WarmupDuration: promauto.With(registry).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "dku_warmup_duration_seconds",
				Help:    "Total duration of warmup process",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 900, 1800},
			},
		),
	}

	return m
}

// RecordScraperRequest records an upstream fetch with status
func (m *Metrics) RecordScraperRequest(page, status string, duration float64) {
	m.ScraperRequestsTotal.WithLabelValues(page, status).Inc()
	m.ScraperDurationSeconds.WithLabelValues(page).Observe(duration)
}

// RecordCacheHit records a cache hit
func (m *Metrics) RecordCacheHit(tier, kind string) {
	m.CacheHitsTotal.WithLabelValues(tier, kind).Inc()
}

// RecordCacheMiss records a cache miss
func (m *Metrics) RecordCacheMiss(tier, kind string) {
	m.CacheMissesTotal.WithLabelValues(tier, kind).Inc()
}

// RecordAPIRequest records an API request
func (m *Metrics) RecordAPIRequest(route, status string, duration float64) {
	m.APIRequestsTotal.WithLabelValues(route, status).Inc()
	m.APIDurationSeconds.WithLabelValues(route).Observe(duration)
}

// RecordHTTPError records HTTP error metrics
func (m *Metrics) RecordHTTPError(errorType, route string) {
	m.HTTPErrorsTotal.WithLabelValues(errorType, route).Inc()
}

// RecordParseFailure records a page whose markup lost a structural anchor
func (m *Metrics) RecordParseFailure(page string) {
	m.ParseFailuresTotal.WithLabelValues(page).Inc()
}

// RecordRateLimiterWait records time spent waiting for rate limiter
func (m *Metrics) RecordRateLimiterWait(limiterType string, duration float64) {
	m.RateLimiterWaitDuration.WithLabelValues(limiterType).Observe(duration)
}

// RecordRateLimiterDrop records a request dropped by rate limiter
func (m *Metrics) RecordRateLimiterDrop(limiterType string) {
	m.RateLimiterDropped.WithLabelValues(limiterType).Inc()
}

// SetRateLimiterActiveKeys sets the number of tracked keys for a limiter
func (m *Metrics) SetRateLimiterActiveKeys(limiterType string, count int) {
	m.RateLimiterActiveKeys.WithLabelValues(limiterType).Set(float64(count))
}

// SetStoredSchedules sets the number of unexpired stored schedules
func (m *Metrics) SetStoredSchedules(count int) {
	m.StoredSchedules.Set(float64(count))
}

// RecordSingleflightDedup records a deduplicated request
func (m *Metrics) RecordSingleflightDedup(kind string) {
	m.SingleflightDedupTotal.WithLabelValues(kind).Inc()
}

// RecordCalendarExport records a served ICS feed
func (m *Metrics) RecordCalendarExport(lang string) {
	m.CalendarExportsTotal.WithLabelValues(lang).Inc()
}

// RecordWarmupTask records a warmup task completion
func (m *Metrics) RecordWarmupTask(kind, status string) {
	m.WarmupTasksTotal.WithLabelValues(kind, status).Inc()
}

// RecordWarmupDuration records total warmup duration
func (m *Metrics) RecordWarmupDuration(duration float64) {
	m.WarmupDuration.Observe(duration)
}

// TrackDroppedLogs exports the count of log records the remote sink dropped.
// The value is read from dropped on every scrape.
func (m *Metrics) TrackDroppedLogs(registry prometheus.Registerer, dropped func() uint64) {
	promauto.With(registry).NewCounterFunc(
		prometheus.CounterOpts{
			Name: "dku_log_records_dropped_total",
			Help: "Total number of log records dropped before reaching Better Stack",
		},
		func() float64 { return float64(dropped()) },
	)
}
