package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNew(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	if m == nil {
		t.Fatal("New() returned nil")
	}

	// Verify all metric fields are initialized
	if m.ScraperRequestsTotal == nil {
		t.Error("ScraperRequestsTotal is nil")
	}
	if m.ScraperDurationSeconds == nil {
		t.Error("ScraperDurationSeconds is nil")
	}
	if m.CacheHitsTotal == nil {
		t.Error("CacheHitsTotal is nil")
	}
	if m.CacheMissesTotal == nil {
		t.Error("CacheMissesTotal is nil")
	}
	if m.APIDurationSeconds == nil {
		t.Error("APIDurationSeconds is nil")
	}
	if m.APIRequestsTotal == nil {
		t.Error("APIRequestsTotal is nil")
	}
	if m.HTTPErrorsTotal == nil {
		t.Error("HTTPErrorsTotal is nil")
	}
	if m.ParseFailuresTotal == nil {
		t.Error("ParseFailuresTotal is nil")
	}
	if m.RateLimiterWaitDuration == nil {
		t.Error("RateLimiterWaitDuration is nil")
	}
	if m.RateLimiterDropped == nil {
		t.Error("RateLimiterDropped is nil")
	}
	if m.SingleflightDedupTotal == nil {
		t.Error("SingleflightDedupTotal is nil")
	}
	if m.CalendarExportsTotal == nil {
		t.Error("CalendarExportsTotal is nil")
	}
	if m.RateLimiterActiveKeys == nil {
		t.Error("RateLimiterActiveKeys is nil")
	}
	if m.StoredSchedules == nil {
		t.Error("StoredSchedules is nil")
	}
	if m.WarmupTasksTotal == nil {
		t.Error("WarmupTasksTotal is nil")
	}
	if m.WarmupDuration == nil {
		t.Error("WarmupDuration is nil")
	}
}

func TestRecordScraperRequest(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordScraperRequest("navbar", "success", 1.5)
	m.RecordScraperRequest("timetable", "error", 2.0)
	m.RecordScraperRequest("timetable", "parse_error", 0.3)
}

func TestRecordCache(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordCacheHit("edge", "schedule")
	m.RecordCacheHit("store", "meta")
	m.RecordCacheMiss("edge", "meta")
	m.RecordCacheMiss("store", "schedule")
}

func TestRecordAPIRequest(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordAPIRequest("/api/meta", "2xx", 0.05)
	m.RecordAPIRequest("/api/schedule", "4xx", 0.01)
	m.RecordAPIRequest("/api/calendar", "5xx", 3.0)
}

func TestRecordHTTPError(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordHTTPError("bad_request", "/api/schedule")
	m.RecordHTTPError("rate_limit", "/api/calendar")
	m.RecordHTTPError("upstream", "/api/meta")
}

func TestRecordParseFailure(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.RecordParseFailure("timetable")
	m.RecordParseFailure("timetable")
	m.RecordParseFailure("navbar")

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	var total float64
	for _, mf := range families {
		if mf.GetName() != "dku_parse_failures_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	if total != 3 {
		t.Errorf("dku_parse_failures_total = %v, want 3", total)
	}
}

func TestRecordRateLimiter(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordRateLimiterWait("scraper", 0.25)
	m.RecordRateLimiterDrop("api")
}

func TestSetGauges(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	m.SetRateLimiterActiveKeys("api", 7)
	m.SetRateLimiterActiveKeys("api", 3)
	m.SetStoredSchedules(42)

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	got := map[string]float64{}
	for _, mf := range families {
		for _, metric := range mf.GetMetric() {
			if g := metric.GetGauge(); g != nil {
				got[mf.GetName()] = g.GetValue()
			}
		}
	}
	if got["dku_rate_limiter_active_keys"] != 3 {
		t.Errorf("dku_rate_limiter_active_keys = %v, want 3", got["dku_rate_limiter_active_keys"])
	}
	if got["dku_stored_schedules"] != 42 {
		t.Errorf("dku_stored_schedules = %v, want 42", got["dku_stored_schedules"])
	}
}

func TestRecordSingleflightDedup(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordSingleflightDedup("schedule")
	m.RecordSingleflightDedup("meta")
}

func TestRecordCalendarExport(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordCalendarExport("ru")
	m.RecordCalendarExport("de")
}

func TestRecordWarmup(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Should not panic
	m.RecordWarmupTask("meta", "success")
	m.RecordWarmupTask("schedule", "error")
	m.RecordWarmupDuration(60.0)
	m.RecordWarmupDuration(300.0)
}

func TestMetrics_WithDefaultRegistry(t *testing.T) {
	// Test that metrics can be created with a new registry
	// without conflicting with default registry
	registry := prometheus.NewRegistry()
	m := New(registry)

	// Record some metrics
	m.RecordScraperRequest("timetable", "success", 1.0)
	m.RecordCacheHit("edge", "schedule")
	m.RecordAPIRequest("/api/schedule", "2xx", 0.5)

	// Gather metrics to verify they were recorded
	metricFamilies, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	// Should have metrics registered
	if len(metricFamilies) == 0 {
		t.Error("No metrics were gathered")
	}

	// Check for specific metric names
	expectedMetrics := map[string]bool{
		"dku_scraper_requests_total":   false,
		"dku_scraper_duration_seconds": false,
		"dku_cache_hits_total":         false,
		"dku_api_requests_total":       false,
		"dku_api_duration_seconds":     false,
	}

	for _, mf := range metricFamilies {
		if _, ok := expectedMetrics[mf.GetName()]; ok {
			expectedMetrics[mf.GetName()] = true
		}
	}

	for name, found := range expectedMetrics {
		if !found {
			t.Errorf("Expected metric %q not found", name)
		}
	}
}

func TestTrackDroppedLogs(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := New(registry)

	var dropped uint64 = 2
	m.TrackDroppedLogs(registry, func() uint64 { return dropped })
	dropped = 5

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	var got float64
	for _, mf := range families {
		if mf.GetName() == "dku_log_records_dropped_total" {
			got = mf.GetMetric()[0].GetCounter().GetValue()
		}
	}
	if got != 5 {
		t.Errorf("dku_log_records_dropped_total = %v, want 5", got)
	}
}
