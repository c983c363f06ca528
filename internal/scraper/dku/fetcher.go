// Package dku fetches and parses the DKU timetable site (navbar frame and
// per-group week pages).
package dku

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	domerrors "github.com/garyellow/dku-timetable-go/internal/errors"
	"github.com/garyellow/dku-timetable-go/internal/metrics"
	"github.com/garyellow/dku-timetable-go/internal/scraper"
	"github.com/garyellow/dku-timetable-go/internal/timetable"
)

// DefaultBaseURL is the upstream timetable site.
const DefaultBaseURL = "https://timetable.dku.kz"

const navbarPath = "frames/navbar.htm"

// Page kinds used as metric labels.
const (
	PageNavbar    = "navbar"
	PageTimetable = "timetable"
)

// Fetcher downloads upstream pages and hands them to the parser.
type Fetcher struct {
	client  *scraper.Client
	urls    *scraper.URLCache
	flight  *scraper.CacheWrapper
	parser  *timetable.Parser
	metrics *metrics.Metrics
}

// NewFetcher creates a Fetcher. m may be nil.
func NewFetcher(client *scraper.Client, parser *timetable.Parser, m *metrics.Metrics) *Fetcher {
	return &Fetcher{
		client:  client,
		urls:    scraper.NewURLCache(client),
		flight:  scraper.NewCacheWrapper(),
		parser:  parser,
		metrics: m,
	}
}

// Parser returns the parser used for fetched pages.
func (f *Fetcher) Parser() *timetable.Parser {
	return f.parser
}

// TimetablePath returns the site-relative path of a group's week page.
func TimetablePath(week string, groupID int) string {
	return fmt.Sprintf("%s/c/c%05d.htm", week, groupID)
}

// FetchMeta fetches the navbar frame and parses weeks and groups.
func (f *Fetcher) FetchMeta(ctx context.Context) (*timetable.MetaPayload, error) {
	start := time.Now()

	raw, err := f.fetch(ctx, navbarPath)
	if err != nil {
		f.record(PageNavbar, fetchStatus(err), start)
		return nil, fmt.Errorf("fetch navbar: %w", err)
	}

	meta, err := f.parser.ParseNavbar(raw)
	if err != nil {
		f.record(PageNavbar, "parse_error", start)
		if f.metrics != nil {
			f.metrics.RecordParseFailure(PageNavbar)
		}
		return nil, fmt.Errorf("parse navbar: %w", err)
	}

	f.record(PageNavbar, "success", start)
	return meta, nil
}

// FetchTimetable fetches and parses one group's page for one week.
func (f *Fetcher) FetchTimetable(ctx context.Context, group timetable.GroupOption, week timetable.WeekOption) (*timetable.GroupWeekSchedule, error) {
	start := time.Now()

	raw, err := f.fetch(ctx, TimetablePath(week.Value, group.ID))
	if err != nil {
		f.record(PageTimetable, fetchStatus(err), start)
		return nil, fmt.Errorf("fetch timetable %s/%s: %w", week.Value, group.CodeRaw, err)
	}

	page, err := f.parser.ParseTimetable(raw, group, week)
	if err != nil {
		f.record(PageTimetable, "parse_error", start)
		if f.metrics != nil && errors.Is(err, timetable.ErrStructure) {
			f.metrics.RecordParseFailure(PageTimetable)
		}
		return nil, fmt.Errorf("parse timetable %s/%s: %w", week.Value, group.CodeRaw, err)
	}

	f.record(PageTimetable, "success", start)
	return &timetable.GroupWeekSchedule{
		Group:   group,
		Week:    week,
		Events:  page.Events,
		Cohorts: page.Cohorts,
	}, nil
}

// fetch downloads a site-relative path through the working base URL.
// Concurrent requests for the same path share one round trip.
func (f *Fetcher) fetch(ctx context.Context, path string) (string, error) {
	baseURL, err := f.urls.Get(ctx)
	if err != nil {
		return "", err
	}
	url := strings.TrimRight(baseURL, "/") + "/" + path

	body, err := f.flight.DoScrape(ctx, url, func() (string, error) {
		return f.client.GetHTML(ctx, url)
	})
	if err != nil {
		if scraper.IsNetworkError(err) {
			f.urls.Clear()
		}
		return "", err
	}
	return body, nil
}

func (f *Fetcher) record(page, status string, start time.Time) {
	if f.metrics == nil {
		return
	}
	f.metrics.RecordScraperRequest(page, status, time.Since(start).Seconds())
}

func fetchStatus(err error) string {
	var scraperErr *domerrors.ScraperError
	if errors.As(err, &scraperErr) && scraperErr.StatusCode == http.StatusNotFound {
		return "not_found"
	}
	return "error"
}
