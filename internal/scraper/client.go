package scraper

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/corpix/uarand"
	"golang.org/x/net/html/charset"

	domerrors "github.com/garyellow/dku-timetable-go/internal/errors"
	"github.com/garyellow/dku-timetable-go/internal/metrics"
)

// maxBodyBytes caps a single upstream page. Timetable pages are well below 1 MiB.
const maxBodyBytes = 8 << 20

// Config configures a Client.
type Config struct {
	// BaseURLs lists the upstream origin followed by any mirrors, in
	// failover order.
	BaseURLs       []string
	Timeout        time.Duration
	Workers        int
	MinDelay       time.Duration
	MaxDelay       time.Duration
	MaxRetries     int
	InitialBackoff time.Duration
	Metrics        *metrics.Metrics // optional
}

// Client is an HTTP client for the upstream timetable site with rate
// limiting, retries and base URL failover.
type Client struct {
	httpClient     *http.Client
	rateLimiter    *RateLimiter
	userAgents     []string
	maxRetries     int
	initialBackoff time.Duration
	baseURLs       []string
	metrics        *metrics.Metrics
	mu             sync.RWMutex
}

// NewClient creates a new scraper client.
func NewClient(cfg Config) *Client {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = time.Second
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		rateLimiter:    NewRateLimiter(cfg.Workers, cfg.MinDelay, cfg.MaxDelay),
		userAgents:     generateUserAgents(),
		maxRetries:     cfg.MaxRetries,
		initialBackoff: cfg.InitialBackoff,
		baseURLs:       append([]string(nil), cfg.BaseURLs...),
		metrics:        cfg.Metrics,
	}
}

// Get performs a GET request with rate limiting and retries.
// Caller is responsible for closing the response body.
func (c *Client) Get(ctx context.Context, url string) (*http.Response, error) {
	var resp *http.Response

	err := RetryWithBackoff(ctx, c.maxRetries, c.initialBackoff, func() error {
		waitStart := time.Now()
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return &permanentError{err: err}
		}
		if c.metrics != nil {
			c.metrics.RecordRateLimiterWait("scraper", time.Since(waitStart).Seconds())
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return &permanentError{err: fmt.Errorf("failed to create request: %w", err)}
		}

		req.Header.Set("User-Agent", c.randomUserAgent())
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "ru-RU,ru;q=0.9,de;q=0.8,en;q=0.7")
		req.Header.Set("Accept-Encoding", "gzip")

		r, err := c.httpClient.Do(req)
		if err != nil {
			return domerrors.NewScraperError(url, 0, err)
		}

		if r.StatusCode < 200 || r.StatusCode >= 300 {
			_ = r.Body.Close()

			switch r.StatusCode {
			case http.StatusTooManyRequests:
				return domerrors.NewScraperError(url, r.StatusCode, errRateLimited)
			case http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
				return domerrors.NewScraperError(url, r.StatusCode, errServer)
			case http.StatusNotFound, http.StatusForbidden, http.StatusUnauthorized:
				return &permanentError{err: domerrors.NewScraperError(url, r.StatusCode, errClient)}
			default:
				return domerrors.NewScraperError(url, r.StatusCode, errUnexpectedStatus)
			}
		}

		resp = r
		return nil
	})
	if err != nil {
		return nil, err
	}

	return resp, nil
}

// GetHTML fetches url and returns the markup decoded to UTF-8. The source
// charset is taken from the Content-Type header or the document's meta tag;
// the upstream serves windows-1251.
func (c *Client) GetHTML(ctx context.Context, url string) (string, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	var reader io.Reader = resp.Body
	if resp.Header.Get("Content-Encoding") == "gzip" {
		gzipReader, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", fmt.Errorf("failed to decompress gzip: %w", err)
		}
		defer func() { _ = gzipReader.Close() }()
		reader = gzipReader
	}

	utf8Reader, err := charset.NewReader(io.LimitReader(reader, maxBodyBytes), resp.Header.Get("Content-Type"))
	if err != nil {
		return "", fmt.Errorf("failed to detect charset: %w", err)
	}

	body, err := io.ReadAll(utf8Reader)
	if err != nil {
		return "", domerrors.NewScraperError(url, resp.StatusCode, fmt.Errorf("read body: %w", err))
	}
	return string(body), nil
}

// randomUserAgent returns a random user agent string
func (c *Client) randomUserAgent() string {
	if len(c.userAgents) == 0 {
		return uarand.GetRandom()
	}
	return c.userAgents[time.Now().UnixNano()%int64(len(c.userAgents))]
}

// TryFailoverURLs probes the configured base URLs in order and returns the
// first one that answers below 500.
func (c *Client) TryFailoverURLs(ctx context.Context) (string, error) {
	urls := c.BaseURLs()
	if len(urls) == 0 {
		return "", fmt.Errorf("no base URLs configured")
	}

	for _, baseURL := range urls {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, strings.TrimRight(baseURL, "/")+"/", nil)
		if err != nil {
			continue
		}
		req.Header.Set("User-Agent", c.randomUserAgent())

		resp, err := c.httpClient.Do(req)
		if err != nil {
			continue
		}
		_ = resp.Body.Close()

		if resp.StatusCode < 500 {
			return baseURL, nil
		}
	}

	return "", fmt.Errorf("all base URLs failed: %s", strings.Join(urls, ", "))
}

// BaseURLs returns a copy of the configured base URLs.
func (c *Client) BaseURLs() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	result := make([]string, len(c.baseURLs))
	copy(result, c.baseURLs)
	return result
}

// generateUserAgents returns a list of common user agent strings
func generateUserAgents() []string {
	return []string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:133.0) Gecko/20100101 Firefox/133.0",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/18.1 Safari/605.1.15",
		"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36",
	}
}
