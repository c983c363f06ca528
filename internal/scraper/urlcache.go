package scraper

import (
	"context"
	"fmt"
	"sync/atomic"
)

// URLCache remembers the working upstream base URL. Reads are lock-free;
// a miss probes the client's base URLs in failover order.
type URLCache struct {
	client *Client
	cache  atomic.Value // stores string
}

// NewURLCache creates a new URL cache for the client's base URLs.
func NewURLCache(client *Client) *URLCache {
	return &URLCache{client: client}
}

// Get returns the cached working URL or detects a new one if cache is empty.
func (c *URLCache) Get(ctx context.Context) (string, error) {
	if cached := c.GetCached(); cached != "" {
		return cached, nil
	}

	baseURL, err := c.client.TryFailoverURLs(ctx)
	if err != nil {
		urls := c.client.BaseURLs()
		if len(urls) == 0 {
			return "", fmt.Errorf("no base URLs available: %w", err)
		}
		// Probe failed for all, fall back to the primary.
		baseURL = urls[0]
	}

	c.cache.Store(baseURL)
	return baseURL, nil
}

// Clear invalidates the cached URL, forcing re-detection on next Get().
// Call this when a fetch fails with a network error.
func (c *URLCache) Clear() {
	c.cache.Store("")
}

// GetCached returns the cached URL without triggering failover detection.
func (c *URLCache) GetCached() string {
	if cached, ok := c.cache.Load().(string); ok {
		return cached
	}
	return ""
}
