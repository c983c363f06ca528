package scraper

import (
	"context"

	"golang.org/x/sync/singleflight"
)

// CacheWrapper wraps page fetches with singleflight so concurrent requests
// for the same upstream page share one HTTP round trip.
type CacheWrapper struct {
	group singleflight.Group
}

// NewCacheWrapper creates a new cache wrapper
func NewCacheWrapper() *CacheWrapper {
	return &CacheWrapper{}
}

// DoScrape executes fn once per key among concurrent callers. A caller whose
// context ends first returns early; the shared fetch keeps running for the
// others.
func (c *CacheWrapper) DoScrape(ctx context.Context, key string, fn func() (string, error)) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	ch := c.group.DoChan(key, func() (any, error) {
		return fn()
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		return res.Val.(string), nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Forget removes a key from singleflight group, allowing new requests to execute
func (c *CacheWrapper) Forget(key string) {
	c.group.Forget(key)
}
