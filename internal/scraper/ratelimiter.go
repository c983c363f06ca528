package scraper

import (
	"context"
	"crypto/rand"
	"math/big"
	"sync"
	"time"
)

// RateLimiter is a token bucket that also spaces requests by a random delay
// between minDelay and maxDelay. The bucket holds one token per worker and
// refills a full bucket every refillWindow.
type RateLimiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	minDelay   time.Duration
	maxDelay   time.Duration
}

const refillWindow = 15 * time.Second

// NewRateLimiter creates a limiter for the given number of concurrent workers.
func NewRateLimiter(workers int, minDelay, maxDelay time.Duration) *RateLimiter {
	if workers <= 0 {
		workers = 1
	}
	if maxDelay < minDelay {
		maxDelay = minDelay
	}
	return &RateLimiter{
		tokens:     float64(workers),
		maxTokens:  float64(workers),
		refillRate: float64(workers) / refillWindow.Seconds(),
		lastRefill: time.Now(),
		minDelay:   minDelay,
		maxDelay:   maxDelay,
	}
}

// Wait blocks until a token is available and the jitter delay has elapsed.
func (r *RateLimiter) Wait(ctx context.Context) error {
	for {
		wait := r.reserve()
		if wait == 0 {
			break
		}
		if err := Sleep(ctx, wait); err != nil {
			return err
		}
	}

	if delay := r.randomDelay(); delay > 0 {
		return Sleep(ctx, delay)
	}
	return ctx.Err()
}

// reserve takes a token and returns 0, or returns how long until one is available.
func (r *RateLimiter) reserve() time.Duration {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	r.tokens = min(r.maxTokens, r.tokens+now.Sub(r.lastRefill).Seconds()*r.refillRate)
	r.lastRefill = now

	if r.tokens >= 1 {
		r.tokens--
		return 0
	}
	return max(time.Millisecond, time.Duration((1-r.tokens)/r.refillRate*float64(time.Second)))
}

func (r *RateLimiter) randomDelay() time.Duration {
	span := int64(r.maxDelay - r.minDelay)
	if span <= 0 {
		return r.minDelay
	}
	n, err := rand.Int(rand.Reader, big.NewInt(span))
	if err != nil {
		return r.minDelay
	}
	return r.minDelay + time.Duration(n.Int64())
}
