// Package ratelimit provides the per-client token buckets and daily quotas
// that protect the public API and calendar token minting.
package ratelimit

import (
	"math"
	"sync"
	"time"
)

// Calendar token minting allows a short burst, then one token a minute, so a
// client cannot burn its daily quota at once.
const (
	TokenMintBurst      = 5
	TokenMintRefillRate = 1.0 / 60
)

// Limiter implements a token bucket rate limiter.
// It is safe for concurrent use.
//
// Tokens are added at refillRate per second up to maxTokens; each request
// consumes one token.
type Limiter struct {
	mu         sync.Mutex
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	now        func() time.Time
}

// New creates a limiter with a burst of maxTokens that refills at
// refillRate tokens per second.
func New(maxTokens, refillRate float64) *Limiter {
	return newAt(maxTokens, refillRate, time.Now)
}

func newAt(maxTokens, refillRate float64, now func() time.Time) *Limiter {
	return &Limiter{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: now(),
		now:        now,
	}
}

// refill adds tokens based on elapsed time since last refill.
// Must be called with mu held.
func (l *Limiter) refill() {
	now := l.now()
	l.tokens = min(l.maxTokens, l.tokens+now.Sub(l.lastRefill).Seconds()*l.refillRate)
	l.lastRefill = now
}

// Allow reports whether a request may proceed and consumes a token if so.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1.0 {
		l.tokens--
		return true
	}
	return false
}

// Check returns true if a request would be allowed, without consuming.
//
// Check and Consume are individually locked only; callers combining
// several limiters must hold their own lock across both calls.
func (l *Limiter) Check() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	return l.tokens >= 1.0
}

// Consume takes a token if one is available. See Check.
func (l *Limiter) Consume() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1.0 {
		l.tokens--
	}
}

// RetryAfter returns how long until the next token is available, or 0 if
// one is available now. Used for the Retry-After header of 429 responses.
func (l *Limiter) RetryAfter() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	if l.tokens >= 1 {
		return 0
	}
	return l.untilNextToken()
}

// untilNextToken must be called with mu held.
func (l *Limiter) untilNextToken() time.Duration {
	if l.refillRate <= 0 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration((1 - l.tokens) / l.refillRate * float64(time.Second))
}

// Available returns the current number of available tokens.
func (l *Limiter) Available() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	return l.tokens
}

// IsFull returns true if the bucket is at full capacity, meaning the
// client has been idle long enough for its state to be dropped.
func (l *Limiter) IsFull() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.refill()
	return l.tokens >= l.maxTokens
}
