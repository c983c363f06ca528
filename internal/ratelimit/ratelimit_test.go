package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced time source shared by limiters under test.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 9, 8, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func drain(l *Limiter) int {
	n := 0
	for l.Allow() {
		n++
	}
	return n
}

func TestLimiter_Burst(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		burst      float64
		refillRate float64
		wantRetry  time.Duration
	}{
		{"api defaults", 30, 1, time.Second},
		{"token minting", TokenMintBurst, TokenMintRefillRate, time.Minute},
		{"strict api", 1, 0.5, 2 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clock := newFakeClock()
			l := newAt(tt.burst, tt.refillRate, clock.Now)

			assert.True(t, l.IsFull())
			assert.Zero(t, l.RetryAfter())
			assert.Equal(t, int(tt.burst), drain(l))
			assert.False(t, l.IsFull())
			assert.InDelta(t, tt.wantRetry, l.RetryAfter(), float64(time.Microsecond))

			clock.Advance(tt.wantRetry + time.Millisecond)
			assert.True(t, l.Allow(), "one token after RetryAfter")
			assert.False(t, l.Allow())
		})
	}
}

func TestLimiter_TokenMintingRefill(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	l := newAt(TokenMintBurst, TokenMintRefillRate, clock.Now)

	require.Equal(t, TokenMintBurst, drain(l))

	clock.Advance(150 * time.Second)
	assert.InDelta(t, 2.5, l.Available(), 1e-9)
	assert.Zero(t, l.RetryAfter())
	assert.Equal(t, 2, drain(l))
	assert.InDelta(t, 30*time.Second, l.RetryAfter(), float64(time.Microsecond))

	clock.Advance(time.Hour)
	assert.True(t, l.IsFull(), "refill stops at the burst size")
	assert.InDelta(t, float64(TokenMintBurst), l.Available(), 1e-9)
}

func TestLimiter_CheckDoesNotConsume(t *testing.T) {
	t.Parallel()
	l := newAt(1, 0, newFakeClock().Now)

	assert.True(t, l.Check())
	assert.True(t, l.Check())
	l.Consume()
	assert.False(t, l.Check())
	l.Consume()
	assert.InDelta(t, 0, l.Available(), 1e-9, "Consume never goes below zero")
}

func TestLimiter_NoRefill(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	l := newAt(2, 0, clock.Now)

	assert.Equal(t, 2, drain(l))
	clock.Advance(24 * time.Hour)
	assert.False(t, l.Allow())
	assert.Greater(t, l.RetryAfter(), 24*time.Hour)
}

func TestLimiter_ConcurrentCallers(t *testing.T) {
	t.Parallel()
	l := New(30, 0)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for range 60 {
		wg.Go(func() {
			if l.Allow() {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 30, allowed)
}
