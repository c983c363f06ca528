package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func mint(q *DailyQuota, n int) int {
	minted := 0
	for range n {
		if q.Check() {
			q.Consume()
			minted++
		}
	}
	return minted
}

func TestDailyQuota_Disabled(t *testing.T) {
	t.Parallel()

	for _, limit := range []int{0, -1} {
		q := NewDailyQuota(limit)
		assert.Nil(t, q)
		assert.True(t, q.Check())
		q.Consume()
		assert.Equal(t, -1, q.Remaining())
		assert.Zero(t, q.Used())
		assert.True(t, q.Idle())
	}
}

func TestDailyQuota_RollingDay(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		limit         int
		mintedDayOne  int
		advance       time.Duration
		wantRemaining int
		wantMinted    int
	}{
		{"same day", 50, 50, 6 * time.Hour, 0, 0},
		{"quarter into next day", 50, 40, 30 * time.Hour, 20, 20},
		{"half into next day", 50, 50, 36 * time.Hour, 25, 25},
		// Remaining rounds down; the last fractional use still fits.
		{"end of next day", 50, 50, 48*time.Hour - time.Minute, 49, 50},
		{"small cap", 2, 2, 25 * time.Hour, 0, 1},
		{"two days later", 50, 50, 49 * time.Hour, 50, 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			clock := newFakeClock()
			q := newDailyQuotaAt(tt.limit, clock.Now)

			assert.Equal(t, tt.mintedDayOne, mint(q, tt.mintedDayOne))
			clock.Advance(tt.advance)

			assert.Equal(t, tt.wantRemaining, q.Remaining())
			assert.Equal(t, tt.wantMinted, mint(q, tt.limit))
			assert.False(t, q.Check())
		})
	}
}

func TestDailyQuota_WeightedUsage(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	q := newDailyQuotaAt(50, clock.Now)

	mint(q, 20)
	assert.InDelta(t, 20, q.Used(), 1e-9)

	clock.Advance(QuotaWindow + 6*time.Hour)
	mint(q, 5)
	assert.InDelta(t, 5+20*0.75, q.Used(), 1e-9)
	assert.False(t, q.Idle())
}

func TestDailyQuota_ConsumeStopsAtLimit(t *testing.T) {
	t.Parallel()
	q := newDailyQuotaAt(3, newFakeClock().Now)

	for range 10 {
		q.Consume()
	}
	assert.InDelta(t, 3, q.Used(), 1e-9)
	assert.Zero(t, q.Remaining())
}

func TestDailyQuota_Idle(t *testing.T) {
	t.Parallel()
	clock := newFakeClock()
	q := newDailyQuotaAt(50, clock.Now)

	assert.True(t, q.Idle())
	mint(q, 1)
	assert.False(t, q.Idle())

	clock.Advance(QuotaWindow)
	assert.False(t, q.Idle(), "yesterday still overlaps the window")

	clock.Advance(QuotaWindow)
	assert.True(t, q.Idle())
}

func TestDailyQuota_ConcurrentMinting(t *testing.T) {
	t.Parallel()
	q := newDailyQuotaAt(50, newFakeClock().Now)

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		minted int
	)
	for range 120 {
		wg.Go(func() {
			mu.Lock()
			defer mu.Unlock()
			if q.Check() {
				q.Consume()
				minted++
			}
		})
	}
	wg.Wait()

	assert.Equal(t, 50, minted)
	assert.Zero(t, q.Remaining())
}
