package ratelimit

import (
	"sync"
	"time"
)

// QuotaWindow is the rolling span a DailyQuota counts usage over.
const QuotaWindow = 24 * time.Hour

// DailyQuota caps how many calendar tokens one client may mint per rolling
// day. Usage is estimated from two fixed days: everything minted today plus
// yesterday's count weighted by the share of yesterday still inside the last
// QuotaWindow. Two ints per client is all the state it needs.
//
// A nil *DailyQuota is unlimited.
type DailyQuota struct {
	mu        sync.Mutex
	limit     int
	now       func() time.Time
	dayStart  time.Time
	today     int
	yesterday int
}

// NewDailyQuota returns a quota of limit uses per rolling day, or nil when
// limit is not positive.
func NewDailyQuota(limit int) *DailyQuota {
	return newDailyQuotaAt(limit, time.Now)
}

func newDailyQuotaAt(limit int, now func() time.Time) *DailyQuota {
	if limit <= 0 {
		return nil
	}
	return &DailyQuota{limit: limit, now: now, dayStart: now()}
}

// usage rolls the fixed days forward and returns the weighted count.
// Must be called with mu held.
func (q *DailyQuota) usage() float64 {
	now := q.now()
	if days := now.Sub(q.dayStart) / QuotaWindow; days > 0 {
		if days == 1 {
			q.yesterday = q.today
		} else {
			q.yesterday = 0
		}
		q.today = 0
		q.dayStart = q.dayStart.Add(days * QuotaWindow)
	}

	overlap := 1 - float64(now.Sub(q.dayStart))/float64(QuotaWindow)
	return float64(q.today) + float64(q.yesterday)*min(max(overlap, 0), 1)
}

// Check reports whether one more use fits, without recording it.
func (q *DailyQuota) Check() bool {
	if q == nil {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.usage() < float64(q.limit)
}

// Consume records one use if it still fits.
func (q *DailyQuota) Consume() {
	if q == nil {
		return
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.usage() < float64(q.limit) {
		q.today++
	}
}

// Used returns the weighted usage over the last QuotaWindow.
func (q *DailyQuota) Used() float64 {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.usage()
}

// Remaining returns the whole uses left, or -1 for an unlimited quota.
func (q *DailyQuota) Remaining() int {
	if q == nil {
		return -1
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return max(int(float64(q.limit)-q.usage()), 0)
}

// Idle reports whether no usage is left inside the window, so the client's
// state can be forgotten.
func (q *DailyQuota) Idle() bool {
	if q == nil {
		return true
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.usage() == 0
}
