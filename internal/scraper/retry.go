package scraper

import (
	"context"
	"crypto/rand"
	"errors"
	"math/big"
	"net"
	"strings"
	"time"

	domerrors "github.com/garyellow/dku-timetable-go/internal/errors"
)

var (
	errRateLimited      = errors.New("rate limited")
	errServer           = errors.New("server error")
	errClient           = errors.New("client error")
	errUnexpectedStatus = errors.New("unexpected status")
)

// permanentError marks an error that must not be retried (401/403/404,
// canceled context, malformed request).
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// RetryWithBackoff calls fn until it succeeds, fails with a permanentError
// or has been retried maxRetries times. The wait before retry n (from 0) is
// initialDelay*2^n shifted by up to ±25%, so the default 1s initial delay
// waits about 1s, 2s, then 4s before the upstream is given up on.
func RetryWithBackoff(ctx context.Context, maxRetries int, initialDelay time.Duration, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var perm *permanentError
		if errors.As(err, &perm) {
			return perm.err
		}
		if attempt >= maxRetries {
			return err
		}

		if err := Sleep(ctx, backoffDelay(initialDelay, attempt, cryptoJitter)); err != nil {
			return err
		}
	}
}

// backoffDelay returns initial*2^attempt moved into [-25%, +25%) by jitter,
// which must return a value in [0, n).
func backoffDelay(initial time.Duration, attempt int, jitter func(n int64) int64) time.Duration {
	delay := initial << min(attempt, maxBackoffShift)
	spread := max(int64(delay)/2, 1)
	return delay - delay/4 + time.Duration(jitter(spread))
}

// maxBackoffShift keeps initial<<attempt from overflowing for long retry
// budgets.
const maxBackoffShift = 16

func cryptoJitter(n int64) int64 {
	v, err := rand.Int(rand.Reader, big.NewInt(n))
	if err != nil {
		return 0
	}
	return v.Int64()
}

// Sleep waits for the specified duration, respecting context cancellation
func Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// IsNetworkError reports whether err looks like a transient upstream
// failure (timeouts, refused or reset connections, 5xx, 429) as opposed to
// a permanent client error or a parse failure.
func IsNetworkError(err error) bool {
	if err == nil {
		return false
	}

	var permErr *permanentError
	if errors.As(err, &permErr) {
		return false
	}

	var scraperErr *domerrors.ScraperError
	if errors.As(err, &scraperErr) && scraperErr.StatusCode > 0 {
		return scraperErr.StatusCode == 429 || scraperErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, marker := range []string{
		"connection refused",
		"connection reset",
		"no such host",
		"eof",
		"server error",
		"rate limited",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
