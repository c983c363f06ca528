package app

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/garyellow/dku-timetable-go/internal/ctxutil"
	"github.com/garyellow/dku-timetable-go/internal/logger"
	"github.com/garyellow/dku-timetable-go/internal/metrics"
	"github.com/garyellow/dku-timetable-go/internal/ratelimit"
)

const requestIDHeader = "X-Request-Id"

// maxRequestIDLength bounds client supplied request IDs before they reach logs.
const maxRequestIDLength = 128

// requestIDMiddleware reuses the caller's X-Request-Id or generates one,
// echoes it in the response and stores it with the client IP in the
// request context for log correlation.
func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" || len(requestID) > maxRequestIDLength {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		ctx := ctxutil.WithRequestID(c.Request.Context(), requestID)
		ctx = ctxutil.WithClientIP(ctx, c.ClientIP())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// securityHeadersMiddleware adds security headers to responses.
func securityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "strict-origin-when-cross-origin")
		c.Header("Content-Security-Policy", "default-src 'none'")
		c.Header("X-Permitted-Cross-Domain-Policies", "none")
		c.Next()
	}
}

// loggingMiddleware logs HTTP requests with status-based log levels:
// 5xx=Error, 4xx=Warn, 404=Debug, 3xx/2xx=Debug. API routes are also
// counted in the request metrics.
func loggingMiddleware(log *logger.Logger, m *metrics.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		if m != nil && strings.HasPrefix(route, "/api/") {
			m.RecordAPIRequest(route, statusClass(status), duration.Seconds())
			if status >= http.StatusBadRequest {
				m.RecordHTTPError(errorType(status), route)
			}
		}

		entry := log.WithField("http_method", c.Request.Method).
			WithField("http_path", c.Request.URL.Path).
			WithField("http_status", status).
			WithField("duration_ms", duration.Milliseconds())

		ctx := c.Request.Context()
		switch {
		case status >= http.StatusInternalServerError:
			entry.ErrorContext(ctx, "HTTP request failed")
		case status == http.StatusNotFound:
			entry.DebugContext(ctx, "HTTP request not found")
		case status >= http.StatusBadRequest:
			entry.WarnContext(ctx, "HTTP request rejected")
		default:
			entry.DebugContext(ctx, "HTTP request completed")
		}
	}
}

func statusClass(status int) string {
	return strconv.Itoa(status/100) + "xx"
}

// rateLimitMiddleware applies a per-client-IP limiter and answers 429 with
// Retry-After when the client is over its budget.
func rateLimitMiddleware(limiter *ratelimit.KeyedLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if limiter.Allow(key) {
			c.Header("RateLimit-Remaining", strconv.Itoa(int(limiter.GetAvailable(key))))
			c.Next()
			return
		}
		c.Header("Retry-After", retryAfterSeconds(limiter.RetryAfter(key)))
		writeProblem(c, http.StatusTooManyRequests, "too many requests, slow down")
	}
}

// retryAfterSeconds renders d as whole seconds between 1 and 3600.
func retryAfterSeconds(d time.Duration) string {
	if d <= 0 {
		return "1"
	}
	if d > time.Hour {
		d = time.Hour
	}
	return strconv.Itoa(int(math.Ceil(d.Seconds())))
}

// requestTimeoutMiddleware bounds the upstream work a single request may
// trigger.
func requestTimeoutMiddleware(timeout time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), timeout)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// readinessMiddleware rejects API requests with 503 until the first
// refresh completes or its grace period runs out.
func (a *Application) readinessMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.cfg.WaitForWarmup && !a.readinessState.IsReady() {
			c.Header("Retry-After", "30")
			writeProblem(c, http.StatusServiceUnavailable, "service is warming up")
			return
		}
		c.Next()
	}
}
