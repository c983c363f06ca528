package app

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/garyellow/dku-timetable-go/internal/calendartoken"
	domerrors "github.com/garyellow/dku-timetable-go/internal/errors"
	"github.com/garyellow/dku-timetable-go/internal/schedule"
	"github.com/garyellow/dku-timetable-go/internal/sentry"
	"github.com/garyellow/dku-timetable-go/internal/timetable"
)

const problemContentType = "application/problem+json; charset=utf-8"

// Problem is an RFC 9457 problem details body.
type Problem struct {
	Type     string `json:"type"`
	Title    string `json:"title"`
	Status   int    `json:"status"`
	Detail   string `json:"detail,omitempty"`
	Instance string `json:"instance,omitempty"`
}

// writeProblem aborts the request with a problem+json body.
func writeProblem(c *gin.Context, status int, detail string) {
	c.Header("Content-Type", problemContentType)
	c.AbortWithStatusJSON(status, Problem{
		Type:     "about:blank",
		Title:    http.StatusText(status),
		Status:   status,
		Detail:   detail,
		Instance: c.Request.URL.Path,
	})
}

// errorType labels dku_http_errors_total.
func errorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusTooManyRequests:
		return "rate_limit"
	case http.StatusServiceUnavailable:
		return "upstream"
	default:
		return "internal"
	}
}

// statusForError maps service errors to HTTP status codes and a client
// facing detail.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, schedule.ErrUnknownWeek):
		return http.StatusNotFound, "unknown week"
	case errors.Is(err, schedule.ErrUnknownGroup):
		return http.StatusNotFound, "unknown group"
	case errors.Is(err, schedule.ErrUnknownEntity):
		return http.StatusNotFound, "unknown group or week"
	case errors.Is(err, calendartoken.ErrInvalidToken):
		return http.StatusForbidden, "invalid or expired token"
	case errors.Is(err, calendartoken.ErrNoSecret):
		return http.StatusInternalServerError, "calendar subscriptions are not configured"
	case errors.Is(err, timetable.ErrStructure):
		return http.StatusServiceUnavailable, "upstream timetable could not be parsed"
	case errors.Is(err, domerrors.ErrUpstream):
		return http.StatusServiceUnavailable, domerrors.GetUserMessage(err)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable, "upstream timetable did not respond in time"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// fail answers with the problem for err. Server side failures are logged and
// reported to Sentry; client hangups are not.
func (a *Application) fail(c *gin.Context, err error) {
	status, detail := statusForError(err)
	if status >= http.StatusInternalServerError && !errors.Is(err, context.Canceled) {
		a.logger.WithError(err).WarnContext(c.Request.Context(), "Request failed",
			"route", c.FullPath(),
			"status", status)
		sentry.CaptureRequestError(c, c.FullPath(), err)
	}
	writeProblem(c, status, detail)
}
