package app

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyellow/dku-timetable-go/internal/calendartoken"
	"github.com/garyellow/dku-timetable-go/internal/config"
	"github.com/garyellow/dku-timetable-go/internal/ctxutil"
	"github.com/garyellow/dku-timetable-go/internal/ics"
	"github.com/garyellow/dku-timetable-go/internal/schedule"
	"github.com/garyellow/dku-timetable-go/internal/timetable"
)

const (
	scheduleCacheControl = "public, max-age=1800, stale-while-revalidate=1800"
	calendarCacheControl = "private, no-cache"
	calendarContentType  = "text/calendar; charset=utf-8"
)

// scheduleResponse is the body of GET /api/schedule.
type scheduleResponse struct {
	Cohorts []timetable.Cohort      `json:"cohorts"`
	Events  []timetable.LessonEvent `json:"events"`
}

// tokenRequest is the body of POST /api/token. Cohorts is decoded loosely
// so that numbers or nulls in the list do not reject the request.
type tokenRequest struct {
	Group   string `json:"group"`
	Week    string `json:"week"`
	Cohorts any    `json:"cohorts"`
	Lang    string `json:"lang"`
}

type tokenResponse struct {
	Token string `json:"token"`
}

// handleMeta serves GET /api/meta.
func (a *Application) handleMeta(c *gin.Context) {
	meta, err := a.service.GetMeta(c.Request.Context())
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, meta)
}

// handleSchedule serves GET /api/schedule?group=&week=&cohorts=a,b.
func (a *Application) handleSchedule(c *gin.Context) {
	groupParam := strings.TrimSpace(c.Query("group"))
	if groupParam == "" {
		writeProblem(c, http.StatusBadRequest, "query parameter group is required")
		return
	}

	ctx := c.Request.Context()
	group, week, ok := a.resolve(c, ctx, groupParam, strings.TrimSpace(c.Query("week")))
	if !ok {
		return
	}
	ctx = ctxutil.WithGroup(ctx, group)

	merged, err := a.service.BuildMergedSchedule(ctx, group, week, timetable.ParseCohortsCSV(c.Query("cohorts")))
	if err != nil {
		a.fail(c, err)
		return
	}

	c.Header("Cache-Control", scheduleCacheControl)
	c.JSON(http.StatusOK, scheduleResponse{
		Cohorts: merged.Cohorts,
		Events:  merged.Events,
	})
}

// handleToken serves POST /api/token.
func (a *Application) handleToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeProblem(c, http.StatusBadRequest, "request body must be a JSON object")
		return
	}
	req.Group = strings.TrimSpace(req.Group)
	if req.Group == "" {
		writeProblem(c, http.StatusBadRequest, "group is required")
		return
	}

	// Anything but "de" selects the Russian feed.
	lang := timetable.LangRU
	if timetable.Language(strings.ToLower(strings.TrimSpace(req.Lang))) == timetable.LangDE {
		lang = timetable.LangDE
	}

	if !a.tokens.Enabled() {
		a.fail(c, calendartoken.ErrNoSecret)
		return
	}

	ctx := c.Request.Context()
	group, week, ok := a.resolve(c, ctx, req.Group, strings.TrimSpace(req.Week))
	if !ok {
		return
	}

	clientIP := c.ClientIP()
	if !a.tokenLimiter.Allow(clientIP) {
		c.Header("Retry-After", "3600")
		writeProblem(c, http.StatusTooManyRequests, "daily calendar token limit reached")
		return
	}
	if remaining := a.tokenLimiter.GetDailyRemaining(clientIP); remaining >= 0 {
		c.Header("X-Token-Quota-Remaining", strconv.Itoa(remaining))
	}

	token, err := a.tokens.Sign(calendartoken.Claims{
		Group:   group,
		Week:    week,
		Cohorts: timetable.NormalizeCohortList(req.Cohorts),
		Lang:    lang,
	})
	if err != nil {
		a.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, tokenResponse{Token: token})
}

// handleCalendar serves GET /api/calendar?token=.
func (a *Application) handleCalendar(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("token"))
	if raw == "" {
		writeProblem(c, http.StatusBadRequest, "query parameter token is required")
		return
	}

	claims, err := a.tokens.Verify(raw)
	if err != nil {
		a.fail(c, err)
		return
	}

	ctx := ctxutil.WithGroup(c.Request.Context(), claims.Group)
	meta, err := a.service.GetMeta(ctx)
	if err != nil {
		a.fail(c, err)
		return
	}
	group := schedule.ResolveGroup(meta.Groups, claims.Group)
	if group == "" {
		a.fail(c, fmt.Errorf("%w %q", schedule.ErrUnknownGroup, claims.Group))
		return
	}

	events, err := a.service.CalendarEvents(ctx, group, claims.Week, claims.Cohorts, a.now(), a.cfg.CalendarWeeks)
	if err != nil {
		a.fail(c, err)
		return
	}

	lang := claims.Language()
	body, err := ics.Build(schedule.CalendarTitle(group), events, lang)
	if err != nil {
		a.fail(c, err)
		return
	}
	if a.metrics != nil {
		a.metrics.RecordCalendarExport(string(lang))
	}

	filename := "dku-" + schedule.GroupSlug(meta.Groups, group) + ".ics"
	c.Header("Cache-Control", calendarCacheControl)
	c.Header("Content-Disposition", `inline; filename="`+filename+`"`)
	c.Data(http.StatusOK, calendarContentType, []byte(body))
}

// resolve maps user supplied group and week parameters to a raw group code
// and week value. An empty week selects the current one. On failure the
// problem response has been written and ok is false.
func (a *Application) resolve(c *gin.Context, ctx context.Context, groupParam, weekParam string) (group, week string, ok bool) {
	meta, err := a.service.GetMeta(ctx)
	if err != nil {
		a.fail(c, err)
		return "", "", false
	}
	if len(meta.Weeks) == 0 {
		writeProblem(c, http.StatusServiceUnavailable, "no weeks are published yet")
		return "", "", false
	}

	group = schedule.ResolveGroup(meta.Groups, groupParam)
	if group == "" {
		a.fail(c, fmt.Errorf("%w %q", schedule.ErrUnknownGroup, groupParam))
		return "", "", false
	}

	if _, found := meta.FindWeek(weekParam); weekParam != "" && !found {
		a.fail(c, fmt.Errorf("%w %q", schedule.ErrUnknownWeek, weekParam))
		return "", "", false
	}
	return group, schedule.ResolveWeek(meta.Weeks, weekParam, a.now()), true
}

// livenessCheck serves GET /livez.
func (a *Application) livenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "alive",
	})
}

// readinessCheck serves GET /readyz.
func (a *Application) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), config.ReadinessCheckTimeout)
	defer cancel()

	if a.cfg.WaitForWarmup && !a.readinessState.IsReady() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not ready",
			"readiness": a.readinessState.Status(),
		})
		return
	}

	if err := a.service.Ping(ctx); err != nil {
		a.logger.WithError(err).Warn("Readiness check failed: cache unavailable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"reason": "cache unavailable",
		})
		return
	}

	schedules, err := a.service.CountSchedules(ctx)
	if err != nil {
		a.logger.WithError(err).Warn("Failed to count schedules in readiness check")
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"database":  "connected",
		"readiness": a.readinessState.Status(),
		"cache": gin.H{
			"schedules":  schedules,
			"edge_cache": a.edge.Enabled(),
		},
	})
}
