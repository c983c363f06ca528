// Package schedule serves parsed timetables through a two tier cache
// (Redis edge, SQLite store) in front of the upstream site, and implements
// group/week resolution and cohort filtering.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/garyellow/dku-timetable-go/internal/config"
	"github.com/garyellow/dku-timetable-go/internal/ctxutil"
	"github.com/garyellow/dku-timetable-go/internal/edgecache"
	domerrors "github.com/garyellow/dku-timetable-go/internal/errors"
	"github.com/garyellow/dku-timetable-go/internal/logger"
	"github.com/garyellow/dku-timetable-go/internal/metrics"
	"github.com/garyellow/dku-timetable-go/internal/storage"
	"github.com/garyellow/dku-timetable-go/internal/timetable"
)

// Lookup errors. Both unknown-week and unknown-group match ErrUnknownEntity,
// which in turn matches domerrors.ErrNotFound.
var (
	ErrUnknownEntity = fmt.Errorf("unknown entity: %w", domerrors.ErrNotFound)
	ErrUnknownWeek   = fmt.Errorf("%w: week", ErrUnknownEntity)
	ErrUnknownGroup  = fmt.Errorf("%w: group", ErrUnknownEntity)
)

// Cache tiers used as metric labels.
const (
	tierEdge  = "edge"
	tierStore = "store"
)

// Payload kinds used as metric labels.
const (
	kindMeta     = "meta"
	kindSchedule = "schedule"
)

// Fetcher loads pages from the upstream site.
type Fetcher interface {
	FetchMeta(ctx context.Context) (*timetable.MetaPayload, error)
	FetchTimetable(ctx context.Context, group timetable.GroupOption, week timetable.WeekOption) (*timetable.GroupWeekSchedule, error)
}

// Service resolves meta and schedules through the cache tiers.
type Service struct {
	fetcher Fetcher
	store   storage.Store
	edge    *edgecache.Cache
	metrics *metrics.Metrics
	logger  *logger.Logger
	flight  singleflight.Group
}

// NewService creates a Service. edge and m may be nil.
func NewService(fetcher Fetcher, store storage.Store, edge *edgecache.Cache, m *metrics.Metrics, log *logger.Logger) *Service {
	return &Service{
		fetcher: fetcher,
		store:   store,
		edge:    edge,
		metrics: m,
		logger:  log.WithModule("schedule"),
	}
}

// GetMeta returns the navbar weeks and groups.
func (s *Service) GetMeta(ctx context.Context) (*timetable.MetaPayload, error) {
	var cached timetable.MetaPayload
	if s.edgeGet(ctx, edgecache.MetaKey, kindMeta, &cached) {
		return &cached, nil
	}

	v, err, shared := s.flight.Do(edgecache.MetaKey, func() (any, error) {
		ctx, cancel := detach(ctx)
		defer cancel()

		meta, err := s.store.GetMeta(ctx)
		if err != nil {
			s.logger.WithError(err).WarnContext(ctx, "Meta store read failed")
		}
		if meta != nil {
			s.recordCache(tierStore, kindMeta, true)
			s.edgeSet(ctx, edgecache.MetaKey, meta)
			return meta, nil
		}
		s.recordCache(tierStore, kindMeta, false)
		return s.refreshMeta(ctx)
	})
	if shared && s.metrics != nil {
		s.metrics.RecordSingleflightDedup(kindMeta)
	}
	if err != nil {
		return nil, err
	}
	return v.(*timetable.MetaPayload), nil
}

// RefreshMeta fetches the navbar bypassing both cache tiers and stores the result.
func (s *Service) RefreshMeta(ctx context.Context) (*timetable.MetaPayload, error) {
	v, err, _ := s.flight.Do(edgecache.MetaKey, func() (any, error) {
		return s.refreshMeta(ctx)
	})
	if err != nil {
		return nil, err
	}
	return v.(*timetable.MetaPayload), nil
}

func (s *Service) refreshMeta(ctx context.Context) (*timetable.MetaPayload, error) {
	meta, err := s.fetcher.FetchMeta(ctx)
	if err != nil {
		return nil, upstreamError("get_meta", err)
	}
	if err := s.store.SaveMeta(ctx, meta); err != nil {
		s.logger.WithError(err).WarnContext(ctx, "Failed to store meta")
	}
	s.edgeSet(ctx, edgecache.MetaKey, meta)
	return meta, nil
}

// Resolve looks up a week by value and a group by raw or Russian code.
func (s *Service) Resolve(ctx context.Context, groupCode, weekValue string) (timetable.GroupOption, timetable.WeekOption, error) {
	meta, err := s.GetMeta(ctx)
	if err != nil {
		return timetable.GroupOption{}, timetable.WeekOption{}, err
	}
	week, ok := meta.FindWeek(weekValue)
	if !ok {
		return timetable.GroupOption{}, timetable.WeekOption{}, fmt.Errorf("%w %q", ErrUnknownWeek, weekValue)
	}
	group, ok := meta.FindGroup(groupCode)
	if !ok {
		return timetable.GroupOption{}, timetable.WeekOption{}, fmt.Errorf("%w %q", ErrUnknownGroup, groupCode)
	}
	return group, week, nil
}

// GetSchedule returns the full parsed page of one group and week.
func (s *Service) GetSchedule(ctx context.Context, groupCode, weekValue string) (*timetable.GroupWeekSchedule, error) {
	group, week, err := s.Resolve(ctx, groupCode, weekValue)
	if err != nil {
		return nil, err
	}

	key := edgecache.ScheduleKey(week.Value, group.ID)
	var cached timetable.GroupWeekSchedule
	if s.edgeGet(ctx, key, kindSchedule, &cached) {
		return &cached, nil
	}

	v, err, shared := s.flight.Do(key, func() (any, error) {
		ctx, cancel := detach(ctx)
		defer cancel()

		schedule, err := s.store.GetSchedule(ctx, week.Value, group.ID)
		if err != nil {
			s.logger.WithError(err).WarnContext(ctx, "Schedule store read failed", "key", key)
		}
		if schedule != nil {
			s.recordCache(tierStore, kindSchedule, true)
			s.edgeSet(ctx, key, schedule)
			return schedule, nil
		}
		s.recordCache(tierStore, kindSchedule, false)
		return s.refreshSchedule(ctx, group, week)
	})
	if shared && s.metrics != nil {
		s.metrics.RecordSingleflightDedup(kindSchedule)
	}
	if err != nil {
		return nil, err
	}
	return v.(*timetable.GroupWeekSchedule), nil
}

// RefreshSchedule fetches one page bypassing both cache tiers and stores the result.
func (s *Service) RefreshSchedule(ctx context.Context, group timetable.GroupOption, week timetable.WeekOption) (*timetable.GroupWeekSchedule, error) {
	key := edgecache.ScheduleKey(week.Value, group.ID)
	v, err, _ := s.flight.Do(key, func() (any, error) {
		return s.refreshSchedule(ctx, group, week)
	})
	if err != nil {
		return nil, err
	}
	return v.(*timetable.GroupWeekSchedule), nil
}

func (s *Service) refreshSchedule(ctx context.Context, group timetable.GroupOption, week timetable.WeekOption) (*timetable.GroupWeekSchedule, error) {
	schedule, err := s.fetcher.FetchTimetable(ctx, group, week)
	if err != nil {
		return nil, upstreamError("get_schedule", err)
	}
	if err := s.store.SaveSchedule(ctx, schedule); err != nil {
		s.logger.WithError(err).WarnContext(ctx, "Failed to store schedule",
			"week", week.Value,
			"group", group.CodeRaw)
	}
	s.edgeSet(ctx, edgecache.ScheduleKey(week.Value, group.ID), schedule)
	return schedule, nil
}

// BuildMergedSchedule returns a group's page filtered to the core lessons
// plus the selected cohorts. See MergeSchedule.
func (s *Service) BuildMergedSchedule(ctx context.Context, groupCode, weekValue string, selectedCohorts []string) (*timetable.GroupWeekSchedule, error) {
	core, err := s.GetSchedule(ctx, groupCode, weekValue)
	if err != nil {
		return nil, err
	}
	return MergeSchedule(core, selectedCohorts), nil
}

// CalendarEvents collects the merged events of a rolling window of weeks,
// in week order. The window is chosen by PickRollingWeeks.
func (s *Service) CalendarEvents(ctx context.Context, groupCode, anchorWeek string, selectedCohorts []string, now time.Time, windowSize int) ([]timetable.LessonEvent, error) {
	meta, err := s.GetMeta(ctx)
	if err != nil {
		return nil, err
	}
	weeks := PickRollingWeeks(meta.Weeks, anchorWeek, now, windowSize)

	schedules := make([]*timetable.GroupWeekSchedule, len(weeks))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2)
	for i, week := range weeks {
		g.Go(func() error {
			merged, err := s.BuildMergedSchedule(gctx, groupCode, week.Value, selectedCohorts)
			if err != nil {
				return err
			}
			schedules[i] = merged
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	events := make([]timetable.LessonEvent, 0)
	for _, schedule := range schedules {
		events = append(events, schedule.Events...)
	}
	return events, nil
}

// CountSchedules returns the number of unexpired pages in the store.
func (s *Service) CountSchedules(ctx context.Context) (int, error) {
	return s.store.CountSchedules(ctx)
}

// Ping checks both cache tiers.
func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := s.edge.Ping(ctx); err != nil {
		return fmt.Errorf("edge cache: %w", err)
	}
	return nil
}

// detach gives a shared load its own deadline so that the request which
// started it can disconnect without failing the others waiting on it.
func detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctxutil.PreserveTracing(ctx), config.APIRequest)
}

func (s *Service) edgeGet(ctx context.Context, key, kind string, dest any) bool {
	err := s.edge.Get(ctx, key, dest)
	if err == nil {
		s.recordCache(tierEdge, kind, true)
		return true
	}
	if !domerrors.IsCacheMiss(err) {
		s.logger.WithError(err).WarnContext(ctx, "Edge cache read failed", "key", key)
	}
	if s.edge.Enabled() {
		s.recordCache(tierEdge, kind, false)
	}
	return false
}

func (s *Service) edgeSet(ctx context.Context, key string, value any) {
	if err := s.edge.Set(ctx, key, value); err != nil {
		s.logger.WithError(err).WarnContext(ctx, "Edge cache write failed", "key", key)
	}
}

func (s *Service) recordCache(tier, kind string, hit bool) {
	if s.metrics == nil {
		return
	}
	if hit {
		s.metrics.RecordCacheHit(tier, kind)
	} else {
		s.metrics.RecordCacheMiss(tier, kind)
	}
}

// upstreamError marks a fetch or parse failure as ErrUpstream while keeping
// the cause (and timetable.ErrStructure) reachable through errors.Is.
func upstreamError(operation string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return domerrors.NewWrapper("schedule", operation).
		Wrap(fmt.Errorf("%w: %w", domerrors.ErrUpstream, err), "Unable to load schedule")
}
