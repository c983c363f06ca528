// Package storage persists parsed timetable payloads in SQLite so restarts
// and repeated requests do not hit the upstream site.
package storage

import (
	"context"
	"time"

	"github.com/garyellow/dku-timetable-go/internal/timetable"
)

// MetaRepository stores the parsed navbar payload.
type MetaRepository interface {
	GetMeta(ctx context.Context) (*timetable.MetaPayload, error)
	SaveMeta(ctx context.Context, meta *timetable.MetaPayload) error
}

// ScheduleRepository stores parsed group-week pages.
type ScheduleRepository interface {
	GetSchedule(ctx context.Context, week string, groupID int) (*timetable.GroupWeekSchedule, error)
	SaveSchedule(ctx context.Context, schedule *timetable.GroupWeekSchedule) error
	ListSchedules(ctx context.Context) ([]*timetable.GroupWeekSchedule, error)
	DeleteExpiredSchedules(ctx context.Context, ttl time.Duration) (int64, error)
	CountSchedules(ctx context.Context) (int, error)
}

// Store is the full cache store used by the schedule service and warmup.
type Store interface {
	MetaRepository
	ScheduleRepository
	Ping(ctx context.Context) error
}

var _ Store = (*DB)(nil)
