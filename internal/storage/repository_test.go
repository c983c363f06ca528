package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domerrors "github.com/garyellow/dku-timetable-go/internal/errors"
	"github.com/garyellow/dku-timetable-go/internal/timetable"
)

func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewTestDB()
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func testSchedule(week string, groupID int, code string) *timetable.GroupWeekSchedule {
	cohort := "D1"
	return &timetable.GroupWeekSchedule{
		Group: timetable.GroupOption{ID: groupID, CodeRaw: code, CodeRu: code, CodeDe: code},
		Week:  timetable.WeekOption{Value: week, Label: "1.9.2026", StartDateISO: "2026-09-01"},
		Events: []timetable.LessonEvent{
			{ID: "e1", DateISO: "2026-09-01", StartTime: "08:00", EndTime: "08:50", SubjectShortRaw: "MATH", GroupCode: code, Scope: timetable.ScopeCoreFixed, Track: timetable.TrackNone},
			{ID: "e2", DateISO: "2026-09-02", StartTime: "09:00", EndTime: "09:50", SubjectShortRaw: "D01", GroupCode: code, Scope: timetable.ScopeCohortShared, Track: timetable.TrackDE, CohortCode: &cohort},
		},
		Cohorts: []timetable.Cohort{{Code: "D1", Track: timetable.TrackDE, Label: "Deutsch", SourceGroups: []string{code}}},
	}
}

// age rewrites cached_at so rows look older than they are.
func age(t *testing.T, db *DB, table string, by time.Duration) {
	t.Helper()
	_, err := db.writer.ExecContext(context.Background(),
		"UPDATE "+table+" SET cached_at = ?", time.Now().Add(-by).Unix())
	require.NoError(t, err)
}

func TestMeta_SaveAndGet(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	got, err := db.GetMeta(ctx)
	require.NoError(t, err)
	assert.Nil(t, got, "empty cache should miss")

	first := &timetable.MetaPayload{Weeks: []timetable.WeekOption{{Value: "01"}}, Groups: []timetable.GroupOption{{ID: 1, CodeRaw: "A"}}}
	second := &timetable.MetaPayload{Weeks: []timetable.WeekOption{{Value: "02"}}, Groups: []timetable.GroupOption{{ID: 1, CodeRaw: "B"}}}
	require.NoError(t, db.SaveMeta(ctx, first))
	require.NoError(t, db.SaveMeta(ctx, second))

	got, err = db.GetMeta(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, second, got)
}

func TestMeta_Expired(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveMeta(ctx, &timetable.MetaPayload{}))
	age(t, db, "meta", 2*time.Hour)

	got, err := db.GetMeta(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveMeta_Nil(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)

	err := db.SaveMeta(context.Background(), nil)
	assert.True(t, errors.Is(err, domerrors.ErrInvalidInput))
}

func TestSchedule_SaveAndGet(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	want := testSchedule("01", 7, "1-CS")
	require.NoError(t, db.SaveSchedule(ctx, want))

	got, err := db.GetSchedule(ctx, "01", 7)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, want, got)
	require.NotNil(t, got.Events[1].CohortCode)
	assert.Equal(t, "D1", *got.Events[1].CohortCode)
	assert.Nil(t, got.Events[0].CohortCode)

	missing, err := db.GetSchedule(ctx, "02", 7)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSchedule_Upsert(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	first := testSchedule("01", 1, "1-CS")
	require.NoError(t, db.SaveSchedule(ctx, first))

	second := testSchedule("01", 1, "1-CS")
	second.Events = second.Events[:1]
	require.NoError(t, db.SaveSchedule(ctx, second))

	count, err := db.CountSchedules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	got, err := db.GetSchedule(ctx, "01", 1)
	require.NoError(t, err)
	assert.Len(t, got.Events, 1)
}

func TestSaveSchedule_InvalidInput(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	tests := []struct {
		name     string
		schedule *timetable.GroupWeekSchedule
	}{
		{"nil", nil},
		{"no week", testSchedule("", 1, "A")},
		{"no group id", testSchedule("01", 0, "A")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := db.SaveSchedule(ctx, tt.schedule)
			assert.True(t, errors.Is(err, domerrors.ErrInvalidInput))
		})
	}
}

func TestListSchedules(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveSchedule(ctx, testSchedule("02", 1, "A")))
	require.NoError(t, db.SaveSchedule(ctx, testSchedule("01", 2, "B")))
	require.NoError(t, db.SaveSchedule(ctx, testSchedule("01", 1, "A")))

	list, err := db.ListSchedules(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "01", list[0].Week.Value)
	assert.Equal(t, 1, list[0].Group.ID)
	assert.Equal(t, 2, list[1].Group.ID)
	assert.Equal(t, "02", list[2].Week.Value)
}

func TestDeleteExpiredSchedules(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveSchedule(ctx, testSchedule("01", 1, "A")))
	require.NoError(t, db.SaveSchedule(ctx, testSchedule("01", 2, "B")))
	age(t, db, "schedules", 3*time.Hour)
	require.NoError(t, db.SaveSchedule(ctx, testSchedule("02", 1, "A")))

	count, err := db.CountSchedules(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "expired rows are not counted")

	expired, err := db.GetSchedule(ctx, "01", 1)
	require.NoError(t, err)
	assert.Nil(t, expired)

	deleted, err := db.DeleteExpiredSchedules(ctx, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(2), deleted)

	list, err := db.ListSchedules(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestReset(t *testing.T) {
	t.Parallel()
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveMeta(ctx, &timetable.MetaPayload{}))
	require.NoError(t, db.SaveSchedule(ctx, testSchedule("01", 1, "A")))
	require.NoError(t, db.Reset(ctx))

	meta, err := db.GetMeta(ctx)
	require.NoError(t, err)
	assert.Nil(t, meta)

	count, err := db.CountSchedules(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
}
