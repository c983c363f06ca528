package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	domerrors "github.com/garyellow/dku-timetable-go/internal/errors"
	"github.com/garyellow/dku-timetable-go/internal/timetable"
)

// slowQueryThreshold marks database calls worth a warning log.
const slowQueryThreshold = 100 * time.Millisecond

// SaveMeta replaces the cached navbar payload
func (db *DB) SaveMeta(ctx context.Context, meta *timetable.MetaPayload) error {
	if meta == nil {
		return fmt.Errorf("save meta: %w", domerrors.ErrInvalidInput)
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal meta: %w", err)
	}

	query := `
		INSERT INTO meta (id, payload, cached_at)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			payload = excluded.payload,
			cached_at = excluded.cached_at
	`
	start := time.Now()
	if _, err := db.writer.ExecContext(ctx, query, string(payload), time.Now().Unix()); err != nil {
		slog.ErrorContext(ctx, "failed to save meta", "error", err)
		return fmt.Errorf("failed to save meta: %w", err)
	}
	warnSlow(ctx, "SaveMeta", start)
	return nil
}

// GetMeta returns the cached navbar payload, or nil when it is missing or expired.
func (db *DB) GetMeta(ctx context.Context) (*timetable.MetaPayload, error) {
	query := `SELECT payload FROM meta WHERE id = 1 AND cached_at > ?`

	var payload string
	err := db.reader.QueryRowContext(ctx, query, db.getTTLTimestamp()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query meta: %w", err)
	}

	var meta timetable.MetaPayload
	if err := json.Unmarshal([]byte(payload), &meta); err != nil {
		slog.WarnContext(ctx, "discarding corrupt meta payload", "error", err)
		return nil, nil
	}
	return &meta, nil
}

// SaveSchedule inserts or updates the parsed page of one group and week
func (db *DB) SaveSchedule(ctx context.Context, schedule *timetable.GroupWeekSchedule) error {
	if schedule == nil || schedule.Week.Value == "" || schedule.Group.ID <= 0 {
		return fmt.Errorf("save schedule: %w", domerrors.ErrInvalidInput)
	}
	payload, err := json.Marshal(schedule)
	if err != nil {
		return fmt.Errorf("marshal schedule: %w", err)
	}

	query := `
		INSERT INTO schedules (week, group_id, group_code, payload, event_count, cached_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(week, group_id) DO UPDATE SET
			group_code = excluded.group_code,
			payload = excluded.payload,
			event_count = excluded.event_count,
			cached_at = excluded.cached_at
	`
	start := time.Now()
	_, err = db.writer.ExecContext(ctx, query,
		schedule.Week.Value,
		schedule.Group.ID,
		schedule.Group.CodeRaw,
		string(payload),
		len(schedule.Events),
		time.Now().Unix(),
	)
	if err != nil {
		slog.ErrorContext(ctx, "failed to save schedule",
			"week", schedule.Week.Value,
			"group", schedule.Group.CodeRaw,
			"error", err)
		return fmt.Errorf("failed to save schedule: %w", err)
	}
	warnSlow(ctx, "SaveSchedule", start)
	return nil
}

// GetSchedule returns the cached page of one group and week, or nil when it
// is missing or expired.
func (db *DB) GetSchedule(ctx context.Context, week string, groupID int) (*timetable.GroupWeekSchedule, error) {
	query := `SELECT payload FROM schedules WHERE week = ? AND group_id = ? AND cached_at > ?`

	var payload string
	err := db.reader.QueryRowContext(ctx, query, week, groupID, db.getTTLTimestamp()).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		slog.ErrorContext(ctx, "failed to query schedule",
			"week", week,
			"group_id", groupID,
			"error", err)
		return nil, fmt.Errorf("query schedule: %w", err)
	}

	var schedule timetable.GroupWeekSchedule
	if err := json.Unmarshal([]byte(payload), &schedule); err != nil {
		slog.WarnContext(ctx, "discarding corrupt schedule payload",
			"week", week,
			"group_id", groupID,
			"error", err)
		return nil, nil
	}
	return &schedule, nil
}

// ListSchedules returns every unexpired cached page ordered by week and group.
func (db *DB) ListSchedules(ctx context.Context) ([]*timetable.GroupWeekSchedule, error) {
	query := `SELECT payload FROM schedules WHERE cached_at > ? ORDER BY week, group_id`

	rows, err := db.reader.QueryContext(ctx, query, db.getTTLTimestamp())
	if err != nil {
		return nil, fmt.Errorf("query schedules: %w", err)
	}
	defer func() { _ = rows.Close() }()

	schedules := make([]*timetable.GroupWeekSchedule, 0)
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("scan schedule: %w", err)
		}
		var schedule timetable.GroupWeekSchedule
		if err := json.Unmarshal([]byte(payload), &schedule); err != nil {
			continue
		}
		schedules = append(schedules, &schedule)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate schedules: %w", err)
	}
	return schedules, nil
}

// DeleteExpiredSchedules removes schedules older than the specified TTL.
// Returns the number of deleted entries.
func (db *DB) DeleteExpiredSchedules(ctx context.Context, ttl time.Duration) (int64, error) {
	query := `DELETE FROM schedules WHERE cached_at < ?`
	expiryTime := time.Now().Add(-ttl).Unix()

	result, err := db.writer.ExecContext(ctx, query, expiryTime)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired schedules: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected for schedules: %w", err)
	}
	return rowsAffected, nil
}

// CountSchedules returns the number of unexpired cached schedules
func (db *DB) CountSchedules(ctx context.Context) (int, error) {
	query := `SELECT COUNT(*) FROM schedules WHERE cached_at > ?`

	var count int
	if err := db.reader.QueryRowContext(ctx, query, db.getTTLTimestamp()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count schedules: %w", err)
	}
	return count, nil
}

// Reset drops every cached payload. Used by the warmup command's reset flag.
func (db *DB) Reset(ctx context.Context) error {
	tx, err := db.writer.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin reset: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, table := range []string{"meta", "schedules"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("reset %s: %w", table, err)
		}
	}
	return tx.Commit()
}

func warnSlow(ctx context.Context, operation string, start time.Time) {
	if duration := time.Since(start); duration > slowQueryThreshold {
		slog.WarnContext(ctx, "slow database operation",
			"operation", operation,
			"duration_ms", duration.Milliseconds())
	}
}
