package storage

import (
	"context"
	"database/sql"
	"fmt"
)

// InitSchema creates all necessary tables and indexes.
func InitSchema(ctx context.Context, db *sql.DB) error {
	if err := createMetaTable(ctx, db); err != nil {
		return err
	}
	return createSchedulesTable(ctx, db)
}

// The navbar payload is a singleton row.
func createMetaTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS meta (
		id INTEGER PRIMARY KEY CHECK(id = 1),
		payload TEXT NOT NULL,
		cached_at INTEGER NOT NULL
	);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create meta table: %w", err)
	}
	return nil
}

func createSchedulesTable(ctx context.Context, db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS schedules (
		week TEXT NOT NULL,
		group_id INTEGER NOT NULL,
		group_code TEXT NOT NULL,
		payload TEXT NOT NULL,
		event_count INTEGER NOT NULL DEFAULT 0,
		cached_at INTEGER NOT NULL,
		PRIMARY KEY (week, group_id)
	);
	CREATE INDEX IF NOT EXISTS idx_schedules_cached_at ON schedules(cached_at);
	CREATE INDEX IF NOT EXISTS idx_schedules_group_code ON schedules(group_code);
	`

	if _, err := db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create schedules table: %w", err)
	}
	return nil
}
