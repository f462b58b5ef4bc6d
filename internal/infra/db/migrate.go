package db

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// MigrateUp creates one record table per name. Tables share a layout:
// the natural id as primary key, a display title, and the JSONB record body.
func MigrateUp(ctx context.Context, db *sql.DB, tables ...string) error {
	for _, table := range tables {
		if !identPattern.MatchString(table) {
			return fmt.Errorf("migrate: invalid table name %q", table)
		}

		if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS `+table+` (
    id         TEXT PRIMARY KEY,
    title      TEXT NOT NULL DEFAULT '',
    payload    JSONB NOT NULL,
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`); err != nil {
			return fmt.Errorf("migrate %s: %w", table, err)
		}

		// newest-first lookups
		if _, err := db.ExecContext(ctx,
			`CREATE INDEX IF NOT EXISTS idx_`+table+`_created_at ON `+table+`(created_at DESC)`); err != nil {
			return fmt.Errorf("migrate %s index: %w", table, err)
		}
	}
	return nil
}

// MigrateDown drops the given record tables.
// Use with caution: this will delete all data in the affected tables.
func MigrateDown(ctx context.Context, db *sql.DB, tables ...string) error {
	for _, table := range tables {
		if !identPattern.MatchString(table) {
			return fmt.Errorf("migrate down: invalid table name %q", table)
		}
		if _, err := db.ExecContext(ctx, `DROP TABLE IF EXISTS `+table); err != nil {
			return fmt.Errorf("migrate down %s: %w", table, err)
		}
	}
	return nil
}
