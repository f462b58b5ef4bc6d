package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"

	"permit-watch/internal/domain/entity"
	"permit-watch/internal/repository"
)

var tableNamePattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Conn is the subset of *sql.DB the repo needs. It is satisfied by
// *sql.DB and by circuitbreaker.DBCircuitBreaker.
type Conn interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// RecordRepo stores one record kind in its own table.
// The record body is kept as JSONB next to the id and display title.
type RecordRepo[T entity.Record] struct {
	db        Conn
	table     string
	newRecord func() T
}

// NewRecordRepo returns a repo over table. newRecord must return a fresh,
// non-nil value that FindByID can decode into.
func NewRecordRepo[T entity.Record](db Conn, table string, newRecord func() T) (repository.RecordStore[T], error) {
	if !tableNamePattern.MatchString(table) {
		return nil, fmt.Errorf("NewRecordRepo: invalid table name %q", table)
	}
	return &RecordRepo[T]{db: db, table: table, newRecord: newRecord}, nil
}

func (repo *RecordRepo[T]) FindByID(ctx context.Context, id string) (T, bool, error) {
	var zero T
	query := `
SELECT payload
FROM ` + repo.table + `
WHERE id = $1
LIMIT 1`
	rows, err := repo.db.QueryContext(ctx, query, id)
	if err != nil {
		return zero, false, fmt.Errorf("FindByID: %w", err)
	}
	defer func() { _ = rows.Close() }()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return zero, false, fmt.Errorf("FindByID: %w", err)
		}
		return zero, false, nil
	}
	var payload []byte
	if err := rows.Scan(&payload); err != nil {
		return zero, false, fmt.Errorf("FindByID: scan: %w", err)
	}

	rec := repo.newRecord()
	if err := json.Unmarshal(payload, rec); err != nil {
		return zero, false, fmt.Errorf("FindByID: decode payload: %w", err)
	}
	return rec, true, nil
}

func (repo *RecordRepo[T]) Save(ctx context.Context, record T) error {
	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("Save: encode payload: %w", err)
	}
	query := `
INSERT INTO ` + repo.table + `
       (id, title, payload)
VALUES ($1, $2, $3)`
	if _, err := repo.db.ExecContext(ctx, query,
		record.RecordID(), record.DisplayTitle(), payload,
	); err != nil {
		return fmt.Errorf("Save: %w", err)
	}
	return nil
}

// InsertIfAbsent relies on the primary key: a concurrent insert of the same
// id affects zero rows instead of failing.
func (repo *RecordRepo[T]) InsertIfAbsent(ctx context.Context, record T) (bool, error) {
	payload, err := json.Marshal(record)
	if err != nil {
		return false, fmt.Errorf("InsertIfAbsent: encode payload: %w", err)
	}
	query := `
INSERT INTO ` + repo.table + `
       (id, title, payload)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO NOTHING`
	res, err := repo.db.ExecContext(ctx, query,
		record.RecordID(), record.DisplayTitle(), payload,
	)
	if err != nil {
		return false, fmt.Errorf("InsertIfAbsent: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("InsertIfAbsent: RowsAffected: %w", err)
	}
	return n == 1, nil
}
