package circuitbreaker

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// StoreConfig guards the Postgres record store. A missing row is a normal
// dedup answer and never counts as a failure.
func StoreConfig() Config {
	return Config{
		Name:         "store",
		MaxRequests:  3,
		Interval:     time.Minute,
		Timeout:      30 * time.Second,
		FailureRatio: 1.0,
		MinRequests:  5,
		Ignore:       func(err error) bool { return errors.Is(err, sql.ErrNoRows) },
	}
}

// DBCircuitBreaker is a *sql.DB whose queries and statements fail fast
// while the store is down.
type DBCircuitBreaker struct {
	cb *CircuitBreaker
	db *sql.DB
}

// NewDBCircuitBreaker guards db with StoreConfig.
func NewDBCircuitBreaker(db *sql.DB) *DBCircuitBreaker {
	return NewDBCircuitBreakerWithConfig(db, StoreConfig())
}

func NewDBCircuitBreakerWithConfig(db *sql.DB, cfg Config) *DBCircuitBreaker {
	return &DBCircuitBreaker{cb: New(cfg), db: db}
}

func (d *DBCircuitBreaker) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return Call(d.cb, func() (*sql.Rows, error) {
		return d.db.QueryContext(ctx, query, args...)
	})
}

func (d *DBCircuitBreaker) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return Call(d.cb, func() (sql.Result, error) {
		return d.db.ExecContext(ctx, query, args...)
	})
}

func (d *DBCircuitBreaker) State() gobreaker.State { return d.cb.State() }

func (d *DBCircuitBreaker) IsOpen() bool { return d.cb.IsOpen() }
