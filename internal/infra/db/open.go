package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	loader "permit-watch/internal/pkg/config"
)

// ConnectionConfig holds database connection pool configuration.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConnectionConfig returns the default connection pool configuration.
// The worker issues a handful of point lookups and inserts per minute.
func DefaultConnectionConfig() ConnectionConfig {
	return ConnectionConfig{
		MaxOpenConns:    8,
		MaxIdleConns:    4,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 10 * time.Minute,
	}
}

// Open creates a connection pool for dsn using the pgx driver and verifies
// it with a ping bounded by ctx and a 5 second timeout.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("open postgres: empty dsn")
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	cfg := connectionConfigFromEnv(slog.Default())
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	slog.Info("database connection pool configured",
		slog.Int("max_open_conns", cfg.MaxOpenConns),
		slog.Int("max_idle_conns", cfg.MaxIdleConns),
		slog.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
		slog.Duration("conn_max_idle_time", cfg.ConnMaxIdleTime))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	slog.Info("database connection established successfully")
	return db, nil
}

// Pool limits never fail startup: a malformed or out-of-range value is
// logged and replaced by its default.
const (
	envMaxOpenConns    = "DB_MAX_OPEN_CONNS"
	envMaxIdleConns    = "DB_MAX_IDLE_CONNS"
	envConnMaxLifetime = "DB_CONN_MAX_LIFETIME"
	envConnMaxIdleTime = "DB_CONN_MAX_IDLE_TIME"

	maxPoolConns = 100
)

func connectionConfigFromEnv(logger *slog.Logger) ConnectionConfig {
	def := DefaultConnectionConfig()
	r := loader.NewReporter(logger, nil)
	poolSize := func(v int) error { return loader.ValidateIntRange(v, 1, maxPoolConns) }

	cfg := ConnectionConfig{
		MaxOpenConns:    r.Track("max_open_conns", loader.LoadEnvInt(envMaxOpenConns, def.MaxOpenConns, poolSize)).(int),
		MaxIdleConns:    r.Track("max_idle_conns", loader.LoadEnvInt(envMaxIdleConns, def.MaxIdleConns, poolSize)).(int),
		ConnMaxLifetime: r.Track("conn_max_lifetime", loader.LoadEnvDuration(envConnMaxLifetime, def.ConnMaxLifetime, loader.ValidatePositiveDuration)).(time.Duration),
		ConnMaxIdleTime: r.Track("conn_max_idle_time", loader.LoadEnvDuration(envConnMaxIdleTime, def.ConnMaxIdleTime, loader.ValidatePositiveDuration)).(time.Duration),
	}

	// database/sql would silently lower it anyway
	if cfg.MaxIdleConns > cfg.MaxOpenConns {
		cfg.MaxIdleConns = cfg.MaxOpenConns
	}
	return cfg
}
