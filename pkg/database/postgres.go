package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aegis-signals/pkg/config"
)

// DB wraps the pgxpool.Pool
// ⭐ SSOT: DB 연결은 이 패키지에서만 생성
type DB struct {
	Pool *pgxpool.Pool
}

// New creates a new database connection pool and verifies it with a ping
func New(cfg *config.Config) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.Database.MaxConns)
	poolConfig.MinConns = int32(cfg.Database.MinConns)
	poolConfig.MaxConnLifetime = cfg.Database.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.Database.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool}, nil
}

// Close closes the database connection pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping checks if the database is accessible
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// schema holds the analytics tables written by analysis runs.
// data.daily_prices / data.stocks 는 수집 파이프라인 소유 (여기서 생성하지 않음)
var schema = []string{
	`CREATE SCHEMA IF NOT EXISTS analytics`,
	`CREATE TABLE IF NOT EXISTS analytics.signal_runs (
		run_id       TEXT PRIMARY KEY,
		config_hash  TEXT NOT NULL,
		horizon      INTEGER NOT NULL,
		instruments  INTEGER NOT NULL,
		skipped      INTEGER NOT NULL,
		started_at   TIMESTAMPTZ NOT NULL,
		finished_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS analytics.signal_stats (
		run_id      TEXT NOT NULL REFERENCES analytics.signal_runs(run_id) ON DELETE CASCADE,
		stock_code  TEXT NOT NULL,
		stock_name  TEXT NOT NULL,
		signal      TEXT NOT NULL,
		position    INTEGER NOT NULL,
		occurrences INTEGER NOT NULL,
		wins        INTEGER NOT NULL,
		win_rate    DOUBLE PRECISION NOT NULL,
		avg_return  DOUBLE PRECISION NOT NULL,
		raw_count   INTEGER NOT NULL,
		error       TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, stock_code, signal)
	)`,
	`CREATE TABLE IF NOT EXISTS analytics.signal_summary (
		run_id       TEXT NOT NULL REFERENCES analytics.signal_runs(run_id) ON DELETE CASCADE,
		signal       TEXT NOT NULL,
		signal_name  TEXT NOT NULL,
		position     INTEGER NOT NULL,
		total_count  INTEGER NOT NULL,
		total_wins   INTEGER NOT NULL,
		win_rate     DOUBLE PRECISION NOT NULL,
		avg_return   DOUBLE PRECISION NOT NULL,
		instruments  INTEGER NOT NULL,
		PRIMARY KEY (run_id, signal)
	)`,
}

// EnsureSchema creates the analytics tables if they do not exist
func (db *DB) EnsureSchema(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// HealthStatus represents the health status of the database
type HealthStatus struct {
	Healthy       bool          `json:"healthy"`
	Timestamp     time.Time     `json:"timestamp"`
	ResponseTime  time.Duration `json:"response_time"`
	Error         string        `json:"error,omitempty"`
	TotalConns    int32         `json:"total_conns"`
	IdleConns     int32         `json:"idle_conns"`
	AcquiredConns int32         `json:"acquired_conns"`
}

// HealthCheck pings the pool and reports connection usage
func (db *DB) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	status := &HealthStatus{Timestamp: time.Now()}

	start := time.Now()
	if err := db.Pool.Ping(ctx); err != nil {
		status.Error = err.Error()
		return status, err
	}
	status.ResponseTime = time.Since(start)

	stats := db.Pool.Stat()
	status.TotalConns = stats.TotalConns()
	status.IdleConns = stats.IdleConns()
	status.AcquiredConns = stats.AcquiredConns()
	status.Healthy = true

	return status, nil
}
