package history

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/facility-etl/internal/publish"
	"github.com/JonMunkholm/facility-etl/internal/schema"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// PoolConfig holds connection pool settings.
type PoolConfig struct {
	URL             string
	MaxConns        int
	MinConns        int
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Store records runs in Postgres.
type Store struct {
	pool *pgxpool.Pool
}

// Open connects, pings and migrates.
func Open(ctx context.Context, cfg PoolConfig) (*Store, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool.
func (s *Store) Close() { s.pool.Close() }

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS publication_runs (
		run_id        UUID PRIMARY KEY,
		service       TEXT NOT NULL,
		trigger       TEXT NOT NULL,
		started_at    TIMESTAMPTZ NOT NULL,
		duration_ms   BIGINT NOT NULL,
		changed       BOOLEAN NOT NULL,
		combined_rows INTEGER NOT NULL,
		web_rows      INTEGER NOT NULL,
		error         TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE INDEX IF NOT EXISTS publication_runs_service_started
		ON publication_runs (service, started_at DESC)`,
	`CREATE TABLE IF NOT EXISTS publication_countries (
		run_id      UUID NOT NULL REFERENCES publication_runs (run_id) ON DELETE CASCADE,
		country     TEXT NOT NULL,
		status      TEXT NOT NULL,
		rows        INTEGER NOT NULL,
		no_position INTEGER NOT NULL,
		error       TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (run_id, country)
	)`,
	`CREATE TABLE IF NOT EXISTS validation_violations (
		run_id  UUID NOT NULL REFERENCES publication_runs (run_id) ON DELETE CASCADE,
		country TEXT NOT NULL,
		check_name TEXT NOT NULL,
		column_name TEXT NOT NULL DEFAULT '',
		row_index  INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL
	)`,
}

// Migrate creates the history tables when missing.
func Migrate(ctx context.Context, db DBTX) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}

// RecordRun stores a run with its countries and violations in one
// transaction.
func (s *Store) RecordRun(ctx context.Context, res *publish.Result) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := insertRun(ctx, tx, res); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const (
	insertRunSQL = `INSERT INTO publication_runs
		(run_id, service, trigger, started_at, duration_ms, changed, combined_rows, web_rows, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	insertCountrySQL = `INSERT INTO publication_countries
		(run_id, country, status, rows, no_position, error)
		VALUES ($1, $2, $3, $4, $5, $6)`
	insertViolationSQL = `INSERT INTO validation_violations
		(run_id, country, check_name, column_name, row_index, message)
		VALUES ($1, $2, $3, $4, $5, $6)`
)

func insertRun(ctx context.Context, db DBTX, res *publish.Result) error {
	id := res.RunID.String()
	if _, err := db.Exec(ctx, insertRunSQL,
		id, string(res.Service), res.Trigger, res.StartedAt, res.Duration.Milliseconds(),
		res.Changed, res.CombinedRows, res.WebRows, res.Error,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	for _, c := range res.Countries {
		if _, err := db.Exec(ctx, insertCountrySQL,
			id, c.Country, string(c.Status), c.Rows, c.NoPosition, c.Error,
		); err != nil {
			return fmt.Errorf("insert country %s: %w", c.Country, err)
		}
		if c.Report == nil {
			continue
		}
		for _, v := range c.Report.Violations {
			if _, err := db.Exec(ctx, insertViolationSQL,
				id, c.Country, v.Check, v.Column, v.Row, v.Message,
			); err != nil {
				return fmt.Errorf("insert violation %s/%s: %w", c.Country, v.Check, err)
			}
		}
	}
	return nil
}

const listRunsSQL = `SELECT r.run_id::text, r.service, r.trigger, r.started_at, r.duration_ms,
		r.changed, r.combined_rows, r.web_rows, r.error,
		COUNT(c.country) FILTER (WHERE c.status = 'updated'),
		COUNT(c.country) FILTER (WHERE c.status = 'skipped'),
		COUNT(c.country) FILTER (WHERE c.status = 'failed')
	FROM publication_runs r
	LEFT JOIN publication_countries c ON c.run_id = r.run_id
	WHERE $1::text = '' OR r.service = $1::text
	GROUP BY r.run_id
	ORDER BY r.started_at DESC
	LIMIT $2`

// ListRuns returns the latest runs, newest first.
func (s *Store) ListRuns(ctx context.Context, service schema.Service, limit int) ([]RunSummary, error) {
	return listRuns(ctx, s.pool, service, limit)
}

func listRuns(ctx context.Context, db DBTX, service schema.Service, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.Query(ctx, listRunsSQL, string(service), limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var (
			s       RunSummary
			id, svc string
		)
		if err := rows.Scan(&id, &svc, &s.Trigger, &s.StartedAt, &s.DurationMS,
			&s.Changed, &s.CombinedRows, &s.WebRows, &s.Error,
			&s.Updated, &s.Skipped, &s.Failed,
		); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if s.RunID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("run id %q: %w", id, err)
		}
		s.Service = schema.Service(svc)
		out = append(out, s)
	}
	return out, rows.Err()
}
