// Package postgres provides Postgres-backed persistence implementations.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/realtime-search/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const (
	defaultFetchTable = "crawl_fetches"
	defaultRunTable   = "crawl_runs"
)

// Run statuses written to the run table.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunCanceled  = "canceled"
)

// FetchLogConfig controls the Postgres connection pool used for the fetch log.
type FetchLogConfig struct {
	DSN             string
	Table           string
	RunTable        string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// FetchLog records one row per processed URL and one row per crawl run.
type FetchLog struct {
	pool     execCloser
	table    string
	runTable string
}

// NewFetchLog creates a Postgres-backed FetchLog using the provided config.
func NewFetchLog(ctx context.Context, cfg FetchLogConfig) (*FetchLog, error) {
	if cfg.DSN == "" {
		return nil, errors.New("fetch_log.dsn is required")
	}
	table, runTable, err := tableNames(cfg.Table, cfg.RunTable)
	if err != nil {
		return nil, err
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &FetchLog{pool: pool, table: table, runTable: runTable}, nil
}

// NewFetchLogWithPool constructs a log from an existing pool (primarily for testing).
func NewFetchLogWithPool(pool execCloser, table, runTable string) (*FetchLog, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	table, runTable, err := tableNames(table, runTable)
	if err != nil {
		return nil, err
	}
	return &FetchLog{pool: pool, table: table, runTable: runTable}, nil
}

func tableNames(table, runTable string) (string, string, error) {
	if table == "" {
		table = defaultFetchTable
	}
	if runTable == "" {
		runTable = defaultRunTable
	}
	for _, name := range []string{table, runTable} {
		if !validTableName.MatchString(name) {
			return "", "", fmt.Errorf("invalid table name %q", name)
		}
	}
	return table, runTable, nil
}

// Close releases the underlying pool resources.
func (s *FetchLog) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// RecordFetch inserts one fetch row.
func (s *FetchLog) RecordFetch(ctx context.Context, record crawler.FetchRecord) error {
	if s == nil || s.pool == nil {
		return errors.New("fetch log is not configured")
	}
	if record.RunID == "" {
		return errors.New("run id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	run_id,
	url,
	outcome,
	status_code,
	content_type,
	content_length,
	error_text,
	duration_ms,
	fetched_at
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9
)`, s.table)

	args := []any{
		record.RunID,
		record.URL,
		string(record.Outcome),
		record.StatusCode,
		record.ContentType,
		record.ContentLength,
		record.ErrorText,
		record.Duration.Milliseconds(),
		record.FetchedAt,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert fetch: %w", err)
	}
	return nil
}

// StartRun inserts the run row in the running state.
func (s *FetchLog) StartRun(ctx context.Context, runID string, startedAt time.Time) error {
	if s == nil || s.pool == nil {
		return errors.New("fetch log is not configured")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (run_id, started_at, status)
VALUES ($1, $2, $3)
ON CONFLICT (run_id) DO NOTHING`, s.runTable)
	if _, err := s.pool.Exec(ctx, query, runID, startedAt, RunRunning); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// FinishRun stores the final counters of a run. A non-nil runErr marks it canceled.
func (s *FetchLog) FinishRun(ctx context.Context, runID string, finishedAt time.Time, stats crawler.Stats, runErr error) error {
	if s == nil || s.pool == nil {
		return errors.New("fetch log is not configured")
	}
	status := RunCompleted
	var errMsg *string
	if runErr != nil {
		status = RunCanceled
		msg := runErr.Error()
		errMsg = &msg
	}
	query := fmt.Sprintf(`
UPDATE %s
SET finished_at = $1, status = $2, error_message = $3,
	visited = $4, stored = $5, disallowed = $6, fetch_error = $7, rejected = $8, redirected = $9
WHERE run_id = $10`, s.runTable)
	_, err := s.pool.Exec(ctx, query,
		finishedAt,
		status,
		errMsg,
		stats.Visited,
		stats.Stored,
		stats.Disallowed,
		stats.FetchError,
		stats.Rejected,
		stats.Redirected,
		runID,
	)
	if err != nil {
		return fmt.Errorf("update run: %w", err)
	}
	return nil
}
