// Package postgres provides the Postgres-backed job store.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/korrarahuldev/company-crawler/internal/crawler"
)

// Config controls the Postgres connection pool used for job rows.
type Config struct {
	DSN             string        `mapstructure:"dsn"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// Store persists job lifecycle rows in Postgres.
type Store struct {
	pool pgxPool
}

// New connects a pool from the config and returns the store.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("jobstore.dsn is required")
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
	return &Store{pool: pool}, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(pool pgxPool) (*Store, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &Store{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// CreateJob inserts a fresh job row. Re-inserting the same job ID is a no-op
// so redelivered creation requests stay idempotent.
func (s *Store) CreateJob(ctx context.Context, job crawler.Job) error {
	if job.JobID == "" {
		return fmt.Errorf("job id is required")
	}
	const query = `
INSERT INTO jobs (job_id, company_name, website, status, created_at, failure_reason)
VALUES ($1, $2, $3, $4, $5, $6)
ON CONFLICT (job_id) DO NOTHING`

	if _, err := s.pool.Exec(ctx, query,
		job.JobID,
		job.CompanyName,
		job.Website,
		string(job.Status),
		job.CreatedAt,
		job.FailureReason,
	); err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// UpdateStatus transitions the job to the given status. The failure reason is
// replaced on every transition; passing an empty string clears it.
func (s *Store) UpdateStatus(ctx context.Context, jobID string, status crawler.JobStatus, failureReason string) error {
	const query = `
UPDATE jobs SET status = $2, failure_reason = $3 WHERE job_id = $1`

	tag, err := s.pool.Exec(ctx, query, jobID, string(status), failureReason)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update job %s: %w", jobID, crawler.ErrJobNotFound)
	}
	return nil
}

// GetJob fetches a job row by ID.
func (s *Store) GetJob(ctx context.Context, jobID string) (crawler.Job, error) {
	const query = `
SELECT job_id, company_name, website, status, created_at, failure_reason
FROM jobs WHERE job_id = $1`

	var (
		job    crawler.Job
		status string
	)
	err := s.pool.QueryRow(ctx, query, jobID).Scan(
		&job.JobID,
		&job.CompanyName,
		&job.Website,
		&status,
		&job.CreatedAt,
		&job.FailureReason,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return crawler.Job{}, fmt.Errorf("get job %s: %w", jobID, crawler.ErrJobNotFound)
	}
	if err != nil {
		return crawler.Job{}, fmt.Errorf("get job %s: %w", jobID, err)
	}
	job.Status = crawler.JobStatus(status)
	return job, nil
}
