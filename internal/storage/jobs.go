// Package storage provides the Postgres-backed implementations of the core
// store interfaces.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	// import db drivers
	_ "github.com/lib/pq"

	"github.com/csvflow/csvflow/internal/core"
)

type jobStore struct {
	db *sqlx.DB
}

// validID reports whether an identifier may match a uuid-typed column.
// Malformed input can never name a row, and letting it through would make
// Postgres reject the comparison as a server error instead of a miss.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// NewJobStore creates the durable job record store.
func NewJobStore(db *sqlx.DB) core.JobStore {
	return &jobStore{db: db}
}

const jobColumns = `id, user_id, importer_id, file_name, file_path, file_type, status,
	row_count, processed_rows, error_count, error_message, created_at, updated_at, completed_at`

// Create atomically persists the full initial record.
func (s *jobStore) Create(ctx context.Context, job *core.ImportJob) error {
	query := `
		INSERT INTO import_jobs (id, user_id, importer_id, file_name, file_path, file_type,
			status, row_count, processed_rows, error_count, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := s.db.ExecContext(ctx, query,
		job.ID, job.UserID, job.ImporterID, job.FileName, job.FilePath, job.FileType,
		job.Status, job.RowCount, job.ProcessedRows, job.ErrorCount, job.ErrorMessage,
		job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert import job: %w", err)
	}
	return nil
}

// Get returns the job only if it belongs to userID. A job owned by someone
// else looks exactly like a missing one.
func (s *jobStore) Get(ctx context.Context, userID, jobID string) (*core.ImportJob, error) {
	if !validID(jobID) || !validID(userID) {
		return nil, core.ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM import_jobs WHERE id = $1 AND user_id = $2`, jobColumns)

	var job core.ImportJob
	if err := s.db.GetContext(ctx, &job, query, jobID, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("select import job %s: %w", jobID, err)
	}
	return &job, nil
}

// GetByID fetches a job without owner scoping, for worker-side use.
func (s *jobStore) GetByID(ctx context.Context, jobID string) (*core.ImportJob, error) {
	if !validID(jobID) {
		return nil, core.ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM import_jobs WHERE id = $1`, jobColumns)

	var job core.ImportJob
	if err := s.db.GetContext(ctx, &job, query, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, core.ErrNotFound
		}
		return nil, fmt.Errorf("select import job %s: %w", jobID, err)
	}
	return &job, nil
}

// List returns the owner's jobs, newest first.
func (s *jobStore) List(ctx context.Context, userID string, skip, limit int) ([]*core.ImportJob, error) {
	if !validID(userID) {
		return []*core.ImportJob{}, nil
	}

	query := fmt.Sprintf(`SELECT %s FROM import_jobs WHERE user_id = $1
		ORDER BY created_at DESC OFFSET $2 LIMIT $3`, jobColumns)

	jobs := []*core.ImportJob{}
	if err := s.db.SelectContext(ctx, &jobs, query, userID, skip, limit); err != nil {
		return nil, fmt.Errorf("list import jobs: %w", err)
	}
	return jobs, nil
}

// SetProgress sets processed_rows to an absolute value. No-ops on terminal
// jobs so that late progress updates from a re-delivered work unit cannot
// disturb a finished record.
func (s *jobStore) SetProgress(ctx context.Context, jobID string, processedRows int) error {
	if !validID(jobID) {
		return core.ErrNotFound
	}

	query := `
		UPDATE import_jobs
		SET processed_rows = $2, updated_at = $3
		WHERE id = $1 AND status NOT IN ('completed', 'failed')`

	if _, err := s.db.ExecContext(ctx, query, jobID, processedRows, time.Now().UTC()); err != nil {
		return fmt.Errorf("update progress for job %s: %w", jobID, err)
	}
	return nil
}

// Finish moves the job into a terminal status. The conditional update is the
// serialization point for terminal writes: under at-least-once delivery only
// the first consumer wins, every later attempt sees zero rows affected and
// gets false back.
func (s *jobStore) Finish(ctx context.Context, jobID string, status core.Status, processedRows int, errMsg string) (bool, error) {
	if !status.Terminal() {
		return false, fmt.Errorf("finish job %s: %q is not a terminal status", jobID, status)
	}
	if !validID(jobID) {
		return false, core.ErrNotFound
	}

	now := time.Now().UTC()
	query := `
		UPDATE import_jobs
		SET status = $2, processed_rows = $3, error_message = $4, updated_at = $5, completed_at = $5
		WHERE id = $1 AND status NOT IN ('completed', 'failed')`

	res, err := s.db.ExecContext(ctx, query, jobID, status, processedRows, errMsg, now)
	if err != nil {
		return false, fmt.Errorf("finish job %s: %w", jobID, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("finish job %s: rows affected: %w", jobID, err)
	}
	return affected == 1, nil
}
