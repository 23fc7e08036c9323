// Package importsvc contains the import job lifecycle: the intake service
// that creates jobs and dispatches work, and the processor that consumes
// dispatched work and drives jobs to a terminal status.
package importsvc

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/csvflow/csvflow/internal/core"
)

// Service is the job intake surface. It is the only component callers
// interact with: it validates inputs, creates the job record, triggers the
// notifier and dispatcher, and returns synchronously. It never blocks on row
// processing.
type Service struct {
	jobs       core.JobStore
	importers  core.ImporterStore
	dispatcher core.Dispatcher
	notifier   core.Notifier
	logger     *slog.Logger
}

// NewService wires the intake service.
func NewService(jobs core.JobStore, importers core.ImporterStore, dispatcher core.Dispatcher, notifier core.Notifier, logger *slog.Logger) *Service {
	return &Service{
		jobs:       jobs,
		importers:  importers,
		dispatcher: dispatcher,
		notifier:   notifier,
		logger:     logger,
	}
}

// CreateJobInput is the file-based intake request: rows already classified by
// the caller's client-side validation.
type CreateJobInput struct {
	ImporterID  string
	FileName    string
	FilePath    string
	Data        []core.Row
	InvalidData []core.Row
}

// ProcessByKeyInput is the key-based intake request. The importer key is the
// sole credential on this path.
type ProcessByKeyInput struct {
	Key         string
	ValidData   []core.Row
	InvalidData []core.Row
	User        map[string]any
	Metadata    map[string]any
}

// ProcessResult is the deliberately minimal key-path response; callers poll
// the job record for live progress through the authenticated read endpoint.
type ProcessResult struct {
	Success bool `json:"success"`
}

// CreateJob handles the authenticated file-based path. The importer must
// belong to the caller, and a referenced physical file must exist. The job
// starts out pending and is handed to the background processor.
func (s *Service) CreateJob(ctx context.Context, userID string, in CreateJobInput) (*core.ImportJob, error) {
	if in.ImporterID == "" {
		return nil, fmt.Errorf("%w: importer_id is required", core.ErrValidation)
	}

	importer, err := s.importers.Get(ctx, userID, in.ImporterID)
	if err != nil {
		return nil, fmt.Errorf("resolve importer %s: %w", in.ImporterID, err)
	}

	if in.FilePath != "" {
		if _, err := os.Stat(in.FilePath); err != nil {
			return nil, fmt.Errorf("%w: %s", core.ErrFileMissing, in.FilePath)
		}
	}

	job := core.NewFileJob(userID, importer.ID, in.FileName, in.FilePath, in.Data, in.InvalidData)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}

	if err := s.dispatchProcessing(ctx, job, in.Data, in.InvalidData); err != nil {
		return s.failOnDispatch(ctx, job)
	}

	s.logger.Info("created import job", "job_id", job.ID, "importer_id", importer.ID, "rows", job.RowCount)
	return job, nil
}

// ProcessByKey handles the unauthenticated key-scoped path. Rows are already
// validated client-side, so the job is created directly in processing status.
// The start webhook is dispatched before the processing work so their queue
// order is fixed, though consumption order is not guaranteed.
func (s *Service) ProcessByKey(ctx context.Context, in ProcessByKeyInput) (*ProcessResult, error) {
	if in.Key == "" {
		return nil, fmt.Errorf("%w: importer_key is required", core.ErrValidation)
	}

	importer, err := s.importers.ResolveKey(ctx, in.Key)
	if err != nil {
		return nil, fmt.Errorf("resolve importer key: %w", err)
	}

	job := core.NewKeyJob(importer.UserID, importer.ID, in.ValidData, in.InvalidData)
	if err := s.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}

	if importer.WebhookConfigured() {
		payload := map[string]any{
			"user":     orEmpty(in.User),
			"metadata": orEmpty(in.Metadata),
			"source":   "api",
		}
		if _, err := s.notifier.Notify(ctx, job.ID, core.EventImportStarted, payload); err != nil {
			// Notification is a side channel; the import proceeds regardless.
			s.logger.Warn("failed to queue import.started webhook", "job_id", job.ID, "error", err)
		}
	}

	if err := s.dispatchProcessing(ctx, job, in.ValidData, in.InvalidData); err != nil {
		if _, err := s.failOnDispatch(ctx, job); err != nil {
			return nil, err
		}
		return &ProcessResult{Success: false}, nil
	}

	s.logger.Info("accepted key-based import", "job_id", job.ID, "importer_id", importer.ID, "rows", job.RowCount)
	return &ProcessResult{Success: true}, nil
}

// GetJob returns a single job scoped to the caller's ownership.
func (s *Service) GetJob(ctx context.Context, userID, jobID string) (*core.ImportJob, error) {
	return s.jobs.Get(ctx, userID, jobID)
}

// ListJobs returns the caller's jobs, newest first.
func (s *Service) ListJobs(ctx context.Context, userID string, skip, limit int) ([]*core.ImportJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}
	if skip < 0 {
		skip = 0
	}
	return s.jobs.List(ctx, userID, skip, limit)
}

func (s *Service) dispatchProcessing(ctx context.Context, job *core.ImportJob, valid, invalid []core.Row) error {
	args := map[string]any{
		"import_job_id": job.ID,
		"valid_data":    valid,
		"invalid_data":  invalid,
	}
	submissionID, err := s.dispatcher.Enqueue(ctx, core.WorkImportProcess, args)
	if err != nil {
		return err
	}
	s.logger.Info("queued processing work", "job_id", job.ID, "submission_id", submissionID)
	return nil
}

// failOnDispatch records the terminal failure so the caller never observes a
// job stuck waiting for a work unit that was never queued.
func (s *Service) failOnDispatch(ctx context.Context, job *core.ImportJob) (*core.ImportJob, error) {
	s.logger.Error("failed to enqueue processing work", "job_id", job.ID)

	const msg = "failed to enqueue job for processing"
	if _, err := s.jobs.Finish(ctx, job.ID, core.StatusFailed, 0, msg); err != nil {
		return nil, fmt.Errorf("mark job %s failed: %w", job.ID, err)
	}

	job.Status = core.StatusFailed
	job.ErrorMessage = msg
	return job, nil
}

func orEmpty(m map[string]any) map[string]any {
	if m == nil {
		return map[string]any{}
	}
	return m
}
