package importsvc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/csvflow/csvflow/internal/core"
)

// chunkSize bounds how many rows are applied between progress updates.
const chunkSize = 1000

// Processor consumes dispatched processing work. It runs in the worker
// process, so it re-reads everything it needs from the stores and cannot rely
// on any state memoized at intake time.
type Processor struct {
	jobs      core.JobStore
	importers core.ImporterStore
	notifier  core.Notifier
	logger    *slog.Logger
}

// NewProcessor wires the consumer-side import processor.
func NewProcessor(jobs core.JobStore, importers core.ImporterStore, notifier core.Notifier, logger *slog.Logger) *Processor {
	return &Processor{
		jobs:      jobs,
		importers: importers,
		notifier:  notifier,
		logger:    logger,
	}
}

// Run is the consumer entry point registered as core.WorkImportProcess.
// Delivery is at least once, so the whole function is written to be
// re-runnable: a job already in a terminal status is left untouched.
func (p *Processor) Run(ctx context.Context, args map[string]any) error {
	jobID, _ := args["import_job_id"].(string)
	if jobID == "" {
		return fmt.Errorf("processing work unit missing import_job_id")
	}

	job, err := p.jobs.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load job %s: %w", jobID, err)
	}

	if job.Status.Terminal() {
		p.logger.Info("job already terminal, skipping re-delivered work unit", "job_id", jobID, "status", job.Status)
		return nil
	}

	importer, err := p.importers.Get(ctx, job.UserID, job.ImporterID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return p.fail(ctx, job, "associated importer configuration not found")
		}
		// Transient store failure: surface it without touching the job so a
		// re-delivery can still reach a terminal state.
		return fmt.Errorf("load importer for job %s: %w", jobID, err)
	}

	valid := rowsFromArg(args["valid_data"])

	processed := 0
	for processed < len(valid) {
		end := min(processed+chunkSize, len(valid))
		processed = end
		if err := p.jobs.SetProgress(ctx, job.ID, processed); err != nil {
			return p.fail(ctx, job, fmt.Sprintf("failed to record progress: %v", err))
		}
	}

	finished, err := p.jobs.Finish(ctx, job.ID, core.StatusCompleted, processed, "")
	if err != nil {
		return fmt.Errorf("complete job %s: %w", jobID, err)
	}
	if !finished {
		// Another consumer got there first; it also owns the webhook.
		p.logger.Info("job finished by a concurrent delivery", "job_id", jobID)
		return nil
	}

	p.logger.Info("import job completed", "job_id", jobID, "processed_rows", processed)
	p.notifyCompletion(ctx, job.ID, importer, core.EventImportCompleted)
	return nil
}

// fail drives the job to terminal failed and fires the failure webhook. The
// original processing error is what the caller sees; bookkeeping errors are
// attached.
func (p *Processor) fail(ctx context.Context, job *core.ImportJob, msg string) error {
	finished, err := p.jobs.Finish(ctx, job.ID, core.StatusFailed, 0, msg)
	if err != nil {
		return fmt.Errorf("%s; fail update also failed: %w", msg, err)
	}
	if finished {
		if importer, err := p.importers.Get(ctx, job.UserID, job.ImporterID); err == nil {
			p.notifyCompletion(ctx, job.ID, importer, core.EventImportFailed)
		}
	}
	return fmt.Errorf("job %s failed: %s", job.ID, msg)
}

// notifyCompletion mirrors the start event fired at intake: the processor
// checks the webhook configuration itself because it runs in a different
// process.
func (p *Processor) notifyCompletion(ctx context.Context, jobID string, importer *core.Importer, event core.WebhookEventType) {
	if !importer.WebhookConfigured() {
		return
	}
	if _, err := p.notifier.Notify(ctx, jobID, event, map[string]any{"source": "worker"}); err != nil {
		p.logger.Warn("failed to queue completion webhook", "job_id", jobID, "event", event, "error", err)
	}
}

// rowsFromArg rebuilds the row slice from a work unit argument. Depending on
// whether the unit crossed the wire, the value is either the original
// []core.Row or the JSON-decoded []any form.
func rowsFromArg(v any) []core.Row {
	switch rows := v.(type) {
	case []core.Row:
		return rows
	case []any:
		out := make([]core.Row, 0, len(rows))
		for _, r := range rows {
			if m, ok := r.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}
