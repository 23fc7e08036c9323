package core

import "context"

// JobStore is the durable source of truth for import jobs. Reads are scoped
// by owner; a job belonging to a different owner is indistinguishable from a
// missing one.
type JobStore interface {
	// Create atomically persists the full initial record.
	Create(ctx context.Context, job *ImportJob) error
	// Get returns the job only if it belongs to userID, ErrNotFound otherwise.
	Get(ctx context.Context, userID, jobID string) (*ImportJob, error)
	// List returns the owner's jobs ordered newest first.
	List(ctx context.Context, userID string, skip, limit int) ([]*ImportJob, error)
	// GetByID fetches a job without owner scoping. Only the worker side may
	// use it, since work units carry no principal.
	GetByID(ctx context.Context, jobID string) (*ImportJob, error)
	// SetProgress sets processed_rows to an absolute value. Re-applying the
	// same value is a no-op, which keeps re-delivered work idempotent.
	SetProgress(ctx context.Context, jobID string, processedRows int) error
	// Finish moves the job into a terminal status. It returns false without
	// error when the job is already terminal, guaranteeing exactly-once
	// terminal transitions under at-least-once queue delivery.
	Finish(ctx context.Context, jobID string, status Status, processedRows int, errMsg string) (bool, error)
}

// ImporterStore resolves importer configurations. Importer CRUD lives in a
// separate administrative surface; the pipeline only ever reads.
type ImporterStore interface {
	// ResolveKey authenticates the key-based intake path. An unknown key is
	// ErrNotFound.
	ResolveKey(ctx context.Context, key string) (*Importer, error)
	// Get returns the importer only if it belongs to userID.
	Get(ctx context.Context, userID, importerID string) (*Importer, error)
}

// Dispatcher submits a named unit of work plus arguments to the queue
// substrate and returns an opaque submission id. Arguments must be plain
// JSON-serializable values; dispatch and consumption may happen on different
// machines.
type Dispatcher interface {
	Enqueue(ctx context.Context, fn string, args map[string]any) (string, error)
}

// Notifier packages a lifecycle event into a work unit and hands it to the
// dispatcher, so delivery never blocks the caller. Enqueue failures are the
// caller's to log and swallow: notification is a side channel, not a
// correctness dependency.
type Notifier interface {
	Notify(ctx context.Context, jobID string, event WebhookEventType, payload map[string]any) (string, error)
}
