// Package core defines the essential interfaces and data structures that form
// the backbone of the import pipeline. These components are deliberately
// abstract so that storage, queueing, and delivery can be swapped out without
// touching the business logic built on top of them.
package core

import (
	"time"

	"github.com/google/uuid"
)

// Status enumerates the lifecycle states of an import job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusValidating Status = "validating"
	StatusValidated  Status = "validated"
	StatusImporting  Status = "importing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether the status is final. A job in a terminal status
// must never transition again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Row is one record of tabular data, keyed by column name. Values are
// whatever the client-side classifier produced and must stay JSON-encodable
// because rows cross the queue boundary.
type Row = map[string]any

// ImportJob tracks one row-batch processing attempt from creation to a
// terminal outcome. It is created exactly once by the intake service and
// mutated only by the import processor afterwards.
type ImportJob struct {
	ID            string     `db:"id" json:"id"`
	UserID        string     `db:"user_id" json:"user_id"`
	ImporterID    string     `db:"importer_id" json:"importer_id"`
	FileName      string     `db:"file_name" json:"file_name"`
	FilePath      string     `db:"file_path" json:"file_path,omitempty"`
	FileType      string     `db:"file_type" json:"file_type"`
	Status        Status     `db:"status" json:"status"`
	RowCount      int        `db:"row_count" json:"row_count"`
	ProcessedRows int        `db:"processed_rows" json:"processed_rows"`
	ErrorCount    int        `db:"error_count" json:"error_count"`
	ErrorMessage  string     `db:"error_message" json:"error_message,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at,omitempty"`
}

// NewFileJob builds the initial record for the file-based intake path. Rows
// were classified by the caller's client, but validation of the referenced
// file happens during processing, so the job starts out pending.
func NewFileJob(userID, importerID, fileName, filePath string, valid, invalid []Row) *ImportJob {
	job := newJob(userID, importerID, valid, invalid)
	job.FileName = fileName
	job.FilePath = filePath
	job.FileType = "json"
	job.Status = StatusPending
	return job
}

// NewKeyJob builds the initial record for the key-based intake path. Rows are
// pre-validated client-side, so processing is considered underway the moment
// the batch is accepted.
func NewKeyJob(userID, importerID string, valid, invalid []Row) *ImportJob {
	job := newJob(userID, importerID, valid, invalid)
	job.FileName = "embedded_import.csv"
	job.FileType = "csv"
	job.Status = StatusProcessing
	return job
}

func newJob(userID, importerID string, valid, invalid []Row) *ImportJob {
	now := time.Now().UTC()
	return &ImportJob{
		ID:            uuid.NewString(),
		UserID:        userID,
		ImporterID:    importerID,
		RowCount:      len(valid) + len(invalid),
		ProcessedRows: 0,
		ErrorCount:    len(invalid),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}
