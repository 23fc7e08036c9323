package core

import "errors"

var (
	// ErrNotFound covers both genuinely missing records and records owned by
	// someone else. Callers must not be able to tell the two apart.
	ErrNotFound = errors.New("not found")

	// ErrValidation marks a malformed or unparseable request payload.
	ErrValidation = errors.New("invalid payload")

	// ErrFileMissing is returned when a file-based job references a physical
	// file that cannot be located.
	ErrFileMissing = errors.New("import file not found")
)
