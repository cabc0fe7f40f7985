package repository

import "errors"

// Sentinel kinds for storage errors.
var (
	// ErrPersistence marks an unreadable or unwritable store. It is fatal for a run.
	ErrPersistence = errors.New("persistence failure")
	ErrNotFound    = errors.New("record not found")
)
