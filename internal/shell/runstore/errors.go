package runstore

import (
	"errors"
	"fmt"
)

var (
	// ErrConnectionFailed indicates the state database could not be opened.
	ErrConnectionFailed = errors.New("connection failed")

	// ErrMigrationFailed indicates a schema migration failed.
	ErrMigrationFailed = errors.New("migration failed")

	// ErrRunNotFound indicates no run exists with the requested ID.
	ErrRunNotFound = errors.New("run not found")
)

// StoreError wraps a storage failure with its operation and run context.
type StoreError struct {
	Op      string
	RunID   string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("runstore.%s(%s): %s", e.Op, e.RunID, e.Message)
	}
	return fmt.Sprintf("runstore.%s: %s", e.Op, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError.
func NewStoreError(op, runID, message string, err error) *StoreError {
	return &StoreError{Op: op, RunID: runID, Message: message, Err: err}
}
