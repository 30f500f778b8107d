package config

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// Schema validation errors
	ErrSchemaViolation      = errors.New("schema violation")
	ErrUnknownField         = errors.New("unknown field")
	ErrMissingRequiredField = errors.New("missing required field")

	// Resolution errors
	ErrInconsistentConfig = errors.New("inconsistent configuration")
	ErrUnknownEnvironment = errors.New("environment not defined")
	ErrUnknownStackType   = errors.New("stack type not defined")
	ErrPresetCycle        = errors.New("stack preset inheritance cycle")
)

// SchemaError wraps validation errors with the offending configuration path.
type SchemaError struct {
	Path     string // dotted path, e.g. "environments.dev.settings.scaling.max_tasks"
	Expected string // what the schema expected at that path
	Err      error
}

func (e *SchemaError) Error() string {
	if e.Expected != "" {
		return fmt.Sprintf("%s: %s (expected %s)", e.Path, e.Err, e.Expected)
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Err)
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

// NewSchemaError creates a new SchemaError.
func NewSchemaError(path, expected string, err error) *SchemaError {
	return &SchemaError{
		Path:     path,
		Expected: expected,
		Err:      err,
	}
}
