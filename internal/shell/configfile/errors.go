package configfile

import (
	"errors"
	"fmt"
)

// =============================================================================
// Error Types
// =============================================================================

var (
	// ErrSourceNotFound indicates a required configuration document is missing.
	ErrSourceNotFound = errors.New("configuration source not found")

	// ErrParse indicates a configuration document has malformed syntax.
	ErrParse = errors.New("configuration parse error")

	// ErrNotMapping indicates a document's top level is not a mapping.
	ErrNotMapping = errors.New("configuration document is not a mapping")
)

// SourceError wraps loader errors with the source file they came from.
type SourceError struct {
	Source  string // file path of the offending document
	Message string
	Err     error
}

func (e *SourceError) Error() string {
	if e.Source != "" {
		return fmt.Sprintf("%s: %s", e.Source, e.Message)
	}
	return e.Message
}

func (e *SourceError) Unwrap() error {
	return e.Err
}

// NewSourceError creates a new SourceError.
func NewSourceError(source, message string, err error) *SourceError {
	return &SourceError{
		Source:  source,
		Message: message,
		Err:     err,
	}
}
