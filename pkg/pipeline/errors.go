package pipeline

import (
	"errors"
	"fmt"
	"os"
)

// ProcessingError reports a problem with a single item. Pipelines log
// it as a warning and drop the item instead of failing the run.
type ProcessingError struct {
	ID      string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	msg := e.Message
	if e.ID != "" {
		msg = fmt.Sprintf("item %s: %s", e.ID, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// NewProcessingError creates a new per-item error.
func NewProcessingError(id, message string, err error) *ProcessingError {
	return &ProcessingError{ID: id, Message: message, Err: err}
}

// IsProcessingError reports whether err is a per-item error that should
// be skipped rather than aborting the run.
func IsProcessingError(err error) bool {
	var pe *ProcessingError
	return errors.As(err, &pe)
}

// MissingShardError reports a merge attempted over an incomplete set of
// shard outputs. The merged artifact is not produced and the run stays
// incomplete.
type MissingShardError struct {
	Path string
}

// Error implements the error interface.
func (e *MissingShardError) Error() string {
	return fmt.Sprintf("missing shard output: %s", e.Path)
}

// CheckShards verifies that every expected shard file exists before a
// merge starts.
func CheckShards(paths []string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			return &MissingShardError{Path: path}
		}
	}
	return nil
}
