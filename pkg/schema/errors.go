package schema

import (
	"fmt"
	"strings"
)

// SchemaError represents a schema-related error.
type SchemaError struct {
	Message string
	Code    string
	Err     error
}

// Error implements the error interface.
func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *SchemaError) Unwrap() error {
	return e.Err
}

// NewSchemaError creates a new schema error.
func NewSchemaError(message, code string, err error) *SchemaError {
	return &SchemaError{
		Message: message,
		Code:    code,
		Err:     err,
	}
}

// ValidationFailedError creates an error summarizing validation failures.
// Every failing path is listed so a misconfigured run names all problems
// at once instead of one per attempt.
func ValidationFailedError(section string, errors []ValidationError) *SchemaError {
	details := make([]string, len(errors))
	for i, e := range errors {
		details[i] = fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return &SchemaError{
		Message: fmt.Sprintf("section '%s' failed validation: %s", section, strings.Join(details, "; ")),
		Code:    "VALIDATION_FAILED",
	}
}
