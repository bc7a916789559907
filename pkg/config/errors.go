package config

import "fmt"

// ConfigError represents a configuration resolution or validation error.
// Field carries the dotted path of the offending key when one is known.
type ConfigError struct {
	Message string
	Field   string
	Err     error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	msg := e.Message
	if e.Field != "" {
		msg = fmt.Sprintf("%s (at %s)", e.Message, e.Field)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying error.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new configuration error.
func NewConfigError(message, field string, err error) *ConfigError {
	return &ConfigError{
		Message: message,
		Field:   field,
		Err:     err,
	}
}
