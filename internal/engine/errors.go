package engine

import (
	"errors"
	"fmt"
)

// ErrInvalidConfig is matched by every configuration error.
var ErrInvalidConfig = errors.New("invalid generator configuration")

// ConfigError reports a configuration problem detected before generation.
//
// Configuration errors are fatal: the generator refuses to start rather
// than produce a partially consistent dataset.
type ConfigError struct {
	// Field names the offending setting (e.g. "days", "weights").
	Field string

	// Message is a human-readable description.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid config: %s: %s: %v", e.Field, e.Message, e.Err)
	}
	return fmt.Sprintf("invalid config: %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying cause.
func (e *ConfigError) Unwrap() error {
	return e.Err
}

// Is makes errors.Is(err, ErrInvalidConfig) true for every ConfigError.
func (e *ConfigError) Is(target error) bool {
	return target == ErrInvalidConfig
}

// IsConfigError returns true if the error is a configuration error.
// Uses errors.As to handle wrapped errors.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

func newConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}
