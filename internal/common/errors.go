package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidInput is matched by every ValidationError.
	ErrInvalidInput = errors.New("invalid input")
	// ErrMissingCredentials means the tracker token is not in the environment.
	ErrMissingCredentials = errors.New("missing credentials")
	// ErrInvalidConfiguration is matched by every ConfigurationError.
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// WrapError prefixes err with message. A nil err stays nil.
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

func WrapErrorf(err error, format string, args ...interface{}) error {
	return WrapError(err, fmt.Sprintf(format, args...))
}

func NewError(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// ValidationError rejects a single named value.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field '%s': %s (value: %v)", e.Field, e.Message, e.Value)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// ConfigurationError lists every rule a loaded config broke.
type ConfigurationError struct {
	Problems []string
}

func NewConfigurationError(problems ...string) *ConfigurationError {
	return &ConfigurationError{Problems: problems}
}

func (e *ConfigurationError) Error() string {
	if len(e.Problems) == 1 {
		return "invalid configuration: " + e.Problems[0]
	}
	return "invalid configuration:\n  " + strings.Join(e.Problems, "\n  ")
}

func (e *ConfigurationError) Unwrap() error {
	return ErrInvalidConfiguration
}

// IsCancellation reports whether err comes from a cancelled or expired context.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// ErrorList gathers independent failures so they can be reported together.
type ErrorList []error

func (l *ErrorList) Add(err error) {
	if err != nil {
		*l = append(*l, err)
	}
}

// Err returns nil, the only error, or one error listing all of them.
// errors.Is and errors.As see every collected error.
func (l ErrorList) Err() error {
	switch len(l) {
	case 0:
		return nil
	case 1:
		return l[0]
	}
	return l
}

func (l ErrorList) Error() string {
	messages := make([]string, len(l))
	for i, err := range l {
		messages[i] = err.Error()
	}
	return fmt.Sprintf("%d problems: %s", len(l), strings.Join(messages, "; "))
}

func (l ErrorList) Unwrap() []error {
	return l
}
