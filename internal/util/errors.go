package util

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Common error types for the sfs CLI
var (
	// ErrInvalidConfig indicates a configuration error
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrBackendUnavailable indicates the execution backend cannot accept work
	ErrBackendUnavailable = errors.New("backend unavailable")

	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("operation timed out")

	// ErrCancelled indicates an operation was cancelled
	ErrCancelled = errors.New("operation cancelled")

	// ErrInconsistent indicates an aggregation invariant was violated
	ErrInconsistent = errors.New("aggregation inconsistency")

	// ErrInvalidDataset indicates the input dataset failed validation
	ErrInvalidDataset = errors.New("invalid dataset")

	// ErrShutdown indicates the system is shutting down
	ErrShutdown = errors.New("system shutting down")
)

// SubmissionError reports a unit the backend refused before execution started.
// It is fatal to the whole Map call.
type SubmissionError struct {
	Backend string
	Key     string
	Err     error
}

// Error implements the error interface
func (e *SubmissionError) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("submit to %s backend: %v", e.Backend, e.Err)
	}
	return fmt.Sprintf("submit %s to %s backend: %v", e.Key, e.Backend, e.Err)
}

// Unwrap returns the wrapped error for errors.Is/As compatibility
func (e *SubmissionError) Unwrap() error {
	return e.Err
}

// NewSubmissionError wraps err as a submission failure
func NewSubmissionError(backend, key string, err error) error {
	if err == nil {
		return nil
	}
	return &SubmissionError{Backend: backend, Key: key, Err: err}
}

// UnitError wraps an error with the group key of the unit that produced it
type UnitError struct {
	Key      string
	Attempts int
	Err      error
}

// Error implements the error interface
func (e *UnitError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("group %q (after %d attempts): %v", e.Key, e.Attempts, e.Err)
	}
	return fmt.Sprintf("group %q: %v", e.Key, e.Err)
}

// Unwrap returns the wrapped error for errors.Is/As compatibility
func (e *UnitError) Unwrap() error {
	return e.Err
}

// WrapUnitError wraps an error with group context
func WrapUnitError(key string, attempts int, err error) error {
	if err == nil {
		return nil
	}
	var unitErr *UnitError
	if errors.As(err, &unitErr) && unitErr.Key == key {
		return err
	}
	return &UnitError{
		Key:      key,
		Attempts: attempts,
		Err:      err,
	}
}

// MultiError aggregates multiple errors
type MultiError struct {
	Errors []error
}

// Error implements the error interface
func (m *MultiError) Error() string {
	if len(m.Errors) == 0 {
		return "no errors"
	}
	if len(m.Errors) == 1 {
		return m.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:", len(m.Errors)))
	for i, err := range m.Errors {
		if i < 10 { // Limit to first 10 errors in the message
			sb.WriteString(fmt.Sprintf("\n  %d. %v", i+1, err))
		} else if i == 10 {
			sb.WriteString(fmt.Sprintf("\n  ... and %d more errors", len(m.Errors)-10))
			break
		}
	}
	return sb.String()
}

// Unwrap returns the errors for errors.Is/As compatibility
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

// Add adds an error to the multi-error
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// Len returns the number of collected errors
func (m *MultiError) Len() int {
	return len(m.Errors)
}

// ErrorOrNil returns nil if no errors were added, otherwise returns the MultiError
func (m *MultiError) ErrorOrNil() error {
	if len(m.Errors) == 0 {
		return nil
	}
	return m
}

// NewMultiError creates a new MultiError from a slice of errors
// It filters out nil errors
func NewMultiError(errors []error) *MultiError {
	m := &MultiError{
		Errors: make([]error, 0, len(errors)),
	}
	for _, err := range errors {
		if err != nil {
			m.Errors = append(m.Errors, err)
		}
	}
	return m
}

// ValidationError represents a validation failure
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (v *ValidationError) Error() string {
	if v.Value != nil {
		return fmt.Sprintf("validation failed for field %q (value: %v): %s", v.Field, v.Value, v.Message)
	}
	return fmt.Sprintf("validation failed for field %q: %s", v.Field, v.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// InconsistencyError reports a broken aggregation invariant.
// It is never corrected silently.
type InconsistencyError struct {
	Detail string
}

// Error implements the error interface
func (e *InconsistencyError) Error() string {
	return fmt.Sprintf("%v: %s", ErrInconsistent, e.Detail)
}

// Is matches ErrInconsistent
func (e *InconsistencyError) Is(target error) bool {
	return target == ErrInconsistent
}

// NewInconsistencyError creates an inconsistency error with a formatted detail
func NewInconsistencyError(format string, args ...interface{}) *InconsistencyError {
	return &InconsistencyError{Detail: fmt.Sprintf(format, args...)}
}

// TransientError wraps an invocation error that should be retried
type TransientError struct {
	Err        error
	RetryAfter time.Duration
}

// Error implements the error interface
func (r *TransientError) Error() string {
	if r.RetryAfter > 0 {
		return fmt.Sprintf("transient error (retry after %s): %v", r.RetryAfter, r.Err)
	}
	return fmt.Sprintf("transient error: %v", r.Err)
}

// Unwrap returns the wrapped error
func (r *TransientError) Unwrap() error {
	return r.Err
}

// NewTransientError creates a new transient error
func NewTransientError(err error, retryAfter time.Duration) *TransientError {
	return &TransientError{
		Err:        err,
		RetryAfter: retryAfter,
	}
}

// IsTransient checks if an error should be retried
func IsTransient(err error) bool {
	var transientErr *TransientError
	return errors.As(err, &transientErr)
}

// IsTimeout checks if an error is a timeout error
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsCancelled checks if an error is a cancellation error
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled) || errors.Is(err, context.Canceled)
}

// IsSubmission checks if an error is a submission error
func IsSubmission(err error) bool {
	var subErr *SubmissionError
	return errors.As(err, &subErr)
}

// IsInconsistent checks if an error is an aggregation inconsistency
func IsInconsistent(err error) bool {
	return errors.Is(err, ErrInconsistent)
}

// FriendlyError converts technical errors to user-friendly messages
func FriendlyError(err error) string {
	if err == nil {
		return ""
	}

	switch {
	case IsTimeout(err):
		return "Operation timed out. Please try again or increase the timeout value with --timeout flag."
	case IsCancelled(err):
		return "Operation was cancelled."
	case errors.Is(err, ErrBackendUnavailable) || IsSubmission(err):
		return "The execution backend rejected the batch. Check the remote function name, region and credentials, or use --backend local."
	case IsInconsistent(err):
		return "Results failed an internal consistency check. This is a bug; please report it with the run id."
	case errors.Is(err, ErrInvalidDataset):
		return "The dataset is invalid. It needs timestamp, channel, family, item_id and demand columns."
	case errors.Is(err, ErrInvalidConfig):
		return "Invalid configuration. Please check your config file and command-line flags."
	default:
		return err.Error()
	}
}

// CombineErrors combines multiple errors into a single error
// Returns nil if all errors are nil
func CombineErrors(errors ...error) error {
	m := NewMultiError(errors)
	return m.ErrorOrNil()
}

// WrapErrorf wraps an error with a formatted message
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}
