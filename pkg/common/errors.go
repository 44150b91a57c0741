package common

import (
	"errors"
	"fmt"
)

// GraphErrorCode classifies failures across the ingest, query, and edit paths.
type GraphErrorCode string

const (
	ErrCodeMalformedExtraction GraphErrorCode = "MALFORMED_EXTRACTION"
	ErrCodeValidation          GraphErrorCode = "VALIDATION"
	ErrCodeConflict            GraphErrorCode = "CONFLICT"
	ErrCodeNotFound            GraphErrorCode = "NOT_FOUND"
	ErrCodePersistence         GraphErrorCode = "PERSISTENCE"
)

// GraphError is the structured error type shared by the normalizer, the
// graph store, the builder, and the edit controller.
//
// Errors compare by code via errors.Is, so callers can match against the
// sentinel constructors without caring about message or cause:
//
//	if errors.Is(err, common.ErrConflict()) { ... }
type GraphError struct {
	Code    GraphErrorCode
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is / errors.As chains.
func (e *GraphError) Unwrap() error {
	return e.Cause
}

// Is matches GraphErrors by code.
func (e *GraphError) Is(target error) bool {
	var ge *GraphError
	if errors.As(target, &ge) {
		return e.Code == ge.Code
	}
	return false
}

// WithCause attaches an underlying error and returns the error for chaining.
func (e *GraphError) WithCause(cause error) *GraphError {
	e.Cause = cause
	return e
}

// NewMalformedExtractionError reports an extraction record that cannot be
// normalized. The record is skipped and reported, never fatal to its batch.
func NewMalformedExtractionError(format string, args ...any) *GraphError {
	return &GraphError{Code: ErrCodeMalformedExtraction, Message: fmt.Sprintf(format, args...)}
}

// NewValidationError reports a commit-time invariant violation. The whole
// batch is rejected and the graph is left exactly as it was.
func NewValidationError(format string, args ...any) *GraphError {
	return &GraphError{Code: ErrCodeValidation, Message: fmt.Sprintf(format, args...)}
}

// NewConflictError reports an optimistic revision mismatch; the caller must
// re-read and retry.
func NewConflictError(expected, current uint64) *GraphError {
	return &GraphError{
		Code:    ErrCodeConflict,
		Message: fmt.Sprintf("expected revision %d, store is at %d", expected, current),
	}
}

// NewNotFoundError reports an operation targeting a nonexistent node or edge.
func NewNotFoundError(format string, args ...any) *GraphError {
	return &GraphError{Code: ErrCodeNotFound, Message: fmt.Sprintf(format, args...)}
}

// NewPersistenceError reports a failed durable write. In-memory state remains
// valid; the write is retried with backoff.
func NewPersistenceError(message string, cause error) *GraphError {
	return &GraphError{Code: ErrCodePersistence, Message: message, Cause: cause}
}

// Sentinels for errors.Is matching by code.

func ErrMalformedExtraction() error { return &GraphError{Code: ErrCodeMalformedExtraction} }
func ErrValidation() error          { return &GraphError{Code: ErrCodeValidation} }
func ErrConflict() error            { return &GraphError{Code: ErrCodeConflict} }
func ErrNotFound() error            { return &GraphError{Code: ErrCodeNotFound} }
func ErrPersistence() error         { return &GraphError{Code: ErrCodePersistence} }
