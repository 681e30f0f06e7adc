package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFilterField signals an unknown or non-filterable structured field.
	ErrInvalidFilterField = errors.New("invalid filter field")
	// ErrInvalidFilterValue signals a condition value that cannot be aliased or coerced.
	ErrInvalidFilterValue = errors.New("invalid filter value")
	// ErrInvalidIntent signals a malformed query intent.
	ErrInvalidIntent = errors.New("invalid query intent")

	// ErrStoreUnavailable signals a relational or vector store failure (connection, timeout).
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrEmbeddingFailure signals an embedding provider failure.
	ErrEmbeddingFailure = errors.New("embedding failure")
	// ErrEmbeddingQuotaExceeded signals that the embedding token budget rejected a request.
	ErrEmbeddingQuotaExceeded = errors.New("embedding token budget exceeded")
	// ErrReloadFailure signals that new engine handles could not be built.
	ErrReloadFailure = errors.New("engine reload failed")

	// ErrPartialRecordMismatch tags identifiers dropped because a store had no row for them.
	// It is logged, never returned to callers.
	ErrPartialRecordMismatch = errors.New("partial record mismatch")
)

// FilterError carries field-level detail for a rejected structured condition.
type FilterError struct {
	Field  string
	Value  string
	Reason string
	Err    error // ErrInvalidFilterField or ErrInvalidFilterValue
}

func (e *FilterError) Error() string {
	if e.Value == "" {
		return fmt.Sprintf("%s %q: %s", e.Err.Error(), e.Field, e.Reason)
	}
	return fmt.Sprintf("%s %q=%q: %s", e.Err.Error(), e.Field, e.Value, e.Reason)
}

func (e *FilterError) Unwrap() error { return e.Err }

// NewInvalidField creates a field-level error for an unknown field.
func NewInvalidField(field, reason string) error {
	return &FilterError{Field: field, Reason: reason, Err: ErrInvalidFilterField}
}

// NewInvalidValue creates a field-level error for a value that cannot be mapped.
func NewInvalidValue(field, value, reason string) error {
	return &FilterError{Field: field, Value: value, Reason: reason, Err: ErrInvalidFilterValue}
}
