// Package errors provides consolidated error definitions for sophoset.
//
// It defines sentinel errors for every failure condition in the
// normalization engine, category checking helpers, and wrapping
// utilities used across all packages.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ============================================================================
// Sentinel errors
// ============================================================================

var (
	// Row-level, recoverable. These never escalate past the extraction
	// pipeline: the row is skipped, the failure count incremented.
	ErrTooManyOptions   = errors.New("too many options")
	ErrMalformedOptions = errors.New("malformed options")
	ErrRowFailed        = errors.New("row extraction failed")

	// Partition-level.
	ErrUnknownPartition = errors.New("unknown partition")
	ErrNoTableLoaded    = errors.New("no row table loaded")
	ErrIndexOutOfRange  = errors.New("row index out of range")

	// Address-level.
	ErrInvalidPartitionName = errors.New("invalid partition name")
	ErrInvalidKey           = errors.New("invalid key")

	// Storage-level.
	ErrNotFound      = errors.New("key not found")
	ErrStorageClosed = errors.New("storage is closed")
	ErrNotWritable   = errors.New("destination not writable")
	ErrCorruptRecord = errors.New("corrupt record")

	// Validation / configuration.
	ErrInvalidName   = errors.New("invalid name")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrMissingField  = errors.New("missing required field")

	// Registry.
	ErrUnknownSource = errors.New("unknown source")
)

// ============================================================================
// Helper functions for error checking
// ============================================================================

// Is is a convenience wrapper for errors.Is
var Is = errors.Is

// As is a convenience wrapper for errors.As
var As = errors.As

// IsRowError returns true if err is a recoverable row-level condition.
// Row errors skip the row; they must never abort a partition.
func IsRowError(err error) bool {
	return errors.Is(err, ErrTooManyOptions) ||
		errors.Is(err, ErrMalformedOptions) ||
		errors.Is(err, ErrRowFailed)
}

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrUnknownPartition) ||
		errors.Is(err, ErrUnknownSource)
}

// IsValidation returns true if err is a validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidName) ||
		errors.Is(err, ErrInvalidPartitionName) ||
		errors.Is(err, ErrInvalidKey) ||
		errors.Is(err, ErrInvalidConfig) ||
		errors.Is(err, ErrMissingField)
}

// IsStorageError returns true if err is a storage-level error.
func IsStorageError(err error) bool {
	return errors.Is(err, ErrStorageClosed) ||
		errors.Is(err, ErrNotWritable) ||
		errors.Is(err, ErrCorruptRecord)
}

// ============================================================================
// Error wrapping utilities
// ============================================================================

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// ============================================================================
// Error constructors with context
// ============================================================================

// NewNotFound creates a not-found error with context.
func NewNotFound(entityType, identifier string) error {
	return fmt.Errorf("%s '%s': %w", entityType, identifier, ErrNotFound)
}

// NewValidation creates a validation error with context.
func NewValidation(field, reason string) error {
	return fmt.Errorf("invalid %s: %s: %w", field, reason, ErrInvalidConfig)
}

// NewMissingField creates a missing field error.
func NewMissingField(field string) error {
	return fmt.Errorf("%s: %w", field, ErrMissingField)
}

// NewInvalidPartitionName creates an address-level error for a subset or
// split name that cannot participate in key addressing.
func NewInvalidPartitionName(field, name, reason string) error {
	return fmt.Errorf("%s '%s': %s: %w", field, name, reason, ErrInvalidPartitionName)
}

// UnknownPartitionError reports a (subset, split) request that does not
// match discovery results. It carries the list of valid pairs so the
// caller can reproduce and correct the request.
type UnknownPartitionError struct {
	Subset string
	Split  string
	Valid  []string // "subset/split" pairs in discovery order
}

// Error implements the error interface.
func (e *UnknownPartitionError) Error() string {
	return fmt.Sprintf("partition %s/%s not found; valid partitions: [%s]",
		e.Subset, e.Split, strings.Join(e.Valid, ", "))
}

// Unwrap allows errors.Is(err, ErrUnknownPartition).
func (e *UnknownPartitionError) Unwrap() error {
	return ErrUnknownPartition
}

// NewUnknownPartition creates an UnknownPartitionError.
func NewUnknownPartition(subset, split string, valid []string) error {
	return &UnknownPartitionError{Subset: subset, Split: split, Valid: valid}
}

// RowError reports a single failed row with enough context to reproduce.
type RowError struct {
	Subset string
	Split  string
	Index  int
	Err    error
}

// Error implements the error interface.
func (e *RowError) Error() string {
	return fmt.Sprintf("row %d in %s/%s: %v", e.Index, e.Subset, e.Split, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RowError) Unwrap() error {
	return e.Err
}

// NewRowError creates a RowError wrapping the cause.
func NewRowError(subset, split string, index int, cause error) error {
	if cause == nil {
		cause = ErrRowFailed
	}
	return &RowError{Subset: subset, Split: split, Index: index, Err: cause}
}
