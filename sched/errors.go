package sched

import (
	"fmt"

	"github.com/pkg/errors"
)

// InvalidConfigurationError reports a JobConfig or TaskConfig that
// failed validation before ever reaching the state manager. Field
// names the offending attribute so callers can build actionable
// messages without parsing Reason.
type InvalidConfigurationError struct {
	Field  string
	Reason string
}

func (e *InvalidConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// NewInvalidConfigurationError builds an InvalidConfigurationError and
// wraps it with a stack trace via github.com/pkg/errors, matching the
// error-wrapping convention used across the state manager and
// scheduler core.
func NewInvalidConfigurationError(field, reason string) error {
	return errors.WithStack(&InvalidConfigurationError{Field: field, Reason: reason})
}

// ScheduleException is returned by SchedulerCore operations that
// reject a request for logical reasons unrelated to configuration
// shape: unknown job, update-token mismatch, invariant violation.
type ScheduleException struct {
	Op     string
	Reason string
}

func (e *ScheduleException) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

// NewScheduleException builds a ScheduleException for operation op and
// wraps it with a stack trace.
func NewScheduleException(op, reason string) error {
	return errors.WithStack(&ScheduleException{Op: op, Reason: reason})
}

// StorageException wraps a failure surfaced by the TaskStore -- a
// transaction that could not be committed, or a snapshot read that
// found the store in an unexpected state.
type StorageException struct {
	Op    string
	cause error
}

func (e *StorageException) Error() string {
	return fmt.Sprintf("storage error during %s: %s", e.Op, e.cause)
}

// StoreError returns the underlying failure the TaskStore reported.
// It deliberately does not satisfy pkg/errors' Causer interface, so
// errors.Cause stops at the StorageException itself, the way
// IsInvalidConfiguration/IsScheduleException expect to match their
// own sentinel types.
func (e *StorageException) StoreError() error {
	return e.cause
}

// WrapStorageException wraps cause as a StorageException for op and
// attaches a stack trace, matching NewInvalidConfigurationError/
// NewScheduleException's convention.
func WrapStorageException(op string, cause error) error {
	if cause == nil {
		return nil
	}
	return errors.WithStack(&StorageException{Op: op, cause: cause})
}

// IsStorageException reports whether err is, or wraps, a
// StorageException.
func IsStorageException(err error) bool {
	_, ok := errors.Cause(err).(*StorageException)
	return ok
}

// IsInvalidConfiguration reports whether err is, or wraps, an
// InvalidConfigurationError.
func IsInvalidConfiguration(err error) bool {
	_, ok := errors.Cause(err).(*InvalidConfigurationError)
	return ok
}

// IsScheduleException reports whether err is, or wraps, a
// ScheduleException.
func IsScheduleException(err error) bool {
	_, ok := errors.Cause(err).(*ScheduleException)
	return ok
}
