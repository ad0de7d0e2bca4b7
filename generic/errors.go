/*
errors.go - Centralized error types for the engine

PURPOSE:
  All sentinel errors in one place for consistency and discoverability.
  Domain packages wrap these errors with additional context.

ERROR CATEGORIES:
  1. Persistence errors - writes that could not be committed
  2. Lookup errors - referenced configuration or people that do not exist
  3. Validation errors - malformed input

USAGE:
  if errors.Is(err, generic.ErrCalendarNotFound) {
      // treat as a schedule without fixed hours
  }

SEE ALSO:
  - attendance/errors.go: CommitError and DryRunNotice wrap these
*/
package generic

import (
	"errors"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrTransactionFailed is returned when a batch of writes cannot be persisted.
	ErrTransactionFailed = errors.New("transaction failed")

	// ErrDuplicateCorrection is returned when a second correction would be
	// created for an (employee, day) pair that already has one.
	ErrDuplicateCorrection = errors.New("correction already exists for employee and day")

	// ErrEmployeeNotFound is returned when a referenced employee doesn't exist.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrCalendarNotFound is returned when a referenced working schedule doesn't exist.
	ErrCalendarNotFound = errors.New("calendar not found")

	// ErrCorrectionNotFound is returned when updating a correction that is gone.
	ErrCorrectionNotFound = errors.New("correction not found")

	// ErrInvalidPeriod is returned when a period is malformed (end before start).
	ErrInvalidPeriod = errors.New("invalid period: end before start")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrEmployeeNotFound) ||
		errors.Is(err, ErrCalendarNotFound) ||
		errors.Is(err, ErrCorrectionNotFound)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidPeriod)
}
