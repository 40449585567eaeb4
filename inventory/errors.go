/*
errors.go - Centralized error types for the inventory engine

PURPOSE:
  All error kinds in one place. Stores and services wrap the sentinels with
  structured context; the API layer maps them to HTTP statuses with errors.Is.

ERROR CATEGORIES:
  1. Lookup errors      - missing fabrics, variants, movements
  2. Uniqueness errors  - duplicate codes, double reversals
  3. Validation errors  - bad units, malformed input, oversized batches

SEE ALSO:
  - units.go:   raises InvalidUnitError
  - ledger.go:  raises reversal and input errors
  - api/handlers.go: maps these to HTTP statuses
*/
package inventory

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrNotFound is returned when a referenced fabric, variant or movement
	// does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a create or rename collides with an
	// existing business code.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrInvalidUnit is returned for any unit outside the closed {"m","roll"}
	// set. Unknown units never pass through unconverted.
	ErrInvalidUnit = errors.New("invalid unit")

	// ErrInvalidInput is returned for malformed quantities, unknown movement
	// kinds and other bad request payloads.
	ErrInvalidInput = errors.New("invalid input")

	// ErrBatchTooLarge is returned when a batch exceeds its size cap. The
	// whole batch is rejected before any item is processed.
	ErrBatchTooLarge = errors.New("batch too large")

	// ErrAlreadyReversed is returned when cancelling a movement that already
	// has a reversal, or when trying to cancel a reversal itself.
	ErrAlreadyReversed = errors.New("movement already reversed")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// NotFoundError identifies which entity was missing.
type NotFoundError struct {
	Entity string // "fabric", "variant", "movement"
	Key    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Entity, e.Key)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// DuplicateKeyError identifies the colliding business code.
type DuplicateKeyError struct {
	Entity string
	Key    string
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("%s %q already exists", e.Entity, e.Key)
}

func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }

// InvalidUnitError carries the rejected unit.
type InvalidUnitError struct {
	Unit Unit
}

func (e *InvalidUnitError) Error() string {
	return fmt.Sprintf("invalid unit %q (must be \"m\" or \"roll\")", string(e.Unit))
}

func (e *InvalidUnitError) Unwrap() error { return ErrInvalidUnit }

// InvalidInputError carries the offending field.
type InvalidInputError struct {
	Field  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *InvalidInputError) Unwrap() error { return ErrInvalidInput }

// BatchTooLargeError carries the cap that was exceeded.
type BatchTooLargeError struct {
	Size  int
	Limit int
}

func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("batch of %d items exceeds limit of %d", e.Size, e.Limit)
}

func (e *BatchTooLargeError) Unwrap() error { return ErrBatchTooLarge }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict returns true for uniqueness and reversal conflicts.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateKey) || errors.Is(err, ErrAlreadyReversed)
}

// IsClientError returns true if the error is due to invalid client input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidUnit) ||
		errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrBatchTooLarge)
}
