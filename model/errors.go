package model

import (
	"errors"
	"fmt"
)

// ErrConcurrencyConflict marks a mutation that lost a lock race. The caller
// is expected to retry the whole compound operation.
var ErrConcurrencyConflict = errors.New("concurrent modification conflict")

// ErrNotFound marks a lookup of a transfer request that does not exist.
var ErrNotFound = errors.New("transfer request not found")

// InsufficientStockError is returned when a reservation or adjustment would
// leave less stock than is already reserved.
type InsufficientStockError struct {
	LocationID int64
	ItemID     int64
	Requested  int
	Available  int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for item %d at location %d: requested %d, available %d",
		e.ItemID, e.LocationID, e.Requested, e.Available)
}

// OverReleaseError is returned when a release exceeds the reserved quantity.
type OverReleaseError struct {
	LocationID int64
	ItemID     int64
	Requested  int
	Reserved   int
}

func (e *OverReleaseError) Error() string {
	return fmt.Sprintf("over-release for item %d at location %d: requested %d, reserved %d",
		e.ItemID, e.LocationID, e.Requested, e.Reserved)
}

// InvalidTransitionError is returned when a workflow operation would move a
// request along an edge missing from the transition table.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition: %s -> %s", e.From, e.To)
}

// ValidationError is returned for malformed input, before any mutation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return "validation: " + e.Message
}
