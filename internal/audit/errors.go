package audit

import "errors"

// Sentinel errors for audit operations.
var (
	// ErrEntryNotFound is returned when no entry has the requested id.
	ErrEntryNotFound = errors.New("audit: entry not found")

	// ErrInsert wraps every failed write. Callers use it to tell a lost
	// execution record apart from a step failure.
	ErrInsert = errors.New("audit: insert failed")

	// ErrInvalidState is returned for a state outside DONE, ERROR, SKIPPED.
	ErrInvalidState = errors.New("audit: invalid state")
)
