package automation

import "errors"

// Domain errors for the automation package.
//
//	if errors.Is(err, automation.ErrAutomationNotFound) {
//	    // handle not found case
//	}
var (
	// ErrAutomationNotFound is returned when no automation has the id.
	ErrAutomationNotFound = errors.New("automation: not found")

	// ErrDuplicateID is returned when appending an id already in the store.
	ErrDuplicateID = errors.New("automation: duplicate id")

	// ErrInvalidAutomation is returned for JSON that cannot be decoded.
	ErrInvalidAutomation = errors.New("automation: invalid")

	// ErrPersistence marks a failed durable write: a store write-back or
	// an audit insert. It signals a lost record, not a step failure.
	ErrPersistence = errors.New("automation: persistence failed")

	// ErrStoreClosed is returned for mutations after Close.
	ErrStoreClosed = errors.New("automation: store closed")
)
