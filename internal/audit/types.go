package audit

import (
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-automata/internal/step"
)

// State is the final outcome of a run.
type State string

// Run states.
const (
	StateDone    State = "DONE"
	StateError   State = "ERROR"
	StateSkipped State = "SKIPPED"
)

// Valid reports whether s is one of the three run states.
func (s State) Valid() bool {
	switch s {
	case StateDone, StateError, StateSkipped:
		return true
	}
	return false
}

// Entry is one recorded run attempt.
type Entry struct {
	ID         int64     `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	Automation uuid.UUID `json:"automation"`
	State      State     `json:"state"`
	Data       step.Data `json:"data"`
	Error      *string   `json:"error,omitempty"`
}

// ErrorMessage returns the error text, or "" when there is none.
func (e Entry) ErrorMessage() string {
	if e.Error == nil {
		return ""
	}
	return *e.Error
}

// Filter controls which entries List returns.
type Filter struct {
	Automation uuid.UUID // optional: uuid.Nil for all automations
	State      State     // optional
	Limit      int       // default 50, max 200
	Offset     int       // pagination offset
}

// ListResult is one page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}
