package automation

import (
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-automata/internal/step"
)

// Titles used when none is given.
const (
	DefaultTitle = "New Automation"
	UnknownTitle = "N/A"
)

// Automation pairs one trigger with one action. Either slot may be nil
// while the user is still building it.
//
// Automations are values: the With methods return modified copies and
// the store only ever installs whole values.
type Automation struct {
	ID      uuid.UUID
	Title   string
	Trigger step.Trigger
	Action  step.Action
}

// New returns an empty automation with a fresh id.
func New() Automation {
	return Automation{ID: uuid.New(), Title: DefaultTitle}
}

// WithTitle returns a copy with the title replaced.
func (a Automation) WithTitle(title string) Automation {
	a.Title = title
	return a
}

// WithTrigger returns a copy with the trigger replaced. Nil clears it.
func (a Automation) WithTrigger(t step.Trigger) Automation {
	a.Trigger = t
	return a
}

// WithAction returns a copy with the action replaced. Nil clears it.
func (a Automation) WithAction(act step.Action) Automation {
	a.Action = act
	return a
}

// Issues lists everything that keeps the automation from running:
// a missing slot, then the trigger's and the action's own issues.
// It is evaluated against the live environment on every call.
func (a Automation) Issues(env step.Env) []step.Issue {
	var issues []step.Issue
	if a.Trigger == nil {
		issues = append(issues, step.Issue{Code: "missing_trigger", Message: "No trigger configured"})
	} else {
		issues = append(issues, a.Trigger.Issues(env)...)
	}
	if a.Action == nil {
		issues = append(issues, step.Issue{Code: "missing_action", Message: "No action configured"})
	} else {
		issues = append(issues, a.Action.Issues(env)...)
	}
	return issues
}

// IsReady reports whether both slots are set and neither step has issues.
func (a Automation) IsReady(env step.Env) bool {
	if a.Trigger == nil || a.Action == nil {
		return false
	}
	return len(a.Trigger.Issues(env)) == 0 && len(a.Action.Issues(env)) == 0
}
