package automation

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-automata/internal/step"
)

// Logger defines the logging interface used by the Codec, Store and Engine.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Codec converts automations to and from their persisted JSON form:
//
//	{"uuid": "...", "title": "...", "trigger": {"class": ...}|null, "action": {"class": ...}|null}
//
// A slot whose class is not registered decodes as absent and is logged
// at Warn level.
type Codec struct {
	triggers *step.Registry[step.Trigger]
	actions  *step.Registry[step.Action]
	logger   Logger
}

// NewCodec creates a codec over the given registries.
func NewCodec(triggers *step.Registry[step.Trigger], actions *step.Registry[step.Action]) *Codec {
	return &Codec{triggers: triggers, actions: actions, logger: noopLogger{}}
}

// SetLogger sets the logger for dropped-slot warnings.
func (c *Codec) SetLogger(logger Logger) {
	c.logger = logger
}

// Triggers returns the trigger registry.
func (c *Codec) Triggers() *step.Registry[step.Trigger] { return c.triggers }

// Actions returns the action registry.
func (c *Codec) Actions() *step.Registry[step.Action] { return c.actions }

type wireAutomation struct {
	UUID    string          `json:"uuid"`
	Title   *string         `json:"title,omitempty"`
	Trigger json.RawMessage `json:"trigger"`
	Action  json.RawMessage `json:"action"`
}

var jsonNull = json.RawMessage("null")

// Marshal encodes an automation.
func (c *Codec) Marshal(a Automation) ([]byte, error) {
	w := wireAutomation{UUID: a.ID.String(), Title: &a.Title, Trigger: jsonNull, Action: jsonNull}

	if a.Trigger != nil {
		raw, err := c.triggers.Marshal(a.Trigger)
		if err != nil {
			return nil, fmt.Errorf("encoding trigger of %s: %w", a.ID, err)
		}
		w.Trigger = raw
	}
	if a.Action != nil {
		raw, err := c.actions.Marshal(a.Action)
		if err != nil {
			return nil, fmt.Errorf("encoding action of %s: %w", a.ID, err)
		}
		w.Action = raw
	}

	return json.Marshal(w)
}

// Unmarshal decodes an automation. A missing title becomes UnknownTitle.
func (c *Codec) Unmarshal(raw []byte) (Automation, error) {
	var w wireAutomation
	if err := json.Unmarshal(raw, &w); err != nil {
		return Automation{}, fmt.Errorf("%w: %w", ErrInvalidAutomation, err)
	}

	id, err := uuid.Parse(w.UUID)
	if err != nil {
		return Automation{}, fmt.Errorf("%w: uuid %q", ErrInvalidAutomation, w.UUID)
	}

	a := Automation{ID: id, Title: UnknownTitle}
	if w.Title != nil {
		a.Title = *w.Title
	}

	if present(w.Trigger) {
		t, ok, err := c.triggers.Unmarshal(w.Trigger)
		if err != nil {
			return Automation{}, fmt.Errorf("%w: trigger of %s: %w", ErrInvalidAutomation, id, err)
		}
		if ok {
			a.Trigger = t
		} else {
			c.logger.Warn("dropping trigger with unknown class", "automation", id.String(), "class", className(w.Trigger))
		}
	}

	if present(w.Action) {
		act, ok, err := c.actions.Unmarshal(w.Action)
		if err != nil {
			return Automation{}, fmt.Errorf("%w: action of %s: %w", ErrInvalidAutomation, id, err)
		}
		if ok {
			a.Action = act
		} else {
			c.logger.Warn("dropping action with unknown class", "automation", id.String(), "class", className(w.Action))
		}
	}

	return a, nil
}

// present reports whether a slot holds something other than null.
func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, jsonNull)
}

func className(raw json.RawMessage) string {
	var head struct {
		Class string `json:"class"`
	}
	_ = json.Unmarshal(raw, &head) //nolint:errcheck // only used for the log line
	return head.Class
}
