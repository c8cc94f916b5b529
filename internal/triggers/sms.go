package triggers

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-automata/internal/event"
	"github.com/nerrad567/gray-logic-automata/internal/step"
)

// Data points produced by SMSTrigger.
var (
	Message = step.Point("message")
	Sender  = step.Point("sender")
)

// SMSTrigger fires on every received text message.
type SMSTrigger struct {
	id uuid.UUID
}

// NewSMSTrigger creates an SMS trigger with the given id.
func NewSMSTrigger(id uuid.UUID) SMSTrigger {
	return SMSTrigger{id: id}
}

func (t SMSTrigger) ID() uuid.UUID               { return t.id }
func (t SMSTrigger) Descriptor() step.Descriptor { return SMSFactory }

// Match accepts event.SMS values.
func (t SMSTrigger) Match(e any) (any, bool) {
	switch v := e.(type) {
	case event.SMS:
		return v, true
	case *event.SMS:
		if v != nil {
			return *v, true
		}
	}
	return nil, false
}

// InitialData extracts the message body and sender.
func (t SMSTrigger) InitialData(input any) step.Data {
	sms, _ := input.(event.SMS)
	return step.NewData(map[step.DataPoint]string{
		Message: sms.Message,
		Sender:  sms.Sender,
	})
}

// Fire always proceeds with the extracted data.
func (t SMSTrigger) Fire(_ context.Context, _ step.Env, data step.Data) (step.Result, error) {
	return step.Proceed{Data: data}, nil
}

// Issues reports a missing SMS receive capability.
func (t SMSTrigger) Issues(env step.Env) []step.Issue {
	if env.Granted(step.CapabilitySMS) {
		return nil
	}
	return []step.Issue{step.MissingCapability(step.CapabilitySMS, "Not receiving SMS messages")}
}

type smsFactory struct{}

// SMSFactory builds and serialises SMSTrigger.
var SMSFactory step.Factory[step.Trigger] = smsFactory{}

func (smsFactory) Name() string          { return "SMS trigger" }
func (smsFactory) Discriminator() string { return "SmsTrigger" }

func (smsFactory) Produces() []step.DataPoint {
	return []step.DataPoint{Message, Sender}
}

func (smsFactory) Dummy() step.Trigger {
	return NewSMSTrigger(uuid.New())
}

func (smsFactory) Encode(s step.Trigger) ([]byte, error) {
	t, ok := s.(SMSTrigger)
	if !ok {
		return nil, step.ErrWrongType
	}
	return json.Marshal(idBody{UUID: t.id.String()})
}

func (smsFactory) Decode(raw []byte) (step.Trigger, error) {
	var body idBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	id, err := step.ParseID(body.UUID)
	if err != nil {
		return nil, err
	}
	return NewSMSTrigger(id), nil
}

// idBody is the JSON layout of a trigger with no settings.
type idBody struct {
	UUID string `json:"uuid"`
}
