package triggers

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-automata/internal/event"
	"github.com/nerrad567/gray-logic-automata/internal/step"
)

// Data points produced by DeviceStateTrigger.
var (
	DeviceID = step.Point("device_id")
	Protocol = step.Point("protocol")
	State    = step.Point("state")
	Value    = step.Point("value")
)

// DeviceStateTrigger fires on bridge state updates for one device, or any
// device when DeviceID is empty. When Field is set the trigger only
// proceeds if the update carries that state field, whose value is
// exposed as the "value" data point.
type DeviceStateTrigger struct {
	id       uuid.UUID
	deviceID string
	field    string
}

// NewDeviceStateTrigger creates a device state trigger.
func NewDeviceStateTrigger(id uuid.UUID, deviceID, field string) DeviceStateTrigger {
	return DeviceStateTrigger{id: id, deviceID: deviceID, field: field}
}

func (t DeviceStateTrigger) ID() uuid.UUID               { return t.id }
func (t DeviceStateTrigger) Descriptor() step.Descriptor { return DeviceStateFactory }

// DeviceID returns the device filter.
func (t DeviceStateTrigger) DeviceID() string { return t.deviceID }

// Field returns the state field filter.
func (t DeviceStateTrigger) Field() string { return t.field }

// Match accepts event.DeviceState values for the configured device.
func (t DeviceStateTrigger) Match(e any) (any, bool) {
	var ds event.DeviceState
	switch v := e.(type) {
	case event.DeviceState:
		ds = v
	case *event.DeviceState:
		if v == nil {
			return nil, false
		}
		ds = *v
	default:
		return nil, false
	}

	if t.deviceID != "" && ds.DeviceID != t.deviceID {
		return nil, false
	}
	return ds, true
}

// InitialData extracts the device id, protocol and the full state as JSON.
func (t DeviceStateTrigger) InitialData(input any) step.Data {
	ds, _ := input.(event.DeviceState)

	values := map[step.DataPoint]string{
		DeviceID: ds.DeviceID,
		Protocol: ds.Protocol,
	}
	if stateJSON, err := json.Marshal(ds.State); err == nil {
		values[State] = string(stateJSON)
	}
	if t.field != "" {
		if v, ok := ds.State[t.field]; ok {
			values[Value] = formatValue(v)
		}
	}
	return step.NewData(values)
}

// Fire skips when a field filter is set and the update lacks it.
func (t DeviceStateTrigger) Fire(_ context.Context, _ step.Env, data step.Data) (step.Result, error) {
	if t.field != "" {
		if _, ok := data.Get(Value); !ok {
			return step.Skipped{}, nil
		}
	}
	return step.Proceed{Data: data}, nil
}

// Issues reports when no bridge state subscription is active.
func (t DeviceStateTrigger) Issues(env step.Env) []step.Issue {
	if env.Granted(step.CapabilityDeviceState) {
		return nil
	}
	return []step.Issue{step.MissingCapability(step.CapabilityDeviceState, "Not subscribed to device state updates")}
}

// formatValue renders a decoded JSON state value as a string.
func formatValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}

type deviceStateFactory struct{}

// DeviceStateFactory builds and serialises DeviceStateTrigger.
var DeviceStateFactory step.Factory[step.Trigger] = deviceStateFactory{}

type deviceStateBody struct {
	UUID     string `json:"uuid"`
	DeviceID string `json:"deviceId"`
	Field    string `json:"field"`
}

func (deviceStateFactory) Name() string          { return "Device state trigger" }
func (deviceStateFactory) Discriminator() string { return "DeviceStateTrigger" }

func (deviceStateFactory) Produces() []step.DataPoint {
	return []step.DataPoint{DeviceID, Protocol, State, Value}
}

func (deviceStateFactory) Dummy() step.Trigger {
	return NewDeviceStateTrigger(uuid.New(), "", "")
}

func (deviceStateFactory) Encode(s step.Trigger) ([]byte, error) {
	t, ok := s.(DeviceStateTrigger)
	if !ok {
		return nil, step.ErrWrongType
	}
	return json.Marshal(deviceStateBody{UUID: t.id.String(), DeviceID: t.deviceID, Field: t.field})
}

func (deviceStateFactory) Decode(raw []byte) (step.Trigger, error) {
	var body deviceStateBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	id, err := step.ParseID(body.UUID)
	if err != nil {
		return nil, err
	}
	return NewDeviceStateTrigger(id, body.DeviceID, body.Field), nil
}
