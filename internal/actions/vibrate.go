package actions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-automata/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-automata/internal/step"
)

const (
	// DefaultHapticDevice addresses every haptic-capable device.
	DefaultHapticDevice = "all"

	// DefaultVibrateMillis is the pulse length used when none is configured.
	DefaultVibrateMillis = 500

	hapticQoS = 1
)

// ErrInvalidDevice is returned for a device name that cannot be used as
// one MQTT topic level.
var ErrInvalidDevice = errors.New("actions: invalid haptic device")

// validDevice reports whether device is a single, wildcard-free topic level.
func validDevice(device string) bool {
	return !strings.ContainsAny(device, "/+#\x00")
}

// HapticCommand is the payload published for a vibrate action.
type HapticCommand struct {
	Step      string    `json:"step"`
	Pattern   []int     `json:"pattern_ms"`
	Timestamp time.Time `json:"timestamp"`
}

// VibrateAction pulses the haptic motor of a companion device. It passes
// its input data through unchanged.
type VibrateAction struct {
	id         uuid.UUID
	device     string
	durationMs int
}

// NewVibrateAction creates a vibrate action. An empty device targets all
// devices and a non-positive duration uses DefaultVibrateMillis.
func NewVibrateAction(id uuid.UUID, device string, durationMs int) VibrateAction {
	if device == "" {
		device = DefaultHapticDevice
	}
	if durationMs <= 0 {
		durationMs = DefaultVibrateMillis
	}
	return VibrateAction{id: id, device: device, durationMs: durationMs}
}

func (a VibrateAction) ID() uuid.UUID               { return a.id }
func (a VibrateAction) Descriptor() step.Descriptor { return VibrateFactory }

// Device returns the target device.
func (a VibrateAction) Device() string { return a.device }

// DurationMs returns the pulse length in milliseconds.
func (a VibrateAction) DurationMs() int { return a.durationMs }

// Fire publishes the haptic command.
func (a VibrateAction) Fire(_ context.Context, env step.Env, data step.Data) (step.Result, error) {
	if !validDevice(a.device) {
		return step.Erred{Message: fmt.Sprintf("invalid haptic device %q", a.device)}, nil
	}
	pub := env.Publisher()
	if pub == nil {
		return step.Erred{Message: "device bus not connected"}, nil
	}

	payload, err := json.Marshal(HapticCommand{
		Step:      a.id.String(),
		Pattern:   []int{a.durationMs, a.durationMs},
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("encoding haptic command: %w", err)
	}

	if err := pub.Publish(mqtt.Topics{}.Haptic(a.device), payload, hapticQoS, false); err != nil {
		return nil, fmt.Errorf("publishing haptic command: %w", err)
	}
	return step.Proceed{Data: data}, nil
}

// Issues reports a missing haptics capability or a disconnected bus.
func (a VibrateAction) Issues(env step.Env) []step.Issue {
	if !env.Granted(step.CapabilityHaptics) || env.Publisher() == nil {
		return []step.Issue{step.MissingCapability(step.CapabilityHaptics, "Device bus not connected")}
	}
	return nil
}

type vibrateFactory struct{}

// VibrateFactory builds and serialises VibrateAction.
var VibrateFactory step.Factory[step.Action] = vibrateFactory{}

type vibrateBody struct {
	UUID       string `json:"uuid"`
	Device     string `json:"device,omitempty"`
	DurationMs int    `json:"durationMs,omitempty"`
}

func (vibrateFactory) Name() string               { return "Vibrate" }
func (vibrateFactory) Discriminator() string      { return "VibrateAction" }
func (vibrateFactory) Produces() []step.DataPoint { return nil }

func (vibrateFactory) Dummy() step.Action {
	return NewVibrateAction(uuid.New(), "", 0)
}

func (vibrateFactory) Encode(s step.Action) ([]byte, error) {
	a, ok := s.(VibrateAction)
	if !ok {
		return nil, step.ErrWrongType
	}
	return json.Marshal(vibrateBody{UUID: a.id.String(), Device: a.device, DurationMs: a.durationMs})
}

func (vibrateFactory) Decode(raw []byte) (step.Action, error) {
	var body vibrateBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	id, err := step.ParseID(body.UUID)
	if err != nil {
		return nil, err
	}
	if !validDevice(body.Device) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDevice, body.Device)
	}
	return NewVibrateAction(id, body.Device, body.DurationMs), nil
}
