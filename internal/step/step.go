package step

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// Capability names an environment facility a step depends on, such as
// receiving SMS or publishing to the device bus.
type Capability string

// Known capabilities.
const (
	CapabilitySMS           Capability = "sms"
	CapabilityNotifications Capability = "notifications"
	CapabilityDeviceState   Capability = "device_state"
	CapabilityHaptics       Capability = "haptics"
)

// Issue is a structural precondition failure that blocks an automation
// from being dispatched, e.g. a missing permission.
type Issue struct {
	Code       string     `json:"code"`
	Message    string     `json:"message"`
	Capability Capability `json:"capability,omitempty"`
}

// MissingCapability returns the standard issue for an ungranted capability.
func MissingCapability(c Capability, message string) Issue {
	return Issue{
		Code:       "missing_capability",
		Message:    message,
		Capability: c,
	}
}

// Publisher sends a message to the device bus.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
}

// Env is the environment steps run in. Issue probes query it
// synchronously; Fire uses it for I/O.
type Env interface {
	// Granted reports whether the capability is currently available.
	// Implementations must answer from live state, never a stale cache.
	Granted(c Capability) bool

	// HTTPClient returns the client outbound calls must use.
	HTTPClient() *http.Client

	// Publisher returns the device bus publisher, or nil when none is
	// connected.
	Publisher() Publisher
}

// Descriptor is the metadata of a concrete step type.
type Descriptor interface {
	// Name is the human readable name shown in menus.
	Name() string

	// Discriminator is the stable "class" tag written to JSON.
	Discriminator() string

	// Produces lists the data points the step type can emit.
	Produces() []DataPoint
}

// Step is the capability shared by triggers and actions.
type Step interface {
	ID() uuid.UUID
	Descriptor() Descriptor

	// Fire runs the step. A returned error is a step fault and is recorded
	// the same way as an Erred result. Fire may block on I/O.
	Fire(ctx context.Context, env Env, data Data) (Result, error)

	// Issues lists blocking environment problems. It must not block and
	// must be re-evaluated on every call.
	Issues(env Env) []Issue
}

// Trigger gates on an inbound event and extracts the initial Data.
type Trigger interface {
	Step

	// Match is the type gate. It returns the typed input and true when the
	// event is one this trigger understands.
	Match(event any) (input any, ok bool)

	// InitialData extracts the initial Data from a matched input.
	InitialData(input any) Data
}

// Action performs a side effect using the accumulated Data.
type Action interface {
	Step
}
