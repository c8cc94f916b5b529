// Package event defines the inbound events automations react to and
// decodes them from their wire form.
//
// Events are opaque to the dispatcher: each trigger type gates on the
// concrete Go type it understands, so an event nobody recognises simply
// matches nothing.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Kind identifies an event source on the wire (MQTT topic suffix or
// HTTP path segment).
type Kind string

// Known event kinds.
const (
	KindSMS          Kind = "sms"
	KindNotification Kind = "notification"
	KindDeviceState  Kind = "device_state"
)

// ErrUnknownKind is returned by Decode for an unrecognised kind.
var ErrUnknownKind = errors.New("event: unknown kind")

// ErrInvalidPayload is returned by Decode for a malformed payload.
var ErrInvalidPayload = errors.New("event: invalid payload")

// SMS is a received text message.
type SMS struct {
	Sender     string    `json:"sender"`
	Message    string    `json:"message"`
	ReceivedAt time.Time `json:"received_at,omitempty"`
}

// Notification is a notification posted by an application on a
// companion device.
type Notification struct {
	Package  string    `json:"package"`
	App      string    `json:"app"`
	Title    string    `json:"title"`
	Text     string    `json:"text"`
	Ticker   string    `json:"ticker"`
	PostedAt time.Time `json:"posted_at,omitempty"`
}

// DeviceState is a state update published by a protocol bridge.
type DeviceState struct {
	DeviceID string         `json:"device_id"`
	Protocol string         `json:"protocol"`
	State    map[string]any `json:"state"`
}

// Decode parses a wire payload of the given kind into its event type.
// The returned value is the event struct itself (not a pointer).
func Decode(kind Kind, payload []byte) (any, error) {
	switch kind {
	case KindSMS:
		var e SMS
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("%w: sms: %w", ErrInvalidPayload, err)
		}
		if e.ReceivedAt.IsZero() {
			e.ReceivedAt = time.Now().UTC()
		}
		return e, nil

	case KindNotification:
		var e Notification
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("%w: notification: %w", ErrInvalidPayload, err)
		}
		if e.PostedAt.IsZero() {
			e.PostedAt = time.Now().UTC()
		}
		return e, nil

	case KindDeviceState:
		var e DeviceState
		if err := json.Unmarshal(payload, &e); err != nil {
			return nil, fmt.Errorf("%w: device state: %w", ErrInvalidPayload, err)
		}
		if e.DeviceID == "" {
			return nil, fmt.Errorf("%w: device state: missing device_id", ErrInvalidPayload)
		}
		return e, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}
