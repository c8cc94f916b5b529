package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes.
//
// Automata owns everything under graylogic/automata. Device state is read
// from the bridge scheme graylogic/state/{protocol}/{address}, which the
// protocol bridges publish.
const (
	// TopicPrefixBridge is the base for bridge topics.
	TopicPrefixBridge = "graylogic"

	// TopicPrefixAutomata is the base for all automata topics.
	TopicPrefixAutomata = "graylogic/automata"
)

// Topics provides builders for the MQTT topics automata reads and writes.
//
//	topics := mqtt.Topics{}
//	topics.Event("sms")       // graylogic/automata/event/sms
//	topics.Haptic("phone-1")  // graylogic/automata/haptic/phone-1
type Topics struct{}

// =============================================================================
// Inbound
// =============================================================================

// Event returns the topic events of the given kind arrive on.
//
// Example: graylogic/automata/event/notification
func (Topics) Event(kind string) string {
	return fmt.Sprintf("%s/event/%s", TopicPrefixAutomata, kind)
}

// BridgeState returns the topic a bridge publishes device state on.
//
// Example: graylogic/state/knx/light-living-main
func (Topics) BridgeState(protocol, address string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefixBridge, protocol, address)
}

// AllBridgeStates returns a pattern matching every bridge state update.
//
// Pattern: graylogic/state/+/+
func (Topics) AllBridgeStates() string {
	return fmt.Sprintf("%s/state/+/+", TopicPrefixBridge)
}

// =============================================================================
// Outbound
// =============================================================================

// Haptic returns the topic haptic commands for a device are sent on.
//
// Example: graylogic/automata/haptic/all
func (Topics) Haptic(device string) string {
	return fmt.Sprintf("%s/haptic/%s", TopicPrefixAutomata, device)
}

// Run returns the topic recorded runs of an automation are announced on.
//
// Example: graylogic/automata/run/0b8e.../recorded
func (Topics) Run(automationID string) string {
	return fmt.Sprintf("%s/run/%s/recorded", TopicPrefixAutomata, automationID)
}

// Status returns the retained online/offline status topic.
//
// Example: graylogic/automata/status
func (Topics) Status() string {
	return fmt.Sprintf("%s/status", TopicPrefixAutomata)
}

// ParseBridgeState splits a bridge state topic into protocol and address.
func (Topics) ParseBridgeState(topic string) (protocol, address string, ok bool) {
	rest, found := strings.CutPrefix(topic, TopicPrefixBridge+"/state/")
	if !found {
		return "", "", false
	}
	protocol, address, found = strings.Cut(rest, "/")
	if !found || protocol == "" || address == "" {
		return "", "", false
	}
	return protocol, address, true
}
