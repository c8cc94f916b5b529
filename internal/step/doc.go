// Package step defines the trigger/action protocol shared by every
// automation step type.
//
// A step is one half of an automation. Triggers gate on an inbound event
// and extract the initial Data from it; actions perform a side effect
// using the accumulated Data. Both report environment problems through
// Issues so that unready automations can be excluded from dispatch.
//
// # Key Types
//
//   - DataPoint, Data: the immutable key/value context threaded through a run
//   - Result: the closed Skipped / Proceed / Erred outcome of one Fire
//   - Trigger, Action: the step capabilities
//   - Factory: one per concrete step type (naming, dummy, JSON codec)
//   - Registry: discriminator → Factory lookup used for polymorphic JSON
//
// # Serialisation
//
// A step serialises to its factory's own JSON object plus a "class" field
// carrying the factory discriminator:
//
//	{"class": "SmsTrigger", "uuid": "..."}
//
// Discriminators are persisted and must never change once released.
//
// # Usage
//
//	triggers, err := step.NewRegistry[step.Trigger](triggers.SMSFactory, triggers.NotificationFactory)
//	raw, err := triggers.Marshal(t)
//	t, ok, err := triggers.Unmarshal(raw)
package step
