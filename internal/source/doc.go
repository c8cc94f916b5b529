// Package source feeds MQTT events into the automation engine and
// announces recorded runs back onto the bus.
//
// Subscriptions:
//
//	graylogic/automata/event/sms           → event.SMS          (capability sms)
//	graylogic/automata/event/notification  → event.Notification (capability notifications)
//	graylogic/state/+/+                    → event.DeviceState  (capability device_state)
//
// Each subscription grants its capability once active. Losing the broker
// connection revokes all of them, so automations that depend on a source
// report issues until the link is back. Payloads that fail to decode are
// logged and dropped.
//
// The Announcer publishes every recorded run to
// graylogic/automata/run/{automation}/recorded.
package source
