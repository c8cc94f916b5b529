// Package mqtt connects automata to the Gray Logic message bus.
//
// The bus carries events in and haptic commands out:
//
//	phone/bridges ──► graylogic/automata/event/{kind} ──► source ──► Engine
//	bridges       ──► graylogic/state/{protocol}/{addr} ─┘
//	VibrateAction ──► graylogic/automata/haptic/{device} ──► devices
//
// The client reconnects with backoff, restores subscriptions after each
// reconnect, and keeps a retained status message on
// graylogic/automata/status backed by a Last Will.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.Event("sms"), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(payload)
//	    })
package mqtt
