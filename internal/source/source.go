package source

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nerrad567/gray-logic-automata/internal/event"
	"github.com/nerrad567/gray-logic-automata/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-automata/internal/step"
)

// MQTTClient is the subset of *mqtt.Client the source needs.
type MQTTClient interface {
	Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error
	IsConnected() bool
}

// Dispatcher receives decoded events. *automation.Engine satisfies it.
type Dispatcher interface {
	DispatchAsync(ctx context.Context, ev any)
}

// Grants records which inputs are live. *capability.Env satisfies it.
type Grants interface {
	Grant(c step.Capability)
	Revoke(c step.Capability)
}

// Logger is the logging interface used by the source.
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

// route binds one subscription to an event kind and a capability.
type route struct {
	topic      string
	kind       event.Kind
	capability step.Capability
}

func defaultRoutes() []route {
	t := mqtt.Topics{}
	return []route{
		{topic: t.Event(string(event.KindSMS)), kind: event.KindSMS, capability: step.CapabilitySMS},
		{topic: t.Event(string(event.KindNotification)), kind: event.KindNotification, capability: step.CapabilityNotifications},
		{topic: t.AllBridgeStates(), kind: event.KindDeviceState, capability: step.CapabilityDeviceState},
	}
}

// Options configures a Source.
type Options struct {
	MQTT       MQTTClient
	Dispatcher Dispatcher
	Grants     Grants

	// QoS for event subscriptions. Defaults to 1.
	QoS *byte

	// Logger is optional.
	Logger Logger
}

// Source subscribes to event topics and hands decoded events to the
// dispatcher.
type Source struct {
	mqtt       MQTTClient
	dispatcher Dispatcher
	grants     Grants
	qos        byte
	routes     []route
	logger     Logger

	mu       sync.Mutex
	ctx      context.Context
	active   map[step.Capability]bool
	started  bool
	stopOnce sync.Once
}

// New creates a source. Call Start to subscribe.
func New(opts Options) (*Source, error) {
	if opts.MQTT == nil {
		return nil, errors.New("source: MQTT client is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("source: dispatcher is required")
	}
	if opts.Grants == nil {
		return nil, errors.New("source: grants are required")
	}

	qos := byte(1)
	if opts.QoS != nil {
		qos = *opts.QoS
	}
	var logger Logger = noopLogger{}
	if opts.Logger != nil {
		logger = opts.Logger
	}

	return &Source{
		mqtt:       opts.MQTT,
		dispatcher: opts.Dispatcher,
		grants:     opts.Grants,
		qos:        qos,
		routes:     defaultRoutes(),
		logger:     logger,
		ctx:        context.Background(),
		active:     make(map[step.Capability]bool),
	}, nil
}

// Start subscribes to every event topic. Each successful subscription
// grants its capability. Failures are joined and returned, but the
// subscriptions that worked stay active.
func (s *Source) Start(ctx context.Context) error {
	s.mu.Lock()
	s.ctx = ctx
	s.started = true
	s.mu.Unlock()

	var errs []error
	for _, r := range s.routes {
		if err := s.mqtt.Subscribe(r.topic, s.qos, s.handler(r)); err != nil {
			errs = append(errs, fmt.Errorf("subscribe %s: %w", r.topic, err))
			continue
		}
		s.markActive(r.capability)
		s.logger.Info("subscribed to events", "topic", r.topic, "kind", r.kind)
	}
	return errors.Join(errs...)
}

// HandleConnect re-grants the capabilities of active subscriptions after
// the MQTT client has restored them on reconnect.
func (s *Source) HandleConnect() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	caps := make([]step.Capability, 0, len(s.active))
	for c := range s.active {
		caps = append(caps, c)
	}
	s.mu.Unlock()

	for _, c := range caps {
		s.grants.Grant(c)
	}
}

// HandleDisconnect revokes every source capability. It keeps the record
// of active subscriptions for HandleConnect.
func (s *Source) HandleDisconnect(err error) {
	s.logger.Warn("event sources offline", "error", err)
	s.revokeAll()
}

// Stop revokes all capabilities. Further messages are ignored.
func (s *Source) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.started = false
		s.mu.Unlock()
		s.revokeAll()
	})
}

func (s *Source) markActive(c step.Capability) {
	s.mu.Lock()
	s.active[c] = true
	s.mu.Unlock()
	s.grants.Grant(c)
}

func (s *Source) revokeAll() {
	for _, r := range s.routes {
		s.grants.Revoke(r.capability)
	}
}

func (s *Source) handler(r route) mqtt.MessageHandler {
	return func(topic string, payload []byte) error {
		s.mu.Lock()
		started, ctx := s.started, s.ctx
		s.mu.Unlock()
		if !started {
			return nil
		}

		ev, err := event.Decode(r.kind, payload)
		if err != nil {
			s.logger.Warn("dropping event", "topic", topic, "error", err)
			return nil
		}

		if ds, ok := ev.(event.DeviceState); ok && ds.Protocol == "" {
			if protocol, _, ok := (mqtt.Topics{}).ParseBridgeState(topic); ok {
				ds.Protocol = protocol
				ev = ds
			}
		}

		s.logger.Debug("event received", "topic", topic, "kind", r.kind)
		s.dispatcher.DispatchAsync(ctx, ev)
		return nil
	}
}
