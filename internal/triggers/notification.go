package triggers

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-automata/internal/event"
	"github.com/nerrad567/gray-logic-automata/internal/step"
)

// Data points produced by NotificationTrigger.
var (
	Package = step.Point("package")
	Ticker  = step.Point("ticker")
	Title   = step.Point("title")
	Text    = step.Point("text")
	App     = step.Point("app")
)

// NotificationTrigger fires on posted notifications, optionally filtered
// by a case-insensitive substring of the app name or package.
type NotificationTrigger struct {
	id         uuid.UUID
	appPattern *string
}

// NewNotificationTrigger creates a notification trigger. A nil pattern
// matches every notification.
func NewNotificationTrigger(id uuid.UUID, appPattern *string) NotificationTrigger {
	return NotificationTrigger{id: id, appPattern: appPattern}
}

func (t NotificationTrigger) ID() uuid.UUID               { return t.id }
func (t NotificationTrigger) Descriptor() step.Descriptor { return NotificationFactory }

// AppPattern returns the configured pattern, if any.
func (t NotificationTrigger) AppPattern() (string, bool) {
	if t.appPattern == nil {
		return "", false
	}
	return *t.appPattern, true
}

// Equal reports whether two triggers have the same id and pattern.
func (t NotificationTrigger) Equal(o NotificationTrigger) bool {
	if t.id != o.id {
		return false
	}
	if (t.appPattern == nil) != (o.appPattern == nil) {
		return false
	}
	return t.appPattern == nil || *t.appPattern == *o.appPattern
}

// Match accepts event.Notification values.
func (t NotificationTrigger) Match(e any) (any, bool) {
	switch v := e.(type) {
	case event.Notification:
		return v, true
	case *event.Notification:
		if v != nil {
			return *v, true
		}
	}
	return nil, false
}

// InitialData extracts the notification fields.
func (t NotificationTrigger) InitialData(input any) step.Data {
	n, _ := input.(event.Notification)
	app := n.App
	if app == "" {
		app = "unknown"
	}
	return step.NewData(map[step.DataPoint]string{
		App:     app,
		Package: n.Package,
		Ticker:  n.Ticker,
		Title:   n.Title,
		Text:    n.Text,
	})
}

// Fire proceeds when no pattern is set or when the app name or package
// contains the pattern, ignoring case. Otherwise it skips.
func (t NotificationTrigger) Fire(_ context.Context, _ step.Env, data step.Data) (step.Result, error) {
	if t.appPattern == nil || strings.TrimSpace(*t.appPattern) == "" {
		return step.Proceed{Data: data}, nil
	}

	pattern := strings.ToLower(*t.appPattern)
	app, _ := data.Get(App)
	pkg, _ := data.Get(Package)
	if strings.Contains(strings.ToLower(app), pattern) || strings.Contains(strings.ToLower(pkg), pattern) {
		return step.Proceed{Data: data}, nil
	}
	return step.Skipped{}, nil
}

// Issues reports a missing notification listener.
func (t NotificationTrigger) Issues(env step.Env) []step.Issue {
	if env.Granted(step.CapabilityNotifications) {
		return nil
	}
	return []step.Issue{step.MissingCapability(step.CapabilityNotifications, "Not listening to notifications")}
}

type notificationFactory struct{}

// NotificationFactory builds and serialises NotificationTrigger.
var NotificationFactory step.Factory[step.Trigger] = notificationFactory{}

type notificationBody struct {
	UUID           string  `json:"uuid"`
	AppNamePattern *string `json:"appNamePattern"`
}

func (notificationFactory) Name() string          { return "Notification trigger" }
func (notificationFactory) Discriminator() string { return "NotificationTrigger" }

func (notificationFactory) Produces() []step.DataPoint {
	return []step.DataPoint{Package, Ticker, Title, Text, App}
}

func (notificationFactory) Dummy() step.Trigger {
	return NewNotificationTrigger(uuid.New(), nil)
}

func (notificationFactory) Encode(s step.Trigger) ([]byte, error) {
	t, ok := s.(NotificationTrigger)
	if !ok {
		return nil, step.ErrWrongType
	}
	return json.Marshal(notificationBody{UUID: t.id.String(), AppNamePattern: t.appPattern})
}

func (notificationFactory) Decode(raw []byte) (step.Trigger, error) {
	var body notificationBody
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, err
	}
	id, err := step.ParseID(body.UUID)
	if err != nil {
		return nil, err
	}
	return NewNotificationTrigger(id, body.AppNamePattern), nil
}
