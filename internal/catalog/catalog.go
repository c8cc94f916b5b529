// Package catalog assembles the registries of every known trigger and
// action type. Adding a step type means adding its factory here.
package catalog

import (
	"github.com/nerrad567/gray-logic-automata/internal/actions"
	"github.com/nerrad567/gray-logic-automata/internal/step"
	"github.com/nerrad567/gray-logic-automata/internal/triggers"
)

// Triggers returns a registry of all trigger types.
func Triggers() (*step.Registry[step.Trigger], error) {
	return step.NewRegistry(
		triggers.SMSFactory,
		triggers.NotificationFactory,
		triggers.DeviceStateFactory,
	)
}

// Actions returns a registry of all action types.
func Actions() (*step.Registry[step.Action], error) {
	return step.NewRegistry(
		actions.WebhookFactory,
		actions.VibrateFactory,
	)
}

// Entry describes one step type for listings.
type Entry struct {
	Name          string   `json:"name"`
	Discriminator string   `json:"class"`
	Produces      []string `json:"produces"`
}

// Describe lists the factories of a registry in registration order.
func Describe[S step.Step](r *step.Registry[S]) []Entry {
	factories := r.Factories()
	out := make([]Entry, 0, len(factories))
	for _, f := range factories {
		points := f.Produces()
		names := make([]string, 0, len(points))
		for _, p := range points {
			names = append(names, p.Name)
		}
		out = append(out, Entry{Name: f.Name(), Discriminator: f.Discriminator(), Produces: names})
	}
	return out
}
