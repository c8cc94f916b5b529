package catalog

import (
	"encoding/json"
	"testing"

	"github.com/nerrad567/gray-logic-automata/internal/step"
)

// roundTripAll checks that every registered dummy survives a marshal,
// stringify and unmarshal cycle with the same JSON.
func roundTripAll[S step.Step](t *testing.T, r *step.Registry[S]) {
	t.Helper()
	for _, f := range r.Factories() {
		t.Run(f.Discriminator(), func(t *testing.T) {
			raw, err := r.Marshal(f.Dummy())
			if err != nil {
				t.Fatalf("Marshal() error = %v", err)
			}

			var head struct {
				Class string `json:"class"`
			}
			if err := json.Unmarshal(raw, &head); err != nil || head.Class != f.Discriminator() {
				t.Fatalf("class = %q (err %v), want %q", head.Class, err, f.Discriminator())
			}

			out, ok, err := r.Unmarshal(json.RawMessage(string(raw)))
			if err != nil || !ok {
				t.Fatalf("Unmarshal() = ok %v, err %v", ok, err)
			}
			again, err := r.Marshal(out)
			if err != nil {
				t.Fatalf("Marshal() again error = %v", err)
			}
			if string(again) != string(raw) {
				t.Errorf("round trip changed JSON:\n got %s\nwant %s", again, raw)
			}
		})
	}
}

func TestTriggers(t *testing.T) {
	r, err := Triggers()
	if err != nil {
		t.Fatalf("Triggers() error = %v", err)
	}
	if got := len(r.Factories()); got != 3 {
		t.Errorf("len(Factories()) = %d, want 3", got)
	}
	for _, class := range []string{"SmsTrigger", "NotificationTrigger", "DeviceStateTrigger"} {
		if _, ok := r.Lookup(class); !ok {
			t.Errorf("Lookup(%q) missing", class)
		}
	}
	roundTripAll(t, r)
}

func TestActions(t *testing.T) {
	r, err := Actions()
	if err != nil {
		t.Fatalf("Actions() error = %v", err)
	}
	for _, class := range []string{"WebhookAction", "VibrateAction"} {
		if _, ok := r.Lookup(class); !ok {
			t.Errorf("Lookup(%q) missing", class)
		}
	}
	roundTripAll(t, r)
}

func TestDescribe(t *testing.T) {
	r, err := Triggers()
	if err != nil {
		t.Fatalf("Triggers() error = %v", err)
	}
	entries := Describe(r)
	if len(entries) != 3 {
		t.Fatalf("Describe() = %d entries, want 3", len(entries))
	}
	if entries[0].Name != "SMS trigger" || entries[0].Discriminator != "SmsTrigger" {
		t.Errorf("entries[0] = %+v", entries[0])
	}
	if len(entries[0].Produces) != 2 {
		t.Errorf("entries[0].Produces = %v", entries[0].Produces)
	}
}
