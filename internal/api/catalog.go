package api

import (
	"encoding/json"
	"net/http"

	"github.com/nerrad567/gray-logic-automata/internal/catalog"
	"github.com/nerrad567/gray-logic-automata/internal/step"
)

// catalogEntry describes one step type together with an empty instance
// clients can use as a template.
type catalogEntry struct {
	catalog.Entry
	Dummy json.RawMessage `json:"dummy"`
}

// handleCatalog lists every registered trigger and action type.
func (s *Server) handleCatalog(w http.ResponseWriter, _ *http.Request) {
	triggers, err := describe(s.codec.Triggers())
	if err != nil {
		s.logger.Error("describing triggers", "error", err)
		writeInternalError(w, "failed to describe triggers")
		return
	}
	actions, err := describe(s.codec.Actions())
	if err != nil {
		s.logger.Error("describing actions", "error", err)
		writeInternalError(w, "failed to describe actions")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"triggers": triggers,
		"actions":  actions,
	})
}

func describe[S step.Step](r *step.Registry[S]) ([]catalogEntry, error) {
	entries := catalog.Describe(r)
	out := make([]catalogEntry, 0, len(entries))
	for _, e := range entries {
		dummy, ok := r.Dummy(e.Discriminator)
		if !ok {
			continue
		}
		raw, err := r.Marshal(dummy)
		if err != nil {
			return nil, err
		}
		out = append(out, catalogEntry{Entry: e, Dummy: raw})
	}
	return out, nil
}
