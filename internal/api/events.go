package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-automata/internal/event"
)

// handleInjectEvent decodes an event of the kind in the path and hands it
// to the dispatcher. The request returns 202 before any automation runs
// unless ?wait=true is set, in which case the recorded entries are
// returned.
func (s *Server) handleInjectEvent(w http.ResponseWriter, r *http.Request) {
	kind := event.Kind(chi.URLParam(r, "kind"))

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeBadRequest(w, "failed to read request body")
		return
	}

	ev, err := event.Decode(kind, body)
	if err != nil {
		switch {
		case errors.Is(err, event.ErrUnknownKind):
			writeNotFound(w, "unknown event kind")
		default:
			writeBadRequest(w, err.Error())
		}
		return
	}

	claims := claimsFromContext(r.Context())
	s.logger.Info("event injected", "kind", string(kind), "subject", claims.Subject)

	if r.URL.Query().Get("wait") == "true" {
		entries, err := s.engine.Dispatch(r.Context(), ev)
		if err != nil {
			s.logger.Error("dispatch not fully recorded", "kind", string(kind), "error", err)
			writeUnavailable(w, "run log unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"runs":  entries,
			"count": len(entries),
		})
		return
	}

	s.engine.DispatchAsync(r.Context(), ev)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status": "accepted",
		"kind":   string(kind),
	})
}
