package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-automata/internal/audit"
	"github.com/nerrad567/gray-logic-automata/internal/automation"
)

// runsQuery holds the GET /runs query parameters.
type runsQuery struct {
	Automation string `json:"automation" validate:"omitempty,uuid"`
	State      string `json:"state" validate:"omitempty,oneof=DONE ERROR SKIPPED"`
	Limit      int    `json:"limit" validate:"gte=0,lte=200"`
	Offset     int    `json:"offset" validate:"gte=0"`
}

// handleListRuns returns a page of the audit log, newest first.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := runsQuery{
		Automation: q.Get("automation"),
		State:      q.Get("state"),
	}

	var err error
	if query.Limit, err = intParam(q.Get("limit")); err != nil {
		writeBadRequest(w, "limit must be an integer")
		return
	}
	if query.Offset, err = intParam(q.Get("offset")); err != nil {
		writeBadRequest(w, "offset must be an integer")
		return
	}
	if err := s.validate.Struct(query); err != nil {
		writeValidationError(w, validationMessage(err))
		return
	}

	filter := audit.Filter{
		State:  audit.State(query.State),
		Limit:  query.Limit,
		Offset: query.Offset,
	}
	if query.Automation != "" {
		filter.Automation = uuid.MustParse(query.Automation)
	}

	result, err := s.runs.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing runs", "error", err)
		writeInternalError(w, "failed to list runs")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetRun returns one audit entry.
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.findRun(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// handleRetryRun replays a recorded run. By default the replay is queued
// and 202 is returned; with ?wait=true the new entry is returned once
// recorded.
func (s *Server) handleRetryRun(w http.ResponseWriter, r *http.Request) {
	entry, ok := s.findRun(w, r)
	if !ok {
		return
	}

	if r.URL.Query().Get("wait") == "true" {
		result, err := s.engine.RetryWait(r.Context(), *entry)
		if err != nil {
			s.writeRetryError(w, entry, err)
			return
		}
		writeJSON(w, http.StatusOK, result)
		return
	}

	if err := s.engine.Retry(r.Context(), *entry, nil); err != nil {
		s.writeRetryError(w, entry, err)
		return
	}

	s.logger.Info("run retry queued", "entry", entry.ID, "automation", entry.Automation.String())
	writeJSON(w, http.StatusAccepted, map[string]any{
		"status":     "accepted",
		"entry_id":   entry.ID,
		"automation": entry.Automation.String(),
	})
}

func (s *Server) writeRetryError(w http.ResponseWriter, entry *audit.Entry, err error) {
	switch {
	case errors.Is(err, automation.ErrAutomationNotFound):
		writeNotFound(w, "automation of this run no longer exists")
	case errors.Is(err, automation.ErrPersistence), errors.Is(err, audit.ErrInsert):
		s.logger.Error("retry not recorded", "entry", entry.ID, "error", err)
		writeUnavailable(w, "run log unavailable")
	default:
		s.logger.Error("retry failed", "entry", entry.ID, "error", err)
		writeInternalError(w, "retry failed")
	}
}

func (s *Server) findRun(w http.ResponseWriter, r *http.Request) (*audit.Entry, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "entryID"), 10, 64)
	if err != nil || id <= 0 {
		writeBadRequest(w, "invalid run id")
		return nil, false
	}

	entry, err := s.runs.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, audit.ErrEntryNotFound) {
			writeNotFound(w, "run not found")
			return nil, false
		}
		s.logger.Error("loading run", "entry", id, "error", err)
		writeInternalError(w, "failed to load run")
		return nil, false
	}
	return entry, true
}

// intParam parses an optional integer query parameter. Empty is zero.
func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	return strconv.Atoi(v)
}
