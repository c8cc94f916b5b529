package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-automata/internal/automation"
	"github.com/nerrad567/gray-logic-automata/internal/step"
)

// automationView is an automation in its persisted form plus live
// readiness.
type automationView struct {
	Automation json.RawMessage `json:"automation"`
	Ready      bool            `json:"ready"`
	Issues     []step.Issue    `json:"issues"`
}

// automationRequest is the body of POST and PUT. An absent slot is left
// unchanged, an explicit null clears it.
type automationRequest struct {
	Title   *string         `json:"title" validate:"omitempty,min=1,max=200"`
	Trigger json.RawMessage `json:"trigger"`
	Action  json.RawMessage `json:"action"`
}

func (s *Server) view(a automation.Automation) (automationView, error) {
	raw, err := s.codec.Marshal(a)
	if err != nil {
		return automationView{}, err
	}
	issues := a.Issues(s.env)
	if issues == nil {
		issues = []step.Issue{}
	}
	return automationView{Automation: raw, Ready: len(issues) == 0, Issues: issues}, nil
}

// handleListAutomations returns every automation in store order.
func (s *Server) handleListAutomations(w http.ResponseWriter, r *http.Request) {
	all, err := s.store.All(r.Context())
	if err != nil {
		s.writeStoreError(w, err)
		return
	}

	views := make([]automationView, 0, len(all))
	for _, a := range all {
		v, err := s.view(a)
		if err != nil {
			s.logger.Error("encoding automation", "automation", a.ID.String(), "error", err)
			writeInternalError(w, "failed to encode automation")
			return
		}
		views = append(views, v)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"automations": views,
		"count":       len(views),
	})
}

// handleCreateAutomation appends a new automation. An empty body creates
// an untitled automation with no trigger or action.
func (s *Server) handleCreateAutomation(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAutomationRequest(w, r)
	if !ok {
		return
	}

	a, err := s.apply(automation.New(), req)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.store.Append(r.Context(), a); err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.logger.Info("automation created", "automation", a.ID.String(), "title", a.Title)
	s.writeAutomation(w, http.StatusCreated, a)
}

// handleGetAutomation returns one automation.
func (s *Server) handleGetAutomation(w http.ResponseWriter, r *http.Request) {
	a, ok := s.findAutomation(w, r)
	if !ok {
		return
	}
	s.writeAutomation(w, http.StatusOK, a)
}

// handleUpdateAutomation applies a partial update and replaces the
// stored value.
func (s *Server) handleUpdateAutomation(w http.ResponseWriter, r *http.Request) {
	current, ok := s.findAutomation(w, r)
	if !ok {
		return
	}

	req, ok := s.decodeAutomationRequest(w, r)
	if !ok {
		return
	}

	updated, err := s.apply(current, req)
	if err != nil {
		writeBadRequest(w, err.Error())
		return
	}

	if err := s.store.Replace(r.Context(), updated); err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.logger.Info("automation updated", "automation", updated.ID.String())
	s.writeAutomation(w, http.StatusOK, updated)
}

// handleDeleteAutomation removes an automation. Its runs stay in the log.
func (s *Server) handleDeleteAutomation(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAutomationID(w, r)
	if !ok {
		return
	}

	if err := s.store.Remove(r.Context(), id); err != nil {
		s.writeStoreError(w, err)
		return
	}

	s.logger.Info("automation deleted", "automation", id.String())
	w.WriteHeader(http.StatusNoContent)
}

// handleAutomationReadiness reports readiness against the live
// environment without the automation body.
func (s *Server) handleAutomationReadiness(w http.ResponseWriter, r *http.Request) {
	a, ok := s.findAutomation(w, r)
	if !ok {
		return
	}

	issues := a.Issues(s.env)
	if issues == nil {
		issues = []step.Issue{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":     a.ID.String(),
		"ready":  a.IsReady(s.env),
		"issues": issues,
	})
}

// handleAutomationRuns lists the previous runs of one automation,
// newest first. Runs of deleted automations are still returned.
func (s *Server) handleAutomationRuns(w http.ResponseWriter, r *http.Request) {
	id, ok := parseAutomationID(w, r)
	if !ok {
		return
	}

	entries, err := s.runs.ListPreviousRuns(r.Context(), id)
	if err != nil {
		s.logger.Error("listing previous runs", "automation", id.String(), "error", err)
		writeInternalError(w, "failed to list runs")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"automation": id.String(),
		"runs":       entries,
		"count":      len(entries),
	})
}

func (s *Server) decodeAutomationRequest(w http.ResponseWriter, r *http.Request) (automationRequest, bool) {
	var req automationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeBadRequest(w, "invalid JSON body")
		return automationRequest{}, false
	}
	if err := s.validate.Struct(req); err != nil {
		writeValidationError(w, validationMessage(err))
		return automationRequest{}, false
	}
	return req, true
}

// apply returns a with the request's fields set. Steps go through the
// registries, so an unknown class is rejected here rather than silently
// dropped as it would be on load.
func (s *Server) apply(a automation.Automation, req automationRequest) (automation.Automation, error) {
	if req.Title != nil {
		a = a.WithTitle(*req.Title)
	}

	if req.Trigger != nil {
		if isNull(req.Trigger) {
			a = a.WithTrigger(nil)
		} else {
			t, ok, err := s.codec.Triggers().Unmarshal(req.Trigger)
			if err != nil {
				return a, fmt.Errorf("invalid trigger: %w", err)
			}
			if !ok {
				return a, fmt.Errorf("unknown trigger class")
			}
			a = a.WithTrigger(t)
		}
	}

	if req.Action != nil {
		if isNull(req.Action) {
			a = a.WithAction(nil)
		} else {
			act, ok, err := s.codec.Actions().Unmarshal(req.Action)
			if err != nil {
				return a, fmt.Errorf("invalid action: %w", err)
			}
			if !ok {
				return a, fmt.Errorf("unknown action class")
			}
			a = a.WithAction(act)
		}
	}

	return a, nil
}

func (s *Server) findAutomation(w http.ResponseWriter, r *http.Request) (automation.Automation, bool) {
	id, ok := parseAutomationID(w, r)
	if !ok {
		return automation.Automation{}, false
	}

	a, err := s.store.Find(r.Context(), id)
	if err != nil {
		s.writeStoreError(w, err)
		return automation.Automation{}, false
	}
	return a, true
}

func (s *Server) writeAutomation(w http.ResponseWriter, status int, a automation.Automation) {
	v, err := s.view(a)
	if err != nil {
		s.logger.Error("encoding automation", "automation", a.ID.String(), "error", err)
		writeInternalError(w, "failed to encode automation")
		return
	}
	writeJSON(w, status, v)
}

// writeStoreError maps store sentinels onto HTTP statuses.
func (s *Server) writeStoreError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, automation.ErrAutomationNotFound):
		writeNotFound(w, "automation not found")
	case errors.Is(err, automation.ErrDuplicateID), errors.Is(err, automation.ErrInvalidAutomation):
		writeBadRequest(w, err.Error())
	case errors.Is(err, automation.ErrPersistence), errors.Is(err, automation.ErrStoreClosed):
		s.logger.Error("automation store unavailable", "error", err)
		writeUnavailable(w, "automation store unavailable")
	default:
		s.logger.Error("automation store error", "error", err)
		writeInternalError(w, "automation store error")
	}
}

func parseAutomationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeBadRequest(w, "invalid automation id")
		return uuid.Nil, false
	}
	return id, true
}

func isNull(raw json.RawMessage) bool {
	return string(raw) == "null"
}
