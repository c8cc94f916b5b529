package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/gray-logic-automata/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		// Authenticated by ticket inside the handler.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.With(s.require(auth.PermAutomationRead)).Post("/auth/ws-ticket", s.handleWSTicket)
			r.With(s.require(auth.PermAutomationRead)).Get("/catalog", s.handleCatalog)

			r.Route("/automations", func(r chi.Router) {
				r.With(s.require(auth.PermAutomationRead)).Get("/", s.handleListAutomations)
				r.With(s.require(auth.PermAutomationManage)).Post("/", s.handleCreateAutomation)

				r.Route("/{id}", func(r chi.Router) {
					r.With(s.require(auth.PermAutomationRead)).Get("/", s.handleGetAutomation)
					r.With(s.require(auth.PermAutomationManage)).Put("/", s.handleUpdateAutomation)
					r.With(s.require(auth.PermAutomationManage)).Delete("/", s.handleDeleteAutomation)
					r.With(s.require(auth.PermAutomationRead)).Get("/ready", s.handleAutomationReadiness)
					r.With(s.require(auth.PermAutomationRead)).Get("/runs", s.handleAutomationRuns)
				})
			})

			r.Route("/runs", func(r chi.Router) {
				r.With(s.require(auth.PermAutomationRead)).Get("/", s.handleListRuns)
				r.With(s.require(auth.PermAutomationRead)).Get("/{entryID}", s.handleGetRun)
				r.With(s.require(auth.PermRunRetry)).Post("/{entryID}/retry", s.handleRetryRun)
			})

			r.With(s.require(auth.PermEventInject)).Post("/events/{kind}", s.handleInjectEvent)
		})
	})

	return r
}

// handleHealth returns the server status and the granted capabilities.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":       "ok",
		"version":      s.version,
		"capabilities": s.env.List(),
	})
}
