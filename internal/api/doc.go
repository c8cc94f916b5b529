// Package api implements the HTTP REST API and WebSocket server for the
// automata service.
//
// Endpoints under /api/v1:
//
//	GET    /health                      liveness, no auth
//	GET    /metrics                     runtime and engine stats, no auth
//	POST   /auth/ws-ticket              single-use WebSocket ticket
//	GET    /catalog                     trigger and action types
//	GET    /automations                 list with readiness
//	POST   /automations                 create (empty body → blank automation)
//	GET    /automations/{id}
//	PUT    /automations/{id}            replace title, trigger or action
//	DELETE /automations/{id}
//	GET    /automations/{id}/ready      readiness issues
//	GET    /automations/{id}/runs       run history, newest first
//	GET    /runs                        paginated audit log
//	GET    /runs/{entryID}
//	POST   /runs/{entryID}/retry        202, replays the run (?wait=true: 200 with the new run)
//	POST   /events/{kind}               202, injects an event (?wait=true: 200 with the runs)
//	GET    /ws?ticket=...               WebSocket
//
// Protected routes take "Authorization: Bearer <jwt>" issued by
// `automata token`. Each route checks one auth.Permission for the token's
// role, and tokens revoked in the api_tokens table are refused.
//
// WebSocket clients subscribe to the automation.changed, run.recorded
// and capability.changed channels. Browsers cannot set headers on a WebSocket upgrade, so the
// connection authenticates with a ticket fetched over HTTP first.
package api
