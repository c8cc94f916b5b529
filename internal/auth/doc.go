// Package auth issues and checks the bearer tokens that protect the
// automata API.
//
// Tokens are HS256 JWTs carrying a subject and one of three roles:
//
//	viewer   → read automations, readiness and run history
//	operator → viewer + retry runs and inject events
//	admin    → operator + create, edit and delete automations
//
// Role permissions are a static map; checking one never touches the
// database. Issued tokens are recorded by jti in api_tokens so they can
// be listed and revoked from the CLI, and the API middleware rejects
// revoked ids.
package auth
