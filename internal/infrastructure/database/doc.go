// Package database provides SQLite connectivity for the automata service.
//
// It owns the connection lifecycle and the schema migrations. Two tables
// live here, both created by the embedded migrations:
//
//   - automations: the persisted automation set, one JSON blob per row
//   - automation_audit_log: the append-only run history
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// The pool is capped at one connection. SQLite has a single writer, and
// an in-memory database (Path ":memory:") only exists on the connection
// that created it.
package database
