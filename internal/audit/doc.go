// Package audit stores the append-only record of automation runs.
//
// Every dispatch or retry that gets past a trigger's type gate produces
// exactly one Entry, whatever its outcome. Entries are never updated in
// place; a retry writes a new row. Each row keeps a full snapshot of the
// step data so a historical run can be inspected or replayed without
// recomputing side effects.
//
// The table lives in SQLite, created by the migrations in
// migrations/*.sql:
//
//	automation_audit_log(id, created_at, automation, state, data, error)
//
// indexed by (automation, created_at DESC).
package audit
