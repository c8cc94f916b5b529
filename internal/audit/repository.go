package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/gray-logic-automata/internal/step"
)

// timeFormat is fixed width so that text order equals time order.
const timeFormat = "2006-01-02T15:04:05.000000000Z"

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// Repository defines the audit log operations.
type Repository interface {
	Insert(ctx context.Context, entry *Entry) error
	ListPreviousRuns(ctx context.Context, automation uuid.UUID) ([]Entry, error)
	Get(ctx context.Context, id int64) (*Entry, error)
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores entries in the automation_audit_log table.
// Concurrent inserts are safe; each is a single-row statement.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Insert appends an entry and sets its ID. CreatedAt is set to now when
// zero. Failures wrap ErrInsert.
func (r *SQLiteRepository) Insert(ctx context.Context, entry *Entry) error {
	if !entry.State.Valid() {
		return fmt.Errorf("%w: %w: %q", ErrInsert, ErrInvalidState, entry.State)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	dataJSON, err := json.Marshal(entry.Data)
	if err != nil {
		return fmt.Errorf("%w: marshalling data: %w", ErrInsert, err)
	}

	res, err := r.db.ExecContext(ctx,
		`INSERT INTO automation_audit_log (created_at, automation, state, data, error)
		 VALUES (?, ?, ?, ?, ?)`,
		entry.CreatedAt.UTC().Format(timeFormat),
		entry.Automation.String(),
		string(entry.State),
		string(dataJSON),
		nullableString(entry.Error),
	)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInsert, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: reading id: %w", ErrInsert, err)
	}
	entry.ID = id
	return nil
}

// nullableString maps a nil pointer to SQL NULL.
func nullableString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// ListPreviousRuns returns every entry for an automation, newest first.
// An automation with no history yields an empty slice.
func (r *SQLiteRepository) ListPreviousRuns(ctx context.Context, automation uuid.UUID) ([]Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, created_at, automation, state, data, error
		 FROM automation_audit_log
		 WHERE automation = ?
		 ORDER BY created_at DESC, id DESC`,
		automation.String(),
	)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Get returns one entry by id.
func (r *SQLiteRepository) Get(ctx context.Context, id int64) (*Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, created_at, automation, state, data, error
		 FROM automation_audit_log WHERE id = ?`, id)

	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// List returns entries matching the filter, newest first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any

	if filter.Automation != uuid.Nil {
		conditions = append(conditions, "automation = ?")
		args = append(args, filter.Automation.String())
	}
	if filter.State != "" {
		if !filter.State.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidState, filter.State)
		}
		conditions = append(conditions, "state = ?")
		args = append(args, string(filter.State))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM automation_audit_log %s", where) //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting runs: %w", err)
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions
		`SELECT id, created_at, automation, state, data, error
		 FROM automation_audit_log %s
		 ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying runs: %w", err)
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, err
	}

	return &ListResult{
		Entries: entries,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntries(rows *sql.Rows) ([]Entry, error) {
	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating runs: %w", err)
	}
	return entries, nil
}

func scanEntry(s scanner) (Entry, error) {
	var (
		e          Entry
		createdAt  string
		automation string
		state      string
		dataJSON   string
		errMsg     sql.NullString
	)
	if err := s.Scan(&e.ID, &createdAt, &automation, &state, &dataJSON, &errMsg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Entry{}, err
		}
		return Entry{}, fmt.Errorf("scanning run: %w", err)
	}

	t, err := parseTime(createdAt)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing run timestamp %q: %w", createdAt, err)
	}
	e.CreatedAt = t

	id, err := uuid.Parse(automation)
	if err != nil {
		return Entry{}, fmt.Errorf("parsing run automation %q: %w", automation, err)
	}
	e.Automation = id
	e.State = State(state)

	var data step.Data
	if err := json.Unmarshal([]byte(dataJSON), &data); err != nil {
		return Entry{}, fmt.Errorf("parsing run data: %w", err)
	}
	e.Data = data

	if errMsg.Valid {
		msg := errMsg.String
		e.Error = &msg
	}
	return e, nil
}

// parseTime accepts the storage format and plain RFC 3339.
func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeFormat, s)
	if err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, s)
}
