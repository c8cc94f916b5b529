package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// TokenRepository persists issued token records.
type TokenRepository interface {
	Create(ctx context.Context, token APIToken) error
	Get(ctx context.Context, id string) (APIToken, error)
	IsRevoked(ctx context.Context, id string) (bool, error)
	Revoke(ctx context.Context, id string) error
	ListActive(ctx context.Context) ([]APIToken, error)
	DeleteExpired(ctx context.Context) (int64, error)
}

// SQLiteTokenRepository implements TokenRepository on the api_tokens table.
type SQLiteTokenRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewTokenRepository creates a SQLite-backed token repository.
func NewTokenRepository(db *sql.DB) *SQLiteTokenRepository {
	return &SQLiteTokenRepository{db: db, now: time.Now}
}

const tokenColumns = `id, subject, role, expires_at, revoked, created_at`

// Create stores a token record. CreatedAt defaults to now.
func (r *SQLiteTokenRepository) Create(ctx context.Context, token APIToken) error {
	if token.ID == "" {
		return fmt.Errorf("%w: missing id", ErrTokenInvalid)
	}
	if !IsValidRole(token.Role) {
		return fmt.Errorf("%w: %q", ErrInvalidRole, token.Role)
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = r.now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO api_tokens (`+tokenColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		token.ID, token.Subject, string(token.Role),
		token.ExpiresAt.UTC().Format(time.RFC3339),
		boolToInt(token.Revoked),
		token.CreatedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("creating api token: %w", err)
	}
	return nil
}

// Get returns a token record by id.
func (r *SQLiteTokenRepository) Get(ctx context.Context, id string) (APIToken, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+tokenColumns+` FROM api_tokens WHERE id = ?`, id)
	t, err := scanToken(row)
	if errors.Is(err, sql.ErrNoRows) {
		return APIToken{}, ErrTokenNotFound
	}
	if err != nil {
		return APIToken{}, fmt.Errorf("getting api token: %w", err)
	}
	return t, nil
}

// IsRevoked reports whether id has been revoked. Tokens with no record
// are not revoked: they were signed with the shared secret but never
// registered.
func (r *SQLiteTokenRepository) IsRevoked(ctx context.Context, id string) (bool, error) {
	var revoked int
	err := r.db.QueryRowContext(ctx,
		"SELECT revoked FROM api_tokens WHERE id = ?", id).Scan(&revoked)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking api token: %w", err)
	}
	return revoked != 0, nil
}

// Revoke marks a token as revoked.
func (r *SQLiteTokenRepository) Revoke(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE api_tokens SET revoked = 1 WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("revoking api token: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // always succeeds on SQLite
		return ErrTokenNotFound
	}
	return nil
}

// ListActive returns unrevoked, unexpired tokens, newest first.
func (r *SQLiteTokenRepository) ListActive(ctx context.Context) ([]APIToken, error) {
	now := r.now().UTC().Format(time.RFC3339)

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+tokenColumns+` FROM api_tokens
		 WHERE revoked = 0 AND expires_at > ?
		 ORDER BY created_at DESC, id`, now)
	if err != nil {
		return nil, fmt.Errorf("listing api tokens: %w", err)
	}
	defer rows.Close()

	tokens := []APIToken{}
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning api token: %w", err)
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating api tokens: %w", err)
	}
	return tokens, nil
}

// DeleteExpired removes expired records and returns how many went.
func (r *SQLiteTokenRepository) DeleteExpired(ctx context.Context) (int64, error) {
	now := r.now().UTC().Format(time.RFC3339)

	result, err := r.db.ExecContext(ctx,
		"DELETE FROM api_tokens WHERE expires_at <= ?", now)
	if err != nil {
		return 0, fmt.Errorf("deleting expired api tokens: %w", err)
	}

	count, _ := result.RowsAffected() //nolint:errcheck // always succeeds on SQLite
	return count, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanToken(row rowScanner) (APIToken, error) {
	var t APIToken
	var role, expiresAt, createdAt string
	var revoked int

	if err := row.Scan(&t.ID, &t.Subject, &role, &expiresAt, &revoked, &createdAt); err != nil {
		return APIToken{}, err
	}
	t.Role = Role(role)
	t.Revoked = revoked != 0
	t.ExpiresAt, _ = time.Parse(time.RFC3339, expiresAt) //nolint:errcheck // format is controlled
	t.CreatedAt, _ = time.Parse(time.RFC3339, createdAt) //nolint:errcheck // format is controlled
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
