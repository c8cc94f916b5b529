package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/gray-logic-automata/internal/infrastructure/database"
	_ "github.com/nerrad567/gray-logic-automata/migrations"
)

func testRepo(t *testing.T) *SQLiteTokenRepository {
	t.Helper()

	db, err := database.Open(database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // test cleanup

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("migrating test db: %v", err)
	}
	return NewTokenRepository(db.DB)
}

func tokenAt(id string, created time.Time, ttl time.Duration) APIToken {
	return APIToken{
		ID:        id,
		Subject:   "svc-" + id,
		Role:      RoleOperator,
		CreatedAt: created,
		ExpiresAt: created.Add(ttl),
	}
}

func TestTokenRepository_CreateGet(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	in := tokenAt("jti-1", now, time.Hour)
	if err := repo.Create(ctx, in); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	got, err := repo.Get(ctx, "jti-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.ID != in.ID || got.Subject != in.Subject || got.Role != in.Role || got.Revoked {
		t.Errorf("Get() = %+v, want %+v", got, in)
	}
	if !got.CreatedAt.Equal(in.CreatedAt) || !got.ExpiresAt.Equal(in.ExpiresAt) {
		t.Errorf("Get() times = %v / %v, want %v / %v", got.CreatedAt, got.ExpiresAt, in.CreatedAt, in.ExpiresAt)
	}

	if _, err := repo.Get(ctx, "missing"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrTokenNotFound", err)
	}
}

func TestTokenRepository_CreateValidates(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, APIToken{Role: RoleAdmin}); !errors.Is(err, ErrTokenInvalid) {
		t.Errorf("Create(no id) error = %v, want ErrTokenInvalid", err)
	}
	if err := repo.Create(ctx, APIToken{ID: "x", Role: "root"}); !errors.Is(err, ErrInvalidRole) {
		t.Errorf("Create(bad role) error = %v, want ErrInvalidRole", err)
	}

	tok := tokenAt("dup", time.Now(), time.Hour)
	if err := repo.Create(ctx, tok); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if err := repo.Create(ctx, tok); err == nil {
		t.Error("Create(duplicate) expected error")
	}
}

func TestTokenRepository_Revoke(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, tokenAt("jti-1", time.Now(), time.Hour)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	revoked, err := repo.IsRevoked(ctx, "jti-1")
	if err != nil || revoked {
		t.Fatalf("IsRevoked() = %v, %v before revoke", revoked, err)
	}

	if err := repo.Revoke(ctx, "jti-1"); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}
	revoked, err = repo.IsRevoked(ctx, "jti-1")
	if err != nil || !revoked {
		t.Errorf("IsRevoked() = %v, %v after revoke", revoked, err)
	}

	if err := repo.Revoke(ctx, "missing"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("Revoke(missing) error = %v, want ErrTokenNotFound", err)
	}
	if revoked, err := repo.IsRevoked(ctx, "unregistered"); err != nil || revoked {
		t.Errorf("IsRevoked(unregistered) = %v, %v, want false, nil", revoked, err)
	}
}

func TestTokenRepository_ListActiveAndDeleteExpired(t *testing.T) {
	repo := testRepo(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)
	repo.now = func() time.Time { return now }

	tokens := []APIToken{
		tokenAt("old", now.Add(-2*time.Hour), time.Hour),
		tokenAt("a", now.Add(-time.Minute), time.Hour),
		tokenAt("b", now, time.Hour),
		tokenAt("gone", now, time.Hour),
	}
	for _, tok := range tokens {
		if err := repo.Create(ctx, tok); err != nil {
			t.Fatalf("Create(%s) error = %v", tok.ID, err)
		}
	}
	if err := repo.Revoke(ctx, "gone"); err != nil {
		t.Fatalf("Revoke() error = %v", err)
	}

	active, err := repo.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive() error = %v", err)
	}
	if len(active) != 2 || active[0].ID != "b" || active[1].ID != "a" {
		t.Errorf("ListActive() = %+v, want [b a]", active)
	}

	n, err := repo.DeleteExpired(ctx)
	if err != nil {
		t.Fatalf("DeleteExpired() error = %v", err)
	}
	if n != 1 {
		t.Errorf("DeleteExpired() = %d, want 1", n)
	}
	if _, err := repo.Get(ctx, "old"); !errors.Is(err, ErrTokenNotFound) {
		t.Errorf("expired token still present: %v", err)
	}
}

func TestTokenRepository_ClosedDB(t *testing.T) {
	db, err := database.Open(database.Config{Path: database.MemoryPath})
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	repo := NewTokenRepository(db.DB)
	db.Close() //nolint:errcheck // closing to force errors

	ctx := context.Background()
	if _, err := repo.IsRevoked(ctx, "x"); err == nil {
		t.Error("IsRevoked() on closed db expected error")
	}
	if _, err := repo.ListActive(ctx); err == nil {
		t.Error("ListActive() on closed db expected error")
	}
}
