package database

import (
	"context"
	"embed"
	"testing"
	"testing/fstest"
)

//go:embed testdata/*.sql
var testMigrations embed.FS

// useMigrations swaps the registered source for the duration of a test.
func useMigrations(t *testing.T, fsys fstest.MapFS, dir string) {
	t.Helper()
	orig := migrationSource
	t.Cleanup(func() { migrationSource = orig })
	if fsys == nil {
		RegisterMigrations(testMigrations, "testdata")
		return
	}
	RegisterMigrations(fsys, dir)
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var n int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name).Scan(&n)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	return n == 1
}

func TestMigrate(t *testing.T) {
	useMigrations(t, nil, "")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "test_widgets") {
		t.Fatal("test_widgets not created")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 0 {
		t.Errorf("applied=%d pending=%d, want 1/0", len(applied), len(pending))
	}

	if err := db.Migrate(ctx); err != nil {
		t.Errorf("second Migrate() error = %v", err)
	}
}

func TestMigrateDown(t *testing.T) {
	useMigrations(t, nil, "")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.MigrateDown(ctx); err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if tableExists(t, db, "test_widgets") {
		t.Error("test_widgets still exists after rollback")
	}

	applied, pending, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 0 || len(pending) != 1 {
		t.Errorf("applied=%d pending=%d, want 0/1", len(applied), len(pending))
	}

	// Nothing left to roll back.
	if err := db.MigrateDown(ctx); err != nil {
		t.Errorf("MigrateDown() on empty history error = %v", err)
	}
}

func TestMigrate_Ordering(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"m/20260102_000000_second.up.sql": {Data: []byte("ALTER TABLE a ADD COLUMN y INTEGER;")},
		"m/20260101_000000_first.up.sql":  {Data: []byte("CREATE TABLE a (x INTEGER);")},
		"m/README.md":                     {Data: []byte("ignored")},
	}, "m")
	db := openTestDB(t)

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if !tableExists(t, db, "a") {
		t.Error("table a not created")
	}
}

func TestMigrate_FailureStopsAtBadMigration(t *testing.T) {
	useMigrations(t, fstest.MapFS{
		"m/20260101_000000_ok.up.sql":  {Data: []byte("CREATE TABLE ok (x INTEGER);")},
		"m/20260102_000000_bad.up.sql": {Data: []byte("THIS IS NOT SQL;")},
	}, "m")
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx); err == nil {
		t.Fatal("Migrate() expected error")
	}
	applied, _, err := db.GetMigrationStatus(ctx)
	if err != nil {
		t.Fatalf("GetMigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || applied[0].Version != "20260101_000000" {
		t.Errorf("applied = %+v, want only the first migration", applied)
	}
}

func TestMigrate_NoSource(t *testing.T) {
	orig := migrationSource
	t.Cleanup(func() { migrationSource = orig })
	migrationSource.fsys = nil

	db := openTestDB(t)
	if err := db.Migrate(context.Background()); err != nil {
		t.Errorf("Migrate() without source error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{"20260301_120000_automations.up.sql", "20260301_120000", "automations", true, true},
		{"20260301_120100_automation_audit_log.down.sql", "20260301_120100", "automation_audit_log", false, true},
		{"20260301_120000.up.sql", "20260301_120000", "20260301_120000", true, true},
		{"readme.txt", "", "", false, false},
		{"20260301_120000_x.sql", "", "", false, false},
		{"invalid.up.sql", "", "", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			version, name, up, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion || name != tt.wantName || up != tt.wantUp {
				t.Errorf("got (%q, %q, %v), want (%q, %q, %v)", version, name, up, tt.wantVersion, tt.wantName, tt.wantUp)
			}
		})
	}
}
