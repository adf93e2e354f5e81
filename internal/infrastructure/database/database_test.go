package database

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(Config{
		Path:        filepath.Join(t.TempDir(), "test.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	return db
}

func TestOpenAndHealthCheck(t *testing.T) {
	db := openTestDB(t)

	if err := db.HealthCheck(context.Background()); err != nil {
		t.Errorf("HealthCheck() error = %v", err)
	}
	if db.Path() == "" {
		t.Error("Path() is empty")
	}
}

func TestOpenCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "test.db")
	db, err := Open(Config{Path: path, BusyTimeout: 5})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	db.Close() //nolint:errcheck
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		filename    string
		wantVersion string
		wantName    string
		wantUp      bool
		wantOK      bool
	}{
		{"20260815_120000_action_history.up.sql", "20260815_120000", "action_history", true, true},
		{"20260815_120000_action_history.down.sql", "20260815_120000", "action_history", false, true},
		{"20260815_120000.up.sql", "", "", false, false},
		{"notes.txt", "", "", false, false},
		{"schema.sql", "", "", false, false},
	}

	for _, tt := range tests {
		version, name, isUp, ok := parseMigrationFilename(tt.filename)
		if ok != tt.wantOK {
			t.Errorf("parseMigrationFilename(%q) ok = %v, want %v", tt.filename, ok, tt.wantOK)
			continue
		}
		if !ok {
			continue
		}
		if version != tt.wantVersion || name != tt.wantName || isUp != tt.wantUp {
			t.Errorf("parseMigrationFilename(%q) = (%q, %q, %v)", tt.filename, version, name, isUp)
		}
	}
}

func TestMigrateWithoutEmbeddedFS(t *testing.T) {
	db := openTestDB(t)

	// With no registered migrations the call is a no-op that still
	// creates the bookkeeping table.
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM schema_migrations").Scan(&count)
	if err != nil {
		t.Fatalf("querying schema_migrations: %v", err)
	}
	if count != 0 {
		t.Errorf("schema_migrations has %d rows, want 0", count)
	}
}
