package db

import (
	"path/filepath"
	"testing"
	"time"
)

// setupTestDB creates a migrated database in a temp directory.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := NewDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewDB failed: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestSession starts a session for tests that only need an ID.
func createTestSession(t *testing.T, db *DB) *Session {
	t.Helper()
	s, err := db.StartSession(t.Context(), "test", "site.sim.yaml", nil, time.Unix(1700000000, 0))
	if err != nil {
		t.Fatalf("StartSession failed: %v", err)
	}
	return s
}
