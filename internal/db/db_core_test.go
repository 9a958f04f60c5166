package db

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"testing/fstest"
)

// TestPragmasApplied verifies that essential PRAGMAs are set on all databases
func TestPragmasApplied(t *testing.T) {
	db := setupTestDB(t)

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		t.Fatalf("Failed to query journal_mode: %v", err)
	}
	if journalMode != "wal" {
		t.Errorf("Expected journal_mode=wal, got %s", journalMode)
	}

	var busyTimeout int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout); err != nil {
		t.Fatalf("Failed to query busy_timeout: %v", err)
	}
	if busyTimeout != 5000 {
		t.Errorf("Expected busy_timeout=5000, got %d", busyTimeout)
	}

	var synchronous int
	if err := db.QueryRow("PRAGMA synchronous").Scan(&synchronous); err != nil {
		t.Fatalf("Failed to query synchronous: %v", err)
	}
	if synchronous != 1 { // 1 = NORMAL
		t.Errorf("Expected synchronous=1 (NORMAL), got %d", synchronous)
	}

	var foreignKeys int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys); err != nil {
		t.Fatalf("Failed to query foreign_keys: %v", err)
	}
	if foreignKeys != 1 {
		t.Errorf("Expected foreign_keys=1, got %d", foreignKeys)
	}
}

func TestNewDBCreatesSchema(t *testing.T) {
	db := setupTestDB(t)

	for _, table := range []string{"sessions", "decisions", "schema_migrations"} {
		var n int
		err := db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?`, table).Scan(&n)
		if err != nil {
			t.Fatalf("query sqlite_master: %v", err)
		}
		if n != 1 {
			t.Errorf("table %s missing", table)
		}
	}

	migrations, err := MigrationsFS()
	if err != nil {
		t.Fatalf("MigrationsFS: %v", err)
	}
	version, dirty, err := db.MigrateVersion(migrations)
	if err != nil {
		t.Fatalf("MigrateVersion: %v", err)
	}
	latest, err := GetLatestMigrationVersion(migrations)
	if err != nil {
		t.Fatalf("GetLatestMigrationVersion: %v", err)
	}
	if version != latest || dirty {
		t.Errorf("version = %d (dirty %v), want %d clean", version, dirty, latest)
	}
}

func TestNewDBReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reopen.db")
	for i := 0; i < 2; i++ {
		db, err := NewDB(path)
		if err != nil {
			t.Fatalf("NewDB attempt %d: %v", i, err)
		}
		if db.Path() != path {
			t.Errorf("Path() = %q, want %q", db.Path(), path)
		}
		db.Close()
	}
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	migrations, err := MigrationsFS()
	if err != nil {
		t.Fatalf("MigrationsFS: %v", err)
	}
	ups, _ := fs.Glob(migrations, "*.up.sql")
	downs, _ := fs.Glob(migrations, "*.down.sql")
	if len(ups) == 0 || len(ups) != len(downs) {
		t.Errorf("got %d up and %d down migrations", len(ups), len(downs))
	}
}

func TestMigrateDownAndUp(t *testing.T) {
	db := setupTestDB(t)
	migrations, err := MigrationsFS()
	if err != nil {
		t.Fatalf("MigrationsFS: %v", err)
	}

	if err := db.MigrateDown(migrations); err != nil {
		t.Fatalf("MigrateDown: %v", err)
	}
	version, _, _ := db.MigrateVersion(migrations)
	if version != 1 {
		t.Errorf("after down version = %d, want 1", version)
	}

	if err := db.MigrateTo(migrations, 2); err != nil {
		t.Fatalf("MigrateTo: %v", err)
	}
	version, _, _ = db.MigrateVersion(migrations)
	if version != 2 {
		t.Errorf("after MigrateTo version = %d, want 2", version)
	}
}

func TestMigrateCustomFS(t *testing.T) {
	db, err := OpenDB(filepath.Join(t.TempDir(), "custom.db"))
	if err != nil {
		t.Fatalf("OpenDB: %v", err)
	}
	defer db.Close()

	migrations := fstest.MapFS{
		"000001_create_test_table.up.sql":   {Data: []byte(`CREATE TABLE test_table (id INTEGER PRIMARY KEY, name TEXT NOT NULL);`)},
		"000001_create_test_table.down.sql": {Data: []byte(`DROP TABLE test_table;`)},
	}

	version, _, err := db.MigrateVersion(migrations)
	if err != nil || version != 0 {
		t.Fatalf("fresh db version = %d, err %v; want 0, nil", version, err)
	}
	if err := db.MigrateUp(migrations); err != nil {
		t.Fatalf("MigrateUp: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO test_table (name) VALUES ('a')`); err != nil {
		t.Errorf("table not created: %v", err)
	}
	if err := db.MigrateForce(migrations, 1); err != nil {
		t.Errorf("MigrateForce: %v", err)
	}
}

func TestGetLatestMigrationVersionEmpty(t *testing.T) {
	if _, err := GetLatestMigrationVersion(fstest.MapFS{}); err == nil {
		t.Error("expected error for empty migrations")
	}
}

func TestOpenDBBadPath(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := NewDB(filepath.Join(blocker, "nested.db")); err == nil {
		t.Error("expected error opening a database under a regular file")
	}
}
