package sqlite

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"
)

// setupTestDB creates a test database with the real schema from the
// migrations directory. This avoids hardcoded CREATE TABLE statements that
// can get out of sync with migrations.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			t.Fatalf("Failed to execute %q: %v", pragma, err)
		}
	}

	schemaPath := filepath.Join("..", "..", "..", "db", "migrations", "0001_initial_schema.up.sql")
	schemaSQL, err := os.ReadFile(schemaPath)
	if err != nil {
		t.Fatalf("Failed to read schema: %v", err)
	}
	if _, err := db.Exec(string(schemaSQL)); err != nil {
		t.Fatalf("Failed to execute schema: %v", err)
	}

	return db
}

// insertTestRun satisfies the runs foreign key for store-level tests that
// bypass the run manager.
func insertTestRun(t *testing.T, db *sql.DB, runID string) {
	t.Helper()

	_, err := db.Exec(
		`INSERT INTO roadguard_runs (run_id, source_path, status) VALUES (?, ?, 'running')`,
		runID, "test.jsonl",
	)
	if err != nil {
		t.Fatalf("Failed to insert test run: %v", err)
	}
}
