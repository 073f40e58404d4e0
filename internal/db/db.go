// Package db owns the sqlite connection and schema migrations for the
// engine's persistence layer. Stores live in internal/vision/storage/sqlite
// and operate on the *sql.DB this package opens.
package db

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// DB wraps the sqlite connection so migration helpers hang off one type.
type DB struct {
	*sql.DB
}

// NewDB opens (creating if needed) the sqlite database at path and applies
// the pragmas the engine relies on. Migrations are a separate step; see
// MigrateUp.
func NewDB(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}

	// Single writer: the engine processes frames serially and the report
	// tool reads after the run. WAL keeps concurrent readers cheap anyway.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", p, err)
		}
	}

	return &DB{db}, nil
}
