// Package db is the local SQLite cache of resolved parcels and their
// intersection history. It exists to spare the cadastre repeated
// lookups for the same lot/plan, so reads dominate writes.
package db

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

// DB is a handle on the parcel cache
type DB struct {
	*sqlx.DB
}

// New opens the cache database at dbPath, creating the file and its
// directory as needed, and applies the schema. WAL keeps resolution
// writes from blocking concurrent reads; the busy timeout covers the
// occasional write/write collision.
func New(dbPath string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}

	conn, err := sqlx.Connect("sqlite3",
		dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening parcel cache: %w", err)
	}

	// The schema is idempotent, so reopening an existing cache is a no-op.
	if _, err := conn.Exec(schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying cache schema: %w", err)
	}

	return &DB{conn}, nil
}
