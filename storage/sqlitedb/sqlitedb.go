// Package sqlitedb opens the shared SQLite handle for the relational
// collaborator (users, clients, authorization records) and applies the
// embedded schema.
package sqlitedb

import (
	"database/sql"
	_ "embed"
	"fmt"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Open opens (creating if needed) the SQLite database at path and
// ensures the schema exists. Callers must Ping before serving traffic;
// startup treats a failure as fatal.
func Open(path string) (*sql.DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("[sqlitedb.Open] database path is required")
	}
	// The driver applies each _pragma to every connection it opens.
	// WAL lets readers proceed during a write, and busy_timeout makes
	// concurrent writers wait for the lock instead of failing with
	// SQLITE_BUSY.
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)" +
		"&_pragma=busy_timeout(5000)" +
		"&_pragma=foreign_keys(ON)" +
		"&_pragma=synchronous(NORMAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("[sqlitedb.Open] open: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("[sqlitedb.Open] ping: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("[sqlitedb.Open] apply schema: %w", err)
	}
	return db, nil
}
