package sqlitedb_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/gatekeeper-id/gatekeeper/storage/sqlitedb"
)

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := sqlitedb.Open("  ")
	require.Error(t, err)
}

func TestOpenAppliesPragmas(t *testing.T) {
	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	// The pragmas must actually take effect on the connection, not just
	// appear in the DSN. WAL and a non-zero busy_timeout are what keep
	// concurrent writers from failing with SQLITE_BUSY.
	var journalMode string
	require.NoError(t, db.QueryRow(`PRAGMA journal_mode`).Scan(&journalMode))
	require.Equal(t, "wal", journalMode)

	var busyTimeout int
	require.NoError(t, db.QueryRow(`PRAGMA busy_timeout`).Scan(&busyTimeout))
	require.Equal(t, 5000, busyTimeout)

	var foreignKeys int
	require.NoError(t, db.QueryRow(`PRAGMA foreign_keys`).Scan(&foreignKeys))
	require.Equal(t, 1, foreignKeys)
}

func TestOpenAppliesSchema(t *testing.T) {
	db, err := sqlitedb.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	rows, err := db.Query(`SELECT name FROM sqlite_master WHERE type = 'table'`)
	require.NoError(t, err)
	defer rows.Close()

	tables := map[string]bool{}
	for rows.Next() {
		var name string
		require.NoError(t, rows.Scan(&name))
		tables[name] = true
	}
	require.NoError(t, rows.Err())
	for _, want := range []string{
		"users",
		"oauth_clients",
		"user_authorized_clients",
		"oauth_client_authorizations",
		"client_authorization_summary",
	} {
		require.True(t, tables[want], "missing table %s", want)
	}
}
