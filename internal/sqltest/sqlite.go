//go:build integration_test

package sqltest

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openSQLite opens dbName as a file in the test's temporary directory, which
// removes it when the test ends.
func openSQLite(t testing.TB, dbName string) *sql.DB {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), dbName+".sqlite")
	db, err := sql.Open(SQLiteDriver, "file:"+dbPath+"?mode=rwc&_fk=1")
	require.NoError(t, err, "failed to open SQLite database")

	t.Cleanup(func() {
		assert.NoError(t, db.Close(), "failed to close SQLite database")
	})

	return db
}
