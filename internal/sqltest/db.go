//go:build integration_test

// Package sqltest provides isolated SQLite and PostgreSQL databases for
// tests that must pass against every SQL backend.
package sqltest

import (
	"context"
	"database/sql"
	"fmt"
	"hash/fnv"
	"testing"
	"time"

	// Register the pgx driver under name "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"

	// Register SQLite driver under name "sqlite".
	_ "modernc.org/sqlite"

	"github.com/stretchr/testify/require"
)

// Driver names of the supported backends.
const (
	PostgresDriver = "pgx"
	SQLiteDriver   = "sqlite"
)

const pingTimeout = 5 * time.Second

// DBFactory is a function type that creates a new database connection for
// testing purposes. It takes a testing.TB interface to allow for test failure
// when cannot create the database connection, add cleanup logic and create a
// unique and isolated database for each test case.
type DBFactory func(t testing.TB) *sql.DB

// DBTestFunc is a function type that defines the signature for database test
// functions that will be run against different database implementations.
// The driver name tells the test which SQL dialect the factory serves.
type DBTestFunc func(t *testing.T, driver string, dbFactory DBFactory)

// Backend is a SQL backend tests run against.
type Backend struct {
	// Name names the backend's subtests.
	Name string

	// Driver is the database/sql driver name.
	Driver string

	// open creates the named database and returns a connection to it
	// that is released when the test ends.
	open func(t testing.TB, dbName string) *sql.DB
}

// Backends lists every backend RunDatabaseTest covers.
var Backends = []Backend{
	{Name: "Postgres", Driver: PostgresDriver, open: openPostgres},
	{Name: "SQLite", Driver: SQLiteDriver, open: openSQLite},
}

// NewDB returns a connection to a fresh database named after the test.  It
// satisfies DBFactory.
func (b *Backend) NewDB(t testing.TB) *sql.DB {
	t.Helper()

	db := b.open(t, "ismine_test_"+deterministicTestID(t))

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	require.NoError(t, db.PingContext(ctx), "failed to ping %s database",
		b.Name)

	return db
}

// RunDatabaseTest runs the same test function against every backend. Each
// backend runs as a parallel subtest and hands out isolated databases.
func RunDatabaseTest(t *testing.T, testFunc DBTestFunc) {
	t.Helper()

	for i := range Backends {
		b := &Backends[i]
		t.Run(b.Name, func(t *testing.T) {
			t.Parallel()
			testFunc(t, b.Driver, b.NewDB)
		})
	}
}

// deterministicTestID generates a deterministic identifier based on the test
// name. This ensures that Golang test caching works properly by avoiding
// random generations for the database name. We need to use this hash to avoid
// long database names that can be cropped by some database systems.
func deterministicTestID(t testing.TB) string {
	t.Helper()
	h := fnv.New32a()
	_, err := h.Write([]byte(t.Name()))

	// This should never fail, but we handle it just in case.
	require.NoError(t, err)

	hashed := fmt.Sprintf("%08x", h.Sum32())
	t.Logf("db name hash: %s", hashed)
	return hashed
}
