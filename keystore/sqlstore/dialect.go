// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sqlstore

import (
	"database/sql"
	"fmt"
	"strings"

	// Register the pgx driver under name "pgx".
	_ "github.com/jackc/pgx/v5/stdlib"

	// Register SQLite driver under name "sqlite".
	_ "modernc.org/sqlite"
)

// Dialect describes the differences between the supported SQL backends.
// Queries use $N placeholders, which both backends accept.
type Dialect struct {
	// Name is the backend name used in configuration.
	Name string

	// Driver is the database/sql driver name.
	Driver string

	blobType    string
	tableExists string
}

var (
	// SQLite is the dialect of the pure Go modernc.org/sqlite driver.
	SQLite = &Dialect{
		Name:     "sqlite",
		Driver:   "sqlite",
		blobType: "BLOB",
		tableExists: `SELECT COUNT(*) FROM sqlite_master
			WHERE type = 'table' AND name = $1`,
	}

	// Postgres is the dialect of the pgx stdlib driver.
	Postgres = &Dialect{
		Name:     "postgres",
		Driver:   "pgx",
		blobType: "BYTEA",
		tableExists: `SELECT COUNT(*) FROM information_schema.tables
			WHERE table_schema = current_schema() AND table_name = $1`,
	}
)

// String returns the dialect name.
func (d *Dialect) String() string {
	return d.Name
}

// DialectByName returns the dialect for a backend name.
func DialectByName(name string) (*Dialect, error) {
	switch strings.ToLower(name) {
	case SQLite.Name:
		return SQLite, nil
	case Postgres.Name, Postgres.Driver:
		return Postgres, nil
	default:
		return nil, fmt.Errorf("unknown sql backend %q", name)
	}
}

// OpenDB opens a connection pool for dsn with the dialect's driver.
func OpenDB(d *Dialect, dsn string) (*sql.DB, error) {
	db, err := sql.Open(d.Driver, dsn)
	if err != nil {
		return nil, err
	}

	// An in-memory sqlite database only exists on the connection that
	// created it.
	if d == SQLite && strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}
	return db, nil
}

// schema returns the statements creating every table.
func (d *Dialect) schema() []string {
	b := d.blobType
	return []string{
		`CREATE TABLE IF NOT EXISTS meta (
			name TEXT PRIMARY KEY,
			value ` + b + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS private_keys (
			id ` + b + ` PRIMARY KEY,
			pub_key ` + b + ` NOT NULL,
			ciphertext ` + b + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scripts (
			id ` + b + ` PRIMARY KEY,
			script ` + b + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS watch_only (
			id ` + b + ` PRIMARY KEY,
			script ` + b + ` NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS multisig (
			id ` + b + ` PRIMARY KEY,
			script ` + b + ` NOT NULL
		)`,
	}
}
