// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
	"github.com/btcsuite/ismine/internal/cfgutil"
	"github.com/btcsuite/ismine/keystore"
	"github.com/btcsuite/ismine/keystore/dbstore"
	"github.com/btcsuite/ismine/keystore/sqlstore"
)

// backend is a persistent key store as used by the commands.
type backend interface {
	keystore.Store

	Lock()
	Unlock(passphrase []byte) error
	AddKey(ctx context.Context, priv *btcec.PrivateKey,
		compressed bool) (keystore.KeyID, error)
	AddScript(ctx context.Context, script []byte) (keystore.ScriptID, error)
	AddWatchOnly(ctx context.Context, script []byte) error
	RemoveWatchOnly(ctx context.Context, script []byte) (bool, error)
	AddMultiSig(ctx context.Context, script []byte) error
	RemoveMultiSig(ctx context.Context, script []byte) (bool, error)

	// Close closes the underlying database.
	Close() error
}

// bdbBackend adapts a dbstore.Store to the backend interface.  walletdb
// transactions carry no context, so the contexts are unused.
type bdbBackend struct {
	*dbstore.Store
	db walletdb.DB
}

func (b *bdbBackend) AddKey(_ context.Context, priv *btcec.PrivateKey,
	compressed bool) (keystore.KeyID, error) {

	return b.Store.AddKey(priv, compressed)
}

func (b *bdbBackend) AddScript(_ context.Context,
	script []byte) (keystore.ScriptID, error) {

	return b.Store.AddScript(script)
}

func (b *bdbBackend) AddWatchOnly(_ context.Context, script []byte) error {
	return b.Store.AddWatchOnly(script)
}

func (b *bdbBackend) RemoveWatchOnly(_ context.Context,
	script []byte) (bool, error) {

	return b.Store.RemoveWatchOnly(script)
}

func (b *bdbBackend) AddMultiSig(_ context.Context, script []byte) error {
	return b.Store.AddMultiSig(script)
}

func (b *bdbBackend) RemoveMultiSig(_ context.Context,
	script []byte) (bool, error) {

	return b.Store.RemoveMultiSig(script)
}

func (b *bdbBackend) Close() error {
	return b.db.Close()
}

// sqlBackend pairs a sqlstore.Store with the connection pool it owns.
type sqlBackend struct {
	*sqlstore.Store
	db *sql.DB
}

func (b *sqlBackend) Close() error {
	return b.db.Close()
}

func errNoStore(path string) error {
	return fmt.Errorf("no key store at %s -- use the create command "+
		"first", path)
}

// sqlSource returns the dialect and data source name of a SQL backend.
func sqlSource(cfg *config) (*sqlstore.Dialect, string, error) {
	d, err := sqlstore.DialectByName(cfg.Backend)
	if err != nil {
		return nil, "", err
	}
	if d == sqlstore.SQLite {
		return d, "file:" + cfg.DBPath + "?mode=rwc&_fk=1", nil
	}
	return d, cfg.DSN, nil
}

// createBackend creates a new key store as configured.  It is returned
// unlocked.
func createBackend(ctx context.Context, cfg *config, passphrase []byte,
	opts *keystore.ScryptOptions) (backend, error) {

	if cfg.Backend != "postgres" {
		err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0700)
		if err != nil {
			return nil, err
		}
	}

	switch cfg.Backend {
	case "bdb":
		db, err := walletdb.Create(
			"bdb", cfg.DBPath, true, cfg.DBTimeout, false,
		)
		if err != nil {
			return nil, err
		}
		s, err := dbstore.Create(db, passphrase, opts)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &bdbBackend{Store: s, db: db}, nil

	default:
		d, dsn, err := sqlSource(cfg)
		if err != nil {
			return nil, err
		}
		db, err := sqlstore.OpenDB(d, dsn)
		if err != nil {
			return nil, err
		}
		s, err := sqlstore.Create(ctx, db, d, passphrase, opts)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &sqlBackend{Store: s, db: db}, nil
	}
}

// openBackend opens the configured key store.  It is returned locked.  A
// read-only bdb store rejects every mutation.
func openBackend(ctx context.Context, cfg *config,
	readOnly bool) (backend, error) {

	switch cfg.Backend {
	case "bdb":
		db, err := walletdb.Open(
			"bdb", cfg.DBPath, true, cfg.DBTimeout, readOnly,
		)
		if errors.Is(err, walletdb.ErrDbDoesNotExist) {
			return nil, errNoStore(cfg.DBPath)
		}
		if err != nil {
			return nil, err
		}
		s, err := dbstore.Open(db)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &bdbBackend{Store: s, db: db}, nil

	default:
		d, dsn, err := sqlSource(cfg)
		if err != nil {
			return nil, err
		}
		if d == sqlstore.SQLite {
			exists, err := cfgutil.FileExists(cfg.DBPath)
			if err != nil {
				return nil, err
			}
			if !exists {
				return nil, errNoStore(cfg.DBPath)
			}
		}
		db, err := sqlstore.OpenDB(d, dsn)
		if err != nil {
			return nil, err
		}
		s, err := sqlstore.Open(ctx, db, d)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &sqlBackend{Store: s, db: db}, nil
	}
}
