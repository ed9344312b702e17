// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package sqlstore implements a keystore.Store persisted in a SQL database,
// either SQLite or PostgreSQL.
//
// Private keys are encrypted under a passphrase derived master key, so key
// ownership can be answered while the store is locked.
package sqlstore

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/ismine/keystore"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// latestVersion is the most recent schema version.
	latestVersion = 1

	// queryTimeout bounds the lookups made on behalf of keystore.Store,
	// which carry no context of their own.
	queryTimeout = 30 * time.Second

	metaVersion      = "version"
	metaMasterParams = "masterparams"
)

const (
	insertMetaSQL = `INSERT INTO meta (name, value) VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING`
	selectMetaSQL = `SELECT value FROM meta WHERE name = $1`

	upsertKeySQL = `INSERT INTO private_keys (id, pub_key, ciphertext)
		VALUES ($1, $2, $3) ON CONFLICT (id) DO UPDATE
		SET pub_key = excluded.pub_key, ciphertext = excluded.ciphertext`
	selectKeySQL    = `SELECT pub_key, ciphertext FROM private_keys WHERE id = $1`
	haveKeySQL      = `SELECT COUNT(*) FROM private_keys WHERE id = $1`
	selectKeyIDsSQL = `SELECT id FROM private_keys ORDER BY id`
)

// scriptTable holds the queries for a table of scripts keyed by their
// hash.
type scriptTable struct {
	name   string
	insert string
	delete string
	count  string
	get    string
}

func newScriptTable(name string) *scriptTable {
	return &scriptTable{
		name: name,
		insert: `INSERT INTO ` + name + ` (id, script) VALUES ($1, $2)
			ON CONFLICT (id) DO NOTHING`,
		delete: `DELETE FROM ` + name + ` WHERE id = $1`,
		count:  `SELECT COUNT(*) FROM ` + name + ` WHERE id = $1`,
		get:    `SELECT script FROM ` + name + ` WHERE id = $1`,
	}
}

var (
	scriptsTable   = newScriptTable("scripts")
	watchOnlyTable = newScriptTable("watch_only")
	multiSigTable  = newScriptTable("multisig")
)

// storeError creates a keystore.StoreError given a set of arguments.
func storeError(c keystore.ErrorCode, desc string, err error) error {
	return keystore.NewError(c, desc, err)
}

// nonNil returns b, or an empty slice when b is nil, so that an empty
// script is stored as an empty value rather than NULL.
func nonNil(b []byte) []byte {
	if b == nil {
		return []byte{}
	}
	return b
}

// Store is a keystore.Store backed by a SQL database.  The caller owns the
// connection pool and must close it after it is done with the Store.
type Store struct {
	db     *sql.DB
	master *keystore.MasterKey
}

// A compile time check to ensure Store implements keystore.Store.
var _ keystore.Store = (*Store)(nil)

// Create initializes the schema and a new store protected by passphrase and
// returns it unlocked.  A nil opts uses keystore.DefaultScryptOptions.
// keystore.ErrAlreadyExists is returned if db already holds a store.
func Create(ctx context.Context, db *sql.DB, d *Dialect, passphrase []byte,
	opts *keystore.ScryptOptions) (*Store, error) {

	master, err := keystore.NewMasterKey(passphrase, opts)
	if err != nil {
		return nil, err
	}

	err = withTx(ctx, db, func(tx *sql.Tx) error {
		for _, stmt := range d.schema() {
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return storeError(keystore.ErrDatabase,
					"failed to create schema", err)
			}
		}

		var version [4]byte
		binary.LittleEndian.PutUint32(version[:], latestVersion)
		res, err := tx.ExecContext(
			ctx, insertMetaSQL, metaVersion, version[:],
		)
		if err != nil {
			return storeError(keystore.ErrDatabase,
				"failed to store version", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return storeError(keystore.ErrDatabase,
				"failed to store version", err)
		}
		if n == 0 {
			return storeError(keystore.ErrAlreadyExists,
				"store already exists", nil)
		}

		_, err = tx.ExecContext(
			ctx, insertMetaSQL, metaMasterParams, master.Params(),
		)
		if err != nil {
			return storeError(keystore.ErrDatabase,
				"failed to store master key parameters", err)
		}
		return nil
	})
	if err != nil {
		master.Lock()
		return nil, err
	}

	log.Infof("Created %v key store", d)
	return &Store{db: db, master: master}, nil
}

// Open loads the store in db.  The returned store is locked.
// keystore.ErrNoExist is returned if db holds no store.
func Open(ctx context.Context, db *sql.DB, d *Dialect) (*Store, error) {
	var n int
	err := db.QueryRowContext(ctx, d.tableExists, "meta").Scan(&n)
	if err != nil {
		return nil, storeError(keystore.ErrDatabase,
			"failed to inspect schema", err)
	}
	if n == 0 {
		return nil, storeError(keystore.ErrNoExist,
			"store does not exist", nil)
	}

	version, err := fetchMeta(ctx, db, metaVersion)
	if err != nil {
		return nil, err
	}
	if len(version) != 4 {
		return nil, storeError(keystore.ErrDatabase,
			"malformed version", nil)
	}
	if v := binary.LittleEndian.Uint32(version); v > latestVersion {
		str := fmt.Sprintf("store version %d is newer than supported "+
			"version %d", v, latestVersion)
		return nil, storeError(keystore.ErrDatabase, str, nil)
	}

	params, err := fetchMeta(ctx, db, metaMasterParams)
	if err != nil {
		return nil, err
	}
	master, err := keystore.ParseMasterKey(params)
	if err != nil {
		return nil, err
	}

	return &Store{db: db, master: master}, nil
}

func fetchMeta(ctx context.Context, db *sql.DB, name string) ([]byte,
	error) {

	var value []byte
	err := db.QueryRowContext(ctx, selectMetaSQL, name).Scan(&value)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, storeError(keystore.ErrNoExist,
			"missing "+name, nil)
	case err != nil:
		return nil, storeError(keystore.ErrDatabase,
			"failed to read "+name, err)
	}
	return value, nil
}

// withTx runs f in a transaction, committing when it returns nil.
func withTx(ctx context.Context, db *sql.DB, f func(*sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return storeError(keystore.ErrDatabase,
			"failed to begin transaction", err)
	}

	if err := f(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Errorf("Rollback failed: %v", rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return storeError(keystore.ErrDatabase,
			"failed to commit transaction", err)
	}
	return nil
}

// Lock clears the master key from memory.
func (s *Store) Lock() {
	s.master.Lock()
}

// Unlock derives the master key from passphrase.
func (s *Store) Unlock(passphrase []byte) error {
	return s.master.Unlock(passphrase)
}

// IsLocked returns whether the store is locked.
func (s *Store) IsLocked() bool {
	return s.master.IsLocked()
}

// AddKey encrypts and stores a private key.  The store must be unlocked.
func (s *Store) AddKey(ctx context.Context, priv *btcec.PrivateKey,
	compressed bool) (keystore.KeyID, error) {

	sealed, err := keystore.SealKey(s.master, priv, compressed)
	if err != nil {
		return keystore.KeyID{}, err
	}

	_, err = s.db.ExecContext(
		ctx, upsertKeySQL, sealed.ID[:], sealed.PubKey,
		sealed.Ciphertext,
	)
	if err != nil {
		return keystore.KeyID{}, storeError(keystore.ErrDatabase,
			"failed to store key "+sealed.ID.String(), err)
	}

	log.Debugf("Added key %v", sealed.ID)
	return sealed.ID, nil
}

// HaveKey returns whether the private key for id is stored, regardless of
// whether the store is locked.
//
// This is part of the keystore.Store interface.
func (s *Store) HaveKey(id keystore.KeyID) bool {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var n int
	err := s.db.QueryRowContext(ctx, haveKeySQL, id[:]).Scan(&n)
	if err != nil {
		log.Errorf("Unable to look up key %v: %v", id, err)
		return false
	}
	return n > 0
}

func (s *Store) fetchKey(ctx context.Context,
	id keystore.KeyID) (*keystore.SealedKey, error) {

	sealed := &keystore.SealedKey{ID: id}
	err := s.db.QueryRowContext(ctx, selectKeySQL, id[:]).Scan(
		&sealed.PubKey, &sealed.Ciphertext,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, storeError(keystore.ErrKeyNotFound,
			"no key for "+id.String(), nil)
	case err != nil:
		return nil, storeError(keystore.ErrDatabase,
			"failed to read key "+id.String(), err)
	}
	return sealed, nil
}

// Key decrypts and returns the private key for id.  The store must be
// unlocked.
func (s *Store) Key(ctx context.Context,
	id keystore.KeyID) (*btcec.PrivateKey, error) {

	sealed, err := s.fetchKey(ctx, id)
	if err != nil {
		return nil, err
	}
	return keystore.OpenKey(s.master, sealed)
}

// PubKey returns the serialized public key filed under id.
func (s *Store) PubKey(ctx context.Context, id keystore.KeyID) ([]byte,
	error) {

	sealed, err := s.fetchKey(ctx, id)
	if err != nil {
		return nil, err
	}
	return sealed.PubKey, nil
}

// KeyIDs returns the ids of all stored keys in ascending byte order.
func (s *Store) KeyIDs(ctx context.Context) ([]keystore.KeyID, error) {
	rows, err := s.db.QueryContext(ctx, selectKeyIDsSQL)
	if err != nil {
		return nil, storeError(keystore.ErrDatabase,
			"failed to list keys", err)
	}
	defer rows.Close()

	var ids []keystore.KeyID
	for rows.Next() {
		var b []byte
		if err := rows.Scan(&b); err != nil {
			return nil, storeError(keystore.ErrDatabase,
				"failed to list keys", err)
		}
		id, err := keystore.NewKeyID(b)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, storeError(keystore.ErrDatabase,
			"failed to list keys", err)
	}
	return ids, nil
}

// AddScript stores a redeem script under its script id.
func (s *Store) AddScript(ctx context.Context,
	script []byte) (keystore.ScriptID, error) {

	if err := keystore.CheckRedeemScript(script); err != nil {
		return keystore.ScriptID{}, err
	}

	id := keystore.ScriptIDFromScript(script)
	_, err := s.db.ExecContext(ctx, scriptsTable.insert, id[:],
		nonNil(script))
	if err != nil {
		return keystore.ScriptID{}, storeError(keystore.ErrDatabase,
			"failed to store script "+id.String(), err)
	}

	log.Debugf("Added redeem script %v", id)
	return id, nil
}

// HaveScript returns whether a redeem script is stored under id.
func (s *Store) HaveScript(id keystore.ScriptID) bool {
	return s.have(scriptsTable, id[:])
}

// RedeemScript returns the redeem script stored under id.
//
// This is part of the keystore.Store interface.
func (s *Store) RedeemScript(id keystore.ScriptID) fn.Option[[]byte] {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var script []byte
	err := s.db.QueryRowContext(ctx, scriptsTable.get, id[:]).Scan(&script)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fn.None[[]byte]()
	case err != nil:
		log.Errorf("Unable to look up redeem script %v: %v", id, err)
		return fn.None[[]byte]()
	}
	return fn.Some(nonNil(script))
}

// AddWatchOnly registers script as watch-only.
func (s *Store) AddWatchOnly(ctx context.Context, script []byte) error {
	return s.add(ctx, watchOnlyTable, script)
}

// RemoveWatchOnly unregisters a watch-only script and returns whether it was
// registered.
func (s *Store) RemoveWatchOnly(ctx context.Context, script []byte) (bool,
	error) {

	return s.remove(ctx, watchOnlyTable, script)
}

// HaveWatchOnly returns whether script is registered as watch-only.
//
// This is part of the keystore.Store interface.
func (s *Store) HaveWatchOnly(script []byte) bool {
	return s.have(watchOnlyTable, scriptKey(script))
}

// AddMultiSig registers script as a tracked multisig policy.
func (s *Store) AddMultiSig(ctx context.Context, script []byte) error {
	return s.add(ctx, multiSigTable, script)
}

// RemoveMultiSig unregisters a tracked multisig script and returns whether
// it was registered.
func (s *Store) RemoveMultiSig(ctx context.Context, script []byte) (bool,
	error) {

	return s.remove(ctx, multiSigTable, script)
}

// HaveMultiSig returns whether script is a tracked multisig policy.
//
// This is part of the keystore.Store interface.
func (s *Store) HaveMultiSig(script []byte) bool {
	return s.have(multiSigTable, scriptKey(script))
}

// scriptKey returns the row id of a registered script.
func scriptKey(script []byte) []byte {
	id := keystore.ScriptIDFromScript(script)
	return id[:]
}

func (s *Store) add(ctx context.Context, t *scriptTable, script []byte) error {
	_, err := s.db.ExecContext(ctx, t.insert, scriptKey(script),
		nonNil(script))
	if err != nil {
		str := fmt.Sprintf("failed to store script in %s", t.name)
		return storeError(keystore.ErrDatabase, str, err)
	}

	log.Tracef("Registered script %x in %s", script, t.name)
	return nil
}

func (s *Store) remove(ctx context.Context, t *scriptTable,
	script []byte) (bool, error) {

	res, err := s.db.ExecContext(ctx, t.delete, scriptKey(script))
	if err != nil {
		str := fmt.Sprintf("failed to delete script from %s", t.name)
		return false, storeError(keystore.ErrDatabase, str, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		str := fmt.Sprintf("failed to delete script from %s", t.name)
		return false, storeError(keystore.ErrDatabase, str, err)
	}
	return n > 0, nil
}

func (s *Store) have(t *scriptTable, id []byte) bool {
	ctx, cancel := context.WithTimeout(context.Background(), queryTimeout)
	defer cancel()

	var n int
	if err := s.db.QueryRowContext(ctx, t.count, id).Scan(&n); err != nil {
		log.Errorf("Unable to look up script in %s: %v", t.name, err)
		return false
	}
	return n > 0
}
