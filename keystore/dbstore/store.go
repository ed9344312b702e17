// Copyright (c) 2014-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package dbstore implements a keystore.Store persisted in a walletdb
// database.
//
// Everything lives under a single top level bucket:
//
//	ismine/
//	  meta/       version, snacl master key parameters
//	  keys/       key id -> tlv {1: public key, 2: encrypted private key}
//	  scripts/    script id -> 0x00 || redeem script
//	  watchonly/  hash160(script) -> 0x00 || script
//	  multisig/   hash160(script) -> 0x00 || script
//
// Private keys are encrypted under a passphrase derived master key, so key
// ownership can be answered while the store is locked.
package dbstore

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/btcsuite/ismine/keystore"
	"github.com/lightningnetwork/lnd/fn/v2"
)

// Store is a keystore.Store backed by a walletdb database.  The caller owns
// the database and must close it after it is done with the Store.
type Store struct {
	db     walletdb.DB
	master *keystore.MasterKey
}

// A compile time check to ensure Store implements keystore.Store.
var _ keystore.Store = (*Store)(nil)

// Create initializes a new store in db protected by passphrase and returns
// it unlocked.  A nil opts uses keystore.DefaultScryptOptions.
// keystore.ErrAlreadyExists is returned if db already holds a store.
func Create(db walletdb.DB, passphrase []byte,
	opts *keystore.ScryptOptions) (*Store, error) {

	master, err := keystore.NewMasterKey(passphrase, opts)
	if err != nil {
		return nil, err
	}

	err = walletdb.Update(db, func(tx walletdb.ReadWriteTx) error {
		if tx.ReadBucket(namespaceKey) != nil {
			return storeError(keystore.ErrAlreadyExists,
				"store already exists", nil)
		}

		ns, err := createBuckets(tx)
		if err != nil {
			return err
		}
		return putMeta(ns, master.Params())
	})
	if err != nil {
		master.Lock()
		return nil, err
	}

	log.Infof("Created key store")
	return &Store{db: db, master: master}, nil
}

// Open loads the store in db.  The returned store is locked.
// keystore.ErrNoExist is returned if db holds no store.
func Open(db walletdb.DB) (*Store, error) {
	var (
		version uint32
		params  []byte
	)
	err := walletdb.View(db, func(tx walletdb.ReadTx) error {
		ns := tx.ReadBucket(namespaceKey)
		if ns == nil {
			return storeError(keystore.ErrNoExist,
				"store does not exist", nil)
		}

		var err error
		version, params, err = fetchMeta(ns)
		return err
	})
	if err != nil {
		return nil, err
	}

	if version > latestVersion {
		str := fmt.Sprintf("store version %d is newer than supported "+
			"version %d", version, latestVersion)
		return nil, storeError(keystore.ErrDatabase, str, nil)
	}

	master, err := keystore.ParseMasterKey(params)
	if err != nil {
		return nil, err
	}
	return &Store{db: db, master: master}, nil
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
func (s *Store) AddKey(priv *btcec.PrivateKey,
	compressed bool) (keystore.KeyID, error) {

	sealed, err := keystore.SealKey(s.master, priv, compressed)
	if err != nil {
		return keystore.KeyID{}, err
	}

	err = walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		return putKey(tx.ReadWriteBucket(namespaceKey), sealed)
	})
	if err != nil {
		return keystore.KeyID{}, err
	}

	log.Debugf("Added key %v", sealed.ID)
	return sealed.ID, nil
}

// HaveKey returns whether the private key for id is stored, regardless of
// whether the store is locked.
//
// This is part of the keystore.Store interface.
func (s *Store) HaveKey(id keystore.KeyID) bool {
	var ok bool
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		ns := tx.ReadBucket(namespaceKey)
		ok = ns.NestedReadBucket(keysBucketName).Get(id[:]) != nil
		return nil
	})
	if err != nil {
		log.Errorf("Unable to look up key %v: %v", id, err)
		return false
	}
	return ok
}

// Key decrypts and returns the private key for id.  The store must be
// unlocked.
func (s *Store) Key(id keystore.KeyID) (*btcec.PrivateKey, error) {
	var sealed *keystore.SealedKey
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		var err error
		sealed, err = fetchKey(tx.ReadBucket(namespaceKey), id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return keystore.OpenKey(s.master, sealed)
}

// PubKey returns the serialized public key filed under id.
func (s *Store) PubKey(id keystore.KeyID) ([]byte, error) {
	var pubKey []byte
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		sealed, err := fetchKey(tx.ReadBucket(namespaceKey), id)
		if err != nil {
			return err
		}
		pubKey = append([]byte(nil), sealed.PubKey...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pubKey, nil
}

// KeyIDs returns the ids of all stored keys in ascending byte order.
func (s *Store) KeyIDs() ([]keystore.KeyID, error) {
	var ids []keystore.KeyID
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		ns := tx.ReadBucket(namespaceKey)
		return ns.NestedReadBucket(keysBucketName).ForEach(
			func(k, _ []byte) error {
				id, err := keystore.NewKeyID(k)
				if err != nil {
					return err
				}
				ids = append(ids, id)
				return nil
			},
		)
	})
	if err != nil {
		return nil, storeError(keystore.ErrDatabase,
			"failed to list keys", err)
	}
	return ids, nil
}

// AddScript stores a redeem script under its script id.
func (s *Store) AddScript(script []byte) (keystore.ScriptID, error) {
	if err := keystore.CheckRedeemScript(script); err != nil {
		return keystore.ScriptID{}, err
	}

	id := keystore.ScriptIDFromScript(script)
	err := walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		return putScript(
			tx.ReadWriteBucket(namespaceKey), scriptsBucketName,
			id[:], script,
		)
	})
	if err != nil {
		return keystore.ScriptID{}, err
	}

	log.Debugf("Added redeem script %v", id)
	return id, nil
}

// HaveScript returns whether a redeem script is stored under id.
func (s *Store) HaveScript(id keystore.ScriptID) bool {
	return s.RedeemScript(id).IsSome()
}

// RedeemScript returns the redeem script stored under id.
//
// This is part of the keystore.Store interface.
func (s *Store) RedeemScript(id keystore.ScriptID) fn.Option[[]byte] {
	var script []byte
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		var err error
		script, err = fetchScript(
			tx.ReadBucket(namespaceKey), scriptsBucketName, id[:],
		)
		return err
	})
	if err != nil {
		log.Errorf("Unable to look up redeem script %v: %v", id, err)
		return fn.None[[]byte]()
	}
	if script == nil {
		return fn.None[[]byte]()
	}
	return fn.Some(script)
}

// AddWatchOnly registers script as watch-only.
func (s *Store) AddWatchOnly(script []byte) error {
	return s.addScript(watchOnlyBucketName, script)
}

// RemoveWatchOnly unregisters a watch-only script and returns whether it was
// registered.
func (s *Store) RemoveWatchOnly(script []byte) (bool, error) {
	return s.removeScript(watchOnlyBucketName, script)
}

// HaveWatchOnly returns whether script is registered as watch-only.
//
// This is part of the keystore.Store interface.
func (s *Store) HaveWatchOnly(script []byte) bool {
	return s.haveScript(watchOnlyBucketName, script)
}

// AddMultiSig registers script as a tracked multisig policy.
func (s *Store) AddMultiSig(script []byte) error {
	return s.addScript(multiSigBucketName, script)
}

// RemoveMultiSig unregisters a tracked multisig script and returns whether
// it was registered.
func (s *Store) RemoveMultiSig(script []byte) (bool, error) {
	return s.removeScript(multiSigBucketName, script)
}

// HaveMultiSig returns whether script is a tracked multisig policy.
//
// This is part of the keystore.Store interface.
func (s *Store) HaveMultiSig(script []byte) bool {
	return s.haveScript(multiSigBucketName, script)
}

func (s *Store) addScript(bucket, script []byte) error {
	err := walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		return putScript(
			tx.ReadWriteBucket(namespaceKey), bucket,
			scriptKey(script), script,
		)
	})
	if err != nil {
		return err
	}

	log.Tracef("Registered script %x in %s", script, bucket)
	return nil
}

func (s *Store) removeScript(bucket, script []byte) (bool, error) {
	var removed bool
	err := walletdb.Update(s.db, func(tx walletdb.ReadWriteTx) error {
		var err error
		removed, err = deleteScript(
			tx.ReadWriteBucket(namespaceKey), bucket, script,
		)
		return err
	})
	return removed, err
}

func (s *Store) haveScript(bucket, script []byte) bool {
	var ok bool
	err := walletdb.View(s.db, func(tx walletdb.ReadTx) error {
		ns := tx.ReadBucket(namespaceKey)
		ok = ns.NestedReadBucket(bucket).Get(scriptKey(script)) != nil
		return nil
	})
	if err != nil {
		log.Errorf("Unable to look up script in %s: %v", bucket, err)
		return false
	}
	return ok
}
