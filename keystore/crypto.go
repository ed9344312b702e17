// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keystore

import (
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
)

// Crypto is an in-memory Store whose private keys are encrypted under a
// passphrase derived MasterKey.  Key ownership can be answered while locked;
// only access to the private keys themselves requires unlocking.
type Crypto struct {
	registry

	master *MasterKey

	keyMtx sync.RWMutex
	keys   map[KeyID]*SealedKey
}

// A compile time check to ensure Crypto implements Store.
var _ Store = (*Crypto)(nil)

// NewCrypto returns an empty, unlocked Crypto store protected by
// passphrase.  A nil opts uses DefaultScryptOptions.
func NewCrypto(passphrase []byte, opts *ScryptOptions) (*Crypto, error) {
	master, err := NewMasterKey(passphrase, opts)
	if err != nil {
		return nil, err
	}
	return &Crypto{
		registry: newRegistry(),
		master:   master,
		keys:     make(map[KeyID]*SealedKey),
	}, nil
}

// Lock clears the master key from memory.
func (c *Crypto) Lock() {
	c.master.Lock()
}

// Unlock derives the master key from passphrase.
func (c *Crypto) Unlock(passphrase []byte) error {
	return c.master.Unlock(passphrase)
}

// IsLocked returns whether the store is locked.
func (c *Crypto) IsLocked() bool {
	return c.master.IsLocked()
}

// AddKey encrypts and adds a private key.  The store must be unlocked.
func (c *Crypto) AddKey(priv *btcec.PrivateKey, compressed bool) (KeyID, error) {
	sealed, err := SealKey(c.master, priv, compressed)
	if err != nil {
		return KeyID{}, err
	}

	c.keyMtx.Lock()
	c.keys[sealed.ID] = sealed
	c.keyMtx.Unlock()

	log.Tracef("Added encrypted key %v", sealed.ID)
	return sealed.ID, nil
}

// HaveKey returns whether the private key for id is held, regardless of
// whether the store is locked.
//
// This is part of the Store interface.
func (c *Crypto) HaveKey(id KeyID) bool {
	c.keyMtx.RLock()
	_, ok := c.keys[id]
	c.keyMtx.RUnlock()
	return ok
}

// Key decrypts and returns the private key for id.  The store must be
// unlocked.
func (c *Crypto) Key(id KeyID) (*btcec.PrivateKey, error) {
	c.keyMtx.RLock()
	sealed, ok := c.keys[id]
	c.keyMtx.RUnlock()
	if !ok {
		return nil, NewError(ErrKeyNotFound, "no key for "+id.String(), nil)
	}
	return OpenKey(c.master, sealed)
}

// PubKey returns the serialized public key filed under id.
func (c *Crypto) PubKey(id KeyID) ([]byte, error) {
	c.keyMtx.RLock()
	sealed, ok := c.keys[id]
	c.keyMtx.RUnlock()
	if !ok {
		return nil, NewError(ErrKeyNotFound, "no key for "+id.String(), nil)
	}
	return sealed.PubKey, nil
}

// KeyIDs returns the ids of all held keys in ascending byte order.
func (c *Crypto) KeyIDs() []KeyID {
	c.keyMtx.RLock()
	ids := make([]KeyID, 0, len(c.keys))
	for id := range c.keys {
		ids = append(ids, id)
	}
	c.keyMtx.RUnlock()

	sortKeyIDs(ids)
	return ids
}
