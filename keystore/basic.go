// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keystore

import (
	"sort"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
)

// basicKey is a private key held in the clear along with the public key
// serialization its identifier was derived from.
type basicKey struct {
	priv   *btcec.PrivateKey
	pubKey []byte
}

// Basic is an in-memory Store holding private keys in the clear.  It is
// mostly useful for tests and for short-lived watching tools; wallets should
// prefer Crypto or one of the persistent stores.
type Basic struct {
	registry

	keyMtx sync.RWMutex
	keys   map[KeyID]basicKey
}

// A compile time check to ensure Basic implements Store.
var _ Store = (*Basic)(nil)

// NewBasic returns an empty Basic store.
func NewBasic() *Basic {
	return &Basic{
		registry: newRegistry(),
		keys:     make(map[KeyID]basicKey),
	}
}

// AddKey adds a private key to the store.  The compressed flag selects
// which serialization of the public key, and therefore which key id, the
// key is filed under.
func (b *Basic) AddKey(priv *btcec.PrivateKey, compressed bool) KeyID {
	pubKey := serializePubKey(priv, compressed)
	id, _ := KeyIDFromPubKey(pubKey)

	b.keyMtx.Lock()
	b.keys[id] = basicKey{priv: priv, pubKey: pubKey}
	b.keyMtx.Unlock()

	log.Tracef("Added key %v", id)
	return id
}

// HaveKey returns whether the private key for id is held.
//
// This is part of the Store interface.
func (b *Basic) HaveKey(id KeyID) bool {
	b.keyMtx.RLock()
	_, ok := b.keys[id]
	b.keyMtx.RUnlock()
	return ok
}

// Key returns the private key for id.
func (b *Basic) Key(id KeyID) (*btcec.PrivateKey, error) {
	b.keyMtx.RLock()
	k, ok := b.keys[id]
	b.keyMtx.RUnlock()
	if !ok {
		return nil, NewError(ErrKeyNotFound, "no key for "+id.String(), nil)
	}
	return k.priv, nil
}

// PubKey returns the serialized public key filed under id.
func (b *Basic) PubKey(id KeyID) ([]byte, error) {
	b.keyMtx.RLock()
	k, ok := b.keys[id]
	b.keyMtx.RUnlock()
	if !ok {
		return nil, NewError(ErrKeyNotFound, "no key for "+id.String(), nil)
	}
	return k.pubKey, nil
}

// KeyIDs returns the ids of all held keys in ascending byte order.
func (b *Basic) KeyIDs() []KeyID {
	b.keyMtx.RLock()
	ids := make([]KeyID, 0, len(b.keys))
	for id := range b.keys {
		ids = append(ids, id)
	}
	b.keyMtx.RUnlock()

	sortKeyIDs(ids)
	return ids
}

func sortKeyIDs(ids []KeyID) {
	sort.Slice(ids, func(i, j int) bool {
		return string(ids[i][:]) < string(ids[j][:])
	})
}
