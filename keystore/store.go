// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package keystore defines the read-only capabilities the ownership
// classifier requires of a wallet's key and script storage, along with
// in-memory implementations of it.
//
// The Store interface is deliberately narrow: whether a private key is held
// for a key identifier, whether a script is registered as watch-only or as a
// tracked multisig policy, and the redeem script for a script identifier, if
// any.  Plain, encrypted and database backed stores are interchangeable
// behind it.
package keystore

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// IDSize is the size of both key and script identifiers: a
	// RIPEMD160(SHA256(x)) digest.
	IDSize = 20

	// MaxScriptElementSize is the maximum number of bytes a single data
	// push may have.  A redeem script larger than this can never be
	// revealed by a spending input, so stores refuse to register one.
	MaxScriptElementSize = 520
)

// KeyID identifies a public key by the Hash160 of its serialization.  The
// compressed and uncompressed serializations of the same key have distinct
// identifiers.
type KeyID [IDSize]byte

// ScriptID identifies a script by its Hash160.
type ScriptID [IDSize]byte

// String returns the identifier as a hex string.
func (id KeyID) String() string {
	return hex.EncodeToString(id[:])
}

// String returns the identifier as a hex string.
func (id ScriptID) String() string {
	return hex.EncodeToString(id[:])
}

// NewKeyID interprets b as a key identifier.  It errors when b is not
// exactly IDSize bytes.
func NewKeyID(b []byte) (KeyID, error) {
	var id KeyID
	if len(b) != IDSize {
		str := fmt.Sprintf("key id must be %d bytes, got %d", IDSize,
			len(b))
		return id, NewError(ErrInvalidKey, str, nil)
	}
	copy(id[:], b)
	return id, nil
}

// NewScriptID interprets b as a script identifier.  It errors when b is not
// exactly IDSize bytes.
func NewScriptID(b []byte) (ScriptID, error) {
	var id ScriptID
	if len(b) != IDSize {
		str := fmt.Sprintf("script id must be %d bytes, got %d", IDSize,
			len(b))
		return id, NewError(ErrInvalidKey, str, nil)
	}
	copy(id[:], b)
	return id, nil
}

// KeyIDFromPubKey parses the serialized public key and returns the
// identifier of that exact serialization.  The boolean is false when the
// bytes are not a valid public key.
func KeyIDFromPubKey(serialized []byte) (KeyID, bool) {
	var id KeyID
	if _, err := btcec.ParsePubKey(serialized); err != nil {
		return id, false
	}
	copy(id[:], btcutil.Hash160(serialized))
	return id, true
}

// ScriptIDFromScript returns the identifier a pay-to-script-hash output
// commits to for the given redeem script.
func ScriptIDFromScript(script []byte) ScriptID {
	var id ScriptID
	copy(id[:], btcutil.Hash160(script))
	return id
}

// serializePubKey returns the serialization of the public key of priv in
// the requested form.
func serializePubKey(priv *btcec.PrivateKey, compressed bool) []byte {
	if compressed {
		return priv.PubKey().SerializeCompressed()
	}
	return priv.PubKey().SerializeUncompressed()
}

// Store is the set of read-only queries the ownership classifier makes
// against a wallet's key and script storage.  Implementations must be safe
// for concurrent use.
type Store interface {
	// HaveKey returns whether the private key for the identified public
	// key is held.  A locked encrypted store still reports its keys.
	HaveKey(id KeyID) bool

	// HaveWatchOnly returns whether the exact script is registered as
	// watch-only.
	HaveWatchOnly(script []byte) bool

	// HaveMultiSig returns whether the exact script is registered as a
	// tracked multisig policy.
	HaveMultiSig(script []byte) bool

	// RedeemScript returns the redeem script registered for the script
	// identifier, if any.
	RedeemScript(id ScriptID) fn.Option[[]byte]
}
