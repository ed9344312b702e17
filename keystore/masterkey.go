// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keystore

import (
	"errors"
	"sync"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/ismine/internal/zero"
	"github.com/btcsuite/ismine/snacl"
)

// ScryptOptions is used to hold the scrypt parameters needed when deriving
// the master key from a passphrase.
type ScryptOptions struct {
	N, R, P int
}

// DefaultScryptOptions is the default options used with scrypt.
var DefaultScryptOptions = ScryptOptions{
	N: 262144, // 2^18
	R: 8,
	P: 1,
}

// FastScryptOptions are the scrypt options that should be used for testing
// purposes only where speed is more important than security.
var FastScryptOptions = ScryptOptions{
	N: 16,
	R: 8,
	P: 1,
}

// MasterKey is a passphrase derived symmetric key used by the encrypted
// stores to seal private keys.  Its derivation parameters are not secret and
// are persisted by the database backed stores; the key itself only exists
// in memory while unlocked.
type MasterKey struct {
	mtx    sync.RWMutex
	secret *snacl.SecretKey
	locked bool
}

// NewMasterKey derives a new master key from passphrase.  The returned key
// is unlocked.
func NewMasterKey(passphrase []byte, opts *ScryptOptions) (*MasterKey, error) {
	if opts == nil {
		opts = &DefaultScryptOptions
	}
	secret, err := snacl.NewSecretKey(&passphrase, opts.N, opts.R, opts.P)
	if err != nil {
		return nil, NewError(ErrCrypto, "failed to derive master key",
			err)
	}
	return &MasterKey{secret: secret}, nil
}

// ParseMasterKey restores a master key from its marshalled parameters.  The
// returned key is locked.
func ParseMasterKey(params []byte) (*MasterKey, error) {
	var secret snacl.SecretKey
	if err := secret.Unmarshal(params); err != nil {
		return nil, NewError(ErrCrypto, "failed to parse master key "+
			"parameters", err)
	}
	return &MasterKey{secret: &secret, locked: true}, nil
}

// Params returns the marshalled derivation parameters.
func (m *MasterKey) Params() []byte {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.secret.Marshal()
}

// IsLocked returns whether the key material is currently unavailable.
func (m *MasterKey) IsLocked() bool {
	m.mtx.RLock()
	defer m.mtx.RUnlock()
	return m.locked
}

// Lock clears the key material from memory.
func (m *MasterKey) Lock() {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	m.secret.Zero()
	m.locked = true
}

// Unlock derives the key material from passphrase, failing with
// ErrWrongPassphrase if it does not match.
func (m *MasterKey) Unlock(passphrase []byte) error {
	m.mtx.Lock()
	defer m.mtx.Unlock()

	err := m.secret.DeriveKey(&passphrase)
	switch {
	case errors.Is(err, snacl.ErrInvalidPassword):
		m.secret.Zero()
		m.locked = true
		return NewError(ErrWrongPassphrase, "invalid passphrase", nil)

	case err != nil:
		m.secret.Zero()
		m.locked = true
		return NewError(ErrCrypto, "failed to derive master key", err)
	}

	m.locked = false
	return nil
}

// Encrypt seals plaintext.  It fails with ErrLocked when the key is locked.
func (m *MasterKey) Encrypt(plaintext []byte) ([]byte, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	if m.locked {
		return nil, NewError(ErrLocked, "master key is locked", nil)
	}
	ciphertext, err := m.secret.Encrypt(plaintext)
	if err != nil {
		return nil, NewError(ErrCrypto, "failed to encrypt", err)
	}
	return ciphertext, nil
}

// Decrypt opens ciphertext produced by Encrypt.  It fails with ErrLocked
// when the key is locked.
func (m *MasterKey) Decrypt(ciphertext []byte) ([]byte, error) {
	m.mtx.RLock()
	defer m.mtx.RUnlock()

	if m.locked {
		return nil, NewError(ErrLocked, "master key is locked", nil)
	}
	plaintext, err := m.secret.Decrypt(ciphertext)
	if err != nil {
		return nil, NewError(ErrCrypto, "failed to decrypt", err)
	}
	return plaintext, nil
}

// SealedKey is a private key encrypted under a master key along with the
// public key serialization it is filed under.
type SealedKey struct {
	ID         KeyID
	PubKey     []byte
	Ciphertext []byte
}

// SealKey encrypts priv under m.  The compressed flag selects the public key
// serialization and therefore the key id.
func SealKey(m *MasterKey, priv *btcec.PrivateKey,
	compressed bool) (*SealedKey, error) {

	pubKey := serializePubKey(priv, compressed)
	id, _ := KeyIDFromPubKey(pubKey)

	plaintext := priv.Serialize()
	defer zero.Bytes(plaintext)

	ciphertext, err := m.Encrypt(plaintext)
	if err != nil {
		return nil, err
	}
	return &SealedKey{ID: id, PubKey: pubKey, Ciphertext: ciphertext}, nil
}

// OpenKey decrypts a sealed private key and checks it against the public key
// it was filed under.
func OpenKey(m *MasterKey, sealed *SealedKey) (*btcec.PrivateKey, error) {
	plaintext, err := m.Decrypt(sealed.Ciphertext)
	if err != nil {
		return nil, err
	}
	defer zero.Bytes(plaintext)

	priv, pub := btcec.PrivKeyFromBytes(plaintext)
	pubKey, err := btcec.ParsePubKey(sealed.PubKey)
	if err != nil || !pub.IsEqual(pubKey) {
		return nil, NewError(ErrCrypto, "decrypted key does not match "+
			"public key "+sealed.ID.String(), err)
	}
	return priv, nil
}
