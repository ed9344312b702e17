// Copyright (c) 2014-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dbstore

import (
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcwallet/walletdb"
	_ "github.com/btcsuite/btcwallet/walletdb/bdb"
	"github.com/btcsuite/ismine/keystore"
	"github.com/stretchr/testify/require"
)

var testPass = []byte("hunter2")

func testPrivKey(seed byte) *btcec.PrivateKey {
	priv, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	return priv
}

// createDB creates a fresh bdb database that is closed when the test ends.
func createDB(t *testing.T) (walletdb.DB, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "keys.db")
	db, err := walletdb.Create("bdb", dbPath, true, time.Second*10, false)
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	return db, dbPath
}

func createStore(t *testing.T) (*Store, walletdb.DB, string) {
	t.Helper()

	db, dbPath := createDB(t)
	s, err := Create(db, testPass, &keystore.FastScryptOptions)
	require.NoError(t, err)
	require.False(t, s.IsLocked())
	return s, db, dbPath
}

func TestCreateOpen(t *testing.T) {
	t.Parallel()

	db, _ := createDB(t)

	_, err := Open(db)
	require.True(t, keystore.IsError(err, keystore.ErrNoExist), err)

	_, err = Create(db, testPass, &keystore.FastScryptOptions)
	require.NoError(t, err)

	_, err = Create(db, testPass, &keystore.FastScryptOptions)
	require.True(t, keystore.IsError(err, keystore.ErrAlreadyExists), err)

	s, err := Open(db)
	require.NoError(t, err)
	require.True(t, s.IsLocked())

	err = s.Unlock([]byte("wrong"))
	require.True(t, keystore.IsError(err, keystore.ErrWrongPassphrase), err)
	require.NoError(t, s.Unlock(testPass))
	require.False(t, s.IsLocked())
}

func TestKeys(t *testing.T) {
	t.Parallel()

	s, _, _ := createStore(t)

	priv := testPrivKey(1)
	id, err := s.AddKey(priv, true)
	require.NoError(t, err)
	require.True(t, s.HaveKey(id))

	pubKey, err := s.PubKey(id)
	require.NoError(t, err)
	require.Equal(t, priv.PubKey().SerializeCompressed(), pubKey)

	uncompressedID, err := s.AddKey(priv, false)
	require.NoError(t, err)
	require.NotEqual(t, id, uncompressedID)

	ids, err := s.KeyIDs()
	require.NoError(t, err)
	require.Len(t, ids, 2)
	require.Contains(t, ids, id)
	require.Contains(t, ids, uncompressedID)

	got, err := s.Key(id)
	require.NoError(t, err)
	require.Equal(t, priv.Serialize(), got.Serialize())

	var unknown keystore.KeyID
	require.False(t, s.HaveKey(unknown))
	_, err = s.Key(unknown)
	require.True(t, keystore.IsError(err, keystore.ErrKeyNotFound), err)
	_, err = s.PubKey(unknown)
	require.True(t, keystore.IsError(err, keystore.ErrKeyNotFound), err)

	// Ownership is still known while locked, the key itself is not.
	s.Lock()
	require.True(t, s.HaveKey(id))
	_, err = s.Key(id)
	require.True(t, keystore.IsError(err, keystore.ErrLocked), err)
	_, err = s.AddKey(testPrivKey(2), true)
	require.True(t, keystore.IsError(err, keystore.ErrLocked), err)
}

func TestScripts(t *testing.T) {
	t.Parallel()

	s, _, _ := createStore(t)

	redeem := []byte{txscript.OP_1, txscript.OP_CHECKSIG}
	id, err := s.AddScript(redeem)
	require.NoError(t, err)
	require.Equal(t, keystore.ScriptIDFromScript(redeem), id)
	require.True(t, s.HaveScript(id))

	got := s.RedeemScript(id)
	require.True(t, got.IsSome())
	require.Equal(t, redeem, got.UnwrapOr(nil))

	require.True(t, s.RedeemScript(keystore.ScriptID{}).IsNone())

	// An empty redeem script is stored and found.
	emptyID, err := s.AddScript(nil)
	require.NoError(t, err)
	require.True(t, s.HaveScript(emptyID))
	require.Empty(t, s.RedeemScript(emptyID).UnwrapOr([]byte{1}))

	_, err = s.AddScript(make([]byte, keystore.MaxScriptElementSize+1))
	require.True(t, keystore.IsError(err, keystore.ErrScriptTooLarge), err)
}

func TestPassiveRegistration(t *testing.T) {
	t.Parallel()

	s, _, _ := createStore(t)
	script := []byte{txscript.OP_TRUE}

	require.False(t, s.HaveWatchOnly(script))
	require.NoError(t, s.AddWatchOnly(script))
	require.True(t, s.HaveWatchOnly(script))
	require.False(t, s.HaveMultiSig(script))

	require.NoError(t, s.AddMultiSig(script))
	require.True(t, s.HaveMultiSig(script))

	removed, err := s.RemoveWatchOnly(script)
	require.NoError(t, err)
	require.True(t, removed)
	require.False(t, s.HaveWatchOnly(script))

	removed, err = s.RemoveWatchOnly(script)
	require.NoError(t, err)
	require.False(t, removed)

	removed, err = s.RemoveMultiSig(script)
	require.NoError(t, err)
	require.True(t, removed)
	require.False(t, s.HaveMultiSig(script))

	// The empty script can be registered.
	require.NoError(t, s.AddWatchOnly(nil))
	require.True(t, s.HaveWatchOnly(nil))
	require.True(t, s.HaveWatchOnly([]byte{}))
}

// TestPersistence ensures everything survives closing and reopening the
// database.
func TestPersistence(t *testing.T) {
	t.Parallel()

	s, db, dbPath := createStore(t)

	id, err := s.AddKey(testPrivKey(3), true)
	require.NoError(t, err)
	redeem := []byte{txscript.OP_2, txscript.OP_CHECKSIG}
	scriptID, err := s.AddScript(redeem)
	require.NoError(t, err)
	watched := []byte{txscript.OP_RETURN}
	require.NoError(t, s.AddWatchOnly(watched))
	require.NoError(t, s.AddMultiSig(redeem))

	require.NoError(t, db.Close())

	db, err = walletdb.Open("bdb", dbPath, true, time.Second*10, false)
	require.NoError(t, err)
	defer db.Close()

	s, err = Open(db)
	require.NoError(t, err)
	require.True(t, s.IsLocked())
	require.True(t, s.HaveKey(id))
	require.Equal(t, redeem, s.RedeemScript(scriptID).UnwrapOr(nil))
	require.True(t, s.HaveWatchOnly(watched))
	require.True(t, s.HaveMultiSig(redeem))

	require.NoError(t, s.Unlock(testPass))
	priv, err := s.Key(id)
	require.NoError(t, err)
	require.Equal(t, testPrivKey(3).Serialize(), priv.Serialize())
}

func TestKeyRecord(t *testing.T) {
	t.Parallel()

	sealed := &keystore.SealedKey{
		ID:         keystore.KeyID{1, 2, 3},
		PubKey:     testPrivKey(4).PubKey().SerializeCompressed(),
		Ciphertext: []byte{0xde, 0xad, 0xbe, 0xef},
	}
	v, err := serializeKey(sealed)
	require.NoError(t, err)

	got, err := deserializeKey(sealed.ID, v)
	require.NoError(t, err)
	require.Equal(t, sealed, got)

	// A record missing the ciphertext is rejected.
	_, err = deserializeKey(sealed.ID, v[:2+len(sealed.PubKey)])
	require.Error(t, err)
}

// TestReadOnly ensures a store opened read-only answers queries and rejects
// changes.
func TestReadOnly(t *testing.T) {
	t.Parallel()

	s, db, dbPath := createStore(t)
	watched := []byte{txscript.OP_RETURN}
	require.NoError(t, s.AddWatchOnly(watched))
	require.NoError(t, db.Close())

	db, err := walletdb.Open("bdb", dbPath, true, time.Second*10, true)
	require.NoError(t, err)
	defer db.Close()

	s, err = Open(db)
	require.NoError(t, err)
	require.True(t, s.HaveWatchOnly(watched))
	require.Error(t, s.AddWatchOnly([]byte{txscript.OP_TRUE}))

	_, err = walletdb.Open(
		"bdb", filepath.Join(t.TempDir(), "missing.db"), true,
		time.Second*10, true,
	)
	require.ErrorIs(t, err, walletdb.ErrDbDoesNotExist)
}
