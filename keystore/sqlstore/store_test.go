// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package sqlstore

import (
	"bytes"
	"context"
	"database/sql"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/ismine/keystore"
	"github.com/stretchr/testify/require"
)

var testPass = []byte("hunter2")

func testPrivKey(seed byte) *btcec.PrivateKey {
	priv, _ := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	return priv
}

// newMemoryDB opens an in-memory sqlite database closed when the test ends.
func newMemoryDB(t testing.TB) *sql.DB {
	t.Helper()

	db, err := OpenDB(SQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		db.Close()
	})
	return db
}

func TestDialectByName(t *testing.T) {
	tests := []struct {
		name string
		want *Dialect
	}{
		{"sqlite", SQLite},
		{"SQLite", SQLite},
		{"postgres", Postgres},
		{"pgx", Postgres},
	}
	for _, test := range tests {
		d, err := DialectByName(test.name)
		require.NoError(t, err)
		require.Equal(t, test.want, d)
	}

	_, err := DialectByName("mysql")
	require.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	t.Parallel()

	t.Run("create open", func(t *testing.T) {
		testCreateOpen(t, newMemoryDB(t), SQLite)
	})
	t.Run("keys", func(t *testing.T) {
		testKeys(t, newMemoryDB(t), SQLite)
	})
	t.Run("scripts", func(t *testing.T) {
		testScripts(t, newMemoryDB(t), SQLite)
	})
	t.Run("passive registration", func(t *testing.T) {
		testPassiveRegistration(t, newMemoryDB(t), SQLite)
	})
}

func createStore(t *testing.T, db *sql.DB, d *Dialect) *Store {
	t.Helper()

	s, err := Create(
		context.Background(), db, d, testPass,
		&keystore.FastScryptOptions,
	)
	require.NoError(t, err)
	require.False(t, s.IsLocked())
	return s
}

func testCreateOpen(t *testing.T, db *sql.DB, d *Dialect) {
	ctx := context.Background()

	_, err := Open(ctx, db, d)
	require.True(t, keystore.IsError(err, keystore.ErrNoExist), err)

	s := createStore(t, db, d)
	id, err := s.AddKey(ctx, testPrivKey(1), true)
	require.NoError(t, err)

	_, err = Create(ctx, db, d, testPass, &keystore.FastScryptOptions)
	require.True(t, keystore.IsError(err, keystore.ErrAlreadyExists), err)

	// A failed create leaves the existing store untouched.
	s, err = Open(ctx, db, d)
	require.NoError(t, err)
	require.True(t, s.IsLocked())
	require.True(t, s.HaveKey(id))

	err = s.Unlock([]byte("wrong"))
	require.True(t, keystore.IsError(err, keystore.ErrWrongPassphrase), err)
	require.NoError(t, s.Unlock(testPass))

	priv, err := s.Key(ctx, id)
	require.NoError(t, err)
	require.Equal(t, testPrivKey(1).Serialize(), priv.Serialize())
}

func testKeys(t *testing.T, db *sql.DB, d *Dialect) {
	ctx := context.Background()
	s := createStore(t, db, d)

	priv := testPrivKey(2)
	id, err := s.AddKey(ctx, priv, true)
	require.NoError(t, err)
	require.True(t, s.HaveKey(id))

	// Adding the same key again replaces the record.
	again, err := s.AddKey(ctx, priv, true)
	require.NoError(t, err)
	require.Equal(t, id, again)

	uncompressedID, err := s.AddKey(ctx, priv, false)
	require.NoError(t, err)
	require.NotEqual(t, id, uncompressedID)

	pubKey, err := s.PubKey(ctx, uncompressedID)
	require.NoError(t, err)
	require.Equal(t, priv.PubKey().SerializeUncompressed(), pubKey)

	ids, err := s.KeyIDs(ctx)
	require.NoError(t, err)
	require.ElementsMatch(t, []keystore.KeyID{id, uncompressedID}, ids)

	var unknown keystore.KeyID
	require.False(t, s.HaveKey(unknown))
	_, err = s.Key(ctx, unknown)
	require.True(t, keystore.IsError(err, keystore.ErrKeyNotFound), err)

	s.Lock()
	require.True(t, s.HaveKey(id))
	_, err = s.Key(ctx, id)
	require.True(t, keystore.IsError(err, keystore.ErrLocked), err)
	_, err = s.AddKey(ctx, testPrivKey(3), true)
	require.True(t, keystore.IsError(err, keystore.ErrLocked), err)
}

func testScripts(t *testing.T, db *sql.DB, d *Dialect) {
	ctx := context.Background()
	s := createStore(t, db, d)

	redeem := []byte{txscript.OP_1, txscript.OP_CHECKSIG}
	id, err := s.AddScript(ctx, redeem)
	require.NoError(t, err)
	require.Equal(t, keystore.ScriptIDFromScript(redeem), id)
	require.True(t, s.HaveScript(id))
	require.Equal(t, redeem, s.RedeemScript(id).UnwrapOr(nil))

	// Adding it twice is harmless.
	_, err = s.AddScript(ctx, redeem)
	require.NoError(t, err)

	require.False(t, s.HaveScript(keystore.ScriptID{}))
	require.True(t, s.RedeemScript(keystore.ScriptID{}).IsNone())

	emptyID, err := s.AddScript(ctx, nil)
	require.NoError(t, err)
	require.True(t, s.RedeemScript(emptyID).IsSome())
	require.Empty(t, s.RedeemScript(emptyID).UnwrapOr([]byte{1}))

	_, err = s.AddScript(ctx, make([]byte, keystore.MaxScriptElementSize+1))
	require.True(t, keystore.IsError(err, keystore.ErrScriptTooLarge), err)
}

func testPassiveRegistration(t *testing.T, db *sql.DB, d *Dialect) {
	ctx := context.Background()
	s := createStore(t, db, d)
	script := []byte{txscript.OP_TRUE}

	require.False(t, s.HaveWatchOnly(script))
	require.NoError(t, s.AddWatchOnly(ctx, script))
	require.NoError(t, s.AddWatchOnly(ctx, script))
	require.True(t, s.HaveWatchOnly(script))
	require.False(t, s.HaveMultiSig(script))

	require.NoError(t, s.AddMultiSig(ctx, script))
	require.True(t, s.HaveMultiSig(script))

	removed, err := s.RemoveWatchOnly(ctx, script)
	require.NoError(t, err)
	require.True(t, removed)
	require.False(t, s.HaveWatchOnly(script))

	removed, err = s.RemoveWatchOnly(ctx, script)
	require.NoError(t, err)
	require.False(t, removed)

	removed, err = s.RemoveMultiSig(ctx, script)
	require.NoError(t, err)
	require.True(t, removed)
	require.False(t, s.HaveMultiSig(script))

	require.NoError(t, s.AddWatchOnly(ctx, nil))
	require.True(t, s.HaveWatchOnly([]byte{}))
}
