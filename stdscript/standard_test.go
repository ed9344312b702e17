// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stdscript

import (
	"bytes"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/davecgh/go-spew/spew"
	"github.com/stretchr/testify/require"
)

func pubKey(seed byte) *btcec.PublicKey {
	_, pub := btcec.PrivKeyFromBytes(bytes.Repeat([]byte{seed}, 32))
	return pub
}

// mustScript builds a script from the builder or fails the test.
func mustScript(t *testing.T, b *txscript.ScriptBuilder) []byte {
	t.Helper()

	script, err := b.Script()
	require.NoError(t, err)
	return script
}

func TestScriptClassStringer(t *testing.T) {
	tests := []struct {
		in   ScriptClass
		want string
	}{
		{NonStandardTy, "nonstandard"},
		{PubKeyTy, "pubkey"},
		{PubKeyHashTy, "pubkeyhash"},
		{ScriptHashTy, "scripthash"},
		{MultiSigTy, "multisig"},
		{NullDataTy, "nulldata"},
		{ZerocoinMintTy, "zerocoinmint"},
		{numScriptClasses, "Invalid"},
		{0xff, "Invalid"},
	}
	for _, test := range tests {
		require.Equal(t, test.want, test.in.String())
	}
}

// TestSolve ensures every template is recognized with the expected
// parameters and near misses are rejected.
func TestSolve(t *testing.T) {
	t.Parallel()

	pk1 := pubKey(1).SerializeCompressed()
	pk2 := pubKey(2).SerializeUncompressed()
	pk3 := pubKey(3).SerializeCompressed()
	hash := btcutil.Hash160(pk1)

	b := txscript.NewScriptBuilder

	tests := []struct {
		name   string
		script []byte
		class  ScriptClass
		params [][]byte
		ok     bool
	}{{
		name:   "p2pk compressed",
		script: mustScript(t, b().AddData(pk1).AddOp(txscript.OP_CHECKSIG)),
		class:  PubKeyTy,
		params: [][]byte{pk1},
		ok:     true,
	}, {
		name:   "p2pk uncompressed",
		script: mustScript(t, b().AddData(pk2).AddOp(txscript.OP_CHECKSIG)),
		class:  PubKeyTy,
		params: [][]byte{pk2},
		ok:     true,
	}, {
		name: "p2pk key too short",
		script: mustScript(t, b().AddData(make([]byte, 32)).
			AddOp(txscript.OP_CHECKSIG)),
		class: NonStandardTy,
	}, {
		name: "p2pkh",
		script: mustScript(t, b().AddOp(txscript.OP_DUP).
			AddOp(txscript.OP_HASH160).AddData(hash).
			AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG)),
		class:  PubKeyHashTy,
		params: [][]byte{hash},
		ok:     true,
	}, {
		name: "p2pkh wrong hash size",
		script: mustScript(t, b().AddOp(txscript.OP_DUP).
			AddOp(txscript.OP_HASH160).AddData(hash[:19]).
			AddOp(txscript.OP_EQUALVERIFY).AddOp(txscript.OP_CHECKSIG)),
		class: NonStandardTy,
	}, {
		name: "p2sh",
		script: mustScript(t, b().AddOp(txscript.OP_HASH160).
			AddData(hash).AddOp(txscript.OP_EQUAL)),
		class:  ScriptHashTy,
		params: [][]byte{hash},
		ok:     true,
	}, {
		name: "p2sh trailing opcode",
		script: mustScript(t, b().AddOp(txscript.OP_HASH160).
			AddData(hash).AddOp(txscript.OP_EQUAL).AddOp(txscript.OP_NOP)),
		class: NonStandardTy,
	}, {
		name: "2-of-3 multisig",
		script: mustScript(t, b().AddOp(txscript.OP_2).AddData(pk1).
			AddData(pk2).AddData(pk3).AddOp(txscript.OP_3).
			AddOp(txscript.OP_CHECKMULTISIG)),
		class:  MultiSigTy,
		params: [][]byte{{2}, pk1, pk2, pk3, {3}},
		ok:     true,
	}, {
		name: "multisig m greater than n",
		script: mustScript(t, b().AddOp(txscript.OP_3).AddData(pk1).
			AddData(pk2).AddOp(txscript.OP_2).
			AddOp(txscript.OP_CHECKMULTISIG)),
		class: NonStandardTy,
	}, {
		name: "multisig zero required",
		script: mustScript(t, b().AddOp(txscript.OP_0).AddData(pk1).
			AddOp(txscript.OP_1).AddOp(txscript.OP_CHECKMULTISIG)),
		class: NonStandardTy,
	}, {
		name: "multisig n mismatch",
		script: mustScript(t, b().AddOp(txscript.OP_1).AddData(pk1).
			AddData(pk2).AddOp(txscript.OP_3).
			AddOp(txscript.OP_CHECKMULTISIG)),
		class: NonStandardTy,
	}, {
		name: "multisig no keys",
		script: mustScript(t, b().AddOp(txscript.OP_1).
			AddOp(txscript.OP_1).AddOp(txscript.OP_CHECKMULTISIG)),
		class: NonStandardTy,
	}, {
		name:   "bare op_return",
		script: []byte{txscript.OP_RETURN},
		class:  NullDataTy,
		ok:     true,
	}, {
		name: "op_return with data",
		script: mustScript(t, b().AddOp(txscript.OP_RETURN).
			AddData([]byte("hello")).AddOp(txscript.OP_5)),
		class: NullDataTy,
		ok:    true,
	}, {
		name: "op_return with non-push",
		script: mustScript(t, b().AddOp(txscript.OP_RETURN).
			AddOp(txscript.OP_CHECKSIG)),
		class: NonStandardTy,
	}, {
		name:   "zerocoin mint",
		script: append([]byte{OP_ZEROCOINMINT, 33}, pk1...),
		class:  ZerocoinMintTy,
		params: [][]byte{pk1},
		ok:     true,
	}, {
		name:   "zerocoin mint truncated",
		script: []byte{OP_ZEROCOINMINT},
		class:  NonStandardTy,
	}, {
		name:   "zerocoin mint too large",
		script: append([]byte{OP_ZEROCOINMINT, 0}, make([]byte, 149)...),
		class:  NonStandardTy,
	}, {
		name:   "malformed push",
		script: []byte{txscript.OP_DATA_20, 0x01},
		class:  NonStandardTy,
	}, {
		name:   "empty",
		script: nil,
		class:  NonStandardTy,
	}, {
		name:   "op_true",
		script: []byte{txscript.OP_TRUE},
		class:  NonStandardTy,
	}}

	for _, test := range tests {
		class, params, ok := Solve(test.script)
		require.Equal(t, test.ok, ok, test.name)
		require.Equal(t, test.class, class, test.name)
		require.Equal(t, test.params, params, "%s: %v", test.name,
			spew.Sdump(params))
		require.Equal(t, test.class, GetScriptClass(test.script),
			test.name)
	}
}

// TestSolveNonCanonicalPush ensures pushes are matched by content rather
// than by the opcode used to push them.
func TestSolveNonCanonicalPush(t *testing.T) {
	hash := btcutil.Hash160([]byte("key"))

	script := []byte{txscript.OP_DUP, txscript.OP_HASH160,
		txscript.OP_PUSHDATA1, 20}
	script = append(script, hash...)
	script = append(script, txscript.OP_EQUALVERIFY, txscript.OP_CHECKSIG)

	class, params, ok := Solve(script)
	require.True(t, ok)
	require.Equal(t, PubKeyHashTy, class)
	require.Equal(t, [][]byte{hash}, params)
}

func TestPayToAddrScript(t *testing.T) {
	params := &chaincfg.MainNetParams
	pk := pubKey(4).SerializeCompressed()

	pkh, err := btcutil.NewAddressPubKeyHash(btcutil.Hash160(pk), params)
	require.NoError(t, err)
	sh, err := btcutil.NewAddressScriptHash([]byte{txscript.OP_TRUE}, params)
	require.NoError(t, err)
	apk, err := btcutil.NewAddressPubKey(pk, params)
	require.NoError(t, err)
	wpkh, err := btcutil.NewAddressWitnessPubKeyHash(
		btcutil.Hash160(pk), params,
	)
	require.NoError(t, err)

	tests := []struct {
		addr  btcutil.Address
		class ScriptClass
	}{
		{pkh, PubKeyHashTy},
		{sh, ScriptHashTy},
		{apk, PubKeyTy},
	}
	for _, test := range tests {
		script, err := PayToAddrScript(test.addr)
		require.NoError(t, err)
		require.Equal(t, test.class, GetScriptClass(script))
	}

	var nilPKH *btcutil.AddressPubKeyHash
	for _, addr := range []btcutil.Address{wpkh, nil, nilPKH} {
		_, err := PayToAddrScript(addr)
		require.ErrorIs(t, err, ErrUnsupportedAddress)
	}
}

func TestMultiSigScript(t *testing.T) {
	keys := [][]byte{
		pubKey(1).SerializeCompressed(),
		pubKey(2).SerializeCompressed(),
	}

	script, err := MultiSigScript(1, keys)
	require.NoError(t, err)
	class, params, ok := Solve(script)
	require.True(t, ok)
	require.Equal(t, MultiSigTy, class)
	require.Equal(t, [][]byte{{1}, keys[0], keys[1], {2}}, params)

	_, err = MultiSigScript(0, keys)
	require.ErrorIs(t, err, ErrInvalidMultiSig)
	_, err = MultiSigScript(3, keys)
	require.ErrorIs(t, err, ErrInvalidMultiSig)
	_, err = MultiSigScript(1, [][]byte{{0x02, 0x01}})
	require.ErrorIs(t, err, ErrInvalidMultiSig)
}

func TestZerocoinMintScript(t *testing.T) {
	commitment := pubKey(5).SerializeCompressed()

	script, err := ZerocoinMintScript(commitment)
	require.NoError(t, err)
	class, params, ok := Solve(script)
	require.True(t, ok)
	require.Equal(t, ZerocoinMintTy, class)
	require.Equal(t, [][]byte{commitment}, params)

	_, err = ZerocoinMintScript(nil)
	require.ErrorIs(t, err, ErrCommitmentSize)
	_, err = ZerocoinMintScript(make([]byte, MaxZerocoinMintSize-1))
	require.ErrorIs(t, err, ErrCommitmentSize)
}
