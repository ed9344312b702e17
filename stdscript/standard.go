// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package stdscript recognizes the standard output script templates a
// wallet can hold an interest in and decomposes them into their solution
// parameters.
//
// The recognized forms are:
//
//	pubkey:        <pubkey> OP_CHECKSIG
//	pubkeyhash:    OP_DUP OP_HASH160 <20 bytes> OP_EQUALVERIFY OP_CHECKSIG
//	scripthash:    OP_HASH160 <20 bytes> OP_EQUAL
//	multisig:      OP_m <pubkey>... OP_n OP_CHECKMULTISIG
//	nulldata:      OP_RETURN <pushes only>
//	zerocoinmint:  OP_ZEROCOINMINT <len> <commitment>
//
// Public key pushes only have their size checked (33 to 65 bytes), not
// their encoding; it is up to the consumer to parse them.
package stdscript

import (
	"github.com/btcsuite/btcd/txscript"
)

const (
	// OP_ZEROCOINMINT marks a zerocoin mint output.  It is an unassigned
	// opcode in bitcoin script.
	OP_ZEROCOINMINT = 0xc1

	// MaxZerocoinMintSize is the maximum size of a zerocoin mint script.
	MaxZerocoinMintSize = 150

	// MaxPubKeysPerMultiSig is the maximum number of keys a standard bare
	// multisig script may commit to, bounded by what a small integer can
	// express.
	MaxPubKeysPerMultiSig = 16

	minPubKeyLen = 33
	maxPubKeyLen = 65

	hashLen = 20
)

// ScriptClass is an enumeration for the list of recognized script templates.
type ScriptClass byte

// Classes of script payment recognized by Solve.
const (
	NonStandardTy  ScriptClass = iota // None of the recognized forms.
	PubKeyTy                          // Pay pubkey.
	PubKeyHashTy                      // Pay pubkey hash.
	ScriptHashTy                      // Pay to script hash.
	MultiSigTy                        // Bare multi signature.
	NullDataTy                        // Empty data-only (provably prunable).
	ZerocoinMintTy                    // Zerocoin mint.

	numScriptClasses
)

// scriptClassToName houses the human-readable strings which describe each
// script class.
var scriptClassToName = [numScriptClasses]string{
	NonStandardTy:  "nonstandard",
	PubKeyTy:       "pubkey",
	PubKeyHashTy:   "pubkeyhash",
	ScriptHashTy:   "scripthash",
	MultiSigTy:     "multisig",
	NullDataTy:     "nulldata",
	ZerocoinMintTy: "zerocoinmint",
}

// String implements the Stringer interface by returning the name of
// the enum script class. If the enum is invalid then "Invalid" will be
// returned.
func (t ScriptClass) String() string {
	if t >= numScriptClasses {
		return "Invalid"
	}
	return scriptClassToName[t]
}

// op is a single parsed opcode along with any data it pushes.
type op struct {
	opcode byte
	data   []byte
}

// parseScript tokenizes the entire script.  It returns false if the script
// contains a malformed push.
func parseScript(script []byte) ([]op, bool) {
	var ops []op
	const scriptVersion = 0
	tokenizer := txscript.MakeScriptTokenizer(scriptVersion, script)
	for tokenizer.Next() {
		ops = append(ops, op{
			opcode: tokenizer.Opcode(),
			data:   tokenizer.Data(),
		})
	}
	if err := tokenizer.Err(); err != nil {
		log.Tracef("Unable to parse script %x: %v", script, err)
		return nil, false
	}
	return ops, true
}

// isPush returns whether the opcode is a push-only opcode.  As in the
// consensus definition of push-only, OP_RESERVED counts.
func isPush(opcode byte) bool {
	return opcode <= txscript.OP_16
}

// isDataPush returns whether the opcode is a push of explicit data, as
// opposed to a small integer.
func isDataPush(opcode byte) bool {
	return opcode <= txscript.OP_PUSHDATA4 && opcode != txscript.OP_0
}

// isSmallInt returns whether the opcode is OP_0 or one of OP_1 through
// OP_16.
func isSmallInt(opcode byte) bool {
	return opcode == txscript.OP_0 ||
		(opcode >= txscript.OP_1 && opcode <= txscript.OP_16)
}

// asSmallInt returns the value of a small integer opcode.
func asSmallInt(opcode byte) int {
	if opcode == txscript.OP_0 {
		return 0
	}
	return int(opcode - (txscript.OP_1 - 1))
}

// isPubKeyPush returns whether the op pushes data sized like a public key.
func isPubKeyPush(o op) bool {
	return isDataPush(o.opcode) && len(o.data) >= minPubKeyLen &&
		len(o.data) <= maxPubKeyLen
}

// isScriptHashScript returns whether the script is exactly
// OP_HASH160 OP_DATA_20 <20 bytes> OP_EQUAL.
func isScriptHashScript(script []byte) bool {
	return len(script) == 23 &&
		script[0] == txscript.OP_HASH160 &&
		script[1] == txscript.OP_DATA_20 &&
		script[22] == txscript.OP_EQUAL
}

// isZerocoinMintScript returns whether the script starts with the zerocoin
// mint marker.
func isZerocoinMintScript(script []byte) bool {
	return len(script) > 0 && script[0] == OP_ZEROCOINMINT
}

// isNullDataScript returns whether the script is OP_RETURN followed only by
// push operations.
func isNullDataScript(script []byte) bool {
	if len(script) < 1 || script[0] != txscript.OP_RETURN {
		return false
	}
	ops, ok := parseScript(script[1:])
	if !ok {
		return false
	}
	for _, o := range ops {
		if !isPush(o.opcode) {
			return false
		}
	}
	return true
}

// matchPubKey matches <pubkey> OP_CHECKSIG.
func matchPubKey(ops []op) ([][]byte, bool) {
	if len(ops) != 2 || !isPubKeyPush(ops[0]) ||
		ops[1].opcode != txscript.OP_CHECKSIG {

		return nil, false
	}
	return [][]byte{ops[0].data}, true
}

// matchPubKeyHash matches
// OP_DUP OP_HASH160 <20 bytes> OP_EQUALVERIFY OP_CHECKSIG.
func matchPubKeyHash(ops []op) ([][]byte, bool) {
	if len(ops) != 5 ||
		ops[0].opcode != txscript.OP_DUP ||
		ops[1].opcode != txscript.OP_HASH160 ||
		!isDataPush(ops[2].opcode) || len(ops[2].data) != hashLen ||
		ops[3].opcode != txscript.OP_EQUALVERIFY ||
		ops[4].opcode != txscript.OP_CHECKSIG {

		return nil, false
	}
	return [][]byte{ops[2].data}, true
}

// matchMultiSig matches OP_m <pubkey>... OP_n OP_CHECKMULTISIG where
// 1 <= m <= n and n is the number of keys.  The parameters are m, each key
// and n, with m and n encoded as single bytes.
func matchMultiSig(ops []op) ([][]byte, bool) {
	// At least OP_m, one key, OP_n and OP_CHECKMULTISIG.
	if len(ops) < 4 {
		return nil, false
	}
	first, last := ops[0], ops[len(ops)-2]
	if !isSmallInt(first.opcode) || !isSmallInt(last.opcode) ||
		ops[len(ops)-1].opcode != txscript.OP_CHECKMULTISIG {

		return nil, false
	}

	keys := ops[1 : len(ops)-2]
	for _, k := range keys {
		if !isPubKeyPush(k) {
			return nil, false
		}
	}

	m, n := asSmallInt(first.opcode), asSmallInt(last.opcode)
	if m < 1 || n < 1 || m > n || n != len(keys) {
		return nil, false
	}

	params := make([][]byte, 0, len(keys)+2)
	params = append(params, []byte{byte(m)})
	for _, k := range keys {
		params = append(params, k.data)
	}
	params = append(params, []byte{byte(n)})
	return params, true
}

// Solve decomposes the script into the template it matches and that
// template's parameters:
//
//	pubkey:        [pubkey]
//	pubkeyhash:    [20 byte key hash]
//	scripthash:    [20 byte script hash]
//	multisig:      [{m}, pubkey_1 ... pubkey_n, {n}]
//	nulldata:      []
//	zerocoinmint:  [commitment]
//
// The boolean result is false, and the class NonStandardTy, when the script
// matches no template.
func Solve(script []byte) (ScriptClass, [][]byte, bool) {
	// Shortcut for pay-to-script-hash, which is more constrained than the
	// other templates.
	if isScriptHashScript(script) {
		return ScriptHashTy, [][]byte{script[2:22]}, true
	}

	if isZerocoinMintScript(script) {
		if len(script) < 2 || len(script) > MaxZerocoinMintSize {
			return NonStandardTy, nil, false
		}
		return ZerocoinMintTy, [][]byte{script[2:]}, true
	}

	// Provably prunable, data-carrying output.
	if isNullDataScript(script) {
		return NullDataTy, nil, true
	}

	ops, ok := parseScript(script)
	if !ok {
		return NonStandardTy, nil, false
	}
	if params, ok := matchPubKey(ops); ok {
		return PubKeyTy, params, true
	}
	if params, ok := matchPubKeyHash(ops); ok {
		return PubKeyHashTy, params, true
	}
	if params, ok := matchMultiSig(ops); ok {
		return MultiSigTy, params, true
	}

	return NonStandardTy, nil, false
}

// GetScriptClass returns the class of the script passed.
func GetScriptClass(script []byte) ScriptClass {
	class, _, _ := Solve(script)
	return class
}
