// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package ismine

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/ismine/keystore"
	"github.com/btcsuite/ismine/stdscript"
)

// Ownership describes the interest a wallet has in an output script.  The
// values are mutually exclusive outcomes rather than levels of interest.
type Ownership uint8

const (
	// NoInterest means the wallet neither controls nor tracks the script.
	NoInterest Ownership = iota

	// WatchOnly means the script is tracked for balance and history
	// without a spending key.
	WatchOnly

	// MultiSigParticipant means the script is a tracked multisig policy
	// the wallet participates in without necessarily holding every key.
	MultiSigParticipant

	// Spendable means the wallet holds every key needed to spend the
	// script.
	Spendable

	numOwnership
)

var ownershipStrings = [numOwnership]string{
	NoInterest:          "none",
	WatchOnly:           "watchonly",
	MultiSigParticipant: "multisig",
	Spendable:           "spendable",
}

// String returns the Ownership as a human-readable name.
func (o Ownership) String() string {
	if o >= numOwnership {
		return "invalid"
	}
	return ownershipStrings[o]
}

// MaxScriptHashDepth is the number of nested pay-to-script-hash redeem
// scripts IsMine resolves.  Resolutions past the limit are treated as
// NoInterest.
const MaxScriptHashDepth = 2

// HaveKeys returns how many of the serialized public keys have their
// private key held by s.  Bytes that do not parse as a public key are not
// counted.
func HaveKeys(s keystore.Store, pubKeys [][]byte) int {
	var n int
	for _, pubKey := range pubKeys {
		if haveKey(s, pubKey) {
			n++
		}
	}
	return n
}

// haveKey returns whether s holds the private key for the serialized public
// key.
func haveKey(s keystore.Store, pubKey []byte) bool {
	id, ok := keystore.KeyIDFromPubKey(pubKey)
	return ok && s.HaveKey(id)
}

// IsMineAddress returns the interest s has in outputs paying to addr.  An
// address that has no standard output script is classified as the empty
// script.
func IsMineAddress(s keystore.Store, addr btcutil.Address) Ownership {
	script, err := stdscript.PayToAddrScript(addr)
	if err != nil {
		log.Debugf("Classifying unsupported destination as empty "+
			"script: %v", err)
		script = nil
	}
	return IsMine(s, script)
}

// IsMine returns the interest s has in the output script pkScript.
//
// Watch-only and tracked multisig registration of the exact script take
// precedence over everything else.  Otherwise the script is decomposed and:
// pay-to-pubkey and pay-to-pubkey-hash are spendable when the key is held;
// pay-to-script-hash takes the classification of its redeem script; bare
// multisig is spendable only when every key is held.
func IsMine(s keystore.Store, pkScript []byte) Ownership {
	return isMine(s, pkScript, 0)
}

// passiveInterest returns the interest s has in the script by registration
// alone.
func passiveInterest(s keystore.Store, pkScript []byte) Ownership {
	switch {
	case s.HaveWatchOnly(pkScript):
		return WatchOnly
	case s.HaveMultiSig(pkScript):
		return MultiSigParticipant
	default:
		return NoInterest
	}
}

func isMine(s keystore.Store, pkScript []byte, depth int) Ownership {
	if o := passiveInterest(s, pkScript); o != NoInterest {
		return o
	}

	class, params, ok := stdscript.Solve(pkScript)
	if !ok {
		// Same registrations as above, asked again.  Nothing in this
		// call writes to the store, but another goroutine may have
		// registered the script in between.
		return passiveInterest(s, pkScript)
	}

	switch class {
	case stdscript.NonStandardTy, stdscript.NullDataTy:

	case stdscript.PubKeyTy, stdscript.ZerocoinMintTy:
		if haveKey(s, params[0]) {
			return Spendable
		}

	case stdscript.PubKeyHashTy:
		id, err := keystore.NewKeyID(params[0])
		if err == nil && s.HaveKey(id) {
			return Spendable
		}

	case stdscript.ScriptHashTy:
		id, err := keystore.NewScriptID(params[0])
		if err != nil {
			break
		}
		redeem := s.RedeemScript(id)
		if redeem.IsNone() {
			break
		}
		if depth >= MaxScriptHashDepth {
			log.Debugf("Not resolving redeem script %v: nested "+
				"past depth %d", id, MaxScriptHashDepth)
			break
		}
		o := isMine(s, redeem.UnwrapOr(nil), depth+1)
		if o != NoInterest {
			return o
		}

	case stdscript.MultiSigTy:
		// Only consider a bare multisig script ours if we own every
		// key.  With a partially owned script, whoever holds the other
		// keys may be able to spend it out from under us, which
		// matters most for shared wallets.
		keys := params[1 : len(params)-1]
		if HaveKeys(s, keys) == len(keys) {
			return Spendable
		}

	default:
		log.Warnf("Unhandled script class %v", class)
	}

	return passiveInterest(s, pkScript)
}
