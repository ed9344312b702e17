// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package stdscript

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/txscript"
)

var (
	// ErrUnsupportedAddress is returned when attempting to create a
	// script for an address form with no recognized template.
	ErrUnsupportedAddress = errors.New("unsupported address type")

	// ErrInvalidMultiSig is returned when the parameters of a multisig
	// script are out of range or a key does not parse.
	ErrInvalidMultiSig = errors.New("invalid multisig parameters")

	// ErrCommitmentSize is returned when a zerocoin mint commitment does
	// not fit the template.
	ErrCommitmentSize = errors.New("invalid zerocoin mint commitment size")
)

// PayToAddrScript creates the canonical output script paying to addr.  Only
// the destinations Solve recognizes are supported: pay-to-pubkey-hash,
// pay-to-script-hash and pay-to-pubkey.  Every other address form, including
// a nil address, returns ErrUnsupportedAddress.
func PayToAddrScript(addr btcutil.Address) ([]byte, error) {
	switch addr := addr.(type) {
	case *btcutil.AddressPubKeyHash:
		if addr == nil {
			break
		}
		return txscript.PayToAddrScript(addr)

	case *btcutil.AddressScriptHash:
		if addr == nil {
			break
		}
		return txscript.PayToAddrScript(addr)

	case *btcutil.AddressPubKey:
		if addr == nil {
			break
		}
		return txscript.PayToAddrScript(addr)
	}

	return nil, fmt.Errorf("%w: %T", ErrUnsupportedAddress, addr)
}

// MultiSigScript returns a bare multisig script requiring nRequired
// signatures from the given serialized public keys.
func MultiSigScript(nRequired int, pubKeys [][]byte) ([]byte, error) {
	if nRequired < 1 || nRequired > len(pubKeys) ||
		len(pubKeys) > MaxPubKeysPerMultiSig {

		return nil, fmt.Errorf("%w: %d-of-%d", ErrInvalidMultiSig,
			nRequired, len(pubKeys))
	}

	builder := txscript.NewScriptBuilder().AddInt64(int64(nRequired))
	for i, key := range pubKeys {
		if _, err := btcec.ParsePubKey(key); err != nil {
			return nil, fmt.Errorf("%w: key %d: %v",
				ErrInvalidMultiSig, i, err)
		}
		builder.AddData(key)
	}
	builder.AddInt64(int64(len(pubKeys)))
	builder.AddOp(txscript.OP_CHECKMULTISIG)

	return builder.Script()
}

// ZerocoinMintScript returns a zerocoin mint script for the commitment.  The
// commitment follows the marker and a single length byte.
func ZerocoinMintScript(commitment []byte) ([]byte, error) {
	if len(commitment) == 0 ||
		len(commitment) > MaxZerocoinMintSize-2 {

		return nil, fmt.Errorf("%w: %d bytes", ErrCommitmentSize,
			len(commitment))
	}

	script := make([]byte, 0, len(commitment)+2)
	script = append(script, OP_ZEROCOINMINT, byte(len(commitment)))
	return append(script, commitment...), nil
}
