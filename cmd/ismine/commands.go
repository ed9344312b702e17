// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/psbt"
	"github.com/btcsuite/ismine/internal/zero"
	"github.com/btcsuite/ismine/ismine"
	"github.com/btcsuite/ismine/keystore"
	"github.com/btcsuite/ismine/stdscript"
)

// app carries what a command needs to run.
type app struct {
	cfg *config
	out io.Writer

	// readPass reads a passphrase, twice when confirm is set.
	readPass func(prefix string, confirm bool) ([]byte, error)

	// scrypt selects the master key derivation cost of new stores.  Nil
	// uses keystore.DefaultScryptOptions.
	scrypt *keystore.ScryptOptions
}

// command describes a subcommand.  maxArgs of -1 means no limit.
type command struct {
	name    string
	short   string
	long    string
	minArgs int
	maxArgs int
	run     func(ctx context.Context, a *app, args []string) error
}

var commands = []command{{
	name:  "create",
	short: "Create a new key store",
	long:  "Create a new key store protected by a passphrase.",
	run:   runCreate,
}, {
	name:    "importprivkey",
	short:   "Import a WIF private key",
	long:    "Import a WIF encoded private key.  Requires the passphrase.",
	minArgs: 1, maxArgs: 1,
	run: runImportPrivKey,
}, {
	name:    "addredeemscript",
	short:   "Add a pay-to-script-hash redeem script",
	long:    "Add a hex encoded redeem script so outputs paying to its hash can be classified.",
	minArgs: 1, maxArgs: 1,
	run: runAddRedeemScript,
}, {
	name:    "addwatchonly",
	short:   "Watch an output script",
	long:    "Register a hex encoded output script as watch-only.",
	minArgs: 1, maxArgs: 1,
	run: registrationCommand(backend.AddWatchOnly, "watch-only"),
}, {
	name:    "removewatchonly",
	short:   "Stop watching an output script",
	long:    "Unregister a hex encoded watch-only output script.",
	minArgs: 1, maxArgs: 1,
	run: removalCommand(backend.RemoveWatchOnly, "watch-only"),
}, {
	name:    "addmultisig",
	short:   "Track a multisig output script",
	long:    "Register a hex encoded output script as a tracked multisig policy.",
	minArgs: 1, maxArgs: 1,
	run: registrationCommand(backend.AddMultiSig, "tracked multisig"),
}, {
	name:    "removemultisig",
	short:   "Stop tracking a multisig output script",
	long:    "Unregister a hex encoded tracked multisig output script.",
	minArgs: 1, maxArgs: 1,
	run: removalCommand(backend.RemoveMultiSig, "tracked multisig"),
}, {
	name:    "classify",
	short:   "Classify output scripts",
	long:    "Report the wallet's interest in each hex encoded output script.",
	minArgs: 1, maxArgs: -1,
	run: runClassify,
}, {
	name:    "address",
	short:   "Classify addresses",
	long:    "Report the wallet's interest in outputs paying to each address.",
	minArgs: 1, maxArgs: -1,
	run: runAddress,
}, {
	name:    "psbt",
	short:   "Classify the outputs of a PSBT",
	long:    "Report the wallet's interest in every output of a base64 encoded PSBT.",
	minArgs: 1, maxArgs: 1,
	run: runPSBT,
}}

// checkArgs validates the number of arguments given to c.
func (c *command) checkArgs(args []string) error {
	if len(args) < c.minArgs || (c.maxArgs >= 0 && len(args) > c.maxArgs) {
		return fmt.Errorf("%s: wrong number of arguments (%d)", c.name,
			len(args))
	}
	return nil
}

// withStore opens the configured store, runs f, and closes it.
func (a *app) withStore(ctx context.Context, f func(backend) error) error {
	return a.openStore(ctx, false, f)
}

// withReadOnlyStore is withStore for commands that only query the store.
func (a *app) withReadOnlyStore(ctx context.Context,
	f func(backend) error) error {

	return a.openStore(ctx, true, f)
}

func (a *app) openStore(ctx context.Context, readOnly bool,
	f func(backend) error) error {

	s, err := openBackend(ctx, a.cfg, readOnly)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Errorf("Unable to close key store: %v", err)
		}
	}()
	return f(s)
}

// withUnlockedStore opens the configured store, unlocks it with a
// passphrase read from the user, and runs f.
func (a *app) withUnlockedStore(ctx context.Context,
	f func(backend) error) error {

	return a.withStore(ctx, func(s backend) error {
		pass, err := a.readPass("Enter the key store passphrase", false)
		if err != nil {
			return err
		}
		err = s.Unlock(pass)
		zero.Bytes(pass)
		if err != nil {
			return err
		}
		defer s.Lock()

		return f(s)
	})
}

func decodeScript(s string) ([]byte, error) {
	script, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid script hex %q: %v", s, err)
	}
	return script, nil
}

func runCreate(ctx context.Context, a *app, _ []string) error {
	pass, err := a.readPass("Enter a passphrase for the new key store", true)
	if err != nil {
		return err
	}
	defer zero.Bytes(pass)

	s, err := createBackend(ctx, a.cfg, pass, a.scrypt)
	if err != nil {
		return err
	}
	s.Lock()
	if err := s.Close(); err != nil {
		return err
	}

	location := a.cfg.DBPath
	if a.cfg.Backend == "postgres" {
		location = "postgres"
	}
	fmt.Fprintf(a.out, "Created %s key store for %s at %s\n",
		a.cfg.Backend, a.cfg.activeNet.Name, location)
	return nil
}

func runImportPrivKey(ctx context.Context, a *app, args []string) error {
	wif, err := btcutil.DecodeWIF(args[0])
	if err != nil {
		return fmt.Errorf("invalid WIF: %v", err)
	}
	if !wif.IsForNet(a.cfg.activeNet) {
		return fmt.Errorf("key is not for %s", a.cfg.activeNet.Name)
	}

	return a.withUnlockedStore(ctx, func(s backend) error {
		id, err := s.AddKey(ctx, wif.PrivKey, wif.CompressPubKey)
		if err != nil {
			return err
		}

		addr, err := btcutil.NewAddressPubKeyHash(
			btcutil.Hash160(wif.SerializePubKey()), a.cfg.activeNet,
		)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Imported key %v (%v)\n", id, addr)
		return nil
	})
}

func runAddRedeemScript(ctx context.Context, a *app, args []string) error {
	script, err := decodeScript(args[0])
	if err != nil {
		return err
	}

	return a.withStore(ctx, func(s backend) error {
		id, err := s.AddScript(ctx, script)
		if err != nil {
			return err
		}

		addr, err := btcutil.NewAddressScriptHashFromHash(
			id[:], a.cfg.activeNet,
		)
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Added %v redeem script %v (%v)\n",
			stdscript.GetScriptClass(script), id, addr)
		return nil
	})
}

func registrationCommand(add func(backend, context.Context, []byte) error,
	what string) func(context.Context, *app, []string) error {

	return func(ctx context.Context, a *app, args []string) error {
		script, err := decodeScript(args[0])
		if err != nil {
			return err
		}

		return a.withStore(ctx, func(s backend) error {
			if err := add(s, ctx, script); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "Registered %x as %s\n", script, what)
			return nil
		})
	}
}

func removalCommand(remove func(backend, context.Context, []byte) (bool,
	error), what string) func(context.Context, *app, []string) error {

	return func(ctx context.Context, a *app, args []string) error {
		script, err := decodeScript(args[0])
		if err != nil {
			return err
		}

		return a.withStore(ctx, func(s backend) error {
			removed, err := remove(s, ctx, script)
			if err != nil {
				return err
			}
			if !removed {
				fmt.Fprintf(a.out, "%x is not registered as %s\n",
					script, what)
				return nil
			}
			fmt.Fprintf(a.out, "Unregistered %x as %s\n", script, what)
			return nil
		})
	}
}

// printClassification writes one line per classified item followed by a
// summary when there is more than one.
func printClassification(w io.Writer, labels []string,
	results []ismine.Ownership) {

	for i, o := range results {
		fmt.Fprintf(w, "%s %v\n", labels[i], o)
	}
	if len(results) > 1 {
		sum := ismine.Summarize(results)
		fmt.Fprintf(w, "total: %v\n", &sum)
	}
}

func runClassify(ctx context.Context, a *app, args []string) error {
	scripts := make([][]byte, len(args))
	labels := make([]string, len(args))
	for i, arg := range args {
		script, err := decodeScript(arg)
		if err != nil {
			return err
		}
		scripts[i] = script
		labels[i] = fmt.Sprintf("%x (%v):", script,
			stdscript.GetScriptClass(script))
	}

	return a.withReadOnlyStore(ctx, func(s backend) error {
		results, err := ismine.ClassifyScripts(ctx, s, scripts)
		if err != nil {
			return err
		}
		printClassification(a.out, labels, results)
		return nil
	})
}

func runAddress(ctx context.Context, a *app, args []string) error {
	addrs := make([]btcutil.Address, len(args))
	labels := make([]string, len(args))
	for i, arg := range args {
		addr, err := btcutil.DecodeAddress(arg, a.cfg.activeNet)
		if err != nil {
			return fmt.Errorf("invalid address %q: %v", arg, err)
		}
		if !addr.IsForNet(a.cfg.activeNet) {
			return fmt.Errorf("address %v is not for %s", addr,
				a.cfg.activeNet.Name)
		}
		addrs[i] = addr
		labels[i] = addr.String() + ":"
	}

	return a.withReadOnlyStore(ctx, func(s backend) error {
		results := make([]ismine.Ownership, len(addrs))
		for i, addr := range addrs {
			results[i] = ismine.IsMineAddress(s, addr)
		}
		printClassification(a.out, labels, results)
		return nil
	})
}

func runPSBT(ctx context.Context, a *app, args []string) error {
	packet, err := psbt.NewFromRawBytes(strings.NewReader(args[0]), true)
	if err != nil {
		return fmt.Errorf("invalid psbt: %v", err)
	}

	txOuts := packet.UnsignedTx.TxOut
	scripts := make([][]byte, len(txOuts))
	labels := make([]string, len(txOuts))
	for i, txOut := range txOuts {
		scripts[i] = txOut.PkScript
		labels[i] = fmt.Sprintf("output %d %v (%v):", i,
			btcutil.Amount(txOut.Value),
			stdscript.GetScriptClass(txOut.PkScript))
	}

	return a.withReadOnlyStore(ctx, func(s backend) error {
		results, err := ismine.ClassifyScripts(ctx, s, scripts)
		if err != nil {
			return err
		}
		printClassification(a.out, labels, results)

		var mine btcutil.Amount
		for i, o := range results {
			if o == ismine.Spendable {
				mine += btcutil.Amount(txOuts[i].Value)
			}
		}
		fmt.Fprintf(a.out, "spendable amount: %v\n", mine)
		return nil
	})
}
