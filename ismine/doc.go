// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

/*
Package ismine decides whether a wallet has a spending or observational
interest in an output script.

Every balance, coin selection and history computation a wallet does rests on
this decision: an output only counts as the wallet's own funds if IsMine says
it is Spendable.  The classification is a pure function of the script and
the current contents of a keystore.Store; nothing is cached.

Precedence

A script registered as watch-only is WatchOnly, and one registered as a
tracked multisig policy is MultiSigParticipant, before any template rule is
consulted.  Otherwise the script is decomposed with stdscript.Solve:

  - pay-to-pubkey and zerocoin mint outputs are Spendable when the key is
    held
  - pay-to-pubkey-hash outputs are Spendable when the key is held
  - pay-to-script-hash outputs take the classification of their redeem
    script, when the store knows it
  - bare multisig outputs are Spendable only when every key is held

Partially owned multisig is deliberately not Spendable: the holders of the
other keys could spend it without the wallet's involvement.

Pay-to-script-hash resolution is bounded by MaxScriptHashDepth so a store
holding cyclic or deeply nested redeem scripts can not cause unbounded
recursion.

Concurrency

The classifier holds no state and is safe for concurrent use as long as the
Store is.  ClassifyScripts classifies a batch in parallel.
*/
package ismine
