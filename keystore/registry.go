// Copyright (c) 2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keystore

import (
	"fmt"
	"sync"

	"github.com/lightningnetwork/lnd/fn/v2"
)

// registry holds the script side of an in-memory store: redeem scripts keyed
// by script id, and the watch-only and tracked multisig script sets.
type registry struct {
	mtx       sync.RWMutex
	scripts   map[ScriptID][]byte
	watchOnly map[string]struct{}
	multiSig  map[string]struct{}
}

func newRegistry() registry {
	return registry{
		scripts:   make(map[ScriptID][]byte),
		watchOnly: make(map[string]struct{}),
		multiSig:  make(map[string]struct{}),
	}
}

// CheckRedeemScript returns an error if the script can not be registered as
// a redeem script.
func CheckRedeemScript(script []byte) error {
	if len(script) > MaxScriptElementSize {
		str := fmt.Sprintf("redeem script of %d bytes exceeds the "+
			"maximum of %d", len(script), MaxScriptElementSize)
		return NewError(ErrScriptTooLarge, str, nil)
	}
	return nil
}

// AddScript registers a redeem script so that pay-to-script-hash outputs
// committing to it can be resolved.  The script id is returned.
func (r *registry) AddScript(script []byte) (ScriptID, error) {
	if err := CheckRedeemScript(script); err != nil {
		return ScriptID{}, err
	}

	id := ScriptIDFromScript(script)
	cp := make([]byte, len(script))
	copy(cp, script)

	r.mtx.Lock()
	r.scripts[id] = cp
	r.mtx.Unlock()

	log.Tracef("Added redeem script %v", id)
	return id, nil
}

// HaveScript returns whether a redeem script is registered for id.
func (r *registry) HaveScript(id ScriptID) bool {
	r.mtx.RLock()
	_, ok := r.scripts[id]
	r.mtx.RUnlock()
	return ok
}

// RedeemScript returns the redeem script registered for id, if any.
//
// This is part of the Store interface.
func (r *registry) RedeemScript(id ScriptID) fn.Option[[]byte] {
	r.mtx.RLock()
	defer r.mtx.RUnlock()

	script, ok := r.scripts[id]
	if !ok {
		return fn.None[[]byte]()
	}
	cp := make([]byte, len(script))
	copy(cp, script)
	return fn.Some(cp)
}

// AddWatchOnly registers the script as watch-only.
func (r *registry) AddWatchOnly(script []byte) {
	r.mtx.Lock()
	r.watchOnly[string(script)] = struct{}{}
	r.mtx.Unlock()
}

// RemoveWatchOnly removes the script from the watch-only set.  It reports
// whether the script was registered.
func (r *registry) RemoveWatchOnly(script []byte) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	_, ok := r.watchOnly[string(script)]
	delete(r.watchOnly, string(script))
	return ok
}

// HaveWatchOnly returns whether the script is registered as watch-only.
//
// This is part of the Store interface.
func (r *registry) HaveWatchOnly(script []byte) bool {
	r.mtx.RLock()
	_, ok := r.watchOnly[string(script)]
	r.mtx.RUnlock()
	return ok
}

// AddMultiSig registers the script as a tracked multisig policy.
func (r *registry) AddMultiSig(script []byte) {
	r.mtx.Lock()
	r.multiSig[string(script)] = struct{}{}
	r.mtx.Unlock()
}

// RemoveMultiSig removes the script from the tracked multisig set.  It
// reports whether the script was registered.
func (r *registry) RemoveMultiSig(script []byte) bool {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	_, ok := r.multiSig[string(script)]
	delete(r.multiSig, string(script))
	return ok
}

// HaveMultiSig returns whether the script is registered as a tracked
// multisig policy.
//
// This is part of the Store interface.
func (r *registry) HaveMultiSig(script []byte) bool {
	r.mtx.RLock()
	_, ok := r.multiSig[string(script)]
	r.mtx.RUnlock()
	return ok
}
