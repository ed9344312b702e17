// Copyright (c) 2014-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package dbstore

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcwallet/walletdb"
	"github.com/btcsuite/ismine/keystore"
	"github.com/lightningnetwork/lnd/tlv"
)

const (
	// latestVersion is the most recent store database version.
	latestVersion = 1

	// scriptRecordVersion prefixes every stored script so a stored empty
	// script is distinguishable from a missing one.
	scriptRecordVersion = 0

	typeKeyPubKey     tlv.Type = 1
	typeKeyCiphertext tlv.Type = 2
)

var (
	// namespaceKey is the top level bucket holding every other bucket.
	namespaceKey = []byte("ismine")

	// Bucket names.
	metaBucketName      = []byte("meta")
	keysBucketName      = []byte("keys")
	scriptsBucketName   = []byte("scripts")
	watchOnlyBucketName = []byte("watchonly")
	multiSigBucketName  = []byte("multisig")

	// Meta bucket keys.
	versionName      = []byte("version")
	masterParamsName = []byte("masterparams")
)

// storeError creates a keystore.StoreError given a set of arguments.
func storeError(c keystore.ErrorCode, desc string, err error) error {
	return keystore.NewError(c, desc, err)
}

// createBuckets creates the namespace and all nested buckets.
func createBuckets(tx walletdb.ReadWriteTx) (walletdb.ReadWriteBucket, error) {
	ns, err := tx.CreateTopLevelBucket(namespaceKey)
	if err != nil {
		return nil, storeError(keystore.ErrDatabase,
			"failed to create namespace", err)
	}

	buckets := [][]byte{
		metaBucketName, keysBucketName, scriptsBucketName,
		watchOnlyBucketName, multiSigBucketName,
	}
	for _, name := range buckets {
		if _, err := ns.CreateBucket(name); err != nil {
			str := fmt.Sprintf("failed to create bucket %s", name)
			return nil, storeError(keystore.ErrDatabase, str, err)
		}
	}

	return ns, nil
}

// putMeta writes the version and master key parameters.
func putMeta(ns walletdb.ReadWriteBucket, params []byte) error {
	bucket := ns.NestedReadWriteBucket(metaBucketName)

	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], latestVersion)
	if err := bucket.Put(versionName, buf[:]); err != nil {
		return storeError(keystore.ErrDatabase,
			"failed to store version", err)
	}
	if err := bucket.Put(masterParamsName, params); err != nil {
		return storeError(keystore.ErrDatabase,
			"failed to store master key parameters", err)
	}
	return nil
}

// fetchMeta reads the version and a copy of the master key parameters.
func fetchMeta(ns walletdb.ReadBucket) (uint32, []byte, error) {
	bucket := ns.NestedReadBucket(metaBucketName)

	v := bucket.Get(versionName)
	if len(v) != 4 {
		return 0, nil, storeError(keystore.ErrDatabase,
			"malformed version", nil)
	}
	params := bucket.Get(masterParamsName)
	if params == nil {
		return 0, nil, storeError(keystore.ErrDatabase,
			"missing master key parameters", nil)
	}

	return binary.LittleEndian.Uint32(v),
		append([]byte(nil), params...), nil
}

// serializeKey encodes a sealed key as a tlv stream holding its public key
// and ciphertext.  The key id is the bucket key and is not repeated.
func serializeKey(sealed *keystore.SealedKey) ([]byte, error) {
	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeKeyPubKey, &sealed.PubKey),
		tlv.MakePrimitiveRecord(typeKeyCiphertext, &sealed.Ciphertext),
	)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := stream.Encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// deserializeKey decodes a key record filed under id.
func deserializeKey(id keystore.KeyID, v []byte) (*keystore.SealedKey, error) {
	sealed := &keystore.SealedKey{ID: id}
	stream, err := tlv.NewStream(
		tlv.MakePrimitiveRecord(typeKeyPubKey, &sealed.PubKey),
		tlv.MakePrimitiveRecord(typeKeyCiphertext, &sealed.Ciphertext),
	)
	if err != nil {
		return nil, err
	}

	parsed, err := stream.DecodeWithParsedTypes(bytes.NewReader(v))
	if err != nil {
		return nil, err
	}
	for _, typ := range []tlv.Type{typeKeyPubKey, typeKeyCiphertext} {
		if _, ok := parsed[typ]; !ok {
			return nil, fmt.Errorf("key record %v missing type %d",
				id, typ)
		}
	}
	return sealed, nil
}

// putKey stores a sealed key.
func putKey(ns walletdb.ReadWriteBucket, sealed *keystore.SealedKey) error {
	v, err := serializeKey(sealed)
	if err != nil {
		return storeError(keystore.ErrDatabase,
			"failed to serialize key "+sealed.ID.String(), err)
	}

	bucket := ns.NestedReadWriteBucket(keysBucketName)
	if err := bucket.Put(sealed.ID[:], v); err != nil {
		return storeError(keystore.ErrDatabase,
			"failed to store key "+sealed.ID.String(), err)
	}
	return nil
}

// fetchScript returns the script filed under k in the named bucket.
func fetchScript(ns walletdb.ReadBucket, name, k []byte) ([]byte, error) {
	v := ns.NestedReadBucket(name).Get(k)
	if v == nil {
		return nil, nil
	}
	script, err := deserializeScript(v)
	if err != nil {
		str := fmt.Sprintf("malformed script %x in %s", k, name)
		return nil, storeError(keystore.ErrDatabase, str, err)
	}
	return script, nil
}

// fetchKey loads the sealed key filed under id.
func fetchKey(ns walletdb.ReadBucket, id keystore.KeyID) (
	*keystore.SealedKey, error) {

	v := ns.NestedReadBucket(keysBucketName).Get(id[:])
	if v == nil {
		return nil, storeError(keystore.ErrKeyNotFound,
			"no key for "+id.String(), nil)
	}

	sealed, err := deserializeKey(id, v)
	if err != nil {
		return nil, storeError(keystore.ErrDatabase,
			"failed to deserialize key "+id.String(), err)
	}
	return sealed, nil
}

// scriptKey returns the bucket key for a registered script.  Scripts are
// filed under their hash since bucket keys can not be empty.
func scriptKey(script []byte) []byte {
	id := keystore.ScriptIDFromScript(script)
	return id[:]
}

// serializeScript returns the stored form of a script.
func serializeScript(script []byte) []byte {
	v := make([]byte, 1, 1+len(script))
	v[0] = scriptRecordVersion
	return append(v, script...)
}

// deserializeScript returns a copy of the script held in a stored record.
func deserializeScript(v []byte) ([]byte, error) {
	if len(v) == 0 || v[0] != scriptRecordVersion {
		return nil, fmt.Errorf("unknown script record version")
	}
	return append([]byte{}, v[1:]...), nil
}

// putScript files script under k in the named bucket.
func putScript(ns walletdb.ReadWriteBucket, name, k, script []byte) error {
	bucket := ns.NestedReadWriteBucket(name)
	if err := bucket.Put(k, serializeScript(script)); err != nil {
		str := fmt.Sprintf("failed to store script in %s", name)
		return storeError(keystore.ErrDatabase, str, err)
	}
	return nil
}

// deleteScript removes script from the named bucket and returns whether it
// was present.
func deleteScript(ns walletdb.ReadWriteBucket, name, script []byte) (bool,
	error) {

	bucket := ns.NestedReadWriteBucket(name)
	k := scriptKey(script)
	if bucket.Get(k) == nil {
		return false, nil
	}
	if err := bucket.Delete(k); err != nil {
		str := fmt.Sprintf("failed to delete script from %s", name)
		return false, storeError(keystore.ErrDatabase, str, err)
	}
	return true, nil
}
