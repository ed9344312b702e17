// Copyright (c) 2014-2024 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package keystore

import (
	"errors"
	"fmt"
)

// ErrorCode identifies a kind of error.
type ErrorCode int

// These constants are used to identify a specific StoreError.
const (
	// ErrDatabase indicates an error with the underlying database.  When
	// this error code is set, the Err field of the StoreError will be set
	// to the underlying error returned from the database.
	ErrDatabase ErrorCode = iota

	// ErrCrypto indicates an error with the cryptography related
	// operations such as decrypting or encrypting data or parsing a
	// master key.  When this error code is set, the Err field of the
	// StoreError will be set to the underlying error.
	ErrCrypto

	// ErrLocked indicates that an operation which requires the store to
	// be unlocked was requested on a locked store.
	ErrLocked

	// ErrWrongPassphrase indicates that the specified passphrase is
	// incorrect.
	ErrWrongPassphrase

	// ErrInvalidKey indicates that a key or key identifier could not be
	// parsed.
	ErrInvalidKey

	// ErrScriptTooLarge indicates that a redeem script is larger than
	// MaxScriptElementSize and could therefore never be revealed in a
	// spending input.
	ErrScriptTooLarge

	// ErrKeyNotFound indicates that the requested key is not known to the
	// store.
	ErrKeyNotFound

	// ErrAlreadyExists indicates that the store being created already
	// exists.
	ErrAlreadyExists

	// ErrNoExist indicates that the store being opened does not exist.
	ErrNoExist
)

// Map of ErrorCode values back to their constant names for pretty printing.
var errorCodeStrings = map[ErrorCode]string{
	ErrDatabase:        "ErrDatabase",
	ErrCrypto:          "ErrCrypto",
	ErrLocked:          "ErrLocked",
	ErrWrongPassphrase: "ErrWrongPassphrase",
	ErrInvalidKey:      "ErrInvalidKey",
	ErrScriptTooLarge:  "ErrScriptTooLarge",
	ErrKeyNotFound:     "ErrKeyNotFound",
	ErrAlreadyExists:   "ErrAlreadyExists",
	ErrNoExist:         "ErrNoExist",
}

// String returns the ErrorCode as a human-readable name.
func (e ErrorCode) String() string {
	if s := errorCodeStrings[e]; s != "" {
		return s
	}
	return fmt.Sprintf("Unknown ErrorCode (%d)", int(e))
}

// StoreError provides a single type for errors that can happen during key
// store operation.  It is similar to wtxmgr.TxStoreError.
type StoreError struct {
	ErrorCode   ErrorCode // Describes the kind of error
	Description string    // Human readable description of the issue
	Err         error     // Underlying error
}

// Error satisfies the error interface and prints human-readable errors.
func (e StoreError) Error() string {
	if e.Err != nil {
		return e.Description + ": " + e.Err.Error()
	}
	return e.Description
}

// Unwrap returns the underlying error, if any.
func (e StoreError) Unwrap() error {
	return e.Err
}

// NewError creates a StoreError given a set of arguments.  It is exported
// for the persistent store implementations.
func NewError(c ErrorCode, desc string, err error) StoreError {
	return StoreError{ErrorCode: c, Description: desc, Err: err}
}

// IsError returns whether the error is a StoreError with a matching error
// code.
func IsError(err error, code ErrorCode) bool {
	var serr StoreError
	return errors.As(err, &serr) && serr.ErrorCode == code
}
