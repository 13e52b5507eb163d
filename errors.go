// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package blazer

import "fmt"

// CorruptStreamError reports a malformed container: an unknown tag, an
// oversized block, a truncated payload, a bad trailer, an impossible
// back-reference, a CRC mismatch, or unknown flag bits.
type CorruptStreamError string

func (e CorruptStreamError) Error() string { return "blazer: corrupt stream: " + string(e) }

// VersionError reports a container whose version byte this package does
// not understand: older containers predating a breaking change, or newer
// containers from a future version.
type VersionError struct {
	Got, Want byte
}

func (e VersionError) Error() string {
	if e.Got < e.Want {
		return fmt.Sprintf("blazer: container version %#x predates the supported version %#x", e.Got, e.Want)
	}
	return fmt.Sprintf("blazer: container version %#x is newer than the supported version %#x", e.Got, e.Want)
}

// EncryptionError reports a problem with the password handshake or the
// per-block counter: a missing or unexpected password, a PBKDF2
// verification failure, or a counter mismatch indicating reordered or
// damaged ciphertext.
type EncryptionError string

func (e EncryptionError) Error() string { return "blazer: encryption: " + string(e) }

// UsageError reports a misconfiguration caught before any bytes are
// written or read: an out-of-range algorithm id or block size exponent, or
// combining encrypt-full with an inner password on the same instance.
type UsageError string

func (e UsageError) Error() string { return "blazer: usage: " + string(e) }
