// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package crc32c computes the Castagnoli variant of CRC-32 used to
// checksum block payloads as they are written to the wire.
package crc32c

import "hash/crc32"

var table = crc32.MakeTable(crc32.Castagnoli)

// Checksum returns the CRC32C of buf.
func Checksum(buf []byte) uint32 {
	return crc32.Checksum(buf, table)
}
