// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package blazer

// Wire constants for the container layout and per-frame control kinds.
const (
	magic0  = 'b'
	magic1  = 'L'
	magic2  = 'z'
	version = 0x01

	headerSize    = 8
	encHeaderSize = 24
)

// Control kinds, the first byte of every per-block frame prefix.
const (
	tagStored   = 0x00
	tagFlush    = 0xF0
	tagControl  = 0xF1
	tagFileInfo = 0xFD
	tagTrailer  = 0xFF
)

var trailerBytes = [4]byte{0xFF, 'Z', 'l', 'B'}

// putUint24 writes the low 24 bits of v into buf (3 bytes), little-endian.
func putUint24(buf []byte, v int) {
	buf[0] = byte(v)
	buf[1] = byte(v >> 8)
	buf[2] = byte(v >> 16)
}

// getUint24 reads a 24-bit little-endian value from buf.
func getUint24(buf []byte) int {
	return int(buf[0]) | int(buf[1])<<8 | int(buf[2])<<16
}
