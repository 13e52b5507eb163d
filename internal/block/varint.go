// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package block

import "encoding/binary"

// decodeVarint decodes the extension varint used for literal-count and
// sequence-length overflow, per the 253/254/255 escape scheme:
//
//	b < 253  -> value = b
//	b == 253 -> value = 253 + next byte
//	b == 254 -> value = 253 + 256 + next uint16 (LE)
//	b == 255 -> value = 253 + 65536 + next uint32 (LE)
//
// It returns the decoded value and the position immediately after it.
func decodeVarint(src []byte, pos int) (uint32, int, error) {
	if pos >= len(src) {
		return 0, pos, ErrTruncated
	}
	b := src[pos]
	pos++
	switch {
	case b < 253:
		return uint32(b), pos, nil
	case b == 253:
		if pos+1 > len(src) {
			return 0, pos, ErrTruncated
		}
		v := 253 + uint32(src[pos])
		return v, pos + 1, nil
	case b == 254:
		if pos+2 > len(src) {
			return 0, pos, ErrTruncated
		}
		v := 253 + 256 + uint32(binary.LittleEndian.Uint16(src[pos:]))
		return v, pos + 2, nil
	default: // 255
		if pos+4 > len(src) {
			return 0, pos, ErrTruncated
		}
		v := 253 + 65536 + binary.LittleEndian.Uint32(src[pos:])
		return v, pos + 4, nil
	}
}

// appendVarint appends the extension varint encoding of v to dst.
func appendVarint(dst []byte, v uint32) []byte {
	switch {
	case v < 253:
		return append(dst, byte(v))
	case v < 253+256:
		return append(dst, 253, byte(v-253))
	case v < 253+256+65536:
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], uint16(v-253-256))
		return append(append(dst, 254), buf[:]...)
	default:
		var buf [4]byte
		binary.LittleEndian.PutUint32(buf[:], v-253-65536)
		return append(append(dst, 255), buf[:]...)
	}
}
