// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package blazer implements the Blazer single-stream compression format: a
// dictionary-based LZ77 block codec wrapped in a self-describing container
// with optional per-block CRC32C and optional password-derived AES-CBC
// encryption.
package blazer

import "fmt"

// Flags is the 32-bit bitfield fixed at container construction. The
// constants and accessor methods below are the only way this package reads
// or writes it.
type Flags uint32

const (
	flagBlockSizeMask  Flags = 0x0000000F // bits 0-3
	flagAlgorithmShift       = 4
	flagAlgorithmMask  Flags = 0x000000F0 // bits 4-7
	flagCRC            Flags = 1 << 8
	flagHeader         Flags = 1 << 9
	flagTrailer        Flags = 1 << 10
	flagFlush          Flags = 1 << 11
	flagEncryptInner   Flags = 1 << 12
	flagEncryptFull    Flags = 1 << 13
	flagFileInfo       Flags = 1 << 14

	knownFlagMask = flagBlockSizeMask | flagAlgorithmMask | flagCRC | flagHeader |
		flagTrailer | flagFlush | flagEncryptInner | flagEncryptFull | flagFileInfo
)

// AlgorithmBlock is the only algorithm id this package implements. Other
// values are reserved by the wire format but not handled here.
const AlgorithmBlock = 1

// minBlockSizeExponent and maxBlockSizeExponent bound the 4-bit exponent
// field: MaxBlockSize = 1 << (e+9), e in [0,15] -> [512B, 16MiB].
const (
	minBlockSizeExponent = 0
	maxBlockSizeExponent = 15
)

// NewFlags builds a Flags value for a given input block size exponent and
// algorithm id, with no optional features enabled. Use the With* methods
// to turn features on.
func NewFlags(blockSizeExponent, algorithm uint8) (Flags, error) {
	if blockSizeExponent > maxBlockSizeExponent {
		return 0, UsageError(fmt.Sprintf("block size exponent %d out of range [0,15]", blockSizeExponent))
	}
	if algorithm > 0x0F {
		return 0, UsageError(fmt.Sprintf("algorithm id %d out of range [0,15]", algorithm))
	}
	return Flags(blockSizeExponent) | (Flags(algorithm) << flagAlgorithmShift), nil
}

// BlockSizeExponent returns the 4-bit exponent encoded in bits 0-3.
func (f Flags) BlockSizeExponent() uint8 { return uint8(f & flagBlockSizeMask) }

// MaxBlockSize returns the maximum input block size this Flags value
// implies: 1 << (exponent+9).
func (f Flags) MaxBlockSize() int { return 1 << (f.BlockSizeExponent() + 9) }

// Algorithm returns the 4-bit algorithm id encoded in bits 4-7.
func (f Flags) Algorithm() uint8 { return uint8((f & flagAlgorithmMask) >> flagAlgorithmShift) }

// HasCRC reports whether per-block CRC32C is enabled (bit 8).
func (f Flags) HasCRC() bool { return f&flagCRC != 0 }

// HasHeader reports whether the container header is present (bit 9).
func (f Flags) HasHeader() bool { return f&flagHeader != 0 }

// HasTrailer reports whether the container trailer is present (bit 10).
func (f Flags) HasTrailer() bool { return f&flagTrailer != 0 }

// HasFlush reports whether caller-initiated flush boundaries are honored
// (bit 11).
func (f Flags) HasFlush() bool { return f&flagFlush != 0 }

// EncryptInner reports whether block payloads are individually encrypted
// (bit 12).
func (f Flags) EncryptInner() bool { return f&flagEncryptInner != 0 }

// EncryptFull reports whether the entire container is wrapped by an outer
// stream cipher (bit 13).
func (f Flags) EncryptFull() bool { return f&flagEncryptFull != 0 }

// HasFileInfo reports whether a single file-info record precedes the
// payload blocks (bit 14).
func (f Flags) HasFileInfo() bool { return f&flagFileInfo != 0 }

// WithCRC, WithHeader, WithTrailer, WithFlush, WithFileInfo, WithEncryptInner
// and WithEncryptFull return f with the corresponding bit set.
func (f Flags) WithCRC() Flags          { return f | flagCRC }
func (f Flags) WithHeader() Flags       { return f | flagHeader }
func (f Flags) WithTrailer() Flags      { return f | flagTrailer }
func (f Flags) WithFlush() Flags        { return f | flagFlush }
func (f Flags) WithFileInfo() Flags     { return f | flagFileInfo }
func (f Flags) WithEncryptInner() Flags { return f | flagEncryptInner }
func (f Flags) WithEncryptFull() Flags  { return f | flagEncryptFull }

// Validate checks the invariants a Flags value carries on its own: no
// unknown bits, an algorithm id in range, and encrypt-inner and
// encrypt-full not both set.
func (f Flags) Validate() error {
	if f&^Flags(knownFlagMask) != 0 {
		return CorruptStreamError(fmt.Sprintf("unknown flag bits set: %#x", uint32(f&^Flags(knownFlagMask))))
	}
	if f.Algorithm() > 0x0F {
		return UsageError(fmt.Sprintf("algorithm id %d out of range [0,15]", f.Algorithm()))
	}
	if f.EncryptInner() && f.EncryptFull() {
		return UsageError("encrypt-inner and encrypt-full may not combine in the same codec instance")
	}
	return nil
}
