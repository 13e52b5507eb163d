// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package block implements the Blazer block codec: a dictionary-based
// LZ-style compressor/decompressor whose hash dictionary persists across
// blocks within a single stream.
package block

import (
	"encoding/binary"

	"github.com/cosnicolaou/blazer/internal/dictionary"
)

// MinMatchLength is the shortest back-reference the encoder will ever
// produce; shorter runs are always emitted as literals.
const MinMatchLength = 4

// Decoder reconstructs plaintext blocks from the compressed token stream,
// maintaining the hash dictionary across calls until told to reset it.
//
// The dictionary's back-references can point arbitrarily far back across
// block boundaries for stream continuity, so the
// decoder keeps a full append-only history of everything it has decoded
// since the last cleanup: that history, not the caller's per-call dst, is
// the backing store back-references resolve against. dst only receives a
// copy of this call's slice of it.
type Decoder struct {
	dict    *dictionary.Dictionary
	history []byte
}

// NewDecoder returns a Decoder with a freshly reset dictionary.
func NewDecoder() *Decoder {
	return &Decoder{dict: dictionary.New()}
}

// DecodeStored copies a stored (uncompressed) payload verbatim into dst,
// still threading every byte through the dictionary so later compressed
// blocks in the same stream can reference bytes a stored block emitted.
func (d *Decoder) DecodeStored(dst, src []byte, cleanup bool) (int, error) {
	if len(src) > len(dst) {
		return 0, ErrOverflow
	}
	base := len(d.history)
	d.history = append(d.history, src...)
	for i, b := range src {
		d.dict.Update(b, base+i)
	}
	n := copy(dst, src)
	if cleanup {
		d.dict.Reset()
		d.history = d.history[:0]
	}
	return n, nil
}

// DecodeBlock decodes the compressed token stream src into dst, returning
// the number of bytes written. cleanup, when true, resets the dictionary
// and history after decoding (explicit stream-end boundary); otherwise the
// dictionary and history persist for the next call.
func (d *Decoder) DecodeBlock(dst, src []byte, cleanup bool) (int, error) {
	base := len(d.history)
	idxOut := base // absolute position in d.history
	produced := 0  // idxOut - base, bounds-checked against len(dst)

	pos := 0
	for pos < len(src) {
		tag := src[pos]
		pos++
		mode := tag&0x80 != 0
		seqFirst := int(tag & 0x0F)
		litFirst := int((tag >> 4) & 0x07)

		var litCount, seqLen, refPos int
		var shortOff int
		useShortOffset := false
		literalOnly := false
		cmdStart := idxOut // hash-indexed back-references may only reach bytes emitted before this command

		if mode {
			if pos+2 > len(src) {
				return 0, ErrTruncated
			}
			hashIdx := binary.LittleEndian.Uint16(src[pos:])
			pos += 2
			if hashIdx == dictionary.Sentinel {
				literalOnly = true
				litCount = int(tag & 0x7F)
				if litCount == 0x7F {
					v, np, err := decodeVarint(src, pos)
					if err != nil {
						return 0, err
					}
					pos = np
					litCount = 0x7F + int(v)
				}
			} else {
				p, ok := d.dict.Lookup(hashIdx)
				if !ok {
					return 0, ErrBadBackReference
				}
				refPos = p - 3
				if refPos < 0 || refPos >= cmdStart {
					return 0, ErrBadBackReference
				}
				seqLen = seqFirst + MinMatchLength
				litCount = litFirst
			}
		} else {
			if pos+1 > len(src) {
				return 0, ErrTruncated
			}
			shortOff = int(src[pos])
			pos++
			useShortOffset = true
			seqLen = seqFirst + MinMatchLength
			litCount = litFirst
		}

		if !literalOnly {
			if litFirst == 7 {
				v, np, err := decodeVarint(src, pos)
				if err != nil {
					return 0, err
				}
				pos = np
				litCount = 7 + int(v)
			}
			if seqFirst == 15 {
				v, np, err := decodeVarint(src, pos)
				if err != nil {
					return 0, err
				}
				pos = np
				seqLen = 15 + MinMatchLength + int(v)
			}
		}

		if useShortOffset {
			// The offset is measured from the position immediately after
			// this command's own literal run, not from cmdStart, since the
			// encoder's scan position already sits past those literals when
			// it looks backward for a match.
			refPos = cmdStart + litCount - (shortOff + 1)
			if refPos < 0 {
				return 0, ErrBadBackReference
			}
		}

		if produced+litCount+seqLen > len(dst) {
			return 0, ErrOverflow
		}
		if pos+litCount > len(src) {
			return 0, ErrTruncated
		}

		for i := 0; i < litCount; i++ {
			b := src[pos+i]
			d.history = append(d.history, b)
			d.dict.Update(b, idxOut)
			idxOut++
		}
		pos += litCount
		produced += litCount

		for i := 0; i < seqLen; i++ {
			b := d.history[refPos+i]
			d.history = append(d.history, b)
			d.dict.Update(b, idxOut)
			idxOut++
		}
		produced += seqLen
	}

	n := copy(dst, d.history[base:])
	if cleanup {
		d.dict.Reset()
		d.history = d.history[:0]
	}
	return n, nil
}
