// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package block

import (
	"encoding/binary"

	"github.com/cosnicolaou/blazer/internal/dictionary"
)

// maxShortOffset is the largest offset a short-offset back-reference can
// encode (an offset byte holds offset-1, 0..255).
const maxShortOffset = 256

// Encoder walks a rolling 4-byte window through its input, preferring a
// hash-indexed back-reference over a short-offset one, and falls back to
// literals when neither applies. Like Decoder, it keeps a persistent
// history across blocks so matches can span block boundaries; the
// encoder's own scan strategy is not mandated by the wire format, only
// that its output decodes correctly.
type Encoder struct {
	dict    *dictionary.Dictionary
	history []byte
	scratch []byte
}

// NewEncoder returns an Encoder with a freshly reset dictionary.
func NewEncoder() *Encoder {
	return &Encoder{dict: dictionary.New()}
}

// EncodeBlock compresses src into dst, which must have length >= len(src).
// It reports whether the bytes written to dst are the compressed token
// stream (true) or src copied verbatim because the compressed form did not
// shrink it (false).
func (e *Encoder) EncodeBlock(dst, src []byte, cleanup bool) (int, bool) {
	base := len(e.history)
	e.history = append(e.history, src...)
	end := len(e.history)

	if cap(e.scratch) < len(src)+64 {
		e.scratch = make([]byte, 0, len(src)+64)
	}
	out := e.scratch[:0]

	anchor := base
	pos := base
	for pos < end {
		seqLen := 0
		var useHash bool
		var hashIdx uint16
		var shortOff int

		if pos+MinMatchLength <= end {
			w0, w1, w2, w3 := e.history[pos], e.history[pos+1], e.history[pos+2], e.history[pos+3]

			if key := dictionary.HashWindow(w0, w1, w2, w3); key != dictionary.Sentinel {
				if p, ok := e.dict.Lookup(key); ok {
					start := p - 3
					if start >= 0 && start < pos &&
						e.history[start] == w0 && e.history[start+1] == w1 &&
						e.history[start+2] == w2 && e.history[start+3] == w3 {
						seqLen = matchLength(e.history, start, pos, end)
						useHash = true
						hashIdx = key
					}
				}
			}

			if seqLen == 0 {
				limit := maxShortOffset
				if pos < limit {
					limit = pos
				}
				bestLen, bestOff := 0, 0
				for off := 1; off <= limit; off++ {
					start := pos - off
					if e.history[start] != w0 || e.history[start+1] != w1 ||
						e.history[start+2] != w2 || e.history[start+3] != w3 {
						continue
					}
					if l := matchLength(e.history, start, pos, end); l > bestLen {
						bestLen, bestOff = l, off
					}
				}
				if bestLen >= MinMatchLength {
					seqLen = bestLen
					shortOff = bestOff - 1
				}
			}
		}

		if seqLen > 0 {
			litCount := pos - anchor
			out = emitCommand(out, e.history, anchor, litCount, seqLen, useHash, hashIdx, shortOff)
			for i := anchor; i < pos+seqLen; i++ {
				e.dict.Update(e.history[i], i)
			}
			pos += seqLen
			anchor = pos
			continue
		}
		pos++
	}

	// Flush the trailing literal run. A block with nothing but literals
	// (no match found anywhere) also lands here, as a single command.
	if litCount := end - anchor; litCount > 0 || len(out) == 0 {
		out = emitLiteralOnly(out, e.history, anchor, litCount)
		for i := anchor; i < end; i++ {
			e.dict.Update(e.history[i], i)
		}
	}
	e.scratch = out

	if cleanup {
		e.dict.Reset()
		e.history = e.history[:0]
	}

	if len(out) >= len(src) {
		copy(dst, src)
		return len(src), false
	}
	copy(dst, out)
	return len(out), true
}

func matchLength(history []byte, start, pos, end int) int {
	l := 0
	for pos+l < end && history[start+l] == history[pos+l] {
		l++
	}
	return l
}

func emitCommand(dst, history []byte, litStart, litCount, seqLen int, useHash bool, hashIdx uint16, shortOff int) []byte {
	seqField := seqLen - MinMatchLength
	seqExt := seqField >= 15
	if seqExt {
		seqField = 15
	}
	litField := litCount
	litExt := litField >= 7
	if litExt {
		litField = 7
	}

	tag := byte(seqField) | byte(litField<<4)
	if useHash {
		tag |= 0x80
	}
	dst = append(dst, tag)

	if useHash {
		var buf [2]byte
		binary.LittleEndian.PutUint16(buf[:], hashIdx)
		dst = append(dst, buf[:]...)
	} else {
		dst = append(dst, byte(shortOff))
	}
	if litExt {
		dst = appendVarint(dst, uint32(litCount-7))
	}
	if seqExt {
		dst = appendVarint(dst, uint32(seqLen-MinMatchLength-15))
	}
	return append(dst, history[litStart:litStart+litCount]...)
}

func emitLiteralOnly(dst, history []byte, litStart, litCount int) []byte {
	field := litCount
	ext := field >= 0x7F
	if ext {
		field = 0x7F
	}
	tag := byte(0x80) | byte(field)
	dst = append(dst, tag)

	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], dictionary.Sentinel)
	dst = append(dst, buf[:]...)

	if ext {
		dst = appendVarint(dst, uint32(litCount-0x7F))
	}
	return append(dst, history[litStart:litStart+litCount]...)
}
