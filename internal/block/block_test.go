// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package block

import (
	"bytes"
	"testing"

	"github.com/cosnicolaou/blazer/internal/testdata"
)

// roundTrip encodes src with a fresh Encoder/Decoder pair and returns the
// decoded bytes, failing the test if they do not match src.
func roundTrip(t *testing.T, src []byte) []byte {
	t.Helper()
	enc := NewEncoder()
	dst := make([]byte, len(src))
	n, compressed := enc.EncodeBlock(dst, src, true)
	encoded := append([]byte(nil), dst[:n]...)

	dec := NewDecoder()
	out := make([]byte, len(src)+64)
	var got int
	var err error
	if compressed {
		got, err = dec.DecodeBlock(out, encoded, true)
	} else {
		got, err = dec.DecodeStored(out, encoded, true)
	}
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(out[:got], src) {
		t.Fatalf("round trip mismatch: got %d bytes, want %d bytes", got, len(src))
	}
	return out[:got]
}

func TestRoundTripEmpty(t *testing.T) {
	roundTrip(t, nil)
}

func TestRoundTripSingleByte(t *testing.T) {
	roundTrip(t, []byte{0x42})
}

func TestRoundTripRepetitivePattern(t *testing.T) {
	roundTrip(t, bytes.Repeat([]byte("ABCDABCD"), 8192))
}

func TestRoundTripAllZeros(t *testing.T) {
	roundTrip(t, make([]byte, 64*1024))
}

func TestRoundTripRandom(t *testing.T) {
	roundTrip(t, testdata.Random(1<<20))
}

func TestRoundTripShortRepeatsAtEveryOffset(t *testing.T) {
	// Exercise the short-offset path across its whole encodable range.
	var buf bytes.Buffer
	for off := 1; off <= maxShortOffset; off++ {
		buf.Write(bytes.Repeat([]byte{byte(off)}, off))
		buf.Write([]byte{byte(off), byte(off + 1), byte(off + 2), byte(off + 3), byte(off + 4), byte(off + 5)})
	}
	roundTrip(t, buf.Bytes())
}

func TestCompressedOutputNotLongerThanSource(t *testing.T) {
	enc := NewEncoder()
	src := bytes.Repeat([]byte("compress me please"), 1000)
	dst := make([]byte, len(src))
	n, compressed := enc.EncodeBlock(dst, src, true)
	if !compressed {
		t.Fatalf("highly repetitive input did not compress")
	}
	if n >= len(src) {
		t.Errorf("compressed length %d not smaller than source length %d", n, len(src))
	}
}

func TestIncompressibleFallsBackToStored(t *testing.T) {
	src := testdata.Random(256)
	enc := NewEncoder()
	dst := make([]byte, len(src))
	n, compressed := enc.EncodeBlock(dst, src, true)
	if compressed {
		t.Fatalf("tiny random input unexpectedly compressed")
	}
	if n != len(src) || !bytes.Equal(dst[:n], src) {
		t.Errorf("stored fallback did not copy src verbatim")
	}
}

// TestDictionaryPersistsAcrossBlocks verifies a back-reference in a later
// block can point into an earlier block's history, as long as neither side
// of the pair calls cleanup until the stream actually ends.
func TestDictionaryPersistsAcrossBlocks(t *testing.T) {
	block1 := bytes.Repeat([]byte("REPEATEDCONTENT-"), 64)
	block2 := bytes.Repeat([]byte("REPEATEDCONTENT-"), 64)

	enc := NewEncoder()
	dst1 := make([]byte, len(block1))
	n1, c1 := enc.EncodeBlock(dst1, block1, false)
	enc1 := append([]byte(nil), dst1[:n1]...)

	dst2 := make([]byte, len(block2))
	n2, c2 := enc.EncodeBlock(dst2, block2, true)
	enc2 := append([]byte(nil), dst2[:n2]...)

	if !c2 {
		t.Fatalf("second block, wholly redundant with the first, failed to compress")
	}

	dec := NewDecoder()
	out1 := make([]byte, len(block1)+64)
	var got1 int
	var err error
	if c1 {
		got1, err = dec.DecodeBlock(out1, enc1, false)
	} else {
		got1, err = dec.DecodeStored(out1, enc1, false)
	}
	if err != nil {
		t.Fatalf("decode block 1: %v", err)
	}
	if !bytes.Equal(out1[:got1], block1) {
		t.Fatalf("block 1 mismatch")
	}

	out2 := make([]byte, len(block2)+64)
	got2, err := dec.DecodeBlock(out2, enc2, true)
	if err != nil {
		t.Fatalf("decode block 2: %v", err)
	}
	if !bytes.Equal(out2[:got2], block2) {
		t.Fatalf("block 2 mismatch: cross-block back-reference did not resolve correctly")
	}
}

func TestDecodeBlockRejectsBadBackReference(t *testing.T) {
	dec := NewDecoder()
	// Hash-indexed command (tag bit 0x80) referencing a key never stored.
	src := []byte{0x80, 0x00, 0x00}
	dst := make([]byte, 16)
	if _, err := dec.DecodeBlock(dst, src, true); err != ErrBadBackReference {
		t.Errorf("got err %v, want ErrBadBackReference", err)
	}
}

func TestDecodeBlockRejectsOverflow(t *testing.T) {
	dec := NewDecoder()
	src := []byte{0x8F, 0xFF, 0xFF} // literal-only command claiming more literal bytes than follow
	dst := make([]byte, 4)
	if _, err := dec.DecodeBlock(dst, src, true); err == nil {
		t.Errorf("expected an error decoding a truncated literal-only command")
	}
}

func TestDecodeStoredRejectsOverflow(t *testing.T) {
	dec := NewDecoder()
	if _, err := dec.DecodeStored(make([]byte, 2), []byte{1, 2, 3}, true); err != ErrOverflow {
		t.Errorf("got err %v, want ErrOverflow", err)
	}
}
