// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package blazer

import (
	"bytes"
	"testing"
)

func TestWalkFramesPlain(t *testing.T) {
	flags := mustFlags(t, 0).WithHeader().WithTrailer().WithCRC()
	src := bytes.Repeat([]byte("walk these frames"), 200)
	wire := compress(t, flags, src)

	var tags []byte
	var total int
	got, err := WalkFrames(bytes.NewReader(wire), func(fi FrameInfo) error {
		tags = append(tags, fi.Tag)
		total += 8 + fi.PayloadLen // 4-byte prefix, 4-byte CRC, unencrypted payload
		return nil
	})
	if err != nil {
		t.Fatalf("WalkFrames: %v", err)
	}
	if got != flags {
		t.Errorf("WalkFrames flags = %#x, want %#x", uint32(got), uint32(flags))
	}
	if len(tags) == 0 {
		t.Fatalf("WalkFrames invoked fn zero times")
	}
	if want := len(wire) - headerSize - len(trailerBytes); total != want {
		t.Errorf("sum of frame sizes = %d, want %d", total, want)
	}
}

func TestWalkFramesRejectsEncryptFull(t *testing.T) {
	flags := mustFlags(t, 6).WithHeader().WithTrailer().WithEncryptFull()
	wire := compress(t, flags, []byte("secret"), WithPassword("pw"))
	if _, err := WalkFrames(bytes.NewReader(wire), func(FrameInfo) error { return nil }); err == nil {
		t.Errorf("expected an error walking an encrypt-full container")
	}
}

func TestWalkFramesEncryptedInnerSkipsPayload(t *testing.T) {
	flags := mustFlags(t, 6).WithHeader().WithTrailer().WithCRC().WithEncryptInner()
	src := bytes.Repeat([]byte("payload"), 1000)
	wire := compress(t, flags, src, WithPassword("pw"))

	var sawCRC bool
	_, err := WalkFrames(bytes.NewReader(wire), func(fi FrameInfo) error {
		if fi.HasCRC {
			sawCRC = true
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WalkFrames: %v", err)
	}
	if !sawCRC {
		t.Errorf("expected at least one frame reporting HasCRC")
	}
}
