// Copyright 2021 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package testdata generates byte sequences used across the blazer test
// suite: predictable pseudorandom data for incompressible-input cases and
// repetitive data for highly-compressible cases.
package testdata

import "math/rand"

// Seed for the pseudorandom generator, kept fixed so test failures are
// reproducible across runs.
const fixedRandSeed = 0x1234

// Random generates size bytes of pseudorandom data from a fixed seed.
func Random(size int) []byte {
	gen := rand.New(rand.NewSource(fixedRandSeed))
	out := make([]byte, size)
	for i := range out {
		out[i] = byte(gen.Intn(256))
	}
	return out
}

// Repeating returns size bytes built by repeating pattern.
func Repeating(pattern []byte, size int) []byte {
	out := make([]byte, size)
	for i := range out {
		out[i] = pattern[i%len(pattern)]
	}
	return out
}

// FirstN returns at most the first n bytes of b.
func FirstN(n int, b []byte) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
