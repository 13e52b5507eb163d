// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package dictionary implements the 65536-entry hash-indexed back-reference
// table shared by the block encoder and decoder. The table is arena-style:
// a fixed array of output positions, no allocation once constructed.
package dictionary

// Size is the number of entries in the hash table. Fixed by the wire
// format: the on-the-wire hash index is a 16-bit value.
const Size = 1 << 16

// multiplier is the constant used to spread the rolling 4-byte window
// across the 16-bit key space.
const multiplier = 1527631329

// Sentinel is the reserved hash index that marks a literal-only command in
// the block token stream; it must never be produced as a real lookup key.
const Sentinel = 0xFFFF

// empty marks a table slot that has never been written.
const empty = -1

// Dictionary is the rolling-hash back-reference table. The zero value is
// not usable; construct with New.
type Dictionary struct {
	table [Size]int32
	mulEl uint32
}

// New returns a freshly reset Dictionary.
func New() *Dictionary {
	d := &Dictionary{}
	d.Reset()
	return d
}

// Reset clears the table and rolling window, as happens at an explicit
// block-boundary cleanup.
func (d *Dictionary) Reset() {
	for i := range d.table {
		d.table[i] = empty
	}
	d.mulEl = 0
}

// Key hashes a rolling window value into a table index.
func Key(mulEl uint32) uint16 {
	return uint16((mulEl * multiplier) >> 16)
}

// HashWindow hashes an explicit 4-byte window without touching any rolling
// state. The encoder uses this to probe a candidate match before the
// window has actually been emitted.
func HashWindow(b0, b1, b2, b3 byte) uint16 {
	m := uint32(b0)
	m = m<<8 | uint32(b1)
	m = m<<8 | uint32(b2)
	m = m<<8 | uint32(b3)
	return Key(m)
}

// Store records pos (the index of the byte just emitted) under key.
func (d *Dictionary) Store(key uint16, pos int) {
	d.table[key] = int32(pos)
}

// Update folds b into the rolling window, records pos under the resulting
// key and returns the key. This is the combined roll+store step the
// decoder and encoder perform for every output byte, literal or copied.
func (d *Dictionary) Update(b byte, pos int) uint16 {
	d.mulEl = d.mulEl<<8 | uint32(b)
	key := Key(d.mulEl)
	d.table[key] = int32(pos)
	return key
}

// Lookup returns the stored position for key and whether it has ever been
// written.
func (d *Dictionary) Lookup(key uint16) (int, bool) {
	v := d.table[key]
	if v < 0 {
		return 0, false
	}
	return int(v), true
}
