// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package blazer

import (
	"encoding/binary"
	"io"

	"cloudeng.io/errors"

	"github.com/cosnicolaou/blazer/internal/block"
	"github.com/cosnicolaou/blazer/internal/crc32c"
	"github.com/cosnicolaou/blazer/internal/crypt"
)

// CompressionStream assembles a Blazer container: optional header,
// optional encryption header, optional
// file-info frame, a sequence of framed blocks, and an optional trailer.
// It drives a BlockEncoder and, when configured, per-block encryption.
//
// The header is not written until the first block is flushed (by a full
// MaxBlockSize buffer, an explicit Flush, or Close), so a stream that never
// receives a Write still produces a valid empty container at Close.
type CompressionStream struct {
	inner io.Writer
	sink  io.Writer
	full  *crypt.FullWriter

	flags    Flags
	opts     writerOpts
	enc      *block.Encoder
	cipher   *crypt.Cipher
	maxBlock int

	buf           []byte
	headerWritten bool
	closed        bool
}

// NewWriter constructs a CompressionStream over w using flags. See
// WriterOption for optional behavior (password, file-info collaborator,
// leaving the underlying writer open).
func NewWriter(w io.Writer, flags Flags, opts ...WriterOption) (*CompressionStream, error) {
	if err := flags.Validate(); err != nil {
		return nil, err
	}
	var o writerOpts
	for _, fn := range opts {
		fn(&o)
	}
	if (flags.EncryptInner() || flags.EncryptFull()) && o.password == "" {
		return nil, UsageError("an encryption flag is set but no password was supplied")
	}
	if flags.HasFileInfo() && o.fileInfo == nil {
		return nil, UsageError("file-info flag is set but no FileInfoCodec was supplied")
	}

	c := &CompressionStream{
		inner:    w,
		sink:     w,
		flags:    flags,
		opts:     o,
		enc:      block.NewEncoder(),
		maxBlock: flags.MaxBlockSize(),
	}
	c.buf = make([]byte, 0, c.maxBlock)

	if flags.EncryptFull() {
		full, err := crypt.NewFullWriter(w, o.password)
		if err != nil {
			return nil, err
		}
		c.full = full
		c.sink = full
	}
	return c, nil
}

// Write buffers p, flushing one compressed block to the underlying stream
// every time MaxBlockSize bytes have accumulated.
func (c *CompressionStream) Write(p []byte) (int, error) {
	if c.closed {
		return 0, UsageError("write after close")
	}
	total := len(p)
	for len(p) > 0 {
		space := c.maxBlock - len(c.buf)
		n := space
		if n > len(p) {
			n = len(p)
		}
		c.buf = append(c.buf, p[:n]...)
		p = p[n:]
		if len(c.buf) == c.maxBlock {
			if err := c.flushBlock(false); err != nil {
				return total - len(p), err
			}
		}
	}
	return total, nil
}

// Flush forces a block boundary and emits a flush marker frame, when
// Flags.HasFlush() is set; otherwise it is a no-op. The resulting block
// sizes on either side of a flush are implementation-defined.
func (c *CompressionStream) Flush() error {
	if !c.flags.HasFlush() {
		return nil
	}
	if err := c.flushBlock(false); err != nil {
		return err
	}
	if err := c.ensureHeader(); err != nil {
		return err
	}
	_, err := c.sink.Write([]byte{tagFlush, 0, 0, 0})
	return err
}

// Close flushes any buffered input as the final block, writes the header
// if one was never emitted (the empty-stream case), writes the trailer if
// enabled, and closes the underlying writer unless LeaveOpen was given.
func (c *CompressionStream) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	errs := &errors.M{}

	if err := c.flushBlock(true); err != nil {
		errs.Append(err)
	}
	if err := c.ensureHeader(); err != nil {
		errs.Append(err)
	}
	if c.flags.HasTrailer() {
		if _, err := c.sink.Write(trailerBytes[:]); err != nil {
			errs.Append(err)
		}
	}
	if c.full != nil {
		if err := c.full.Close(); err != nil {
			errs.Append(err)
		}
	}
	if !c.opts.leaveOpen {
		if wc, ok := c.inner.(io.Closer); ok {
			if err := wc.Close(); err != nil {
				errs.Append(err)
			}
		}
	}
	return errs.Err()
}

func (c *CompressionStream) flushBlock(cleanup bool) error {
	if len(c.buf) == 0 {
		return nil
	}
	if err := c.ensureHeader(); err != nil {
		return err
	}
	src := c.buf
	dst := make([]byte, len(src))
	n, compressed := c.enc.EncodeBlock(dst, src, cleanup)
	tag := byte(tagStored)
	if compressed {
		tag = byte(c.flags.Algorithm())
	}
	if err := c.writeFrame(tag, dst[:n]); err != nil {
		return err
	}
	c.buf = c.buf[:0]
	return nil
}

// ensureHeader writes the container header, encryption header and
// file-info frame exactly once, on the first block flush or at Close if
// no block was ever flushed.
func (c *CompressionStream) ensureHeader() error {
	if c.headerWritten {
		return nil
	}
	c.headerWritten = true

	if c.flags.HasHeader() {
		var hdr [headerSize]byte
		hdr[0], hdr[1], hdr[2], hdr[3] = magic0, magic1, magic2, version
		binary.LittleEndian.PutUint32(hdr[4:], uint32(c.flags))
		if _, err := c.sink.Write(hdr[:]); err != nil {
			return err
		}
	}

	if c.flags.EncryptInner() {
		ehdr, err := crypt.NewHeader(c.opts.password)
		if err != nil {
			return err
		}
		if _, err := c.sink.Write(ehdr); err != nil {
			return err
		}
		key, useCounter, err := crypt.VerifyHeader(ehdr, c.opts.password)
		if err != nil {
			return err
		}
		cip, err := crypt.NewCipher(key, useCounter)
		if err != nil {
			return err
		}
		c.cipher = cip
	}

	if c.flags.HasFileInfo() {
		payload, err := c.opts.fileInfo.MarshalFileInfo()
		if err != nil {
			return err
		}
		if err := c.writeFrame(tagFileInfo, payload); err != nil {
			return err
		}
	}
	return nil
}

// writeFrame writes one frame: prefix (tag + 24-bit biased plaintext
// length), optional CRC32C over the bytes actually placed on the wire, and
// those bytes — ciphertext when a cipher is active, plaintext otherwise.
// The length field always encodes the plaintext length minus one; the
// number of wire bytes that follow is computed from it (crypt.Adjust, when
// encrypted) rather than stored redundantly (see DESIGN.md).
func (c *CompressionStream) writeFrame(tag byte, plaintext []byte) error {
	payloadLen := len(plaintext)
	wire := plaintext
	if c.cipher != nil {
		wire = c.cipher.Encrypt(plaintext)
	}

	prefixLen := 4
	if c.flags.HasCRC() {
		prefixLen = 8
	}
	prefix := make([]byte, prefixLen)
	prefix[0] = tag
	putUint24(prefix[1:4], payloadLen-1)
	if c.flags.HasCRC() {
		binary.LittleEndian.PutUint32(prefix[4:8], crc32c.Checksum(wire))
	}
	if _, err := c.sink.Write(prefix); err != nil {
		return err
	}
	_, err := c.sink.Write(wire)
	return err
}
