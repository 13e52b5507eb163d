// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package blazer

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/cosnicolaou/blazer/internal/block"
	"github.com/cosnicolaou/blazer/internal/crc32c"
	"github.com/cosnicolaou/blazer/internal/crypt"
)

// DecompressionStream parses a Blazer container and exposes the decoded
// bytes as a pull-mode io.Reader. It is single-threaded and never blocks
// beyond the inner reader's own blocking reads.
type DecompressionStream struct {
	inner io.Reader
	src   io.Reader

	opts  readerOpts
	flags Flags

	dec      *block.Decoder
	cipher   *crypt.Cipher
	maxBlock int

	headerRead bool
	pending    []byte
	err        error
}

// NewReader constructs a DecompressionStream over r. See ReaderOption for
// optional behavior (password, file-info collaborator, control callback,
// encrypt-full, headerless "blob-only" streams).
func NewReader(r io.Reader, opts ...ReaderOption) (*DecompressionStream, error) {
	var o readerOpts
	for _, fn := range opts {
		fn(&o)
	}
	d := &DecompressionStream{inner: r, src: r, opts: o, dec: block.NewDecoder()}

	if o.encryptFull {
		if o.password == "" {
			return nil, UsageError("encrypt-full stream but no password was supplied")
		}
		plain, err := crypt.DecryptFull(r, o.password)
		if err != nil {
			return nil, EncryptionError(err.Error())
		}
		d.src = bytes.NewReader(plain)
	}
	return d, nil
}

// Read implements io.Reader, refilling from the next frame whenever the
// previously decoded block is exhausted.
func (d *DecompressionStream) Read(p []byte) (int, error) {
	if d.err != nil {
		return 0, d.err
	}
	if err := d.readHeader(); err != nil {
		d.err = err
		return 0, err
	}
	for len(d.pending) == 0 {
		tag, payload, err := d.nextFrame()
		if err == io.EOF {
			if d.flags.HasTrailer() {
				d.err = CorruptStreamError("stream ended before trailer")
			} else {
				d.err = io.EOF
			}
			return 0, d.err
		}
		if err != nil {
			d.err = err
			return 0, err
		}
		switch tag {
		case tagTrailer:
			d.err = io.EOF
			return 0, io.EOF
		case tagFlush:
			if d.opts.control != nil {
				d.opts.control(nil)
			}
			continue
		case tagControl:
			if d.opts.control != nil {
				d.opts.control(payload)
			}
			continue
		case tagFileInfo:
			d.err = CorruptStreamError("unexpected file-info frame")
			return 0, d.err
		case tagStored:
			if len(payload) > d.maxBlock {
				d.err = CorruptStreamError("stored block exceeds MaxBlockSize")
				return 0, d.err
			}
			dst := make([]byte, d.maxBlock)
			n, derr := d.dec.DecodeStored(dst, payload, false)
			if derr != nil {
				d.err = CorruptStreamError(derr.Error())
				return 0, d.err
			}
			d.pending = dst[:n]
		default:
			if tag != byte(d.flags.Algorithm()) {
				d.err = CorruptStreamError("unknown block tag")
				return 0, d.err
			}
			if len(payload) > d.maxBlock {
				d.err = CorruptStreamError("compressed block exceeds MaxBlockSize")
				return 0, d.err
			}
			dst := make([]byte, d.maxBlock)
			n, derr := d.dec.DecodeBlock(dst, payload, false)
			if derr != nil {
				d.err = CorruptStreamError(derr.Error())
				return 0, d.err
			}
			d.pending = dst[:n]
		}
	}
	n := copy(p, d.pending)
	d.pending = d.pending[n:]
	return n, nil
}

// Close closes the underlying reader, unless LeaveOpenReader was given and
// it implements io.Closer.
func (d *DecompressionStream) Close() error {
	if d.opts.leaveOpen {
		return nil
	}
	if rc, ok := d.inner.(io.Closer); ok {
		return rc.Close()
	}
	return nil
}

func (d *DecompressionStream) readHeader() error {
	if d.headerRead {
		return nil
	}
	d.headerRead = true

	if d.opts.noHeader {
		if err := d.opts.flags.Validate(); err != nil {
			return err
		}
		d.flags = d.opts.flags
	} else {
		var hdr [headerSize]byte
		if _, err := io.ReadFull(d.src, hdr[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return CorruptStreamError("truncated header")
			}
			return err
		}
		if hdr[0] != magic0 || hdr[1] != magic1 || hdr[2] != magic2 {
			return CorruptStreamError("bad magic value")
		}
		if hdr[3] != version {
			return VersionError{Got: hdr[3], Want: version}
		}
		flags := Flags(binary.LittleEndian.Uint32(hdr[4:]))
		if err := flags.Validate(); err != nil {
			return err
		}
		d.flags = flags
	}
	d.maxBlock = d.flags.MaxBlockSize()

	if d.flags.EncryptInner() {
		if d.opts.password == "" {
			return EncryptionError("container is encrypted but no password was supplied")
		}
		var ehdr [encHeaderSize]byte
		if _, err := io.ReadFull(d.src, ehdr[:]); err != nil {
			return CorruptStreamError("truncated encryption header")
		}
		key, useCounter, err := crypt.VerifyHeader(ehdr[:], d.opts.password)
		if err != nil {
			return EncryptionError(err.Error())
		}
		cip, err := crypt.NewCipher(key, useCounter)
		if err != nil {
			return err
		}
		d.cipher = cip
	} else if d.opts.password != "" && !d.opts.encryptFull {
		return EncryptionError("password was supplied but the container is not encrypted")
	}

	if d.flags.HasFileInfo() {
		tag, payload, err := d.nextFrame()
		if err != nil {
			return err
		}
		if tag != tagFileInfo {
			return CorruptStreamError("expected file-info frame immediately after header")
		}
		if d.opts.fileInfo == nil {
			return UsageError("file-info flag is set but no FileInfoCodec was supplied")
		}
		if err := d.opts.fileInfo.UnmarshalFileInfo(payload); err != nil {
			return err
		}
	}
	return nil
}

// nextFrame reads one frame and returns its tag and plaintext payload.
// tagFlush and tagTrailer frames carry no payload; for all other tags the
// frame's length field encodes the plaintext length minus one, and the
// number of wire bytes read is computed via crypt.Adjust when a cipher is
// active rather than being stored redundantly (see DESIGN.md).
func (d *DecompressionStream) nextFrame() (byte, []byte, error) {
	var prefix [4]byte
	if _, err := io.ReadFull(d.src, prefix[:]); err != nil {
		if err == io.EOF {
			return 0, nil, io.EOF
		}
		return 0, nil, CorruptStreamError("truncated frame prefix")
	}
	tag := prefix[0]

	if tag == tagTrailer {
		if prefix[1] != trailerBytes[1] || prefix[2] != trailerBytes[2] || prefix[3] != trailerBytes[3] {
			return 0, nil, CorruptStreamError("malformed trailer")
		}
		return tag, nil, nil
	}
	if tag == tagFlush {
		return tag, nil, nil
	}

	payloadLen := getUint24(prefix[1:4]) + 1
	wireLen := payloadLen
	if d.cipher != nil {
		wireLen = crypt.Adjust(payloadLen)
	}

	var crcWant uint32
	if d.flags.HasCRC() {
		var crcBuf [4]byte
		if _, err := io.ReadFull(d.src, crcBuf[:]); err != nil {
			return 0, nil, CorruptStreamError("truncated CRC")
		}
		crcWant = binary.LittleEndian.Uint32(crcBuf[:])
	}

	wire := make([]byte, wireLen)
	if _, err := io.ReadFull(d.src, wire); err != nil {
		return 0, nil, CorruptStreamError("truncated payload")
	}
	if d.flags.HasCRC() {
		if crc32c.Checksum(wire) != crcWant {
			return 0, nil, CorruptStreamError("CRC32C mismatch")
		}
	}

	if d.cipher != nil {
		plain, err := d.cipher.Decrypt(wire, payloadLen)
		if err != nil {
			if err == crypt.ErrCounterMismatch {
				return 0, nil, EncryptionError("duplicated or damaged ciphertext")
			}
			return 0, nil, err
		}
		return tag, plain, nil
	}
	return tag, wire, nil
}
