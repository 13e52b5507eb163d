// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package blazer

import (
	"encoding/binary"
	"io"

	"github.com/cosnicolaou/blazer/internal/crypt"
)

// FrameInfo describes one on-wire frame, as seen without decrypting or
// decompressing its payload: WalkFrames' diagnostic view of the container.
type FrameInfo struct {
	Tag        byte
	PayloadLen int // plaintext length; zero for tagFlush
	WireLen    int // bytes actually read off the wire (padded when encrypted)
	CRC32C     uint32
	HasCRC     bool
}

// WalkFrames reads a Blazer container's header and every frame that
// follows, invoking fn with each frame's metadata, until the trailer or
// EOF. It does not require a password: encrypted payloads are skipped over
// by their wire length rather than decrypted, and Adjust only depends on
// whether encrypt-inner is set, not on key material. It does not support
// encrypt-full containers, whose header is itself opaque by design — the
// flags needed to walk the frames are inside the very bytes this function
// would need a password to read.
//
// This is the primitive the `inspect` CLI subcommand is built on.
func WalkFrames(r io.Reader, fn func(FrameInfo) error) (Flags, error) {
	var hdr [headerSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return 0, CorruptStreamError("truncated header")
	}
	if hdr[0] != magic0 || hdr[1] != magic1 || hdr[2] != magic2 {
		return 0, CorruptStreamError("bad magic value")
	}
	if hdr[3] != version {
		return 0, VersionError{Got: hdr[3], Want: version}
	}
	flags := Flags(binary.LittleEndian.Uint32(hdr[4:]))
	if err := flags.Validate(); err != nil {
		return 0, err
	}
	if flags.EncryptFull() {
		return flags, UsageError("WalkFrames does not support encrypt-full containers")
	}

	if flags.EncryptInner() {
		var ehdr [encHeaderSize]byte
		if _, err := io.ReadFull(r, ehdr[:]); err != nil {
			return flags, CorruptStreamError("truncated encryption header")
		}
	}

	for {
		var prefix [4]byte
		if _, err := io.ReadFull(r, prefix[:]); err != nil {
			if err == io.EOF {
				return flags, nil
			}
			return flags, CorruptStreamError("truncated frame prefix")
		}
		tag := prefix[0]
		if tag == tagTrailer {
			return flags, nil
		}
		if tag == tagFlush {
			if err := fn(FrameInfo{Tag: tag}); err != nil {
				return flags, err
			}
			continue
		}

		payloadLen := getUint24(prefix[1:4]) + 1
		wireLen := payloadLen
		if flags.EncryptInner() {
			wireLen = crypt.Adjust(payloadLen)
		}

		info := FrameInfo{Tag: tag, PayloadLen: payloadLen, WireLen: wireLen, HasCRC: flags.HasCRC()}
		if flags.HasCRC() {
			var crcBuf [4]byte
			if _, err := io.ReadFull(r, crcBuf[:]); err != nil {
				return flags, CorruptStreamError("truncated CRC")
			}
			info.CRC32C = binary.LittleEndian.Uint32(crcBuf[:])
		}
		if _, err := io.CopyN(io.Discard, r, int64(wireLen)); err != nil {
			return flags, CorruptStreamError("truncated payload")
		}
		if err := fn(info); err != nil {
			return flags, err
		}
	}
}
