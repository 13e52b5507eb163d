// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package main

import (
	"encoding/binary"
	"errors"
	"time"
)

// basicFileInfo is the CLI's concrete collaborator for the 0xFD file-info
// frame (blazer.FileInfoCodec): just enough to support --nofilename-style
// round trips without pulling in a general file-metadata library.
type basicFileInfo struct {
	Name    string
	ModTime time.Time
	Mode    uint32
}

func (fi *basicFileInfo) MarshalFileInfo() ([]byte, error) {
	nameBytes := []byte(fi.Name)
	buf := make([]byte, 0, 2+len(nameBytes)+8+4)
	var nl [2]byte
	binary.LittleEndian.PutUint16(nl[:], uint16(len(nameBytes)))
	buf = append(buf, nl[:]...)
	buf = append(buf, nameBytes...)
	var rest [12]byte
	binary.LittleEndian.PutUint64(rest[:8], uint64(fi.ModTime.Unix()))
	binary.LittleEndian.PutUint32(rest[8:], fi.Mode)
	buf = append(buf, rest[:]...)
	return buf, nil
}

func (fi *basicFileInfo) UnmarshalFileInfo(b []byte) error {
	if len(b) < 2 {
		return errors.New("blazer: file-info record truncated")
	}
	nameLen := int(binary.LittleEndian.Uint16(b[:2]))
	b = b[2:]
	if len(b) < nameLen+12 {
		return errors.New("blazer: file-info record truncated")
	}
	fi.Name = string(b[:nameLen])
	b = b[nameLen:]
	fi.ModTime = time.Unix(int64(binary.LittleEndian.Uint64(b[:8])), 0)
	fi.Mode = binary.LittleEndian.Uint32(b[8:12])
	return nil
}
