// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

package blazer

// FileInfoCodec is the caller-supplied collaborator responsible for the
// opaque 0xFD file-info frame. Its internal layout is owned entirely by
// the collaborator; this package only guarantees the frame is written (or
// read) exactly once, immediately after the header and any encryption
// header, when Flags.HasFileInfo() is set.
type FileInfoCodec interface {
	MarshalFileInfo() ([]byte, error)
	UnmarshalFileInfo([]byte) error
}

type writerOpts struct {
	password  string
	fileInfo  FileInfoCodec
	leaveOpen bool
}

// WriterOption configures NewWriter.
type WriterOption func(*writerOpts)

// WithPassword supplies the password the encryption key is derived from.
// Encryption itself is selected by Flags.EncryptInner or Flags.EncryptFull;
// when neither is set the password is not used.
func WithPassword(password string) WriterOption {
	return func(o *writerOpts) { o.password = password }
}

// WithFileInfo supplies the collaborator that marshals the 0xFD frame.
// Required when Flags.HasFileInfo() is set.
func WithFileInfo(fi FileInfoCodec) WriterOption {
	return func(o *writerOpts) { o.fileInfo = fi }
}

// LeaveOpen prevents Close from closing the underlying writer, for
// caller-owned files/sockets that outlive the stream.
func LeaveOpen() WriterOption {
	return func(o *writerOpts) { o.leaveOpen = true }
}

type readerOpts struct {
	password    string
	fileInfo    FileInfoCodec
	control     func([]byte)
	leaveOpen   bool
	encryptFull bool
	noHeader    bool
	flags       Flags
}

// ReaderOption configures NewReader.
type ReaderOption func(*readerOpts)

// WithPasswordReader supplies the password a reader checks an encrypted
// container's handshake against.
func WithPasswordReader(password string) ReaderOption {
	return func(o *readerOpts) { o.password = password }
}

// WithFileInfoReader supplies the collaborator that unmarshals the 0xFD
// frame, required when the container's header flags have HasFileInfo set.
func WithFileInfoReader(fi FileInfoCodec) ReaderOption {
	return func(o *readerOpts) { o.fileInfo = fi }
}

// WithControlCallback registers a callback invoked with the payload of
// every 0xF1 out-of-band control frame, and with a nil buffer for every
// 0xF0 flush marker.
func WithControlCallback(fn func([]byte)) ReaderOption {
	return func(o *readerOpts) { o.control = fn }
}

// LeaveOpenReader prevents Close from closing the underlying reader, when
// it implements io.Closer.
func LeaveOpenReader() ReaderOption {
	return func(o *readerOpts) { o.leaveOpen = true }
}

// ExpectEncryptFull tells the reader that the entire container, including
// its header, is wrapped by the outer encrypt-full stream cipher. Since
// the header carrying the encrypt-full flag bit is
// itself inside the encrypted region, the reader cannot discover this from
// the wire and must be told out of band, just as the CLI's --encryptfull
// flag tells it on both sides of a round trip.
func ExpectEncryptFull() ReaderOption {
	return func(o *readerOpts) { o.encryptFull = true }
}

// NoHeader configures a headerless ("blob-only") reader: flags are taken
// from the argument rather than parsed from an 8-byte wire header, mirroring
// the writer-side --blobonly convention where both ends fix the same flags
// out of band instead of encoding them on the wire.
func NoHeader(flags Flags) ReaderOption {
	return func(o *readerOpts) { o.noHeader = true; o.flags = flags }
}
