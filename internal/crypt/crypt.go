// Copyright 2020 Cosmos Nicolaou. All rights reserved.
// Use of this source code is governed by the Apache-2.0
// license that can be found in the LICENSE file.

// Package crypt implements Blazer's encryption sub-layer: PBKDF2-HMAC-SHA1
// key derivation, the password-verification handshake, per-block AES-CBC
// encryption with an anti-replay counter, and the outer encrypt-full
// stream wrapper.
package crypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1" //nolint:gosec // PBKDF2-HMAC-SHA1 is the format's fixed KDF, not used for signatures.
	"encoding/binary"
	"errors"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

// Sizes and iteration counts for the handshake and key derivation.
const (
	SaltSize        = 8
	seedSize        = 8
	verifierSize    = 8
	HeaderSize      = SaltSize + seedSize + verifierSize
	CounterSize     = 8
	keySize         = 32
	innerIterations = 20000
	outerIterations = 4096
)

var (
	verifierSuffixCounter = []byte("Blazer!?")
	verifierSuffixLegacy  = []byte("Blazer!!")
)

// ErrInvalidPassword is returned by VerifyHeader when neither the
// counter-variant nor the legacy verifier matches.
var ErrInvalidPassword = errors.New("crypt: invalid password")

// ErrCounterMismatch is returned by Cipher.Decrypt when the counter-variant
// is in effect and the decrypted counter does not equal the next expected
// value: the ciphertext blocks were reordered or damaged.
var ErrCounterMismatch = errors.New("crypt: duplicated or damaged ciphertext")

// DeriveKey derives a 32-byte AES-256 key from password and salt with
// PBKDF2-HMAC-SHA1.
func DeriveKey(password string, salt []byte, iterations int) []byte {
	return pbkdf2.Key([]byte(password), salt, iterations, keySize, sha1.New)
}

func encryptVerifier(key, seed, suffix []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, aes.BlockSize)
	copy(plain, seed)
	copy(plain[len(seed):], suffix)
	out := make([]byte, aes.BlockSize)
	cipher.NewCBCEncrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(out, plain)
	return out[:verifierSize], nil
}

// NewHeader builds a fresh 24-byte encryption header for password: random
// salt and challenge seed, followed by the first 8 bytes of
// AES-encrypt(seed || "Blazer!?").
func NewHeader(password string) ([]byte, error) {
	hdr := make([]byte, HeaderSize)
	if _, err := rand.Read(hdr[:SaltSize+seedSize]); err != nil {
		return nil, err
	}
	key := DeriveKey(password, hdr[:SaltSize], innerIterations)
	verifier, err := encryptVerifier(key, hdr[SaltSize:SaltSize+seedSize], verifierSuffixCounter)
	if err != nil {
		return nil, err
	}
	copy(hdr[SaltSize+seedSize:], verifier)
	return hdr, nil
}

// VerifyHeader checks a 24-byte encryption header against password. It
// returns the derived key and whether the per-block counter variant was
// accepted (the legacy "Blazer!!" variant predates the counter and is
// accepted without counter enforcement).
func VerifyHeader(header []byte, password string) (key []byte, useCounter bool, err error) {
	if len(header) != HeaderSize {
		return nil, false, errors.New("crypt: malformed encryption header")
	}
	salt := header[:SaltSize]
	seed := header[SaltSize : SaltSize+seedSize]
	want := header[SaltSize+seedSize:]

	key = DeriveKey(password, salt, innerIterations)
	for _, variant := range [...]struct {
		suffix     []byte
		useCounter bool
	}{
		{verifierSuffixCounter, true},
		{verifierSuffixLegacy, false},
	} {
		got, err := encryptVerifier(key, seed, variant.suffix)
		if err != nil {
			return nil, false, err
		}
		if hmac.Equal(got, want) {
			return key, variant.useCounter, nil
		}
	}
	return nil, false, ErrInvalidPassword
}

// Adjust returns the on-wire ciphertext length for a plaintext payload of
// n bytes: n+8 (the counter prefix) rounded up to the next multiple of 16.
func Adjust(n int) int {
	return ((n - 1 + CounterSize) | 15) + 1
}

// Cipher performs per-block AES-CBC encryption with a monotonic counter
// prefix guarding against block reordering and replay. Callers that have
// no password simply never construct a Cipher and skip straight to the
// plaintext payload, rather than dispatching through a "none" variant.
type Cipher struct {
	block      cipher.Block
	counter    uint64
	useCounter bool
}

// NewCipher constructs a Cipher from a derived key.
func NewCipher(key []byte, useCounter bool) (*Cipher, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &Cipher{block: block, useCounter: useCounter}, nil
}

// Encrypt returns plaintext prefixed with the next counter value and
// encrypted with AES-CBC (zero IV, zero padding to the next block
// boundary), advancing the counter.
func (c *Cipher) Encrypt(plaintext []byte) []byte {
	n := Adjust(len(plaintext))
	buf := make([]byte, n)
	binary.LittleEndian.PutUint64(buf, c.counter)
	copy(buf[CounterSize:], plaintext)
	cipher.NewCBCEncrypter(c.block, make([]byte, aes.BlockSize)).CryptBlocks(buf, buf)
	c.counter++
	return buf
}

// Decrypt decrypts ciphertext in place, strips the 8-byte counter and
// returns the plaintextLen bytes that follow it. When the counter variant
// is in effect, the decrypted counter must equal the next expected value
// or ErrCounterMismatch is returned; otherwise any counter value advances
// the expectation to counter+1.
func (c *Cipher) Decrypt(ciphertext []byte, plaintextLen int) ([]byte, error) {
	if len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("crypt: ciphertext not block aligned")
	}
	cipher.NewCBCDecrypter(c.block, make([]byte, aes.BlockSize)).CryptBlocks(ciphertext, ciphertext)
	if len(ciphertext) < CounterSize+plaintextLen {
		return nil, errors.New("crypt: plaintext length exceeds decrypted ciphertext")
	}
	got := binary.LittleEndian.Uint64(ciphertext[:CounterSize])
	if c.useCounter && got != c.counter {
		return nil, ErrCounterMismatch
	}
	c.counter = got + 1
	return ciphertext[CounterSize : CounterSize+plaintextLen], nil
}

// pkcs7Pad pads buf to a multiple of blockSize with the PKCS7 scheme.
func pkcs7Pad(buf []byte, blockSize int) []byte {
	padLen := blockSize - len(buf)%blockSize
	out := make([]byte, len(buf)+padLen)
	copy(out, buf)
	for i := len(buf); i < len(out); i++ {
		out[i] = byte(padLen)
	}
	return out
}

func pkcs7Unpad(buf []byte) ([]byte, error) {
	if len(buf) == 0 {
		return nil, errors.New("crypt: empty padded buffer")
	}
	padLen := int(buf[len(buf)-1])
	if padLen == 0 || padLen > len(buf) {
		return nil, errors.New("crypt: invalid PKCS7 padding")
	}
	return buf[:len(buf)-padLen], nil
}

// FullWriter wraps an io.Writer, encrypting everything written to it with
// AES-CBC (PKCS7 padding) under a key derived from password with PBKDF2
// (4096 iterations). An 8-byte random salt is written first. Close must be
// called to flush the final padded block.
type FullWriter struct {
	w   io.Writer
	enc cipher.BlockMode
	buf []byte
}

// NewFullWriter writes the salt and returns a FullWriter over w.
func NewFullWriter(w io.Writer, password string) (*FullWriter, error) {
	salt := make([]byte, SaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	if _, err := w.Write(salt); err != nil {
		return nil, err
	}
	key := DeriveKey(password, salt, outerIterations)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &FullWriter{w: w, enc: cipher.NewCBCEncrypter(block, make([]byte, aes.BlockSize))}, nil
}

func (fw *FullWriter) Write(p []byte) (int, error) {
	fw.buf = append(fw.buf, p...)
	n := len(fw.buf) - len(fw.buf)%aes.BlockSize
	if n > 0 {
		chunk := make([]byte, n)
		copy(chunk, fw.buf[:n])
		fw.enc.CryptBlocks(chunk, chunk)
		if _, err := fw.w.Write(chunk); err != nil {
			return 0, err
		}
		fw.buf = append(fw.buf[:0], fw.buf[n:]...)
	}
	return len(p), nil
}

// Close pads and encrypts the final partial block and writes it out. It
// does not close the wrapped writer.
func (fw *FullWriter) Close() error {
	padded := pkcs7Pad(fw.buf, aes.BlockSize)
	fw.enc.CryptBlocks(padded, padded)
	_, err := fw.w.Write(padded)
	return err
}

// DecryptFull reads the salt-prefixed, AES-CBC/PKCS7-padded stream
// produced by FullWriter in its entirety and returns the plaintext. The
// encrypt-full wrapper sits outside the block-framed container, so
// unlike the per-block cipher it has no reason to be pull-streamed: the
// whole container must be available before framing can even begin.
func DecryptFull(r io.Reader, password string) ([]byte, error) {
	all, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	if len(all) < SaltSize {
		return nil, errors.New("crypt: encrypt-full stream shorter than its salt")
	}
	salt, ciphertext := all[:SaltSize], all[SaltSize:]
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.New("crypt: encrypt-full ciphertext not block aligned")
	}
	key := DeriveKey(password, salt, outerIterations)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	plain := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, make([]byte, aes.BlockSize)).CryptBlocks(plain, ciphertext)
	return pkcs7Unpad(plain)
}
