// Package crypto provides the convergent encryption engine used to protect
// compiled module artifacts at rest.
//
// The key for an artifact is the SHA-256 digest of its plaintext, the stream
// cipher nonce is taken from the first bytes of that same key, and the record
// written to disk is the ciphertext followed by an HMAC-SHA-512 tag:
//
//	[ciphertext:N][hmac_sha512(key, ciphertext):64]
//
// Identical plaintexts therefore always produce identical records. No key,
// nonce or salt is ever embedded in a record; keys travel out of band in a
// Manifest.
//
// Because the key is a pure function of the plaintext, confidentiality only
// holds against an adversary who cannot guess or reconstruct the plaintext,
// and key and nonce are not independent. The scheme is kept as-is for
// deduplication and compatibility with existing records.
package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// KeySize is the size of a derived key in bytes.
const KeySize = sha256.Size

// Key is a content-addressed encryption key.
type Key [KeySize]byte

// DeriveKey returns the convergent key for plaintext.
func DeriveKey(plaintext []byte) Key {
	return Key(sha256.Sum256(plaintext))
}

// String returns the key as 64 lowercase hex characters.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// ParseKey decodes a 64 character hex key.
func ParseKey(s string) (Key, error) {
	var k Key
	s = strings.TrimSpace(s)
	if len(s) != hex.EncodedLen(KeySize) {
		return k, fmt.Errorf("key must be %d hex characters, got %d", hex.EncodedLen(KeySize), len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return k, fmt.Errorf("failed to decode key: %w", err)
	}
	copy(k[:], raw)
	return k, nil
}
