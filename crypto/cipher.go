package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20"
)

// Suite identifies the stream cipher used for records.
//
// The suite is deployment configuration shared by the side that encrypts and
// the side that loads; it is not recorded in the artifact.
type Suite string

const (
	// SuiteAES256CTR is AES-256 in counter mode with IV = key[0:16].
	SuiteAES256CTR Suite = "aes-256-ctr"
	// SuiteChaCha20 is ChaCha20 with nonce = key[0:12].
	SuiteChaCha20 Suite = "chacha20"

	// DefaultSuite is used when no suite is configured.
	DefaultSuite = SuiteAES256CTR
)

// ErrUnknownSuite is returned for a suite name that is not supported.
var ErrUnknownSuite = errors.New("unknown cipher suite")

// ParseSuite maps a configured name to a Suite. An empty name selects DefaultSuite.
func ParseSuite(name string) (Suite, error) {
	switch Suite(name) {
	case "":
		return DefaultSuite, nil
	case SuiteAES256CTR, SuiteChaCha20:
		return Suite(name), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSuite, name)
	}
}

// Encrypt encrypts plaintext with the default suite.
func Encrypt(plaintext []byte, key Key) ([]byte, error) {
	return DefaultSuite.Encrypt(plaintext, key)
}

// Decrypt decrypts ciphertext with the default suite.
func Decrypt(ciphertext []byte, key Key) ([]byte, error) {
	return DefaultSuite.Decrypt(ciphertext, key)
}

// Encrypt returns the ciphertext for plaintext. The output has the same length as the input.
func (s Suite) Encrypt(plaintext []byte, key Key) ([]byte, error) {
	return s.xor(plaintext, key)
}

// Decrypt is the inverse of Encrypt under the same key.
func (s Suite) Decrypt(ciphertext []byte, key Key) ([]byte, error) {
	return s.xor(ciphertext, key)
}

func (s Suite) xor(src []byte, key Key) ([]byte, error) {
	stream, err := s.stream(key)
	if err != nil {
		return nil, err
	}
	dst := make([]byte, len(src))
	stream.XORKeyStream(dst, src)
	return dst, nil
}

func (s Suite) stream(key Key) (cipher.Stream, error) {
	switch s {
	case SuiteAES256CTR, "":
		block, err := aes.NewCipher(key[:])
		if err != nil {
			return nil, fmt.Errorf("failed to create cipher: %w", err)
		}
		return cipher.NewCTR(block, key[:aes.BlockSize]), nil
	case SuiteChaCha20:
		c, err := chacha20.NewUnauthenticatedCipher(key[:], key[:chacha20.NonceSize])
		if err != nil {
			return nil, fmt.Errorf("failed to create cipher: %w", err)
		}
		return c, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSuite, string(s))
	}
}
