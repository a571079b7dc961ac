package crypto

import (
	"fmt"
	"os"
)

// SealRecord encrypts plaintext convergently and returns the on-disk record
// together with the key needed to open it.
//
// Record format: [ciphertext:len(plaintext)][tag:64]
func SealRecord(plaintext []byte, suite Suite) ([]byte, Key, error) {
	key := DeriveKey(plaintext)

	ciphertext, err := suite.Encrypt(plaintext, key)
	if err != nil {
		return nil, key, fmt.Errorf("failed to encrypt: %w", err)
	}

	record := make([]byte, 0, len(ciphertext)+TagSize)
	record = append(record, ciphertext...)
	record = append(record, Tag(ciphertext, key)...)
	return record, key, nil
}

// SplitRecord separates a record into ciphertext and tag.
func SplitRecord(record []byte) (ciphertext, tag []byte, err error) {
	if len(record) < TagSize {
		return nil, nil, &IntegrityError{Reason: fmt.Sprintf("record is %d bytes, shorter than the %d byte tag", len(record), TagSize)}
	}
	n := len(record) - TagSize
	return record[:n], record[n:], nil
}

// OpenRecord verifies the tag of record and returns the decrypted plaintext.
// A tag mismatch returns an *IntegrityError and no plaintext.
func OpenRecord(record []byte, key Key, suite Suite) ([]byte, error) {
	ciphertext, tag, err := SplitRecord(record)
	if err != nil {
		return nil, err
	}

	if !VerifyTag(ciphertext, tag, key) {
		return nil, &IntegrityError{}
	}

	plaintext, err := suite.Decrypt(ciphertext, key)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}
	return plaintext, nil
}

// DecryptFile reads the record at path and opens it with key.
// Integrity failures carry the path.
func DecryptFile(path string, key Key, suite Suite) ([]byte, error) {
	record, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	plaintext, err := OpenRecord(record, key, suite)
	if ie, ok := err.(*IntegrityError); ok {
		ie.Path = path
		return nil, ie
	}
	return plaintext, err
}
