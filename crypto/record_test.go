package crypto

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestSealRecord_Format(t *testing.T) {
	plaintext := bytes.Repeat([]byte("wasm"), 125)

	record, key, err := SealRecord(plaintext, DefaultSuite)
	if err != nil {
		t.Fatalf("SealRecord() error = %v", err)
	}

	if len(record) != len(plaintext)+TagSize {
		t.Fatalf("len(record) = %d, want %d", len(record), len(plaintext)+TagSize)
	}
	if key != DeriveKey(plaintext) {
		t.Error("SealRecord() key is not the derived key")
	}

	ciphertext, tag, err := SplitRecord(record)
	if err != nil {
		t.Fatalf("SplitRecord() error = %v", err)
	}
	if !bytes.Equal(tag, Tag(ciphertext, key)) {
		t.Error("record tag is not HMAC-SHA-512 over the ciphertext")
	}

	again, _, err := SealRecord(plaintext, DefaultSuite)
	if err != nil {
		t.Fatalf("SealRecord() error = %v", err)
	}
	if !bytes.Equal(record, again) {
		t.Error("SealRecord() is not deterministic")
	}
}

func TestOpenRecord_RoundTrip(t *testing.T) {
	for _, suite := range []Suite{SuiteAES256CTR, SuiteChaCha20} {
		t.Run(string(suite), func(t *testing.T) {
			plaintext := []byte("module bytes to protect")
			record, key, err := SealRecord(plaintext, suite)
			if err != nil {
				t.Fatalf("SealRecord() error = %v", err)
			}

			got, err := OpenRecord(record, key, suite)
			if err != nil {
				t.Fatalf("OpenRecord() error = %v", err)
			}
			if !bytes.Equal(got, plaintext) {
				t.Errorf("OpenRecord() = %q, want %q", got, plaintext)
			}
		})
	}
}

func TestOpenRecord_TamperDetection(t *testing.T) {
	plaintext := []byte("a short module used to sample every bit position")
	record, key, err := SealRecord(plaintext, DefaultSuite)
	if err != nil {
		t.Fatalf("SealRecord() error = %v", err)
	}

	for i := 0; i < len(record)*8; i++ {
		tampered := append([]byte(nil), record...)
		tampered[i/8] ^= 1 << (i % 8)

		_, err := OpenRecord(tampered, key, DefaultSuite)
		if !errors.Is(err, ErrIntegrity) {
			t.Fatalf("OpenRecord() with bit %d flipped error = %v, want ErrIntegrity", i, err)
		}
	}
}

func TestOpenRecord_WrongKey(t *testing.T) {
	plaintext := []byte("the real module")
	record, key, err := SealRecord(plaintext, DefaultSuite)
	if err != nil {
		t.Fatalf("SealRecord() error = %v", err)
	}

	wrongKeys := []Key{
		DeriveKey([]byte("a different module")),
		{},
	}
	flipped := key
	flipped[KeySize-1] ^= 0x01
	wrongKeys = append(wrongKeys, flipped)

	for i, wrong := range wrongKeys {
		if _, err := OpenRecord(record, wrong, DefaultSuite); !errors.Is(err, ErrIntegrity) {
			t.Errorf("OpenRecord() with wrong key %d error = %v, want ErrIntegrity", i, err)
		}
	}
}

func TestOpenRecord_ShortRecord(t *testing.T) {
	_, err := OpenRecord(make([]byte, TagSize-1), Key{}, DefaultSuite)
	if !errors.Is(err, ErrIntegrity) {
		t.Errorf("OpenRecord() on short record error = %v, want ErrIntegrity", err)
	}

	// An empty plaintext still produces a valid 64 byte record.
	record, key, err := SealRecord(nil, DefaultSuite)
	if err != nil {
		t.Fatalf("SealRecord() error = %v", err)
	}
	if len(record) != TagSize {
		t.Fatalf("len(record) = %d, want %d", len(record), TagSize)
	}
	got, err := OpenRecord(record, key, DefaultSuite)
	if err != nil {
		t.Fatalf("OpenRecord() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("OpenRecord() = %v, want empty", got)
	}
}

func TestDecryptFile_IntegrityErrorCarriesPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mod.wbce")

	record, _, err := SealRecord([]byte("payload"), DefaultSuite)
	if err != nil {
		t.Fatalf("SealRecord() error = %v", err)
	}
	if err := os.WriteFile(path, record, 0644); err != nil {
		t.Fatalf("failed to write record: %v", err)
	}

	_, err = DecryptFile(path, DeriveKey([]byte("wrong")), DefaultSuite)
	var ie *IntegrityError
	if !errors.As(err, &ie) {
		t.Fatalf("DecryptFile() error = %v, want *IntegrityError", err)
	}
	if ie.Path != path {
		t.Errorf("IntegrityError.Path = %q, want %q", ie.Path, path)
	}

	_, err = DecryptFile(filepath.Join(dir, "missing.wbce"), Key{}, DefaultSuite)
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("DecryptFile() on missing file error = %v, want os.ErrNotExist", err)
	}
}
