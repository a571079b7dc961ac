package crypto

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"
)

func TestDeriveKey_Convergent(t *testing.T) {
	a := []byte("identical module bytes")
	b := append([]byte(nil), a...)

	if DeriveKey(a) != DeriveKey(b) {
		t.Fatal("DeriveKey() differs for identical plaintexts")
	}
	if DeriveKey(a) == DeriveKey([]byte("different module bytes")) {
		t.Fatal("DeriveKey() collides for different plaintexts")
	}

	// SHA-256 of the empty string
	const emptyKey = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := DeriveKey(nil).String(); got != emptyKey {
		t.Errorf("DeriveKey(nil) = %s, want %s", got, emptyKey)
	}
}

func TestParseKey(t *testing.T) {
	key := DeriveKey([]byte("payload"))

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{name: "lowercase hex", input: key.String()},
		{name: "uppercase hex", input: string(bytes.ToUpper([]byte(key.String())))},
		{name: "too short", input: key.String()[:62], wantErr: true},
		{name: "too long", input: key.String() + "00", wantErr: true},
		{name: "not hex", input: "zz" + key.String()[2:], wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKey(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseKey() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != key {
				t.Errorf("ParseKey() = %s, want %s", got, key)
			}
		})
	}
}

func TestSuite_RoundTrip(t *testing.T) {
	large := make([]byte, 1<<16+7)
	if _, err := rand.Read(large); err != nil {
		t.Fatalf("failed to generate data: %v", err)
	}

	plaintexts := map[string][]byte{
		"empty":     {},
		"one byte":  {0x42},
		"block":     bytes.Repeat([]byte{0xAA}, 16),
		"odd size":  []byte("not a multiple of the block size"),
		"large":     large,
		"all zeros": make([]byte, 4096),
	}

	for _, suite := range []Suite{SuiteAES256CTR, SuiteChaCha20} {
		for name, plaintext := range plaintexts {
			t.Run(string(suite)+"/"+name, func(t *testing.T) {
				key := DeriveKey(plaintext)

				ciphertext, err := suite.Encrypt(plaintext, key)
				if err != nil {
					t.Fatalf("Encrypt() error = %v", err)
				}
				if len(ciphertext) != len(plaintext) {
					t.Fatalf("len(ciphertext) = %d, want %d", len(ciphertext), len(plaintext))
				}
				if len(plaintext) >= 16 && bytes.Equal(ciphertext, plaintext) {
					t.Fatal("ciphertext equals plaintext")
				}

				decrypted, err := suite.Decrypt(ciphertext, key)
				if err != nil {
					t.Fatalf("Decrypt() error = %v", err)
				}
				if !bytes.Equal(decrypted, plaintext) {
					t.Fatal("Decrypt(Encrypt(p)) != p")
				}
			})
		}
	}
}

func TestSuite_Convergence(t *testing.T) {
	p1 := []byte("the same bytecode container")
	p2 := []byte("the same bytecode container")

	c1, err := Encrypt(p1, DeriveKey(p1))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	c2, err := Encrypt(p2, DeriveKey(p2))
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if !bytes.Equal(c1, c2) {
		t.Error("identical plaintexts produced different ciphertexts")
	}
}

func TestSuite_SuitesDiffer(t *testing.T) {
	plaintext := []byte("bytes encrypted under both suites")
	key := DeriveKey(plaintext)

	aes, err := SuiteAES256CTR.Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	chacha, err := SuiteChaCha20.Encrypt(plaintext, key)
	if err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if bytes.Equal(aes, chacha) {
		t.Error("aes-256-ctr and chacha20 produced identical ciphertext")
	}
}

func TestParseSuite(t *testing.T) {
	tests := []struct {
		input   string
		want    Suite
		wantErr bool
	}{
		{input: "", want: DefaultSuite},
		{input: "aes-256-ctr", want: SuiteAES256CTR},
		{input: "chacha20", want: SuiteChaCha20},
		{input: "rot13", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ParseSuite(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseSuite(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if tt.wantErr {
			if !errors.Is(err, ErrUnknownSuite) {
				t.Errorf("ParseSuite(%q) error = %v, want ErrUnknownSuite", tt.input, err)
			}
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSuite(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}

	if _, err := Suite("rot13").Encrypt([]byte("x"), Key{}); !errors.Is(err, ErrUnknownSuite) {
		t.Errorf("Encrypt() with unknown suite error = %v, want ErrUnknownSuite", err)
	}
}

func TestVerifyTag(t *testing.T) {
	ciphertext := []byte("ciphertext bytes")
	key := DeriveKey([]byte("plaintext"))
	tag := Tag(ciphertext, key)

	if len(tag) != TagSize {
		t.Fatalf("len(Tag()) = %d, want %d", len(tag), TagSize)
	}
	if !VerifyTag(ciphertext, tag, key) {
		t.Fatal("VerifyTag() = false for a fresh tag")
	}

	otherKey := DeriveKey([]byte("other plaintext"))
	if VerifyTag(ciphertext, tag, otherKey) {
		t.Error("VerifyTag() = true under a different key")
	}
	if VerifyTag(ciphertext, tag[:TagSize-1], key) {
		t.Error("VerifyTag() = true for a truncated tag")
	}
	if VerifyTag(append([]byte("x"), ciphertext...), tag, key) {
		t.Error("VerifyTag() = true for modified ciphertext")
	}
}
