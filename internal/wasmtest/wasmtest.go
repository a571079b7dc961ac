// Package wasmtest provides WebAssembly fixtures for tests.
package wasmtest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joncooperworks/wasmce/container"
	"github.com/joncooperworks/wasmce/crypto"
)

// AddModule exports add(i32, i32) -> i32 and nothing else.
var AddModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00, // magic, version
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, // type: (i32, i32) -> i32
	0x03, 0x02, 0x01, 0x00, // func 0 has type 0
	0x07, 0x07, 0x01, 0x03, 'a', 'd', 'd', 0x00, 0x00, // export "add"
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b, // local.get 0, local.get 1, i32.add
}

// WriteEncrypted wraps code in a container, encrypts it, and writes the
// record to dir/rel. It returns the record path and its hex key.
func WriteEncrypted(t testing.TB, dir, rel string, code []byte) (string, string) {
	t.Helper()
	return WriteRecord(t, dir, rel, container.Wrap(code, container.WrapOptions{}))
}

// WriteRecord encrypts plaintext as is and writes the record to dir/rel.
func WriteRecord(t testing.TB, dir, rel string, plaintext []byte) (string, string) {
	t.Helper()

	record, key, err := crypto.SealRecord(plaintext, crypto.DefaultSuite)
	if err != nil {
		t.Fatalf("SealRecord() error = %v", err)
	}

	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, record, 0644); err != nil {
		t.Fatalf("failed to write record: %v", err)
	}
	return path, key.String()
}
