package keystore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/99designs/keyring"

	"github.com/joncooperworks/wasmce/crypto"
)

// DefaultService is the keyring service name used when none is given.
const DefaultService = "wasmce"

// KeyringSource stores keys in the OS keyring (Keychain, Secret Service,
// KWallet, Windows Credential Manager, or an encrypted file as a fallback).
//
// Items are keyed by the registry form of the artifact path relative to
// base, and hold the hex key.
type KeyringSource struct {
	ring keyring.Keyring
	base string
}

// NewKeyringSource wraps an open keyring.
func NewKeyringSource(ring keyring.Keyring, base string) *KeyringSource {
	return &KeyringSource{ring: ring, base: base}
}

// OpenKeyringSource opens the OS keyring for service.
func OpenKeyringSource(service, base string) (*KeyringSource, error) {
	if service == "" {
		service = DefaultService
	}
	cfg := keyring.Config{
		ServiceName:      service,
		FilePasswordFunc: keyring.TerminalPrompt,
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.FileDir = filepath.Join(home, ".wasmce", "keyring")
	}
	ring, err := keyring.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open keyring: %w", err)
	}
	return NewKeyringSource(ring, base), nil
}

// Keys returns every stored key. Paths are joined back onto base so that
// registering them against the same base reproduces the stored item keys.
func (k *KeyringSource) Keys() (map[string]string, error) {
	names, err := k.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys from keyring: %w", err)
	}

	keys := make(map[string]string, len(names))
	for _, name := range names {
		item, err := k.ring.Get(name)
		if err != nil {
			return nil, fmt.Errorf("failed to get key %s from keyring: %w", name, err)
		}
		p := filepath.FromSlash(name)
		if k.base != "" {
			p = filepath.Join(k.base, p)
		}
		keys[p] = string(item.Data)
	}
	return keys, nil
}

// List returns the stored item keys, sorted.
func (k *KeyringSource) List() ([]string, error) {
	names, err := k.ring.Keys()
	if err != nil {
		return nil, fmt.Errorf("failed to list keys from keyring: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Store saves every manifest entry, replacing existing items for the same path.
func (k *KeyringSource) Store(m crypto.Manifest) error {
	for _, e := range m {
		if _, err := crypto.ParseKey(e.Key); err != nil {
			return fmt.Errorf("manifest entry %q: %w", e.Path, err)
		}
		name := NormalizePath(k.base, e.Path)
		err := k.ring.Set(keyring.Item{
			Key:         name,
			Data:        []byte(e.Key),
			Label:       "wasmce: " + name,
			Description: "wasmce module key",
		})
		if err != nil {
			return fmt.Errorf("failed to store key in keyring: %w", err)
		}
	}
	return nil
}

// Remove deletes the key for path. A missing item is not an error.
func (k *KeyringSource) Remove(p string) error {
	err := k.ring.Remove(NormalizePath(k.base, p))
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("failed to remove key from keyring: %w", err)
	}
	return nil
}
