// Package keystore holds the keys needed to open encrypted modules.
//
// A Registry maps normalized artifact paths to keys. It is populated once by
// a trusted bootstrap step, sealed, and then only read by loaders. Sources
// (manifest files, the OS keyring) supply the raw path to key mapping that
// the bootstrap step registers.
package keystore

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/joncooperworks/wasmce/crypto"
)

var (
	// ErrKeyNotFound is matched by every failed key lookup.
	ErrKeyNotFound = errors.New("no key registered for path")

	// ErrRegistrySealed is returned when a sealed registry is mutated.
	ErrRegistrySealed = errors.New("key registry is sealed")
)

// KeyNotFoundError reports a lookup with no registered key.
type KeyNotFoundError struct {
	Path       string // Path as requested
	Normalized string // Path the registry looked up
}

func (e *KeyNotFoundError) Error() string {
	return fmt.Sprintf("no key registered for %s (normalized %q)", e.Path, e.Normalized)
}

// Is makes errors.Is(err, ErrKeyNotFound) succeed.
func (e *KeyNotFoundError) Is(target error) bool {
	return target == ErrKeyNotFound
}

// Registry maps normalized artifact paths to keys.
//
// Registry does no locking. Populate it from a single goroutine, call Seal,
// and only then share it with loaders.
type Registry struct {
	base    string
	entries map[string]crypto.Key
	sealed  bool
}

// NewRegistry returns an empty registry that normalizes paths relative to base.
// An empty base means the working directory.
func NewRegistry(base string) *Registry {
	return &Registry{
		base:    base,
		entries: make(map[string]crypto.Key),
	}
}

// Base returns the directory paths are made relative to.
func (r *Registry) Base() string {
	return r.base
}

// Register adds the hex key for path.
func (r *Registry) Register(p, hexKey string) error {
	if r.sealed {
		return ErrRegistrySealed
	}
	key, err := crypto.ParseKey(hexKey)
	if err != nil {
		return fmt.Errorf("invalid key for %s: %w", p, err)
	}
	r.entries[NormalizePath(r.base, p)] = key
	return nil
}

// RegisterAll adds every path to hex key pair in keys.
func (r *Registry) RegisterAll(keys map[string]string) error {
	for p, k := range keys {
		if err := r.Register(p, k); err != nil {
			return err
		}
	}
	return nil
}

// RegisterManifest adds every entry of an encryption manifest.
func (r *Registry) RegisterManifest(m crypto.Manifest) error {
	for _, e := range m {
		if err := r.Register(e.Path, e.Key); err != nil {
			return err
		}
	}
	return nil
}

// Seal ends population. Later mutations return ErrRegistrySealed.
func (r *Registry) Seal() {
	r.sealed = true
}

// Sealed reports whether Seal has been called.
func (r *Registry) Sealed() bool {
	return r.sealed
}

// Len returns the number of registered keys.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Paths returns the normalized paths with a registered key.
func (r *Registry) Paths() []string {
	paths := make([]string, 0, len(r.entries))
	for p := range r.entries {
		paths = append(paths, p)
	}
	return paths
}

// Lookup returns the key for path, normalizing it the same way Register does.
func (r *Registry) Lookup(p string) (crypto.Key, error) {
	normalized := NormalizePath(r.base, p)
	key, ok := r.entries[normalized]
	if !ok {
		return crypto.Key{}, &KeyNotFoundError{Path: p, Normalized: normalized}
	}
	return key, nil
}

// NormalizePath returns the registry form of p: relative to base (the
// working directory when base is empty) where possible, '/' separated,
// cleaned and lower-cased.
//
// Registration and lookup must both go through this function or lookups miss.
func NormalizePath(base, p string) string {
	if base == "" {
		base = "."
	}
	if rel, err := relativeTo(base, p); err == nil {
		p = rel
	}
	p = filepath.ToSlash(p)
	p = strings.ReplaceAll(p, `\`, "/")
	return strings.ToLower(path.Clean(p))
}

func relativeTo(base, p string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	absPath, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	// Different volumes have no relative form.
	return filepath.Rel(absBase, absPath)
}
