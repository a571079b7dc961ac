package keystore

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// SourceFactory opens a key source. location is the part of the source URI
// after "scheme://". base is the directory registry paths are relative to.
//
// Factory functions are registered with RegisterSource and are called by
// OpenSource when a URI with that scheme is opened.
type SourceFactory func(location, base string) (Source, error)

var (
	// sources stores key source factories by URI scheme
	sources = make(map[string]SourceFactory)
	// sourcesMu protects concurrent access to sources
	sourcesMu sync.RWMutex
)

func init() {
	RegisterSource("file", OpenFileSource)
	RegisterSource("keyring", func(service, base string) (Source, error) {
		return OpenKeyringSource(service, base)
	})
}

// RegisterSource registers a key source factory for a URI scheme.
//
// Example:
//
//	func init() {
//	    RegisterSource("vault", NewVaultSource)
//	}
func RegisterSource(scheme string, factory SourceFactory) {
	sourcesMu.Lock()
	defer sourcesMu.Unlock()
	sources[scheme] = factory
}

// GetSourceFactory retrieves the key source factory for scheme.
func GetSourceFactory(scheme string) (SourceFactory, error) {
	sourcesMu.RLock()
	defer sourcesMu.RUnlock()
	factory, ok := sources[scheme]
	if !ok {
		return nil, fmt.Errorf("no key source registered for scheme: %s", scheme)
	}
	return factory, nil
}

// ListRegisteredSources returns all registered schemes, sorted.
func ListRegisteredSources() []string {
	sourcesMu.RLock()
	defer sourcesMu.RUnlock()
	schemes := make([]string, 0, len(sources))
	for scheme := range sources {
		schemes = append(schemes, scheme)
	}
	sort.Strings(schemes)
	return schemes
}

// OpenSource opens the key source named by uri, such as "file://keys.yaml"
// or "keyring://wasmce". A uri without a scheme is a manifest file path.
func OpenSource(uri, base string) (Source, error) {
	if uri == "" {
		return nil, fmt.Errorf("key source cannot be empty")
	}
	scheme, location, ok := strings.Cut(uri, "://")
	if !ok {
		scheme, location = "file", uri
	}
	factory, err := GetSourceFactory(scheme)
	if err != nil {
		return nil, err
	}
	src, err := factory(location, base)
	if err != nil {
		return nil, fmt.Errorf("failed to open key source %s: %w", uri, err)
	}
	return src, nil
}
