package plugin

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/joncooperworks/wasmce/crypto"
	"github.com/joncooperworks/wasmce/crypto/keystore"
)

// HookOptions configures AddImportHook.
type HookOptions struct {
	// Priority is the chain position of the finder. 0 is first.
	Priority int
	// Base is the directory registry paths are relative to.
	Base string
	// SearchPath lists the directories searched for modules.
	// Empty means Base, or the working directory when Base is empty.
	SearchPath []string
	// Compiler materializes decrypted modules. Required.
	Compiler Compiler
	// Suite must match the suite the records were encrypted with.
	Suite crypto.Suite
	// Logger is passed to the loader. Nil discards.
	Logger *slog.Logger
	// Extensions lists record extensions. Empty means DefaultExtensions.
	Extensions []string
}

// AddImportHook registers the full path to hex key mapping in a new
// registry, seals it, and inserts a finder backed by a SecureLoader into
// chain. It is the one trusted bootstrap step: keys enter the process here
// and nowhere else.
func AddImportHook(chain *Chain, keys map[string]string, opts HookOptions) (*PathFinder, error) {
	if chain == nil {
		return nil, errors.New("chain cannot be nil")
	}
	if opts.Compiler == nil {
		return nil, errors.New("compiler cannot be nil")
	}

	registry := keystore.NewRegistry(opts.Base)
	if err := registry.RegisterAll(keys); err != nil {
		return nil, fmt.Errorf("failed to register keys: %w", err)
	}
	registry.Seal()

	loader, err := NewSecureLoader(LoaderConfig{
		Keys:     registry,
		Compiler: opts.Compiler,
		Suite:    opts.Suite,
		Logger:   opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create loader: %w", err)
	}

	searchPath := opts.SearchPath
	if len(searchPath) == 0 {
		searchPath = []string{opts.Base}
		if opts.Base == "" {
			searchPath = []string{"."}
		}
	}

	finder := &PathFinder{
		Loader:     loader,
		SearchPath: append([]string(nil), searchPath...),
		Extensions: opts.Extensions,
	}
	chain.Insert(opts.Priority, finder)
	return finder, nil
}
