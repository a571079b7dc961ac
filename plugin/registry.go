package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// DefaultCompiler names the compiler used when configuration names none.
const DefaultCompiler = "wazero"

// CompilerFactory is a function that creates a new Compiler instance.
//
// Factory functions are registered with RegisterCompiler and are called when
// a compiler of that name is requested.
type CompilerFactory func(ctx context.Context) (Compiler, error)

var (
	// compilerRegistry stores compiler factories by name
	compilerRegistry = make(map[string]CompilerFactory)
	// compilerRegistryMu protects concurrent access to the registry
	compilerRegistryMu sync.RWMutex
)

// RegisterCompiler registers a compiler factory under name.
//
// This should be called from init() functions in compiler implementations.
//
// Example:
//
//	func init() {
//	    RegisterCompiler("wasmtime", func(ctx context.Context) (Compiler, error) {
//	        return NewWasmtimeCompiler(ctx)
//	    })
//	}
func RegisterCompiler(name string, factory CompilerFactory) {
	compilerRegistryMu.Lock()
	defer compilerRegistryMu.Unlock()
	compilerRegistry[name] = factory
}

// GetCompilerFactory retrieves the compiler factory registered under name.
func GetCompilerFactory(name string) (CompilerFactory, error) {
	compilerRegistryMu.RLock()
	defer compilerRegistryMu.RUnlock()
	factory, ok := compilerRegistry[name]
	if !ok {
		return nil, fmt.Errorf("no compiler registered with name: %s", name)
	}
	return factory, nil
}

// ListRegisteredCompilers returns all registered compiler names, sorted.
func ListRegisteredCompilers() []string {
	compilerRegistryMu.RLock()
	defer compilerRegistryMu.RUnlock()
	names := make([]string, 0, len(compilerRegistry))
	for name := range compilerRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewCompiler creates the compiler registered under name.
// An empty name selects DefaultCompiler.
func NewCompiler(ctx context.Context, name string) (Compiler, error) {
	if name == "" {
		name = DefaultCompiler
	}
	factory, err := GetCompilerFactory(name)
	if err != nil {
		return nil, err
	}
	c, err := factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s compiler: %w", name, err)
	}
	return c, nil
}
