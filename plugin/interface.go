// Package plugin loads encrypted WebAssembly modules.
//
// Modules are found by a Chain of finders, opened by a SecureLoader that
// verifies, decrypts and classifies the record entirely in memory, and then
// handed to a Compiler that turns the decrypted code into a runnable Module.
package plugin

import "context"

// Module is a compiled, instantiated module ready to be called.
type Module interface {
	// Name returns the module name it was imported under.
	Name() string

	// HasExport reports whether the module exports function fn.
	HasExport(fn string) bool

	// Call invokes fn with input and returns its output. The meaning of
	// input and output depends on the compiler that produced the module.
	Call(ctx context.Context, fn string, input []byte) ([]byte, error)

	// Close releases the module's runtime resources.
	Close(ctx context.Context) error
}

// Compiler materializes decrypted module code in a host runtime.
//
// Compile receives code that has already passed integrity and container
// checks. It must not persist code anywhere.
type Compiler interface {
	Compile(ctx context.Context, name string, code []byte) (Module, error)
	Close(ctx context.Context) error
}
