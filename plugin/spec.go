package plugin

import "context"

// Loader opens the module a spec describes.
type Loader interface {
	Load(ctx context.Context, spec *ModuleSpec) (*LoadedModule, error)
}

// ModuleSpec describes a module a finder located.
type ModuleSpec struct {
	// Name is the dotted module name being imported.
	Name string

	// Origin is the path of the encrypted record. It is empty for a
	// namespace directory, which has no code of its own.
	Origin string

	// Loader opens Origin.
	Loader Loader

	// HasLocation is always false for encrypted modules. Origin names a
	// ciphertext record, so runtime machinery that would re-read the
	// source from Origin must not treat it as a plaintext location.
	HasLocation bool

	// IsPackage is set when Origin is a directory's index record.
	IsPackage bool

	// SearchLocations lists where submodules of a package are found.
	SearchLocations []string
}
