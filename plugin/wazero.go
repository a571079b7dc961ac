package plugin

import (
	"context"

	"github.com/joncooperworks/wasmce/plugin/wasm"
)

func init() {
	RegisterCompiler("wazero", func(ctx context.Context) (Compiler, error) {
		return NewWazeroCompiler(ctx)
	})
}

// WazeroCompiler runs modules directly on wazero with WASI.
type WazeroCompiler struct {
	compiler *wasm.Compiler
}

// NewWazeroCompiler creates a compiler with its own wazero runtime.
func NewWazeroCompiler(ctx context.Context) (*WazeroCompiler, error) {
	c, err := wasm.NewCompiler(ctx)
	if err != nil {
		return nil, err
	}
	return &WazeroCompiler{compiler: c}, nil
}

// Compile implements Compiler.
func (wc *WazeroCompiler) Compile(ctx context.Context, name string, code []byte) (Module, error) {
	m, err := wc.compiler.Compile(ctx, name, code)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// Close releases the runtime and every module compiled by it.
func (wc *WazeroCompiler) Close(ctx context.Context) error {
	return wc.compiler.Close(ctx)
}
