// Package wasm compiles and runs decrypted WebAssembly modules with wazero.
//
// It knows nothing about encryption or containers. The plugin package hands
// it raw module code once the secure loader has verified and classified it.
package wasm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"
)

// ErrExportNotFound is returned when a module does not export the called function.
var ErrExportNotFound = errors.New("function not exported by module")

// Compiler compiles modules into a shared wazero runtime with WASI.
type Compiler struct {
	runtime wazero.Runtime
}

// NewCompiler creates a runtime ready to instantiate modules.
func NewCompiler(ctx context.Context) (*Compiler, error) {
	runtime := wazero.NewRuntime(ctx)

	if _, err := wasi_snapshot_preview1.Instantiate(ctx, runtime); err != nil {
		_ = runtime.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate WASI: %w", err)
	}

	return &Compiler{runtime: runtime}, nil
}

// Close releases the runtime and every module compiled by it.
func (c *Compiler) Close(ctx context.Context) error {
	return c.runtime.Close(ctx)
}

// Compile compiles and instantiates code. Instances are anonymous so the
// same module may be loaded more than once.
func (c *Compiler) Compile(ctx context.Context, name string, code []byte) (*Module, error) {
	compiled, err := c.runtime.CompileModule(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to compile WASM module %s: %w", name, err)
	}

	config := wazero.NewModuleConfig().WithName("")
	instance, err := c.runtime.InstantiateModule(ctx, compiled, config)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, fmt.Errorf("failed to instantiate module %s: %w", name, err)
	}

	m := &Module{
		name:     name,
		instance: instance,
		compiled: compiled,
	}

	// Modules exporting malloc and free may take byte buffers.
	if malloc, free := instance.ExportedFunction("malloc"), instance.ExportedFunction("free"); malloc != nil && free != nil {
		paramCount := len(free.Definition().ParamTypes())
		if paramCount == 1 || paramCount == 2 {
			m.malloc = malloc
			m.free = free
			m.freeTakesLen = paramCount == 2
		}
	}

	return m, nil
}

// Module is an instantiated WebAssembly module.
type Module struct {
	name         string
	instance     api.Module
	compiled     wazero.CompiledModule
	malloc       api.Function
	free         api.Function
	freeTakesLen bool
}

// Name returns the module name given to Compile.
func (m *Module) Name() string {
	return m.name
}

// HasExport reports whether the module exports function fn.
func (m *Module) HasExport(fn string) bool {
	return m.instance.ExportedFunction(fn) != nil
}

// Close shuts down the instance and releases compiled code.
func (m *Module) Close(ctx context.Context) error {
	if m.instance != nil {
		_ = m.instance.Close(ctx)
	}
	if m.compiled != nil {
		return m.compiled.Close(ctx)
	}
	return nil
}

// Call invokes fn.
//
// A function taking (ptr, len) and returning (ptr, len) in a module that
// exports malloc and free receives input as a guest buffer and returns the
// bytes it points at. Any other function takes input as a JSON array of
// integer parameters, and its results are returned the same way.
func (m *Module) Call(ctx context.Context, fn string, input []byte) ([]byte, error) {
	f := m.instance.ExportedFunction(fn)
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrExportNotFound, fn)
	}

	def := f.Definition()
	if m.malloc != nil && len(def.ParamTypes()) == 2 && len(def.ResultTypes()) == 2 {
		return m.callBuffer(ctx, f, input)
	}
	return m.callNumeric(ctx, f, input)
}

func (m *Module) callNumeric(ctx context.Context, f api.Function, input []byte) ([]byte, error) {
	var params []uint64
	if len(bytes.TrimSpace(input)) > 0 {
		if err := json.Unmarshal(input, &params); err != nil {
			return nil, fmt.Errorf("failed to parse parameters: %w", err)
		}
	}

	want := len(f.Definition().ParamTypes())
	if len(params) != want {
		return nil, fmt.Errorf("function %s takes %d parameters, got %d", f.Definition().Name(), want, len(params))
	}

	results, err := f.Call(ctx, params...)
	if err != nil {
		return nil, fmt.Errorf("failed to execute WASM function: %w", err)
	}
	if results == nil {
		results = []uint64{}
	}
	return json.Marshal(results)
}

func (m *Module) callBuffer(ctx context.Context, f api.Function, input []byte) ([]byte, error) {
	ptr, length, err := m.allocateGuestBuffer(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("failed to allocate memory for input: %w", err)
	}
	defer m.freeGuestBuffer(ctx, ptr, length)

	results, err := f.Call(ctx, uint64(ptr), uint64(length))
	if err != nil {
		return nil, fmt.Errorf("failed to execute WASM function: %w", err)
	}

	resultPtr := uint32(results[0])
	resultLen := uint32(results[1])
	if resultLen == 0 {
		return []byte{}, nil
	}

	mem := m.instance.Memory()
	if mem == nil {
		return nil, fmt.Errorf("WASM module has no memory")
	}

	out, ok := mem.Read(resultPtr, resultLen)
	if !ok {
		return nil, fmt.Errorf("failed to read result from WASM memory at ptr=%d, len=%d", resultPtr, resultLen)
	}
	// mem.Read aliases guest memory.
	return bytes.Clone(out), nil
}

// allocateGuestBuffer uses the module's malloc to write data into guest memory.
func (m *Module) allocateGuestBuffer(ctx context.Context, data []byte) (uint32, uint32, error) {
	if len(data) == 0 {
		return 0, 0, nil
	}

	results, err := m.malloc.Call(ctx, uint64(len(data)))
	if err != nil {
		return 0, 0, fmt.Errorf("malloc failed: %w", err)
	}
	if len(results) == 0 {
		return 0, 0, fmt.Errorf("malloc returned no result")
	}
	ptr := uint32(results[0])
	if ptr == 0 {
		return 0, 0, fmt.Errorf("malloc returned null pointer")
	}

	mem := m.instance.Memory()
	if mem == nil || !mem.Write(ptr, data) {
		m.freeGuestBuffer(ctx, ptr, uint32(len(data)))
		return 0, 0, fmt.Errorf("failed to write input to WASM memory")
	}

	return ptr, uint32(len(data)), nil
}

func (m *Module) freeGuestBuffer(ctx context.Context, ptr, length uint32) {
	if ptr == 0 {
		return
	}

	params := []uint64{uint64(ptr)}
	if m.freeTakesLen {
		params = append(params, uint64(length))
	}

	_, _ = m.free.Call(ctx, params...)
}
