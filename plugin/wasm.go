package plugin

import (
	"context"
	"fmt"
	"log/slog"

	extism "github.com/extism/go-sdk"
)

func init() {
	RegisterCompiler("extism", func(ctx context.Context) (Compiler, error) {
		return NewExtismCompiler(nil), nil
	})
}

// ExtismCompiler runs modules as Extism plugins, which read their input
// with extism_input_load and write their output with extism_output_set.
type ExtismCompiler struct {
	logger *slog.Logger
}

// NewExtismCompiler creates an Extism compiler. Guest log output and the
// wasmce_log host function go to logger. Nil discards.
func NewExtismCompiler(logger *slog.Logger) *ExtismCompiler {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &ExtismCompiler{logger: logger}
}

// Compile creates an Extism plugin from code with WASI enabled and no
// network access.
func (ec *ExtismCompiler) Compile(ctx context.Context, name string, code []byte) (Module, error) {
	manifest := extism.Manifest{
		Wasm: []extism.Wasm{
			extism.WasmData{Data: code, Name: name},
		},
	}

	config := extism.PluginConfig{
		EnableWasi: true,
	}

	logger := ec.logger.With("module", name)
	hostFunctions := []extism.HostFunction{
		newLogFunction(logger),
	}

	plugin, err := extism.NewPlugin(ctx, manifest, config, hostFunctions)
	if err != nil {
		return nil, fmt.Errorf("failed to create Extism plugin: %w", err)
	}
	plugin.SetLogger(func(level extism.LogLevel, msg string) {
		logger.Log(ctx, slogLevel(level), msg)
	})

	return &ExtismModule{
		name:   name,
		plugin: plugin,
	}, nil
}

// Close implements Compiler. Each Extism plugin owns its runtime, so there
// is nothing shared to release.
func (ec *ExtismCompiler) Close(ctx context.Context) error {
	return nil
}

// ExtismModule is a module instantiated as an Extism plugin.
// It is not safe for concurrent use.
type ExtismModule struct {
	name   string
	plugin *extism.Plugin
}

// Name returns the module name.
func (em *ExtismModule) Name() string {
	return em.name
}

// HasExport reports whether the plugin exports fn.
func (em *ExtismModule) HasExport(fn string) bool {
	return em.plugin.FunctionExists(fn)
}

// Call passes input to fn and returns the bytes it set as output.
func (em *ExtismModule) Call(ctx context.Context, fn string, input []byte) ([]byte, error) {
	exitCode, output, err := em.plugin.CallWithContext(ctx, fn, input)
	if err != nil {
		return nil, fmt.Errorf("failed to execute WASM function: %w", err)
	}
	if exitCode != 0 {
		return nil, fmt.Errorf("%s returned non-zero exit code: %d", fn, exitCode)
	}
	return output, nil
}

// Close shuts down the plugin instance and releases resources.
func (em *ExtismModule) Close(ctx context.Context) error {
	if em.plugin != nil {
		return em.plugin.Close(ctx)
	}
	return nil
}

// newLogFunction creates a host function that lets a module write to the
// host log.
// WASM signature: (param i64) (result) - message offset
func newLogFunction(logger *slog.Logger) extism.HostFunction {
	fn := extism.NewHostFunctionWithStack(
		"wasmce_log",
		func(ctx context.Context, p *extism.CurrentPlugin, stack []uint64) {
			msg, err := p.ReadString(stack[0])
			if err != nil {
				logger.Warn("wasmce_log: failed to read message", "error", err)
				return
			}
			logger.Info(msg)
		},
		[]extism.ValueType{extism.ValueTypeI64}, // msg_offset: i64
		[]extism.ValueType{},                    // void
	)
	fn.SetNamespace("env")
	return fn
}

func slogLevel(level extism.LogLevel) slog.Level {
	switch level {
	case extism.LogLevelError:
		return slog.LevelError
	case extism.LogLevelWarn:
		return slog.LevelWarn
	case extism.LogLevelInfo:
		return slog.LevelInfo
	default:
		return slog.LevelDebug
	}
}
