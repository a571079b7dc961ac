// Package executor imports an encrypted module and calls one of its
// functions, returning the output together with hashes for audit logging.
package executor

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/joncooperworks/wasmce/plugin"
)

// ErrFunctionNotExported is returned when the module lacks the requested function.
var ErrFunctionNotExported = errors.New("function not exported by module")

// ExecuteModuleRequest contains all the information needed to run a module function.
type ExecuteModuleRequest struct {
	// Chain resolves and loads the module. The import hook must already be
	// installed.
	Chain *plugin.Chain
	// Name is the dotted module name.
	Name string
	// Function is the exported function to call.
	Function string
	// Input is passed to the function as is.
	Input []byte
}

// ExecutionHashes contains the SHA256 hashes calculated during execution.
//
// These hashes record what was executed without retaining the plaintext and
// can be used for audit logging and verification.
type ExecutionHashes struct {
	// RecordHash is the SHA256 hash of the encrypted record.
	RecordHash string
	// CodeHash is the SHA256 hash of the decrypted module code.
	CodeHash string
	// InputHash is the SHA256 hash of the input.
	InputHash string
	// OutputHash is the SHA256 hash of the output.
	OutputHash string
}

// ExecuteModuleResult contains the function output and all calculated hashes.
type ExecuteModuleResult struct {
	Hashes ExecutionHashes
	// Output is what the function returned.
	Output []byte
	// ModuleName is the name the module was imported under.
	ModuleName string
	// Origin is the path of the encrypted record that was loaded.
	Origin string
}

// ExecuteModule imports req.Name through req.Chain, calls req.Function and
// closes the module.
//
// This function does not perform any logging - it is a pure library function
// that returns structured data. Logging should be handled by the caller (e.g., CLI).
func ExecuteModule(ctx context.Context, req *ExecuteModuleRequest) (*ExecuteModuleResult, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	if req.Chain == nil {
		return nil, errors.New("chain cannot be nil")
	}
	if req.Name == "" {
		return nil, errors.New("module name cannot be empty")
	}
	if req.Function == "" {
		return nil, errors.New("function name cannot be empty")
	}

	loaded, err := req.Chain.Import(ctx, req.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to import module: %w", err)
	}
	defer loaded.Module.Close(ctx)

	if !loaded.Module.HasExport(req.Function) {
		return nil, fmt.Errorf("%w: %s.%s", ErrFunctionNotExported, req.Name, req.Function)
	}

	output, err := loaded.Module.Call(ctx, req.Function, req.Input)
	if err != nil {
		return nil, fmt.Errorf("failed to execute %s.%s: %w", req.Name, req.Function, err)
	}

	return &ExecuteModuleResult{
		Hashes: ExecutionHashes{
			RecordHash: loaded.RecordHash,
			CodeHash:   loaded.CodeHash,
			InputHash:  sha256Hex(req.Input),
			OutputHash: sha256Hex(output),
		},
		Output:     output,
		ModuleName: req.Name,
		Origin:     loaded.Spec.Origin,
	}, nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}
