package plugin

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/joncooperworks/wasmce/container"
	"github.com/joncooperworks/wasmce/crypto"
	"github.com/joncooperworks/wasmce/crypto/keystore"
)

// State is a step of the load state machine. States are reached strictly in
// order; a failure reports the state that could not be reached.
type State int

const (
	StateLocated State = iota
	StateFetched
	StateKeyResolved
	StateVerified
	StateDecrypted
	StateClassified
	StateCompiled
	StateReady
)

func (s State) String() string {
	switch s {
	case StateLocated:
		return "located"
	case StateFetched:
		return "fetched"
	case StateKeyResolved:
		return "key-resolved"
	case StateVerified:
		return "verified"
	case StateDecrypted:
		return "decrypted"
	case StateClassified:
		return "classified"
	case StateCompiled:
		return "compiled"
	case StateReady:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ErrNoCompiler is returned by Load on a loader configured without a compiler.
var ErrNoCompiler = errors.New("no compiler configured")

// LoadError reports a failed load. Err is one of:
//   - the filesystem error when the record cannot be read (StateFetched)
//   - *keystore.KeyNotFoundError (StateKeyResolved)
//   - *crypto.IntegrityError (StateVerified)
//   - *container.ClassificationError (StateClassified)
//   - the compiler's error (StateCompiled)
type LoadError struct {
	Module string
	Path   string
	State  State // State that could not be reached
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load module %s from %s (%s): %v", e.Module, e.Path, e.State, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoaderConfig configures a SecureLoader.
type LoaderConfig struct {
	// Keys must be sealed before modules are loaded.
	Keys *keystore.Registry
	// Compiler materializes decrypted code. Decode works without one.
	Compiler Compiler
	// Suite must match the suite the records were encrypted with.
	// Empty means crypto.DefaultSuite.
	Suite crypto.Suite
	// Logger receives one debug record per loaded module. Nil discards.
	Logger *slog.Logger
}

// SecureLoader opens encrypted module records. Plaintext only ever exists
// in memory and is handed straight to the compiler.
type SecureLoader struct {
	keys     *keystore.Registry
	compiler Compiler
	suite    crypto.Suite
	logger   *slog.Logger
}

// NewSecureLoader validates cfg and returns a loader.
func NewSecureLoader(cfg LoaderConfig) (*SecureLoader, error) {
	if cfg.Keys == nil {
		return nil, errors.New("key registry cannot be nil")
	}
	suite, err := crypto.ParseSuite(string(cfg.Suite))
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SecureLoader{
		keys:     cfg.Keys,
		compiler: cfg.Compiler,
		suite:    suite,
		logger:   logger,
	}, nil
}

// DecodedModule is a verified, decrypted and classified container.
type DecodedModule struct {
	Spec   *ModuleSpec
	Header container.Header
	// Code is the module code with the container header stripped.
	Code []byte
	// RecordHash is the hex SHA-256 of the encrypted record.
	RecordHash string
	// CodeHash is the hex SHA-256 of Code.
	CodeHash string
}

// LoadedModule is a module that reached StateReady.
type LoadedModule struct {
	Spec       *ModuleSpec
	Module     Module
	Header     container.Header
	RecordHash string
	CodeHash   string
}

// Load runs the full state machine for spec and returns the compiled module.
// There are no retries; any failure is returned as a *LoadError.
func (l *SecureLoader) Load(ctx context.Context, spec *ModuleSpec) (*LoadedModule, error) {
	decoded, err := l.Decode(spec)
	if err != nil {
		return nil, err
	}

	if l.compiler == nil {
		return nil, &LoadError{Module: spec.Name, Path: spec.Origin, State: StateCompiled, Err: ErrNoCompiler}
	}
	module, err := l.compiler.Compile(ctx, spec.Name, decoded.Code)
	if err != nil {
		return nil, &LoadError{Module: spec.Name, Path: spec.Origin, State: StateCompiled, Err: err}
	}

	l.logger.Debug("module loaded",
		"module", spec.Name,
		"path", spec.Origin,
		"record_sha256", decoded.RecordHash,
		"code_sha256", decoded.CodeHash,
	)

	return &LoadedModule{
		Spec:       spec,
		Module:     module,
		Header:     decoded.Header,
		RecordHash: decoded.RecordHash,
		CodeHash:   decoded.CodeHash,
	}, nil
}

// Decode runs the state machine through StateClassified without compiling.
func (l *SecureLoader) Decode(spec *ModuleSpec) (*DecodedModule, error) {
	if spec == nil {
		return nil, &LoadError{State: StateLocated, Err: errors.New("module spec cannot be nil")}
	}
	fail := func(state State, err error) (*DecodedModule, error) {
		return nil, &LoadError{Module: spec.Name, Path: spec.Origin, State: state, Err: err}
	}
	if spec.Origin == "" {
		return fail(StateLocated, errors.New("module spec has no origin"))
	}

	record, err := os.ReadFile(spec.Origin)
	if err != nil {
		return fail(StateFetched, err)
	}

	key, err := l.keys.Lookup(spec.Origin)
	if err != nil {
		return fail(StateKeyResolved, err)
	}

	ciphertext, tag, err := crypto.SplitRecord(record)
	if err != nil {
		var ie *crypto.IntegrityError
		if errors.As(err, &ie) {
			ie.Path = spec.Origin
		}
		return fail(StateVerified, err)
	}
	if !crypto.VerifyTag(ciphertext, tag, key) {
		return fail(StateVerified, &crypto.IntegrityError{Path: spec.Origin})
	}

	plaintext, err := l.suite.Decrypt(ciphertext, key)
	if err != nil {
		return fail(StateDecrypted, err)
	}

	header, err := container.Classify(plaintext)
	if err != nil {
		var ce *container.ClassificationError
		if errors.As(err, &ce) {
			ce.Name = spec.Name
		}
		crypto.Zeroize(plaintext)
		return fail(StateClassified, err)
	}

	code := container.Code(plaintext)
	recordSum := sha256.Sum256(record)
	codeSum := sha256.Sum256(code)

	return &DecodedModule{
		Spec:       spec,
		Header:     header,
		Code:       code,
		RecordHash: hex.EncodeToString(recordSum[:]),
		CodeHash:   hex.EncodeToString(codeSum[:]),
	}, nil
}
