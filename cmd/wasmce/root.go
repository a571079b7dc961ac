package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/joncooperworks/wasmce/config"
	"github.com/joncooperworks/wasmce/crypto"
	"github.com/joncooperworks/wasmce/crypto/keystore"
)

var version = "0.1.0"

// app holds the state shared by every subcommand.
type app struct {
	stdout io.Writer
	stderr io.Writer

	cfg    config.Config
	logger *slog.Logger

	// openKeyring is replaced in tests.
	openKeyring func(service, base string) (*keystore.KeyringSource, error)

	flagConfig    string
	flagVerbose   bool
	flagLogFormat string
	flagSuite     string
	flagKeys      string
	flagBase      string
	flagNoColor   bool
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:      stdout,
		stderr:      stderr,
		openKeyring: keystore.OpenKeyringSource,
	}
}

// newRootCmd builds the wasmce command tree around a.
func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "wasmce",
		Short:         "Convergently encrypted WebAssembly modules",
		Long:          "wasmce encrypts WebAssembly bytecode containers in place and loads them back into a runtime entirely in memory.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&a.flagConfig, "config", "", "config file (default: .wasmce.yml in the working directory)")
	pf.BoolVarP(&a.flagVerbose, "verbose", "v", false, "enable debug logging")
	pf.StringVar(&a.flagLogFormat, "log-format", "", "log format: text|json")
	pf.StringVar(&a.flagSuite, "suite", "", "stream cipher: aes-256-ctr|chacha20")
	pf.StringVar(&a.flagKeys, "keys", "", "key source URI (file://keys.yaml or keyring://service)")
	pf.StringVar(&a.flagBase, "base", "", "directory key paths are relative to")
	pf.BoolVar(&a.flagNoColor, "no-color", false, "disable colorized output")

	root.AddCommand(
		newEncryptCmd(a),
		newPackCmd(a),
		newVerifyCmd(a),
		newRunCmd(a),
		newKeysCmd(a),
	)
	return root
}

// setup loads configuration, applies flag overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.flagConfig, ".")
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("suite") {
		suite, err := crypto.ParseSuite(a.flagSuite)
		if err != nil {
			return err
		}
		cfg.Suite = suite
	}
	if flags.Changed("keys") {
		cfg.Keys = a.flagKeys
	}
	if flags.Changed("base") {
		cfg.Base = a.flagBase
	}
	if flags.Changed("log-format") {
		cfg, err = config.Merge(cfg, config.FileConfig{LogFormat: &a.flagLogFormat})
		if err != nil {
			return err
		}
	}
	if a.flagVerbose {
		cfg.LogLevel = slog.LevelDebug
	}
	if a.flagNoColor {
		color.NoColor = true
	}

	a.cfg = cfg
	a.logger = newLogger(a.stderr, cfg)
	return nil
}

func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// encryptedExtensions maps container extensions to record extensions.
func (a *app) encryptedExtensions() []string {
	exts := make([]string, 0, len(a.cfg.Extensions))
	for _, ext := range a.cfg.Extensions {
		exts = append(exts, ext+crypto.EncryptedSuffix)
	}
	return exts
}

// loadKeys reads the configured key source.
func (a *app) loadKeys() (map[string]string, error) {
	src, err := keystore.OpenSource(a.cfg.Keys, a.cfg.Base)
	if err != nil {
		return nil, err
	}
	keys, err := src.Keys()
	if err != nil {
		return nil, err
	}
	a.logger.Debug("loaded keys", "source", a.cfg.Keys, "count", len(keys))
	return keys, nil
}

func ok(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, color.GreenString("✓")+" "+format+"\n", args...)
}

func fail(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, color.RedString("✗")+" "+format+"\n", args...)
}
