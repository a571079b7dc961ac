// Package config loads wasmce settings from YAML files.
//
// A FileConfig mirrors the file on disk with pointer fields so that unset
// keys can be told apart from zero values. Merge lays a FileConfig over
// Defaults to produce the Config the CLI runs with; command-line flags are
// applied on top of that by the caller.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/joncooperworks/wasmce/crypto"
)

// ErrNoConfig is returned by LoadLocal when no config file exists.
var ErrNoConfig = errors.New("no local config")

// LocalNames are the config file names LoadLocal searches for, in order.
var LocalNames = []string{".wasmce.yml", ".wasmce.yaml", "wasmce.yml", "wasmce.yaml"}

// FileConfig is the on-disk YAML configuration shape for wasmce.
type FileConfig struct {
	Base       *string  `yaml:"base"`
	Extensions []string `yaml:"extensions"`
	Exclusions []string `yaml:"exclusions"`
	Suite      *string  `yaml:"suite"`
	Compiler   *string  `yaml:"compiler"`
	SearchPath []string `yaml:"search_path"`
	// Keys is a key source URI, such as "file://keys.yaml" or "keyring://wasmce".
	Keys      *string `yaml:"keys"`
	Priority  *int    `yaml:"priority"`
	LogFormat *string `yaml:"log_format"`
	LogLevel  *string `yaml:"log_level"`
}

// Config is the resolved configuration.
type Config struct {
	Base       string
	Extensions []string
	Exclusions []string
	Suite      crypto.Suite
	Compiler   string
	SearchPath []string
	Keys       string
	Priority   int
	LogFormat  string // "text" or "json"
	LogLevel   slog.Level
}

// Defaults returns the configuration used when no file sets a value.
func Defaults() Config {
	return Config{
		Base:       ".",
		Extensions: append([]string(nil), crypto.DefaultExtensions...),
		Suite:      crypto.DefaultSuite,
		Compiler:   "wazero",
		Keys:       "file://wasmce.keys.yaml",
		LogFormat:  "text",
		LogLevel:   slog.LevelInfo,
	}
}

// LoadFile reads a YAML config file from the provided path.
func LoadFile(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return fc, nil
}

// LoadLocal searches dir for one of LocalNames.
func LoadLocal(dir string) (FileConfig, string, error) {
	for _, name := range LocalNames {
		p := filepath.Join(dir, name)
		if _, err := os.Stat(p); err == nil {
			fc, err := LoadFile(p)
			return fc, p, err
		}
	}
	return FileConfig{}, "", ErrNoConfig
}

// Load resolves the configuration. An explicit path must exist; otherwise
// dir is searched and a missing file yields Defaults.
func Load(explicit, dir string) (Config, error) {
	var (
		fc  FileConfig
		err error
	)
	if explicit != "" {
		fc, err = LoadFile(explicit)
	} else {
		fc, _, err = LoadLocal(dir)
		if errors.Is(err, ErrNoConfig) {
			err = nil
		}
	}
	if err != nil {
		return Config{}, err
	}
	return Merge(Defaults(), fc)
}

// Merge lays fc over base and validates the result.
func Merge(base Config, fc FileConfig) (Config, error) {
	cfg := base
	if fc.Base != nil {
		cfg.Base = *fc.Base
	}
	if fc.Extensions != nil {
		cfg.Extensions = fc.Extensions
	}
	if fc.Exclusions != nil {
		cfg.Exclusions = fc.Exclusions
	}
	if fc.Suite != nil {
		suite, err := crypto.ParseSuite(*fc.Suite)
		if err != nil {
			return Config{}, err
		}
		cfg.Suite = suite
	}
	if fc.Compiler != nil {
		cfg.Compiler = *fc.Compiler
	}
	if fc.SearchPath != nil {
		cfg.SearchPath = fc.SearchPath
	}
	if fc.Keys != nil {
		cfg.Keys = *fc.Keys
	}
	if fc.Priority != nil {
		if *fc.Priority < 0 {
			return Config{}, fmt.Errorf("priority must not be negative, got %d", *fc.Priority)
		}
		cfg.Priority = *fc.Priority
	}
	if fc.LogFormat != nil {
		format := strings.ToLower(*fc.LogFormat)
		if format != "text" && format != "json" {
			return Config{}, fmt.Errorf("unsupported log format: %s", *fc.LogFormat)
		}
		cfg.LogFormat = format
	}
	if fc.LogLevel != nil {
		var level slog.Level
		if err := level.UnmarshalText([]byte(*fc.LogLevel)); err != nil {
			return Config{}, fmt.Errorf("invalid log level %q: %w", *fc.LogLevel, err)
		}
		cfg.LogLevel = level
	}
	return cfg, nil
}

// ResolvedSearchPath returns SearchPath, or Base when it is empty.
func (c Config) ResolvedSearchPath() []string {
	if len(c.SearchPath) > 0 {
		return c.SearchPath
	}
	return []string{c.Base}
}
