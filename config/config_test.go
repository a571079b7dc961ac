package config

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/joncooperworks/wasmce/crypto"
)

func writeTemp(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return p
}

func TestLoadFile_Basic(t *testing.T) {
	dir := t.TempDir()
	p := writeTemp(t, dir, "wasmce.yaml", `
base: modules
extensions: [".wbc", ".bin"]
exclusions: ["modules/vendor"]
suite: chacha20
compiler: extism
search_path: ["modules", "lib"]
keys: keyring://wasmce
priority: 2
log_format: json
log_level: debug
`)
	fc, err := LoadFile(p)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if fc.Base == nil || *fc.Base != "modules" {
		t.Fatalf("expected base=modules, got %#v", fc.Base)
	}
	if fc.Priority == nil || *fc.Priority != 2 {
		t.Fatalf("expected priority=2, got %#v", fc.Priority)
	}

	cfg, err := Merge(Defaults(), fc)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if cfg.Suite != crypto.SuiteChaCha20 {
		t.Errorf("Suite = %q, want %q", cfg.Suite, crypto.SuiteChaCha20)
	}
	if cfg.Compiler != "extism" || cfg.Keys != "keyring://wasmce" {
		t.Errorf("cfg = %+v", cfg)
	}
	if len(cfg.Extensions) != 2 || cfg.Extensions[1] != ".bin" {
		t.Errorf("Extensions = %v", cfg.Extensions)
	}
	if cfg.LogFormat != "json" || cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogFormat = %q, LogLevel = %v", cfg.LogFormat, cfg.LogLevel)
	}
	if got := cfg.ResolvedSearchPath(); len(got) != 2 || got[0] != "modules" {
		t.Errorf("ResolvedSearchPath() = %v", got)
	}
}

func TestLoadLocal_PrefersDotfile(t *testing.T) {
	dir := t.TempDir()
	// place both, expect the dotfile to be picked first by search order
	writeTemp(t, dir, "wasmce.yaml", "priority: 1\n")
	writeTemp(t, dir, ".wasmce.yml", "priority: 7\n")
	fc, path, err := LoadLocal(dir)
	if err != nil {
		t.Fatalf("LoadLocal: %v", err)
	}
	if fc.Priority == nil || *fc.Priority != 7 {
		t.Fatalf("expected priority=7 from .wasmce.yml, got %#v", fc.Priority)
	}
	if filepath.Base(path) != ".wasmce.yml" {
		t.Errorf("path = %s, want .wasmce.yml", path)
	}
}

func TestLoadLocal_NoConfig(t *testing.T) {
	if _, _, err := LoadLocal(t.TempDir()); !errors.Is(err, ErrNoConfig) {
		t.Fatalf("LoadLocal error = %v, want ErrNoConfig", err)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("", t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	want := Defaults()
	if cfg.Suite != want.Suite || cfg.Compiler != want.Compiler || cfg.Base != want.Base {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
	if got := cfg.ResolvedSearchPath(); len(got) != 1 || got[0] != "." {
		t.Errorf("ResolvedSearchPath() = %v, want [.]", got)
	}
}

func TestLoad_ExplicitMissing(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "none.yaml"), ""); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("Load error = %v, want os.ErrNotExist", err)
	}
}

func TestMerge_Invalid(t *testing.T) {
	bad := "rot13"
	neg := -1
	format := "xml"
	level := "loud"

	tests := []struct {
		name string
		fc   FileConfig
	}{
		{name: "suite", fc: FileConfig{Suite: &bad}},
		{name: "priority", fc: FileConfig{Priority: &neg}},
		{name: "log format", fc: FileConfig{LogFormat: &format}},
		{name: "log level", fc: FileConfig{LogLevel: &level}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Merge(Defaults(), tt.fc); err == nil {
				t.Error("Merge() error = nil, want error")
			}
		})
	}
}

func TestLoadFile_Malformed(t *testing.T) {
	p := writeTemp(t, t.TempDir(), "wasmce.yaml", "priority: [not, an, int]\n")
	if _, err := LoadFile(p); err == nil {
		t.Fatal("expected error for malformed config")
	}
}
