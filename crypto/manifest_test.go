package crypto

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
)

func testManifest() Manifest {
	return Manifest{
		{Path: "modules/a.wbce", Key: DeriveKey([]byte("a")).String()},
		{Path: "modules/pkg/index.wbce", Key: DeriveKey([]byte("b")).String()},
	}
}

func TestManifest_WriteRead(t *testing.T) {
	for _, format := range []ManifestFormat{ManifestYAML, ManifestJSON} {
		t.Run(string(format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := WriteManifest(&buf, testManifest(), format); err != nil {
				t.Fatalf("WriteManifest() error = %v", err)
			}

			got, err := ReadManifest(&buf, format)
			if err != nil {
				t.Fatalf("ReadManifest() error = %v", err)
			}

			want := testManifest()
			if len(got) != len(want) {
				t.Fatalf("len(manifest) = %d, want %d", len(got), len(want))
			}
			for i := range want {
				if got[i] != want[i] {
					t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
				}
			}
		})
	}
}

func TestReadManifest_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{name: "bad key", input: "- path: a.wbce\n  key: nothex\n"},
		{name: "missing path", input: "- key: " + DeriveKey(nil).String() + "\n"},
		{name: "not a list", input: "path: a.wbce\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadManifest(strings.NewReader(tt.input), ManifestYAML); err == nil {
				t.Error("ReadManifest() error = nil, want error")
			}
		})
	}
}

func TestManifest_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"keys.yaml", "keys.json"} {
		path := filepath.Join(dir, name)
		if err := SaveManifest(path, testManifest()); err != nil {
			t.Fatalf("SaveManifest(%s) error = %v", name, err)
		}
		got, err := LoadManifest(path)
		if err != nil {
			t.Fatalf("LoadManifest(%s) error = %v", name, err)
		}
		if len(got) != 2 || got[1].Path != "modules/pkg/index.wbce" {
			t.Errorf("LoadManifest(%s) = %+v", name, got)
		}
	}

	if ManifestFormatFor("keys.JSON") != ManifestJSON {
		t.Error("ManifestFormatFor(keys.JSON) != ManifestJSON")
	}
	if ManifestFormatFor("keys.yml") != ManifestYAML {
		t.Error("ManifestFormatFor(keys.yml) != ManifestYAML")
	}
}

func TestManifest_Keys(t *testing.T) {
	keys := testManifest().Keys()
	if len(keys) != 2 {
		t.Fatalf("len(Keys()) = %d, want 2", len(keys))
	}
	if keys["modules/a.wbce"] != DeriveKey([]byte("a")).String() {
		t.Error("Keys() lost the entry for modules/a.wbce")
	}
}
