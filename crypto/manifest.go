package crypto

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ManifestEntry pairs an encrypted artifact with the hex key that opens it.
type ManifestEntry struct {
	Path string `json:"path" yaml:"path"`
	Key  string `json:"key" yaml:"key"`
}

// Manifest is the ordered result of one EncryptPath run.
// The caller owns it; nothing else keeps a copy of the keys.
type Manifest []ManifestEntry

// Keys returns the manifest as a path to hex key map.
func (m Manifest) Keys() map[string]string {
	keys := make(map[string]string, len(m))
	for _, e := range m {
		keys[e.Path] = e.Key
	}
	return keys
}

// ManifestFormat selects the serialization of a manifest file.
type ManifestFormat string

const (
	ManifestYAML ManifestFormat = "yaml"
	ManifestJSON ManifestFormat = "json"
)

// ManifestFormatFor picks the format from a file extension, defaulting to YAML.
func ManifestFormatFor(path string) ManifestFormat {
	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ManifestJSON
	}
	return ManifestYAML
}

// WriteManifest encodes m to w.
func WriteManifest(w io.Writer, m Manifest, format ManifestFormat) error {
	if m == nil {
		m = Manifest{}
	}
	switch format {
	case ManifestJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("failed to encode manifest: %w", err)
		}
		return nil
	case ManifestYAML, "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(m); err != nil {
			return fmt.Errorf("failed to encode manifest: %w", err)
		}
		return enc.Close()
	default:
		return fmt.Errorf("unsupported manifest format: %s", format)
	}
}

// ReadManifest decodes a manifest from r and validates every key.
func ReadManifest(r io.Reader, format ManifestFormat) (Manifest, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	var m Manifest
	switch format {
	case ManifestJSON:
		err = json.Unmarshal(data, &m)
	case ManifestYAML, "":
		err = yaml.Unmarshal(data, &m)
	default:
		return nil, fmt.Errorf("unsupported manifest format: %s", format)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	for i, e := range m {
		if e.Path == "" {
			return nil, fmt.Errorf("manifest entry %d has no path", i)
		}
		if _, err := ParseKey(e.Key); err != nil {
			return nil, fmt.Errorf("manifest entry %q: %w", e.Path, err)
		}
	}
	return m, nil
}

// SaveManifest writes m to path, choosing the format from the extension.
func SaveManifest(path string, m Manifest) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	if err := WriteManifest(f, m, ManifestFormatFor(path)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// LoadManifest reads a manifest file, choosing the format from the extension.
func LoadManifest(path string) (Manifest, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadManifest(f, ManifestFormatFor(path))
}
