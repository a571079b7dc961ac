package keystore

import (
	"errors"

	"github.com/joncooperworks/wasmce/crypto"
)

// FileSource reads keys from a manifest written by the encryption pipeline.
type FileSource struct {
	Path string
}

// OpenFileSource returns a FileSource for path. The manifest is read on
// every call to Keys, so base is unused.
func OpenFileSource(path, _ string) (Source, error) {
	if path == "" {
		return nil, errors.New("manifest path cannot be empty")
	}
	return &FileSource{Path: path}, nil
}

// Keys loads the manifest.
func (s *FileSource) Keys() (map[string]string, error) {
	m, err := crypto.LoadManifest(s.Path)
	if err != nil {
		return nil, err
	}
	return m.Keys(), nil
}
