package crypto

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// EncryptedSuffix is appended to the extension of every encrypted artifact,
// so "hello.wbc" becomes "hello.wbce".
const EncryptedSuffix = "e"

// DefaultExtensions are the container extensions encrypted when a request names none.
var DefaultExtensions = []string{".wbc"}

// EncryptPathRequest describes one batch encryption run.
type EncryptPathRequest struct {
	// Root is a single file or a directory walked recursively.
	Root string
	// Extensions selects files by exact, case-sensitive extension (".wbc").
	// Empty means DefaultExtensions.
	Extensions []string
	// Exclusions lists files and directories to leave untouched. A file is
	// skipped when it, its directory, or any ancestor directory is listed.
	Exclusions []string
	// Suite is the stream cipher. Empty means DefaultSuite.
	Suite Suite
	// Logger receives one debug record per transformed file. Nil discards.
	Logger *slog.Logger
}

// EncryptPath convergently encrypts every selected file under req.Root in place.
//
// For each file it:
//  1. Reads the plaintext
//  2. Derives the key from the plaintext
//  3. Encrypts and computes the integrity tag
//  4. Overwrites the file with ciphertext followed by the tag
//  5. Renames the file by appending EncryptedSuffix to its name
//
// The run is not atomic. On error the returned manifest lists exactly the
// files transformed before the failure, and filesystem errors are returned
// as-is. Concurrent runs over overlapping trees race on the same files.
func EncryptPath(req *EncryptPathRequest) (Manifest, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	if req.Root == "" {
		return nil, errors.New("root cannot be empty")
	}

	suite, err := ParseSuite(string(req.Suite))
	if err != nil {
		return nil, err
	}

	extensions := req.Extensions
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}

	logger := req.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	files, err := SelectFiles(req.Root, extensions, req.Exclusions)
	if err != nil {
		return nil, err
	}

	manifest := Manifest{}
	for _, path := range files {
		newPath, key, err := encryptFile(path, suite)
		if err != nil {
			return manifest, err
		}
		manifest = append(manifest, ManifestEntry{Path: newPath, Key: key.String()})
		logger.Debug("encrypted file", "path", path, "encrypted_path", newPath)
	}

	return manifest, nil
}

// SelectFiles returns the files an EncryptPath run with the same arguments
// would transform, in walk order.
func SelectFiles(root string, extensions, exclusions []string) ([]string, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(extensions))
	for _, ext := range extensions {
		wanted[ext] = struct{}{}
	}
	excluded := make(map[string]struct{}, len(exclusions))
	for _, e := range exclusions {
		excluded[filepath.Clean(e)] = struct{}{}
	}

	selected := func(path string) bool {
		if _, ok := wanted[filepath.Ext(path)]; !ok {
			return false
		}
		return !isExcluded(path, excluded)
	}

	if !info.IsDir() {
		if selected(root) {
			return []string{root}, nil
		}
		return nil, nil
	}

	var files []string
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if selected(path) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return files, nil
}

// isExcluded applies the exclusion policy: the file itself, then its
// directory, then every ancestor up to a filesystem root boundary.
func isExcluded(path string, excluded map[string]struct{}) bool {
	if len(excluded) == 0 {
		return false
	}
	if _, ok := excluded[path]; ok {
		return true
	}

	dir := filepath.Dir(path)
	if _, ok := excluded[dir]; ok {
		return true
	}

	for {
		parent := filepath.Dir(dir)
		if parent == dir || isRootBoundary(parent) {
			return false
		}
		if _, ok := excluded[parent]; ok {
			return true
		}
		dir = parent
	}
}

func isRootBoundary(dir string) bool {
	if dir == "." || dir == string(filepath.Separator) {
		return true
	}
	vol := filepath.VolumeName(dir)
	return vol != "" && (dir == vol || dir == vol+string(filepath.Separator))
}

// encryptFile rewrites one file in place and renames it.
func encryptFile(path string, suite Suite) (string, Key, error) {
	// Refuse before touching the file so a collision leaves the plaintext intact.
	newPath := path + EncryptedSuffix
	if _, err := os.Lstat(newPath); err == nil {
		return "", Key{}, &fs.PathError{Op: "rename", Path: newPath, Err: fs.ErrExist}
	}

	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return "", Key{}, err
	}

	plaintext, err := io.ReadAll(f)
	if err != nil {
		f.Close()
		return "", Key{}, err
	}

	key := DeriveKey(plaintext)
	ciphertext, err := suite.Encrypt(plaintext, key)
	Zeroize(plaintext)
	if err != nil {
		f.Close()
		return "", key, err
	}

	if _, err := f.WriteAt(ciphertext, 0); err != nil {
		f.Close()
		return "", key, err
	}
	if _, err := f.WriteAt(Tag(ciphertext, key), int64(len(ciphertext))); err != nil {
		f.Close()
		return "", key, err
	}
	if err := f.Close(); err != nil {
		return "", key, err
	}

	if err := os.Rename(path, newPath); err != nil {
		return "", key, err
	}
	return newPath, key, nil
}
