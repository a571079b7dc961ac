package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"

	"github.com/joncooperworks/wasmce/crypto"
)

const defaultManifest = "wasmce.keys.yaml"

func newEncryptCmd(a *app) *cobra.Command {
	var (
		exts         []string
		excludes     []string
		excludeGlobs []string
		manifestPath string
		service      string
		dryRun       bool
	)

	cmd := &cobra.Command{
		Use:   "encrypt <path>",
		Short: "Encrypt bytecode containers in place",
		Long: `Encrypt every bytecode container under <path> in place and rename it
with an "e" appended to its extension. The keys are written to a manifest
and, with --keyring, to the OS keyring.

The run is not atomic: on failure the manifest still lists every file that
was encrypted before the error.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := args[0]

			if !cmd.Flags().Changed("ext") {
				exts = a.cfg.Extensions
			}
			exclusions := append(append([]string(nil), a.cfg.Exclusions...), excludes...)
			matched, err := expandGlobs(root, excludeGlobs)
			if err != nil {
				return err
			}
			exclusions = append(exclusions, matched...)

			if dryRun {
				files, err := crypto.SelectFiles(root, exts, exclusions)
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Fprintln(a.stdout, f)
				}
				a.logger.Info("dry run", "files", len(files))
				return nil
			}

			if manifestPath == "" {
				manifestPath = a.defaultManifestPath()
			}

			manifest, runErr := crypto.EncryptPath(&crypto.EncryptPathRequest{
				Root:       root,
				Extensions: exts,
				Exclusions: exclusions,
				Suite:      a.cfg.Suite,
				Logger:     a.logger,
			})
			for _, e := range manifest {
				ok(a.stdout, "encrypted %s", e.Path)
			}

			// Keys for files already transformed must survive a failed run.
			if len(manifest) > 0 {
				if err := mergeManifest(manifestPath, manifest); err != nil {
					return errors.Join(runErr, err)
				}
				a.logger.Info("wrote manifest", "path", manifestPath, "entries", len(manifest))

				if service != "" {
					ring, err := a.openKeyring(service, a.cfg.Base)
					if err != nil {
						return errors.Join(runErr, err)
					}
					if err := ring.Store(manifest); err != nil {
						return errors.Join(runErr, err)
					}
					a.logger.Info("stored keys in keyring", "service", service, "entries", len(manifest))
				}
			}

			if runErr != nil {
				return fmt.Errorf("encryption stopped after %d files: %w", len(manifest), runErr)
			}
			return nil
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&exts, "ext", nil, "container extensions to encrypt (default from config, .wbc)")
	f.StringSliceVar(&excludes, "exclude", nil, "file or directory to leave untouched (repeatable)")
	f.StringSliceVar(&excludeGlobs, "exclude-glob", nil, "doublestar pattern, relative to <path>, of files or directories to leave untouched")
	f.StringVar(&manifestPath, "manifest", "", "manifest file to merge keys into (default from --keys, or "+defaultManifest+")")
	f.StringVar(&service, "keyring", "", "also store keys in the OS keyring under this service")
	f.BoolVar(&dryRun, "dry-run", false, "list the files that would be encrypted without touching them")
	return cmd
}

// defaultManifestPath uses the configured key source when it is a file.
func (a *app) defaultManifestPath() string {
	if path, ok := strings.CutPrefix(a.cfg.Keys, "file://"); ok && path != "" {
		return path
	}
	return defaultManifest
}

// expandGlobs returns the paths under root matching any pattern.
func expandGlobs(root string, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		return nil, nil
	}

	dir := root
	if info, err := os.Stat(root); err == nil && !info.IsDir() {
		dir = filepath.Dir(root)
	}
	fsys := os.DirFS(dir)

	var paths []string
	for _, pattern := range patterns {
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid exclude pattern: %s", pattern)
		}
		matches, err := doublestar.Glob(fsys, filepath.ToSlash(pattern))
		if err != nil {
			return nil, fmt.Errorf("failed to expand %s: %w", pattern, err)
		}
		for _, m := range matches {
			paths = append(paths, filepath.Join(dir, filepath.FromSlash(m)))
		}
	}
	return paths, nil
}

// mergeManifest adds entries to the manifest at path, replacing entries
// for the same artifact.
func mergeManifest(path string, entries crypto.Manifest) error {
	existing, err := crypto.LoadManifest(path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to read manifest: %w", err)
	}

	index := make(map[string]int, len(existing))
	for i, e := range existing {
		index[e.Path] = i
	}
	for _, e := range entries {
		if i, ok := index[e.Path]; ok {
			existing[i] = e
			continue
		}
		index[e.Path] = len(existing)
		existing = append(existing, e)
	}

	if err := crypto.SaveManifest(path, existing); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
