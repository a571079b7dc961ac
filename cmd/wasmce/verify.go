package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joncooperworks/wasmce/crypto/keystore"
	"github.com/joncooperworks/wasmce/plugin"
)

func newVerifyCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <record.wbce>...",
		Short: "Check that encrypted records decrypt to valid containers",
		Long: `Verify the integrity tag of each record with the key from the configured
source, decrypt it in memory and check the container header. Nothing is
written to disk.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := a.loadKeys()
			if err != nil {
				return err
			}

			registry := keystore.NewRegistry(a.cfg.Base)
			if err := registry.RegisterAll(keys); err != nil {
				return err
			}
			registry.Seal()

			loader, err := plugin.NewSecureLoader(plugin.LoaderConfig{
				Keys:   registry,
				Suite:  a.cfg.Suite,
				Logger: a.logger,
			})
			if err != nil {
				return err
			}

			failed := 0
			for _, path := range args {
				name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				decoded, err := loader.Decode(&plugin.ModuleSpec{Name: name, Origin: path})
				if err != nil {
					failed++
					fail(a.stdout, "%s: %v", path, err)
					continue
				}

				kind := "hash-based"
				if !decoded.Header.HashBased() {
					kind = "built " + decoded.Header.Timestamp.Format("2006-01-02T15:04:05Z")
				}
				ok(a.stdout, "%s: version %d, %s, %d bytes, code sha256 %s",
					path, decoded.Header.Version, kind, len(decoded.Code), decoded.CodeHash)
			}

			if failed > 0 {
				return fmt.Errorf("%d of %d records failed verification", failed, len(args))
			}
			return nil
		},
	}
}
