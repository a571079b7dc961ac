package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/joncooperworks/wasmce/crypto"
	"github.com/joncooperworks/wasmce/crypto/keystore"
)

func newKeysCmd(a *app) *cobra.Command {
	var service string

	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage module keys in the OS keyring",
	}
	cmd.PersistentFlags().StringVar(&service, "service", keystore.DefaultService, "keyring service name")

	list := &cobra.Command{
		Use:   "list",
		Short: "List the artifact paths with a stored key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ring, err := a.openKeyring(service, a.cfg.Base)
			if err != nil {
				return err
			}
			names, err := ring.List()
			if err != nil {
				return err
			}
			for _, name := range names {
				fmt.Fprintln(a.stdout, name)
			}
			a.logger.Debug("listed keys", "service", service, "count", len(names))
			return nil
		},
	}

	store := &cobra.Command{
		Use:   "store <manifest>",
		Short: "Store every key of a manifest in the keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			manifest, err := crypto.LoadManifest(args[0])
			if err != nil {
				return err
			}
			ring, err := a.openKeyring(service, a.cfg.Base)
			if err != nil {
				return err
			}
			if err := ring.Store(manifest); err != nil {
				return err
			}
			ok(a.stdout, "stored %d keys in keyring %q", len(manifest), service)
			return nil
		},
	}

	cmd.AddCommand(list, store)
	return cmd
}
