package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/joncooperworks/wasmce/container"
)

var wasmMagic = []byte{0x00, 'a', 's', 'm'}

func newPackCmd(a *app) *cobra.Command {
	var timestamp bool

	cmd := &cobra.Command{
		Use:   "pack <module.wasm> [out.wbc]",
		Short: "Wrap a WebAssembly binary in a bytecode container",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			out := strings.TrimSuffix(in, filepath.Ext(in)) + ".wbc"
			if len(args) == 2 {
				out = args[1]
			}

			code, err := os.ReadFile(in)
			if err != nil {
				return err
			}
			if !bytes.HasPrefix(code, wasmMagic) {
				return fmt.Errorf("%s is not a WebAssembly binary", in)
			}

			var opts container.WrapOptions
			if timestamp {
				opts.Timestamp = time.Now()
			}
			if err := os.WriteFile(out, container.Wrap(code, opts), 0644); err != nil {
				return err
			}

			ok(a.stdout, "packed %s -> %s", in, out)
			a.logger.Debug("packed container", "input", in, "output", out, "code_bytes", len(code), "timestamp", timestamp)
			return nil
		},
	}

	cmd.Flags().BoolVar(&timestamp, "timestamp", false, "record a build timestamp instead of a code hash")
	return cmd
}
