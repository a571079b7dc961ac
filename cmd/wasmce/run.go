package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joncooperworks/wasmce/executor"
	"github.com/joncooperworks/wasmce/plugin"
)

func newRunCmd(a *app) *cobra.Command {
	var (
		compilerName string
		inputFile    string
	)

	cmd := &cobra.Command{
		Use:   "run <module> <function> [input]",
		Short: "Load an encrypted module and call one of its functions",
		Long: `Install the secure import hook with keys from the configured source,
import <module> through it and call <function>. With the wazero compiler
input is a JSON array of integer parameters; with extism it is passed to
the plugin as is.`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			var input []byte
			switch {
			case inputFile != "":
				b, err := os.ReadFile(inputFile)
				if err != nil {
					return err
				}
				input = b
			case len(args) == 3:
				input = []byte(args[2])
			}

			keys, err := a.loadKeys()
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("compiler") {
				compilerName = a.cfg.Compiler
			}
			compiler, err := plugin.NewCompiler(ctx, compilerName)
			if err != nil {
				return err
			}
			defer compiler.Close(ctx)

			chain := plugin.NewChain()
			_, err = plugin.AddImportHook(chain, keys, plugin.HookOptions{
				Priority:   a.cfg.Priority,
				Base:       a.cfg.Base,
				SearchPath: a.cfg.ResolvedSearchPath(),
				Compiler:   compiler,
				Suite:      a.cfg.Suite,
				Logger:     a.logger,
				Extensions: a.encryptedExtensions(),
			})
			if err != nil {
				return err
			}

			result, err := executor.ExecuteModule(ctx, &executor.ExecuteModuleRequest{
				Chain:    chain,
				Name:     args[0],
				Function: args[1],
				Input:    input,
			})
			if err != nil {
				return err
			}

			a.logger.Info("module executed",
				"module", result.ModuleName,
				"function", args[1],
				"origin", result.Origin,
				"record_sha256", result.Hashes.RecordHash,
				"code_sha256", result.Hashes.CodeHash,
				"input_sha256", result.Hashes.InputHash,
				"output_sha256", result.Hashes.OutputHash,
			)
			fmt.Fprintln(a.stdout, string(result.Output))
			return nil
		},
	}

	cmd.Flags().StringVar(&compilerName, "compiler", "", "host runtime: wazero|extism (default from config)")
	cmd.Flags().StringVar(&inputFile, "input-file", "", "read input from a file instead of the argument")
	return cmd
}
