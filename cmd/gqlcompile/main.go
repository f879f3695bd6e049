// Command gqlcompile compiles GraphQL-shaped queries against a schema,
// exercising the gqlcompile front-end from the command line: compile a
// single query, batch-compile a directory of them concurrently, watch a
// macro directory and hot-reload definitions, register a macro edge, or
// generate typed Go constants from a schema.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
	root := newRootCommand(logger)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand(logger *slog.Logger) *cobra.Command {
	cfg := &config{}

	root := &cobra.Command{
		Use:   "gqlcompile",
		Short: "Compile GraphQL-shaped queries to an intermediate representation",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			flags := *cfg
			loaded, err := loadConfig(cfg.path)
			if err != nil {
				return err
			}
			*cfg = *loaded
			if flags.SchemaPath != "" {
				cfg.SchemaPath = flags.SchemaPath
			}
			if flags.MacroDir != "" {
				cfg.MacroDir = flags.MacroDir
			}
			if flags.OutputFormat != "" {
				cfg.OutputFormat = flags.OutputFormat
			}
			return nil
		},
	}
	root.PersistentFlags().StringVar(&cfg.path, "config", "gqlcompile.yaml", "path to config file")
	root.PersistentFlags().StringVar(&cfg.SchemaPath, "schema", "", "path to the GraphQL schema file (overrides config)")
	root.PersistentFlags().StringVar(&cfg.MacroDir, "macro-dir", "", "directory of .macro.graphql macro edge definitions (overrides config)")
	root.PersistentFlags().StringVar(&cfg.OutputFormat, "format", "", "output format: json or text (overrides config)")

	root.AddCommand(
		newCompileCommand(cfg, logger),
		newBatchCommand(cfg, logger),
		newWatchCommand(cfg, logger),
		newRegisterMacroCommand(cfg, logger),
		newGenCommand(cfg, logger),
	)
	return root
}
