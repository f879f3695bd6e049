package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/syssam/gqlcompile"
	"github.com/syssam/gqlcompile/compiler"
	"github.com/syssam/gqlcompile/macro"
)

func newCompileCommand(cfg *config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "compile <query-file>",
		Short: "Compile a single query file to its intermediate representation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := loadSchema(cfg.SchemaPath)
			if err != nil {
				return fmt.Errorf("loading schema: %w", err)
			}
			text, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			var result *compiler.IrAndMetadata
			if cfg.MacroDir != "" {
				registry := macro.NewRegistry(sch)
				if err := registerMacrosFromDir(registry, cfg.MacroDir); err != nil {
					return err
				}
				registry.Freeze()
				result, err = gqlcompile.CompileWithMacros(sch, registry, nil, string(text))
			} else {
				result, err = gqlcompile.GraphQLToIR(sch, nil, string(text))
			}
			if err != nil {
				return err
			}
			logger.Debug("compiled query", "file", args[0], "blocks", len(result.IR))
			return printResult(cmd, cfg, result)
		},
	}
}

func printResult(cmd *cobra.Command, cfg *config, result *compiler.IrAndMetadata) error {
	if cfg.OutputFormat == "json" {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(blocksAsText(result))
	}
	for _, b := range result.IR {
		fmt.Fprintln(cmd.OutOrStdout(), b.String())
	}
	return nil
}

// blocksAsText renders the IR as a plain string slice, since ir.Block
// values are not themselves JSON-serializable closed sum types.
func blocksAsText(result *compiler.IrAndMetadata) []string {
	out := make([]string, len(result.IR))
	for i, b := range result.IR {
		out[i] = b.String()
	}
	return out
}
