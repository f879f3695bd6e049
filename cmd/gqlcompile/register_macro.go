package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/syssam/gqlcompile/macro"
)

// newRegisterMacroCommand registers a single macro edge definition file
// against the schema and prints its assigned identity, as a standalone
// validation/smoke-test tool for a macro author iterating on one
// definition at a time.
func newRegisterMacroCommand(cfg *config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "register-macro <macro-file>",
		Short: "Validate a single macro edge definition against the schema",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := loadSchema(cfg.SchemaPath)
			if err != nil {
				return err
			}
			text, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			registry := macro.NewRegistry(sch)
			if cfg.MacroDir != "" {
				if err := registerMacrosFromDir(registry, cfg.MacroDir); err != nil {
					return err
				}
			}
			descriptor, err := macro.RegisterMacroEdge(registry, string(text), nil)
			if err != nil {
				return err
			}
			logger.Info("registered macro edge", "name", descriptor.MacroEdgeName, "base", descriptor.BaseClass, "target", descriptor.TargetClass)
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s -> %s (%s)\n", descriptor.MacroEdgeName, descriptor.BaseClass, descriptor.TargetClass, descriptor.ID)
			return nil
		},
	}
}
