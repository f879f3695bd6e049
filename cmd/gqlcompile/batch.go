package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/syssam/gqlcompile"
	"github.com/syssam/gqlcompile/macro"
)

// newBatchCommand compiles every *.graphql file in a directory
// concurrently against one frozen macro registry and one schema, exercising
// the safe-concurrency property spec.md §5 documents: a frozen registry and
// a schema are read-only and may be shared across goroutines without
// synchronization.
func newBatchCommand(cfg *config, logger *slog.Logger) *cobra.Command {
	var macroDir string
	cmd := &cobra.Command{
		Use:   "batch <query-dir>",
		Short: "Compile every query file in a directory concurrently",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := loadSchema(cfg.SchemaPath)
			if err != nil {
				return fmt.Errorf("loading schema: %w", err)
			}

			registry := macro.NewRegistry(sch)
			dir := macroDir
			if dir == "" {
				dir = cfg.MacroDir
			}
			if dir != "" {
				if err := registerMacrosFromDir(registry, dir); err != nil {
					return err
				}
			}
			registry.Freeze()

			files, err := filepath.Glob(filepath.Join(args[0], "*.graphql"))
			if err != nil {
				return err
			}

			g, _ := errgroup.WithContext(context.Background())
			for _, file := range files {
				file := file
				g.Go(func() error {
					text, err := os.ReadFile(file)
					if err != nil {
						return err
					}
					result, err := gqlcompile.CompileWithMacros(sch, registry, nil, string(text))
					if err != nil {
						return fmt.Errorf("%s: %w", file, err)
					}
					logger.Info("compiled query", "file", file, "blocks", len(result.IR))
					return nil
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&macroDir, "macro-dir", "", "directory of macro edge definitions to register before compiling")
	return cmd
}
