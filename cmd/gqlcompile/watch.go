package main

import (
	"log/slog"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/syssam/gqlcompile/macro"
)

// newWatchCommand watches a macro directory and, whenever a file in it is
// written or created, re-registers every macro definition in the directory
// into a fresh registry, logging each reload. A real long-running server would hand the rebuilt registry
// to concurrent compile requests; this command only demonstrates the
// reload loop itself.
func newWatchCommand(cfg *config, logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the macro directory and hot-reload macro edge definitions",
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := loadSchema(cfg.SchemaPath)
			if err != nil {
				return err
			}

			watcher, err := fsnotify.NewWatcher()
			if err != nil {
				return err
			}
			defer watcher.Close()

			if err := watcher.Add(cfg.MacroDir); err != nil {
				return err
			}

			registry := macro.NewRegistry(sch)
			if err := registerMacrosFromDir(registry, cfg.MacroDir); err != nil {
				return err
			}
			logger.Info("watching macro directory", "dir", cfg.MacroDir)

			for {
				select {
				case event, ok := <-watcher.Events:
					if !ok {
						return nil
					}
					if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
						continue
					}
					registry = macro.NewRegistry(sch)
					if err := registerMacrosFromDir(registry, cfg.MacroDir); err != nil {
						logger.Error("failed to reload macro directory", "error", err)
						continue
					}
					logger.Info("reloaded macro directory", "changed", event.Name)
				case err, ok := <-watcher.Errors:
					if !ok {
						return nil
					}
					logger.Error("watcher error", "error", err)
				}
			}
		},
	}
}
