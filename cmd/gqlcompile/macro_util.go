package main

import (
	"os"
	"path/filepath"

	"github.com/syssam/gqlcompile/macro"
)

// registerMacrosFromDir registers every *.macro.graphql file in dir onto
// registry, in directory order.
func registerMacrosFromDir(registry *macro.Registry, dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.macro.graphql"))
	if err != nil {
		return err
	}
	for _, file := range files {
		text, err := os.ReadFile(file)
		if err != nil {
			return err
		}
		if _, err := macro.RegisterMacroEdge(registry, string(text), nil); err != nil {
			return err
		}
	}
	return nil
}
