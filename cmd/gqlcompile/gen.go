package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/syssam/gqlcompile/schemagen"
)

// newGenCommand generates a Go source file of typed TypeName/FieldName
// constants from the configured schema.
func newGenCommand(cfg *config, logger *slog.Logger) *cobra.Command {
	var outPath, packageName string
	cmd := &cobra.Command{
		Use:   "gen",
		Short: "Generate typed Go constants from the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			sch, err := loadSchema(cfg.SchemaPath)
			if err != nil {
				return err
			}
			file, err := schemagen.Generate(sch, packageName)
			if err != nil {
				return err
			}
			logger.Debug("generated schema constants", "package", packageName, "out", outPath)
			return file.Save(outPath)
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "schema_generated.go", "output file path")
	cmd.Flags().StringVar(&packageName, "package", "schemaconst", "generated package name")
	return cmd
}
