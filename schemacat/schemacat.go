// Package schemacat builds a *schema.Schema by introspecting a live SQL
// database catalogue, concretizing the "schema introspection utilities"
// external collaborator named in spec.md §1: tables become GraphQL object
// types, columns become scalar fields, and foreign keys become vertex
// out_/in_ edge pairs a compiled query can traverse.
package schemacat

import (
	"context"
	"database/sql"
	"fmt"

	atlasschema "ariga.io/atlas/sql/schema"
	"ariga.io/atlas/sql/mysql"
	"ariga.io/atlas/sql/postgres"
	"ariga.io/atlas/sql/sqlite"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	gqlast "github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/gqlcompile/schema"
)

// Dialect names this package knows how to open and introspect.
const (
	MySQL    = "mysql"
	Postgres = "postgres"
	SQLite   = "sqlite"
)

// driverName maps a Dialect constant to the database/sql driver name
// registered by the matching blank import above.
var driverName = map[string]string{
	MySQL:    "mysql",
	Postgres: "postgres",
	SQLite:   "sqlite",
}

// Open opens a *sql.DB for dialect using dsn, the way the teacher's
// dialect/sql package opens a driver connection per backend.
func Open(dialect, dsn string) (*sql.DB, error) {
	name, ok := driverName[dialect]
	if !ok {
		return nil, fmt.Errorf("schemacat: unsupported dialect %q", dialect)
	}
	db, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("schemacat: opening %s connection: %w", dialect, err)
	}
	return db, nil
}

// inspector is the subset of an atlas migrate.Driver this package needs:
// reading a named schema's tables, columns, and foreign keys back out.
type inspector interface {
	InspectSchema(ctx context.Context, name string, opts *atlasschema.InspectOptions) (*atlasschema.Schema, error)
}

// newInspector opens the atlas driver for dialect atop an already-open
// *sql.DB, mirroring the teacher's per-dialect dialect.Driver construction.
func newInspector(dialect string, db *sql.DB) (inspector, error) {
	switch dialect {
	case MySQL:
		return mysql.Open(db)
	case Postgres:
		return postgres.Open(db)
	case SQLite:
		return sqlite.Open(db)
	default:
		return nil, fmt.Errorf("schemacat: unsupported dialect %q", dialect)
	}
}

// Introspect inspects catalogueName on db using dialect's atlas driver and
// builds a *schema.Schema from the resulting tables and foreign keys
// (§1 "building a schema object from a database catalogue").
//
// typeEquivalenceHints is passed straight through to schema.New; callers
// building a GraphQL interface hierarchy on top of a normalized catalogue
// (e.g. single-table inheritance) supply it here.
func Introspect(ctx context.Context, dialect string, db *sql.DB, catalogueName string, typeEquivalenceHints map[string]string) (*schema.Schema, error) {
	insp, err := newInspector(dialect, db)
	if err != nil {
		return nil, err
	}
	cat, err := insp.InspectSchema(ctx, catalogueName, nil)
	if err != nil {
		return nil, fmt.Errorf("schemacat: inspecting schema %q: %w", catalogueName, err)
	}
	return convert(cat, typeEquivalenceHints)
}

// convert translates an atlas catalogue schema into a gqlcompile
// *schema.Schema: one GraphQL object type per table, one scalar field per
// column, and a pair of out_/in_ vertex fields per foreign key.
func convert(cat *atlasschema.Schema, typeEquivalenceHints map[string]string) (*schema.Schema, error) {
	doc := &gqlast.SchemaDocument{}
	doc.Definitions = append(doc.Definitions, builtinScalarDefinitions()...)

	tableType := make(map[string]string, len(cat.Tables))
	for _, t := range cat.Tables {
		tableType[t.Name] = typeNameForTable(t.Name)
	}

	for _, t := range cat.Tables {
		def := findOrCreateDefinition(doc, tableType[t.Name])
		for _, c := range t.Columns {
			def.Fields = append(def.Fields, &gqlast.FieldDefinition{
				Name: fieldNameForColumn(c.Name),
				Type: graphQLScalarType(c),
			})
		}
		for _, fk := range t.ForeignKeys {
			if len(fk.RefColumns) == 0 || fk.RefTable == nil {
				continue
			}
			targetType, ok := tableType[fk.RefTable.Name]
			if !ok {
				continue
			}
			outName := "out_" + edgeNameForForeignKey(fk)
			inName := "in_" + edgeNameForForeignKey(fk)
			def.Fields = append(def.Fields,
				&gqlast.FieldDefinition{Name: outName, Type: gqlast.ListType(gqlast.NamedType(targetType, nil), nil)},
			)
			target := findOrCreateDefinition(doc, targetType)
			target.Fields = append(target.Fields, &gqlast.FieldDefinition{
				Name: inName,
				Type: gqlast.ListType(gqlast.NamedType(def.Name, nil), nil),
			})
		}
	}

	schemaDoc := validateBuild(doc)
	return schema.New(schemaDoc, typeEquivalenceHints), nil
}

func findOrCreateDefinition(doc *gqlast.SchemaDocument, name string) *gqlast.Definition {
	for _, d := range doc.Definitions {
		if d.Name == name {
			return d
		}
	}
	def := &gqlast.Definition{Kind: gqlast.Object, Name: name}
	doc.Definitions = append(doc.Definitions, def)
	return def
}
