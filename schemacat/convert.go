package schemacat

import (
	"strings"

	atlasschema "ariga.io/atlas/sql/schema"
	gqlast "github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/validator"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.Und)

// typeNameForTable derives a GraphQL object type name from a SQL table
// name: snake_case to PascalCase, singularized the simple way (trailing
// "s" stripped), e.g. "animal_trainers" -> "AnimalTrainer".
func typeNameForTable(table string) string {
	name := pascalCase(table)
	if strings.HasSuffix(name, "ies") {
		return strings.TrimSuffix(name, "ies") + "y"
	}
	if strings.HasSuffix(name, "s") && !strings.HasSuffix(name, "ss") {
		return strings.TrimSuffix(name, "s")
	}
	return name
}

// fieldNameForColumn derives a GraphQL field name from a SQL column name:
// snake_case to camelCase.
func fieldNameForColumn(column string) string {
	name := pascalCase(column)
	if name == "" {
		return name
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// edgeNameForForeignKey derives the shared out_/in_ edge name suffix from a
// foreign key's constrained column, e.g. column "trainer_id" on table
// "animal" yields edge name "Trainer" (out_Trainer / in_Trainer).
func edgeNameForForeignKey(fk *atlasschema.ForeignKey) string {
	if len(fk.Columns) == 0 {
		return pascalCase(fk.Symbol)
	}
	col := fk.Columns[0].Name
	col = strings.TrimSuffix(col, "_id")
	return pascalCase(col)
}

func pascalCase(s string) string {
	parts := strings.FieldsFunc(s, func(r rune) bool { return r == '_' || r == '-' })
	var b strings.Builder
	for _, p := range parts {
		b.WriteString(titleCaser.String(p))
	}
	return b.String()
}

// graphQLScalarType maps an atlas column type to a GraphQL scalar type
// reference, non-null unless the column is nullable.
func graphQLScalarType(c *atlasschema.Column) *gqlast.Type {
	named := scalarName(c.Type.Type)
	if c.Type.Null {
		return gqlast.NamedType(named, nil)
	}
	return gqlast.NonNullNamedType(named, nil)
}

func scalarName(t atlasschema.Type) string {
	switch t.(type) {
	case *atlasschema.IntegerType:
		return "Int"
	case *atlasschema.FloatType, *atlasschema.DecimalType:
		return "Float"
	case *atlasschema.BoolType:
		return "Boolean"
	case *atlasschema.TimeType:
		return "DateTime"
	default:
		return "String"
	}
}

// builtinScalarDefinitions declares the extra scalar types column types can
// resolve to beyond GraphQL's built-ins.
func builtinScalarDefinitions() []*gqlast.Definition {
	return []*gqlast.Definition{
		{Kind: gqlast.Scalar, Name: "DateTime"},
	}
}

// validateBuild runs the built SchemaDocument through gqlparser's
// schema-structural validator, the same external collaborator the compiler
// entry point uses for queries (§1).
func validateBuild(doc *gqlast.SchemaDocument) *gqlast.Schema {
	doc.Definitions = append(doc.Definitions, queryRootDefinition(doc))
	sch, err := validator.ValidateSchemaDocument(doc)
	if err != nil {
		// A malformed introspected catalogue is an internal inconsistency
		// in the generated schema document, not a user-facing error this
		// package's callers can act on differently; surface it the same
		// way a panic during schema construction would in the teacher's
		// own gen package.
		panic(err)
	}
	return sch
}

// queryRootDefinition synthesizes a trivial Query root type exposing every
// introspected table type by name, since GraphQL schemas require one and
// the catalogue itself has no notion of a root.
func queryRootDefinition(doc *gqlast.SchemaDocument) *gqlast.Definition {
	root := &gqlast.Definition{Kind: gqlast.Object, Name: "Query"}
	for _, d := range doc.Definitions {
		if d.Kind != gqlast.Object {
			continue
		}
		root.Fields = append(root.Fields, &gqlast.FieldDefinition{
			Name: fieldNameForColumn(d.Name),
			Type: gqlast.NamedType(d.Name, nil),
		})
	}
	return root
}
