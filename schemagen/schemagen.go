// Package schemagen generates a Go source file of typed constants from a
// *schema.Schema: one constant per type name and one constant per field
// name on that type, so callers can reference "FieldAnimalName" instead of the
// string literal "name" when building queries or macro definitions by
// hand. This mirrors the teacher's own compiler/gen package, which
// generates typed constants from an entity schema; schemagen applies the
// same tool stack (dave/jennifer, go-openapi/inflect) to a GraphQL schema.
package schemagen

import (
	"sort"

	"github.com/dave/jennifer/jen"
	"github.com/go-openapi/inflect"
	"github.com/vektah/gqlparser/v2/ast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/syssam/gqlcompile/schema"
)

var titleCaser = cases.Title(language.Und)

// TypeName is a schema type name known at compile time, distinct from a
// plain string so a generated constant can't be confused with an arbitrary
// field name by the Go type checker.
type TypeName string

// FieldName is a schema field name known at compile time.
type FieldName string

// Generate renders a Go source file declaring one TypeName constant per
// object/interface/union type in sch and one FieldName constant per field
// on each of them, under the given package name.
func Generate(sch *schema.Schema, packageName string) (*jen.File, error) {
	f := jen.NewFile(packageName)
	f.HeaderComment("Code generated by schemagen. DO NOT EDIT.")

	f.Type().Id("TypeName").String()
	f.Type().Id("FieldName").String()

	for _, typeName := range sortedObjectTypes(sch) {
		constName := exportedIdentifier(typeName)
		f.Const().Id("Type" + constName).Id("TypeName").Op("=").Lit(typeName)

		for _, fieldName := range sortedFieldNames(sch, typeName) {
			fieldConst := exportedIdentifier(typeName) + exportedIdentifier(fieldName)
			f.Const().Id("Field" + fieldConst).Id("FieldName").Op("=").Lit(fieldName)
		}
	}

	return f, nil
}

// sortedObjectTypes returns every object/interface/union type name in sch,
// sorted for deterministic generated output.
func sortedObjectTypes(sch *schema.Schema) []string {
	var names []string
	for _, def := range sch.Inner().Types {
		switch def.Kind {
		case ast.Object, ast.Interface, ast.Union:
			if def.BuiltIn {
				continue
			}
			names = append(names, def.Name)
		}
	}
	sort.Strings(names)
	return names
}

func sortedFieldNames(sch *schema.Schema, typeName string) []string {
	def, ok := sch.TypeByName(typeName)
	if !ok {
		return nil
	}
	var names []string
	for _, f := range def.Fields {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}

// exportedIdentifier turns a snake_case or camelCase schema name into an
// exported Go identifier by camelizing it with inflect and title-casing the
// result. It does not singularize the name.
func exportedIdentifier(name string) string {
	return titleCaser.String(inflect.Camelize(name))
}
