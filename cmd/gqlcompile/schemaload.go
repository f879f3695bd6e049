package main

import (
	"os"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/gqlcompile/schema"
)

// loadSchema parses and validates the GraphQL SDL file at path and wraps it
// in a *schema.Schema, with no type-equivalence hints — CLI users needing
// hints configure them through a future config extension, not yet exposed
// on the command line.
func loadSchema(path string) (*schema.Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	inner, err := gqlparser.LoadSchema(&ast.Source{Input: string(data), Name: path})
	if err != nil {
		return nil, err
	}
	return schema.New(inner, nil), nil
}
