package compiler

import (
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/gqlcompile/filter"
	"github.com/syssam/gqlcompile/ir"
)

// OutputMetadata describes one @output column of a compiled query (§3.6).
type OutputMetadata struct {
	Type     *ast.Type
	Optional bool
	Folded   bool
}

// IrAndMetadata is the return value of GraphQLToIR (§3.6, §6): the compiled
// block sequence plus everything a caller needs to bind runtime arguments
// and interpret the result rows.
type IrAndMetadata struct {
	IR []ir.Block

	// InputMetadata maps each runtime variable name (without the leading
	// "$") to its inferred GraphQL type.
	InputMetadata map[string]*ast.Type

	// OutputMetadata maps each @output name to its column metadata.
	OutputMetadata map[string]OutputMetadata

	// LocationTypes maps each marked location to the schema type ruling
	// there, after any type coercion.
	LocationTypes map[ir.Location]string

	// CoercedLocations is the set of locations at which a CoerceType block
	// was emitted.
	CoercedLocations map[ir.Location]bool

	// FilterMetadata records every applied filter, keyed by the location it
	// applied at (SPEC_FULL.md SUPPLEMENTED FEATURES).
	FilterMetadata map[ir.Location][]filter.FilterInfo
}
