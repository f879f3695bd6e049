// Package gqlcompile is the public facade over the compiler, filter,
// macro, and schema packages: parse+validate a GraphQL-shaped query
// against a schema, compile it to an intermediate representation, and
// (optionally) first rewrite any macro-edge usages it contains.
package gqlcompile

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/syssam/gqlcompile/compiler"
	"github.com/syssam/gqlcompile/compilerr"
	"github.com/syssam/gqlcompile/macro"
	"github.com/syssam/gqlcompile/schema"
)

// Re-exported error types, so callers depending only on this package can
// still use errors.As/errors.Is against the concrete kinds compilerr
// defines.
type (
	ParseError           = compilerr.ParseError
	ValidationError      = compilerr.ValidationError
	CompilationError     = compilerr.CompilationError
	InvalidMacroError    = compilerr.InvalidMacroError
	InvalidArgumentError = compilerr.InvalidArgumentError
)

// IrAndMetadata is the result of compiling a query (§3.6).
type IrAndMetadata = compiler.IrAndMetadata

// GraphQLToIR parses, validates, and compiles text against sch, with no
// macro-edge rewriting (§4.5).
func GraphQLToIR(sch *schema.Schema, typeEquivalenceHints map[string]string, text string) (*IrAndMetadata, error) {
	return compiler.GraphQLToIR(sch, typeEquivalenceHints, text)
}

// RegisterMacroEdge registers a macro edge definition onto registry
// (§4.4.1).
func RegisterMacroEdge(registry *macro.Registry, macroText string, args map[string]*ast.Type) (*macro.MacroEdgeDescriptor, error) {
	return macro.RegisterMacroEdge(registry, macroText, args)
}

// CompileWithMacros parses text, rewrites every macro-edge usage it
// contains using registry (§4.4.2), and compiles the result against sch
// (§4.5). registry should already be frozen if called concurrently with
// other compilations sharing it (§5).
func CompileWithMacros(sch *schema.Schema, registry *macro.Registry, typeEquivalenceHints map[string]string, text string) (*IrAndMetadata, error) {
	source := &ast.Source{Input: text + "\n", Name: "query"}
	doc, parseErr := parser.ParseQuery(source)
	if parseErr != nil {
		return nil, compilerr.NewParseError(parseErr)
	}

	if len(doc.Operations) != 1 || len(doc.Operations[0].SelectionSet) != 1 {
		return nil, compilerr.NewCompilationError("", "query must have exactly one operation with exactly one root selection")
	}
	op := doc.Operations[0]
	rootField, ok := op.SelectionSet[0].(*ast.Field)
	if !ok {
		return nil, compilerr.NewCompilationError("", "the query root selection must be a field, not an inline fragment")
	}

	rootTypeName := rootField.Name
	expandedSel, _, err := macro.PerformMacroExpansion(registry, rootTypeName, rootField.SelectionSet, nil)
	if err != nil {
		return nil, err
	}
	newRoot := *rootField
	newRoot.SelectionSet = expandedSel
	op.SelectionSet = ast.SelectionSet{&newRoot}

	return compiler.CompileDocument(sch, typeEquivalenceHints, doc)
}
