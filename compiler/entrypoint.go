package compiler

import (
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"

	"github.com/syssam/gqlcompile/compilerr"
	"github.com/syssam/gqlcompile/schema"
)

// GraphQLToIR is the front-end's public entry point (§4.5): it parses text
// against sch, validates it (including the stricter directive-declaration
// check every compiler-recognized directive requires), and compiles the
// single root selection into IrAndMetadata by walking directive semantics.
func GraphQLToIR(sch *schema.Schema, typeEquivalenceHints map[string]string, text string) (*IrAndMetadata, error) {
	// Step 1: a trailing newline works around a parser quirk with queries
	// that end in a comment or unterminated token.
	source := &ast.Source{Input: text + "\n", Name: "query"}

	doc, parseErr := parser.ParseQuery(source)
	if parseErr != nil {
		return nil, compilerr.NewParseError(parseErr)
	}

	return CompileDocument(sch, typeEquivalenceHints, doc)
}

// CompileDocument runs steps 3 onward of §4.5 against an already-parsed
// document, skipping the parse step GraphQLToIR performs first. This is
// the entry point a caller uses after running PerformMacroExpansion on the
// query's root selection, since expansion operates on a parsed AST and has
// no reason to re-print it back to text before compiling (§4.4.2, §5
// concurrency model: doc here is the caller's own value, not shared
// mutable state).
func CompileDocument(sch *schema.Schema, typeEquivalenceHints map[string]string, doc *ast.QueryDocument) (*IrAndMetadata, error) {
	if err := validateDirectivesDeclared(sch); err != nil {
		return nil, err
	}

	if errs := validator.Validate(sch.Inner(), doc); len(errs) > 0 {
		return nil, compilerr.NewValidationError(errs)
	}

	if len(doc.Operations) != 1 {
		return nil, compilerr.NewCompilationError("", "query must contain exactly one operation definition, found %d", len(doc.Operations))
	}
	op := doc.Operations[0]
	if len(op.SelectionSet) != 1 {
		return nil, compilerr.NewCompilationError("", "query must have exactly one root selection, found %d", len(op.SelectionSet))
	}

	rootField, ok := op.SelectionSet[0].(*ast.Field)
	if !ok {
		return nil, compilerr.NewCompilationError("", "the query root selection must be a field, not an inline fragment")
	}

	rootTypeName := rootField.Name
	if _, ok := sch.TypeByName(rootTypeName); !ok {
		return nil, compilerr.NewCompilationError("", "unknown root type %q", rootTypeName)
	}

	si := &schemaInfoClass{schema: sch, typeEquivalenceHints: typeEquivalenceHints}
	c := newContext(si)

	if err := c.processRoot(rootTypeName, rootField); err != nil {
		return nil, err
	}

	return &IrAndMetadata{
		IR:               c.blocks,
		InputMetadata:    c.inputs,
		OutputMetadata:   c.outputMetaResult,
		LocationTypes:    c.locationTypes,
		CoercedLocations: c.coercedLocations,
		FilterMetadata:   c.filterMetadata,
	}, nil
}

// validateDirectivesDeclared enforces the stricter check described in §4.5
// step 3: every directive the compiler acts on must be declared in the
// schema, not merely tolerated by default GraphQL validation.
func validateDirectivesDeclared(sch *schema.Schema) error {
	for name := range schema.RecognizedDirectives {
		if !sch.DirectiveDeclared(name) {
			return compilerr.NewValidationError(compilerr.NewCompilationError("", "directive @%s is not declared in the schema", name))
		}
	}
	return nil
}
