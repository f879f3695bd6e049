// Package compiler implements the directive orchestrator: the depth-first
// walk over a parsed, schema-validated query that emits the ir.Block
// sequence and produces the query's input/output metadata (§4.3, §4.5).
package compiler

import (
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/gqlcompile/compilerr"
	"github.com/syssam/gqlcompile/filter"
	"github.com/syssam/gqlcompile/ir"
	"github.com/syssam/gqlcompile/schema"
)

// outputInfo is the bookkeeping recorded per @output directive while
// walking the query; it is converted to the public OutputMetadata once the
// walk completes and an output's final optional/fold status is known.
type outputInfo struct {
	location  ir.Location
	fieldName string
	fieldType *ast.Type
	inOptional bool
	fold      *ir.FoldScopeLocation // non-nil if the output is inside a fold
}

// tagInfo is the bookkeeping recorded per @tag directive.
type tagInfo struct {
	location  ir.Location
	fieldName string
	fieldType *ast.Type
	inOptional bool
}

// markEntry is a stack frame tracking, for the most recently marked
// location on the current path, how many sibling traversals have departed
// from it since the mark — used by the counter-based revisit rule (§4.3
// step 2b.2, §9).
type markEntry struct {
	location       ir.Location
	traverseCount int
}

// context is the mutable state threaded through the directive orchestrator
// (§3.4, §9 "explicit stack-structured state"). It is never shared across
// goroutines or across compilations: each call to GraphQLToIR owns exactly
// one context for its duration.
type context struct {
	schemaInfo *schemaInfoClass

	tags    map[string]tagInfo
	outputs map[string]outputInfo
	inputs  map[string]*ast.Type

	// locationTypes records the schema type ruling at each marked location,
	// narrowed by any CoerceType applied there.
	locationTypes map[ir.Location]string

	// coercedLocations is the set of locations at which a CoerceType block
	// was emitted.
	coercedLocations map[ir.Location]bool

	// filterMetadata records (fields, op, args) per location for downstream
	// diagnostics (SPEC_FULL §SUPPLEMENTED FEATURES; filters.py record_filter_info).
	filterMetadata map[ir.Location][]filter.FilterInfo

	markStack []markEntry

	// activeOptional is the location of the innermost @optional scope
	// currently open, if any.
	activeOptional *ir.Location

	// activeFold is the innermost @fold scope currently open, if any.
	activeFold *ir.FoldScopeLocation

	outputSourceSeen bool

	blocks []ir.Block

	// outputMetaResult is filled in by emitConstructResult, once the final
	// optional/fold status of every output is known.
	outputMetaResult map[string]OutputMetadata
}

// schemaInfoClass bundles the schema and type-equivalence hints the
// orchestrator consults while walking. Named to match the one field whose
// two spellings in the source material (schemaInfoClass / SchemaInfoClass)
// are treated as the same field (§9 open questions) — there is exactly one
// spelling here.
type schemaInfoClass struct {
	schema               *schema.Schema
	typeEquivalenceHints map[string]string
}

func newContext(si *schemaInfoClass) *context {
	return &context{
		schemaInfo:       si,
		tags:             map[string]tagInfo{},
		outputs:          map[string]outputInfo{},
		inputs:           map[string]*ast.Type{},
		locationTypes:    map[ir.Location]string{},
		coercedLocations: map[ir.Location]bool{},
		filterMetadata:   map[ir.Location][]filter.FilterInfo{},
	}
}

func (c *context) emit(b ir.Block) {
	c.blocks = append(c.blocks, b)
}

func (c *context) pushMark(loc ir.Location) {
	c.markStack = append(c.markStack, markEntry{location: loc})
}

func (c *context) popMark() markEntry {
	n := len(c.markStack)
	top := c.markStack[n-1]
	c.markStack = c.markStack[:n-1]
	return top
}

func (c *context) markTop() *markEntry {
	if len(c.markStack) == 0 {
		return nil
	}
	return &c.markStack[len(c.markStack)-1]
}

// RegisterInput records a runtime variable's inferred type, failing if it
// was already registered with a different type. Implements filter.Context.
func (c *context) RegisterInput(name string, t *ast.Type) error {
	if existing, ok := c.inputs[name]; ok {
		if !typesEqual(existing, t) {
			return compilerr.NewCompilationError("", "runtime variable %q used with incompatible types", name)
		}
		return nil
	}
	c.inputs[name] = t
	return nil
}

// ResolveTag returns the declared @tag with the given name. Implements
// filter.Context.
func (c *context) ResolveTag(name string) (filter.TagRef, bool) {
	t, ok := c.tags[name]
	if !ok {
		return filter.TagRef{}, false
	}
	return filter.TagRef{Location: t.location, FieldName: t.fieldName, FieldType: t.fieldType, InOptional: t.inOptional}, true
}

func typesEqual(a, b *ast.Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}
