// Package macro implements the macro-edge subsystem (§3.5, §4.4):
// registering virtual edges defined by a GraphQL expansion template, and
// rewriting queries that use them into their expanded, macro-free form.
package macro

import (
	"github.com/google/uuid"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/gqlcompile/schema"
)

// MacroEdgeDescriptor describes how to expand one virtual edge (§3.5, §9
// open question: the unified field set is base_class, target_class,
// macro_edge_name, expansion_ast, macro_args — the "minimal" variant found
// in the grounding source is not carried forward, since it cannot express
// registration's conflict checks).
type MacroEdgeDescriptor struct {
	ID uuid.UUID

	BaseClass     string
	TargetClass   string
	MacroEdgeName string

	// ExpansionSelection is the macro definition's selection set with the
	// @macro_edge_definition directive removed; the @macro_edge_target
	// directive is left in place as a marker for expansion.
	ExpansionSelection ast.SelectionSet

	// MacroArgs holds each pre-bound variable name (without its leading "$")
	// found in an @filter value list inside ExpansionSelection. Registration
	// does not infer argument types: every value it stores is nil.
	MacroArgs map[string]*ast.Type

	// SourceText is the macro definition text RegisterMacroEdge originally
	// parsed. Kept so Registry.Snapshot can serialize a macro edge by
	// re-registering it from source on LoadSnapshot, rather than trying to
	// serialize the AST subtree directly.
	SourceText string
}

// Registry indexes registered macro edges two ways: by base type and by
// target type (§3.5). Lookups and registration conflict checks read only the
// by-base index, scanning every registered base type when the name is not
// registered on the queried type itself; the by-target index is filled in
// but not read.
type Registry struct {
	schema *schema.Schema

	byBase   map[string]map[string]*MacroEdgeDescriptor
	byTarget map[string]map[string]*MacroEdgeDescriptor

	frozen bool
}

// NewRegistry returns an empty registry bound to sch. Every descriptor
// registered later is validated against this schema.
func NewRegistry(sch *schema.Schema) *Registry {
	return &Registry{
		schema:   sch,
		byBase:   map[string]map[string]*MacroEdgeDescriptor{},
		byTarget: map[string]map[string]*MacroEdgeDescriptor{},
	}
}

// Schema returns the schema the registry validates macro edges against.
func (r *Registry) Schema() *schema.Schema { return r.schema }

// Freeze marks the registry read-only. Once frozen, concurrent
// perform_macro_expansion calls against it are safe (§5); Register calls
// after Freeze fail.
func (r *Registry) Freeze() { r.frozen = true }

// Frozen reports whether Freeze has been called.
func (r *Registry) Frozen() bool { return r.frozen }

// Lookup returns the descriptor for macro edge name on baseType, checking
// baseType itself first, then any registered base type that baseType is a
// subtype of.
func (r *Registry) Lookup(baseType, name string) (*MacroEdgeDescriptor, bool) {
	if byName, ok := r.byBase[baseType]; ok {
		if d, ok := byName[name]; ok {
			return d, true
		}
	}
	for registeredBase, byName := range r.byBase {
		if registeredBase == baseType {
			continue
		}
		if d, ok := byName[name]; ok && r.schema.IsSubtypeOf(baseType, registeredBase) {
			return d, true
		}
	}
	return nil, false
}

// descriptorsOnOrBelow returns every descriptor registered on typeName or
// any of its registered subclasses, used by the registration conflict
// checks (§4.4.1).
func (r *Registry) descriptorsOnOrBelow(typeName string) []*MacroEdgeDescriptor {
	var out []*MacroEdgeDescriptor
	for base, byName := range r.byBase {
		if base == typeName || r.schema.IsSubtypeOf(base, typeName) {
			for _, d := range byName {
				out = append(out, d)
			}
		}
	}
	return out
}

func (r *Registry) store(d *MacroEdgeDescriptor) {
	if r.byBase[d.BaseClass] == nil {
		r.byBase[d.BaseClass] = map[string]*MacroEdgeDescriptor{}
	}
	r.byBase[d.BaseClass][d.MacroEdgeName] = d

	if r.byTarget[d.TargetClass] == nil {
		r.byTarget[d.TargetClass] = map[string]*MacroEdgeDescriptor{}
	}
	r.byTarget[d.TargetClass][d.MacroEdgeName] = d
}
