// Package ast provides pure helper functions for walking the parsed surface
// query tree produced by the external parser (github.com/vektah/gqlparser/v2).
// It never constructs or mutates AST nodes of its own; every function here
// borrows references into a tree built and validated elsewhere (§1, §4.1).
package ast

import (
	"sort"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/gqlcompile/compilerr"
	"github.com/syssam/gqlcompile/schema"
)

// AllowedDuplicatedDirectives is the set of directive names permitted to
// occur more than once on the same AST node. Only @filter is repeatable.
var AllowedDuplicatedDirectives = map[string]bool{
	schema.DirectiveFilter: true,
}

// UniqueDirectives returns a map of directive name to directive object for
// the given directive list. Directives in AllowedDuplicatedDirectives are
// omitted from the result (callers fetch them separately via
// FilterDirectives); any other directive appearing more than once is a
// CompilationError.
func UniqueDirectives(directives ast.DirectiveList) (map[string]*ast.Directive, error) {
	result := map[string]*ast.Directive{}
	for _, d := range directives {
		if AllowedDuplicatedDirectives[d.Name] {
			continue
		}
		if _, seen := result[d.Name]; seen {
			return nil, compilerr.NewCompilationError("", "directive @%s was unexpectedly applied twice in the same location", d.Name)
		}
		result[d.Name] = d
	}
	return result, nil
}

// FilterDirectives returns every @filter directive in the list, in order.
func FilterDirectives(directives ast.DirectiveList) []*ast.Directive {
	var out []*ast.Directive
	for _, d := range directives {
		if d.Name == schema.DirectiveFilter {
			out = append(out, d)
		}
	}
	return out
}

// SplitSelections partitions a selection set into property fields, vertex
// fields, and (at most one) inline fragment, enforcing that property
// fields precede vertex fields and that a fragment never shares a
// selection set with field selections.
//
// sch is used to classify each field as a vertex or property field;
// currentType is the schema type the selection set belongs to.
func SplitSelections(sel ast.SelectionSet, sch *schema.Schema, currentType string) (
	propertyFields []*ast.Field, vertexFields []*ast.Field, fragment *ast.InlineFragment, err error,
) {
	seenNames := map[string]bool{}
	seenVertex := false

	for _, selection := range sel {
		switch node := selection.(type) {
		case *ast.Field:
			name := FieldName(node)
			if seenNames[name] {
				return nil, nil, nil, compilerr.NewCompilationError("", "duplicate field %q in selection", name)
			}
			seenNames[name] = true

			if sch.IsVertexField(currentType, node.Name) {
				seenVertex = true
				vertexFields = append(vertexFields, node)
			} else {
				if seenVertex {
					return nil, nil, nil, compilerr.NewCompilationError("", "property field %q appears after a vertex field; property fields must precede vertex fields", name)
				}
				propertyFields = append(propertyFields, node)
			}
		case *ast.InlineFragment:
			if fragment != nil {
				return nil, nil, nil, compilerr.NewCompilationError("", "multiple inline fragments in the same selection set")
			}
			fragment = node
		case *ast.FragmentSpread:
			return nil, nil, nil, compilerr.NewCompilationError("", "named fragment spreads are not supported")
		}
	}

	if fragment != nil && (len(propertyFields) > 0 || len(vertexFields) > 0) {
		return nil, nil, nil, compilerr.NewCompilationError("", "an inline fragment may not share a selection set with field selections")
	}

	return propertyFields, vertexFields, fragment, nil
}

// FieldName returns the name used to identify a field in the compiler's
// bookkeeping: its alias if one is set, otherwise its schema field name.
func FieldName(f *ast.Field) string {
	if f.Alias != "" && f.Alias != f.Name {
		return f.Alias
	}
	return f.Name
}

// DirectiveArg returns the named argument on a directive, if present.
func DirectiveArg(d *ast.Directive, name string) (*ast.Argument, bool) {
	for _, a := range d.Arguments {
		if a.Name == name {
			return a, true
		}
	}
	return nil, false
}

// DirectiveStringArg returns the raw string value of a string-typed
// directive argument.
func DirectiveStringArg(d *ast.Directive, name string) (string, bool) {
	a, ok := DirectiveArg(d, name)
	if !ok || a.Value == nil {
		return "", false
	}
	return a.Value.Raw, true
}

// DirectiveStringListArg returns the raw string values of a
// list-of-string-typed directive argument, in order.
func DirectiveStringListArg(d *ast.Directive, name string) ([]string, bool) {
	a, ok := DirectiveArg(d, name)
	if !ok || a.Value == nil {
		return nil, false
	}
	if a.Value.Kind != ast.ListValue {
		return nil, false
	}
	out := make([]string, 0, len(a.Value.Children))
	for _, child := range a.Value.Children {
		out = append(out, child.Value.Raw)
	}
	return out, true
}

// SortedDirectiveNames returns the names present in a unique-directive map,
// sorted, for deterministic error messages.
func SortedDirectiveNames(directives map[string]*ast.Directive) []string {
	names := make([]string, 0, len(directives))
	for name := range directives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
