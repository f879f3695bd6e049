// Package schema provides a read-only view over a parsed GraphQL schema:
// type and field lookup, vertex-vs-property field classification, subtype
// tests, and the type-equivalence hints used to work around limitations of
// the surface type system (see GLOSSARY: Type-equivalence hint).
//
// Schema wraps a *ast.Schema from github.com/vektah/gqlparser/v2, which is
// the external parser/validator collaborator this package never replaces.
package schema

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

// Directive names recognized by the compiler. Any other directive
// encountered on a query is an error (see §6).
const (
	DirectiveFilter              = "filter"
	DirectiveTag                 = "tag"
	DirectiveOutput              = "output"
	DirectiveOptional            = "optional"
	DirectiveFold                = "fold"
	DirectiveRecurse             = "recurse"
	DirectiveOutputSource        = "output_source"
	DirectiveMacroEdge           = "macro_edge"
	DirectiveMacroEdgeDefinition = "macro_edge_definition"
	DirectiveMacroEdgeTarget     = "macro_edge_target"

	// Default GraphQL directives the compiler treats as unsupported: they
	// must not affect queries compiled by this package.
	DirectiveInclude = "include"
	DirectiveSkip     = "skip"

	// Ignored metadata directives: allowed in the schema, never inspected.
	DirectiveDeprecated   = "deprecated"
	DirectiveSpecifiedBy = "specifiedBy"
)

// RecognizedDirectives is the set of directives the compiler acts on.
// graphql_to_ir requires every one of them to be declared in the schema
// (§4.5 step 3). The ignored metadata directives above are not in the set.
var RecognizedDirectives = map[string]bool{
	DirectiveFilter:              true,
	DirectiveTag:                 true,
	DirectiveOutput:              true,
	DirectiveOptional:            true,
	DirectiveFold:                true,
	DirectiveRecurse:             true,
	DirectiveOutputSource:        true,
	DirectiveMacroEdge:           true,
	DirectiveMacroEdgeDefinition: true,
	DirectiveMacroEdgeTarget:     true,
}

// Schema is a read-only wrapper over a validated GraphQL schema, plus the
// type-equivalence hints the front-end needs to reason about unions that
// stand in for interfaces (see GLOSSARY).
type Schema struct {
	inner *ast.Schema

	// typeEquivalenceHints maps an interface or object type name to the
	// name of a union type enumerating its implementers.
	typeEquivalenceHints map[string]string

	// subclassSets maps a type name to the set of type names considered
	// its subclasses, used by type-coercion and macro-edge subtype checks.
	subclassSets map[string]map[string]bool
}

// New wraps a gqlparser schema together with type-equivalence hints and a
// precomputed subclass-set map (type name -> set of subtype names, via
// interface implementation and union membership). The type-equivalence
// hints are not folded into that map; IsSubtypeOf consults them directly.
func New(inner *ast.Schema, typeEquivalenceHints map[string]string) *Schema {
	s := &Schema{
		inner:                inner,
		typeEquivalenceHints: typeEquivalenceHints,
		subclassSets:         map[string]map[string]bool{},
	}
	s.buildSubclassSets()
	return s
}

func (s *Schema) buildSubclassSets() {
	for _, def := range s.inner.Types {
		if def.Kind != ast.Object {
			continue
		}
		for _, iface := range def.Interfaces {
			if s.subclassSets[iface] == nil {
				s.subclassSets[iface] = map[string]bool{}
			}
			s.subclassSets[iface][def.Name] = true
		}
	}
	for _, def := range s.inner.Types {
		if def.Kind != ast.Union {
			continue
		}
		for _, member := range def.Types {
			if s.subclassSets[def.Name] == nil {
				s.subclassSets[def.Name] = map[string]bool{}
			}
			s.subclassSets[def.Name][member] = true
		}
	}
}

// Inner returns the underlying gqlparser schema, for callers (e.g. the
// parser/validator entry point) that need it directly.
func (s *Schema) Inner() *ast.Schema { return s.inner }

// QueryTypeName returns the name of the schema's root query type.
func (s *Schema) QueryTypeName() string {
	if s.inner.Query == nil {
		return ""
	}
	return s.inner.Query.Name
}

// TypeByName returns the type definition for name, if one exists.
func (s *Schema) TypeByName(name string) (*ast.Definition, bool) {
	def, ok := s.inner.Types[name]
	return def, ok
}

// FieldDefinition returns the field definition named fieldName on typeName.
func (s *Schema) FieldDefinition(typeName, fieldName string) (*ast.FieldDefinition, bool) {
	def, ok := s.inner.Types[typeName]
	if !ok {
		return nil, false
	}
	for _, f := range def.Fields {
		if f.Name == fieldName {
			return f, true
		}
	}
	return nil, false
}

// IsVertexFieldName reports whether a field name follows the vertex-field
// naming convention (GLOSSARY: Vertex field): it begins with "out_" or
// "in_". This is a purely syntactic check; IsVertexField additionally
// confirms the field's resolved type is a vertex type.
func IsVertexFieldName(name string) bool {
	return strings.HasPrefix(name, "out_") || strings.HasPrefix(name, "in_")
}

// IsVertexType reports whether a named type is a vertex type: an object,
// interface, or union (as opposed to a scalar or enum leaf type).
func (s *Schema) IsVertexType(typeName string) bool {
	def, ok := s.inner.Types[typeName]
	if !ok {
		return false
	}
	switch def.Kind {
	case ast.Object, ast.Interface, ast.Union:
		return true
	default:
		return false
	}
}

// IsVertexField reports whether fieldName on typeName is a vertex field:
// its name follows the naming convention and its type resolves to a
// vertex type.
func (s *Schema) IsVertexField(typeName, fieldName string) bool {
	if !IsVertexFieldName(fieldName) {
		return false
	}
	fd, ok := s.FieldDefinition(typeName, fieldName)
	if !ok {
		return false
	}
	return s.IsVertexType(NamedType(fd.Type))
}

// NamedType strips List and NonNull wrappers, returning the innermost named
// type ("list/nullability stripping", §2).
func NamedType(t *ast.Type) string {
	for t.Elem != nil {
		t = t.Elem
	}
	return t.NamedType
}

// StripNonNull removes a single outer NonNull wrapper, if present, leaving
// list wrappers intact.
func StripNonNull(t *ast.Type) *ast.Type {
	if t == nil {
		return nil
	}
	if t.NonNull {
		cp := *t
		cp.NonNull = false
		return &cp
	}
	return t
}

// IsListType reports whether t (after stripping a non-null wrapper) is a
// list type.
func IsListType(t *ast.Type) bool {
	return StripNonNull(t).Elem != nil
}

// ListElem returns the element type of a list type, with its own NonNull
// wrapper intact. Returns nil if t is not a list, and panics if t is nil;
// callers must check IsListType first.
func ListElem(t *ast.Type) *ast.Type {
	return StripNonNull(t).Elem
}

// IsSameType reports whether two types are the same up to List/NonNull
// wrapping, i.e. ignoring nullability at every level. This mirrors the
// "is_same_type" comparison exposed by the schema in §6.
func IsSameType(a, b *ast.Type) bool {
	a, b = StripNonNull(a), StripNonNull(b)
	if (a.Elem == nil) != (b.Elem == nil) {
		return false
	}
	if a.Elem != nil {
		return IsSameType(a.Elem, b.Elem)
	}
	return a.NamedType == b.NamedType
}

// Implements reports whether typeName implements interfaceName, i.e.
// interfaceName names an interface type and typeName appears in its
// precomputed subclass set.
func (s *Schema) Implements(typeName, interfaceName string) bool {
	def, ok := s.inner.Types[interfaceName]
	if !ok || def.Kind != ast.Interface {
		return false
	}
	return s.subclassSets[interfaceName][typeName]
}

// UnionMembers returns the member type names of a union type.
func (s *Schema) UnionMembers(unionName string) []string {
	def, ok := s.inner.Types[unionName]
	if !ok || def.Kind != ast.Union {
		return nil
	}
	return def.Types
}

// TypeEquivalentUnion returns the union type name equivalent to typeName,
// per the type-equivalence hints, if one was configured.
func (s *Schema) TypeEquivalentUnion(typeName string) (string, bool) {
	u, ok := s.typeEquivalenceHints[typeName]
	return u, ok
}

// IsSubtypeOf reports whether child is a recognized subtype of parent: the
// same type, an implementing object of an interface, or a member of a
// union, including unions substituted in via type-equivalence hints.
func (s *Schema) IsSubtypeOf(child, parent string) bool {
	if child == parent {
		return true
	}
	if s.subclassSets[parent][child] {
		return true
	}
	if equiv, ok := s.TypeEquivalentUnion(parent); ok {
		if s.subclassSets[equiv][child] || equiv == child {
			return true
		}
	}
	return false
}

// DirectiveDeclared reports whether a directive with the given name is
// declared in the schema.
func (s *Schema) DirectiveDeclared(name string) bool {
	_, ok := s.inner.Directives[name]
	return ok
}

// TypeString renders a type reference the same way it would appear in
// GraphQL source ("[String!]!"), used to serialize macro argument types
// into a macro registry snapshot.
func TypeString(t *ast.Type) string {
	if t == nil {
		return ""
	}
	if t.Elem != nil {
		s := "[" + TypeString(t.Elem) + "]"
		if t.NonNull {
			s += "!"
		}
		return s
	}
	s := t.NamedType
	if t.NonNull {
		s += "!"
	}
	return s
}

// ParseTypeString parses a type reference rendered by TypeString back into
// an *ast.Type, without needing a live parser instance.
func ParseTypeString(s string) (*ast.Type, error) {
	t, rest, err := parseTypeStringPrefix(s)
	if err != nil {
		return nil, err
	}
	if rest != "" {
		return nil, fmt.Errorf("schema: trailing input %q after type reference", rest)
	}
	return t, nil
}

func parseTypeStringPrefix(s string) (*ast.Type, string, error) {
	if s == "" {
		return nil, "", fmt.Errorf("schema: empty type reference")
	}
	if s[0] == '[' {
		elem, rest, err := parseTypeStringPrefix(s[1:])
		if err != nil {
			return nil, "", err
		}
		if !strings.HasPrefix(rest, "]") {
			return nil, "", fmt.Errorf("schema: unterminated list type in %q", s)
		}
		rest = rest[1:]
		nonNull := false
		if strings.HasPrefix(rest, "!") {
			nonNull = true
			rest = rest[1:]
		}
		return &ast.Type{Elem: elem, NonNull: nonNull}, rest, nil
	}
	i := 0
	for i < len(s) && s[i] != '!' && s[i] != ']' {
		i++
	}
	name := s[:i]
	rest := s[i:]
	if name == "" {
		return nil, "", fmt.Errorf("schema: missing type name in %q", s)
	}
	nonNull := false
	if strings.HasPrefix(rest, "!") {
		nonNull = true
		rest = rest[1:]
	}
	return &ast.Type{NamedType: name, NonNull: nonNull}, rest, nil
}
