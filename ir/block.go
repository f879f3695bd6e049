package ir

import (
	"fmt"
	"sort"
	"strings"
)

// Block is the closed set of basic-block nodes making up a compiled query's
// linear IR sequence (§3.3). Sealed: block() may only be implemented by the
// types in this file.
type Block interface {
	block()
	// String renders the block in a stable, human-readable debug form.
	String() string
}

// BlocksEqual reports whether two blocks are structurally equal.
func BlocksEqual(a, b Block) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case QueryRoot:
		bv, ok := b.(QueryRoot)
		return ok && stringSlicesEqual(av.StartTypes, bv.StartTypes)
	case MarkLocation:
		bv, ok := b.(MarkLocation)
		return ok && av.Location == bv.Location
	case Traverse:
		bv, ok := b.(Traverse)
		return ok && av.Direction == bv.Direction && av.EdgeName == bv.EdgeName && av.Optional == bv.Optional && av.WithinOptionalScope == bv.WithinOptionalScope
	case Recurse:
		bv, ok := b.(Recurse)
		return ok && av.Direction == bv.Direction && av.EdgeName == bv.EdgeName && av.Depth == bv.Depth && av.WithinOptionalScope == bv.WithinOptionalScope
	case Backtrack:
		bv, ok := b.(Backtrack)
		return ok && av.Location == bv.Location && av.Optional == bv.Optional
	case Fold:
		bv, ok := b.(Fold)
		return ok && av.FoldScopeLocation == bv.FoldScopeLocation
	case Unfold:
		_, ok := b.(Unfold)
		return ok
	case EndOptional:
		_, ok := b.(EndOptional)
		return ok
	case CoerceType:
		bv, ok := b.(CoerceType)
		return ok && av.TargetType == bv.TargetType
	case Filter:
		bv, ok := b.(Filter)
		return ok && ExpressionsEqual(av.Predicate, bv.Predicate)
	case OutputSource:
		_, ok := b.(OutputSource)
		return ok
	case ConstructResult:
		bv, ok := b.(ConstructResult)
		return ok && fieldMapsEqual(av.Fields, bv.Fields)
	default:
		return false
	}
}

func stringSlicesEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func fieldMapsEqual(a, b map[string]Expression) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		other, ok := b[k]
		if !ok || !ExpressionsEqual(v, other) {
			return false
		}
	}
	return true
}

func sortedFieldNames(fields map[string]Expression) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// QueryRoot opens the compiled sequence, naming the possible root vertex
// types (more than one only when the root itself is a union member set via
// a type-equivalence hint).
type QueryRoot struct {
	StartTypes []string
}

func (QueryRoot) block() {}
func (q QueryRoot) String() string {
	return fmt.Sprintf("QueryRoot(%s)", strings.Join(q.StartTypes, ", "))
}

// MarkLocation records the current Block position as Location, making it
// available to later ContextField/OutputContextField/ContextFieldExistence
// references.
type MarkLocation struct {
	Location Location
}

func (MarkLocation) block() {}
func (m MarkLocation) String() string { return fmt.Sprintf("MarkLocation(%s)", m.Location) }

// Traverse moves from the current vertex across an edge, in Direction
// ("out" or "in"), to an adjacent vertex. Optional is true when the
// traversal itself came from a @optional directive and must be matched by
// a later EndOptional. WithinOptionalScope is true when this traversal is
// nested inside an ancestor's @optional scope, even though this particular
// edge is not itself optional — computed as `'optional' in context and not
// edge_traversal_is_optional` in the grounding source, since a back-end
// needs to tell the two apart (a descendant of an optional vertex may not
// exist at all).
type Traverse struct {
	Direction           string
	EdgeName            string
	Optional            bool
	WithinOptionalScope bool
}

func (Traverse) block() {}
func (t Traverse) String() string {
	opt := ""
	if t.Optional {
		opt = ", optional=true"
	}
	if t.WithinOptionalScope {
		opt += ", within_optional_scope=true"
	}
	return fmt.Sprintf("Traverse(%s, %s%s)", t.Direction, t.EdgeName, opt)
}

// Recurse traverses the named edge repeatedly up to Depth times (inclusive
// of depth 0, the starting vertex itself), collecting every vertex visited
// along the way (§4.3, @recurse). WithinOptionalScope carries the same
// meaning as on Traverse: this recursion is nested inside an ancestor's
// @optional scope.
type Recurse struct {
	Direction           string
	EdgeName            string
	Depth               int
	WithinOptionalScope bool
}

func (Recurse) block() {}
func (r Recurse) String() string {
	opt := ""
	if r.WithinOptionalScope {
		opt = ", within_optional_scope=true"
	}
	return fmt.Sprintf("Recurse(%s, %s, depth=%d%s)", r.Direction, r.EdgeName, r.Depth, opt)
}

// Backtrack returns to a previously marked vertex location to resume
// sibling traversals. Optional marks a backtrack out of an @optional scope
// that was never entered (the traversed edge did not exist).
type Backtrack struct {
	Location Location
	Optional bool
}

func (Backtrack) block() {}
func (b Backtrack) String() string {
	opt := ""
	if b.Optional {
		opt = ", optional=true"
	}
	return fmt.Sprintf("Backtrack(%s%s)", b.Location, opt)
}

// Fold opens a fold scope at FoldScopeLocation: subsequent blocks up to the
// matching Unfold operate within the fold, collecting one entry per
// element of the folded edge instead of branching the query (§4.3, @fold).
type Fold struct {
	FoldScopeLocation FoldScopeLocation
}

func (Fold) block() {}
func (f Fold) String() string { return fmt.Sprintf("Fold(%s)", f.FoldScopeLocation) }

// Unfold closes the most recently opened Fold scope.
type Unfold struct{}

func (Unfold) block()          {}
func (Unfold) String() string { return "Unfold" }

// EndOptional closes the most recently opened optional Traverse scope,
// regardless of whether the traversed edge existed.
type EndOptional struct{}

func (EndOptional) block()          {}
func (EndOptional) String() string { return "EndOptional" }

// CoerceType narrows the current vertex's runtime type to TargetType,
// emitted for an inline fragment (§4.3 step 2c).
type CoerceType struct {
	TargetType string
}

func (CoerceType) block() {}
func (c CoerceType) String() string { return fmt.Sprintf("CoerceType(%s)", c.TargetType) }

// Filter restricts the current vertex (or, for an outer-scope operator like
// has_edge_degree, an edge originating from it) to those satisfying
// Predicate (§4.2).
type Filter struct {
	Predicate Expression
}

func (Filter) block() {}
func (f Filter) String() string { return fmt.Sprintf("Filter(%s)", f.Predicate) }

// OutputSource marks the vertex reached via an @output_source directive as
// the query's canonical result source, relevant only to back-ends that
// distinguish a single output row source from filtering scopes.
type OutputSource struct{}

func (OutputSource) block()          {}
func (OutputSource) String() string { return "OutputSource" }

// ConstructResult is the terminal block, assembling the query's named
// output columns from Fields.
type ConstructResult struct {
	Fields map[string]Expression
}

func (ConstructResult) block() {}
func (c ConstructResult) String() string {
	names := sortedFieldNames(c.Fields)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s: %s", name, c.Fields[name])
	}
	return fmt.Sprintf("ConstructResult(%s)", strings.Join(parts, ", "))
}
