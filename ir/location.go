// Package ir is the compiler's intermediate representation: Location
// values, the closed set of Expression variants, and the closed set of
// basic Block variants that together make up a compiled query (§3).
package ir

import "strings"

const pathSep = "\x00"

// Location identifies a point in the query by a non-empty ordered sequence
// of edge-name steps, an optional terminal field, and a visit counter that
// distinguishes re-entries after an @optional traversal is revisited
// (§3.1). Location is an immutable value type; two locations compare equal
// with == iff their steps, field, and visit counter all match.
type Location struct {
	path  string // steps joined by pathSep; never empty
	field string // "" if this location names a vertex, not a field
	visit int
}

// RootLocation returns the location of the query root, named after the
// root vertex type.
func RootLocation(rootTypeName string) Location {
	return Location{path: rootTypeName}
}

// NavigateToSubpath returns a new location one edge-step further than l,
// with any terminal field cleared and the visit counter reset: entering a
// new vertex always starts at visit 0.
func (l Location) NavigateToSubpath(edge string) Location {
	return Location{path: l.path + pathSep + edge}
}

// NavigateToField returns a new location identical to l but naming a
// terminal field at the current vertex.
func (l Location) NavigateToField(name string) Location {
	return Location{path: l.path, field: name, visit: l.visit}
}

// AtVertex strips any terminal field, returning the location of the vertex
// that owns it. A no-op if l already names a vertex.
func (l Location) AtVertex() Location {
	if l.field == "" {
		return l
	}
	return Location{path: l.path, visit: l.visit}
}

// Revisit increments the visit counter, producing a new location distinct
// from every previous mark at the same path. Used when re-marking a vertex
// before entering an @optional traversal that followed earlier sibling
// traversals (§4.3 step 2).
func (l Location) Revisit() Location {
	return Location{path: l.path, field: l.field, visit: l.visit + 1}
}

// Field returns the terminal field name and whether one is set.
func (l Location) Field() (string, bool) {
	return l.field, l.field != ""
}

// VisitCounter returns the location's visit counter.
func (l Location) VisitCounter() int { return l.visit }

// Segments returns the ordered edge-name steps making up the location's
// path, excluding the terminal field.
func (l Location) Segments() []string {
	return strings.Split(l.path, pathSep)
}

// String renders a human-readable dotted form, e.g. "Animal.out_Animal_ParentOf.name#1".
func (l Location) String() string {
	s := strings.ReplaceAll(l.path, pathSep, ".")
	if l.field != "" {
		s += "." + l.field
	}
	if l.visit > 0 {
		s += "#" + itoa(l.visit)
	}
	return s
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	neg := n < 0
	if neg {
		n = -n
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	if neg {
		i--
		buf[i] = '-'
	}
	return string(buf[i:])
}

// FoldScopeLocation is a Location plus the edge step that opened the fold
// plus an inner path within the fold (§3.1). Two FoldScopeLocations compare
// equal with == iff all components match.
type FoldScopeLocation struct {
	base     Location // the vertex location at which @fold was declared
	foldEdge string    // the edge-name step that opened the fold
	inner    string    // inner path steps within the fold, joined by pathSep
}

// NewFoldScopeLocation returns the fold-scope location for a fold opened by
// traversing foldEdge from base.
func NewFoldScopeLocation(base Location, foldEdge string) FoldScopeLocation {
	return FoldScopeLocation{base: base, foldEdge: foldEdge}
}

// NavigateToSubpath returns a new fold-scope location one step further
// inside the fold.
func (f FoldScopeLocation) NavigateToSubpath(edge string) FoldScopeLocation {
	if f.inner == "" {
		return FoldScopeLocation{base: f.base, foldEdge: f.foldEdge, inner: edge}
	}
	return FoldScopeLocation{base: f.base, foldEdge: f.foldEdge, inner: f.inner + pathSep + edge}
}

// Base returns the vertex location at which the fold was opened.
func (f FoldScopeLocation) Base() Location { return f.base }

// FoldEdge returns the edge-name step that opened the fold.
func (f FoldScopeLocation) FoldEdge() string { return f.foldEdge }

// String renders a human-readable form of the fold-scope location.
func (f FoldScopeLocation) String() string {
	s := f.base.String() + "/" + f.foldEdge
	if f.inner != "" {
		s += "." + strings.ReplaceAll(f.inner, pathSep, ".")
	}
	return s
}
