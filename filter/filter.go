// Package filter implements the filter operator processor (§4.2): it turns
// a single @filter directive, plus the schema context of the field it
// decorates, into an ir.Filter block.
package filter

import (
	"strings"
	"unicode"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/gqlcompile/compilerr"
	"github.com/syssam/gqlcompile/ir"
)

// Info describes the field a @filter directive decorates: enough for the
// processor to validate operand kind/arity and build the right expression
// shapes, without depending on the orchestrator's own context type.
type Info struct {
	Directive *ast.Directive

	// FieldName is the local name of the field the filter operates against:
	// a property name for scalar/list-field operators, or a vertex field
	// name (edge name) for has_edge_degree/name_or_alias.
	FieldName string
	FieldType *ast.Type

	// IsVertexField is true when FieldName names a vertex field rather than
	// a property field (has_edge_degree, name_or_alias).
	IsVertexField bool

	// IsListField is true when FieldName's type (stripped of NonNull) is a
	// list, relevant to contains/not_contains/intersects.
	IsListField bool

	// ListElemType is FieldType's list element type, set iff IsListField.
	ListElemType *ast.Type

	// IsUnionType is true when FieldType (or, for a vertex field, its
	// target vertex type) resolves to a union; name_or_alias rejects this.
	IsUnionType bool

	// NameField / AliasField describe the target vertex type's "name" and
	// "alias" fields, required by name_or_alias; nil if absent.
	NameField  *ast.Type
	AliasField *ast.Type
}

// FilterInfo records a successfully processed filter for downstream
// diagnostics, one entry per location it applied at (SPEC_FULL.md
// SUPPLEMENTED FEATURES; filters.py record_filter_info).
type FilterInfo struct {
	Fields []string
	OpName string
	Args   []string
}

// TagRef is what Context.ResolveTag returns for a declared @tag.
type TagRef struct {
	Location   ir.Location
	FieldName  string
	FieldType  *ast.Type
	InOptional bool
}

// Context is the subset of the orchestrator's compilation context the
// filter processor needs: tag resolution and runtime-input registration.
// Defined here (rather than imported from package compiler) so that
// compiler, not filter, owns the dependency edge between the two packages.
type Context interface {
	ResolveTag(name string) (TagRef, bool)
	RegisterInput(name string, t *ast.Type) error
}

// unaryOperators take zero value arguments.
var unaryOperators = map[string]bool{
	"is_null":     true,
	"is_not_null": true,
}

// ProcessFilter dispatches a @filter directive to its operator handler,
// returning the Filter block plus a FilterInfo record for diagnostics.
// location is the vertex location the filter's operand expressions should
// be considered local to (the parent scope for an outer-scope operator).
func ProcessFilter(info Info, location ir.Location, ctx Context) (ir.Block, FilterInfo, error) {
	opName, values, err := opNameAndValues(info.Directive)
	if err != nil {
		return nil, FilterInfo{}, err
	}

	record := FilterInfo{Fields: []string{info.FieldName}, OpName: opName, Args: values}

	handler, ok := operatorHandlers[opName]
	if !ok {
		return nil, FilterInfo{}, compilerr.NewCompilationError(location.String(), "unknown filter operator %q", opName)
	}

	predicate, err := handler(info, location, ctx, values)
	if err != nil {
		return nil, FilterInfo{}, err
	}
	return ir.Filter{Predicate: predicate}, record, nil
}

// opNameAndValues extracts and validates the op_name/value arguments on a
// @filter directive (SPEC_FULL.md SUPPLEMENTED FEATURES: UNARY_FILTERS).
func opNameAndValues(d *ast.Directive) (string, []string, error) {
	var opName string
	var values []string
	for _, a := range d.Arguments {
		switch a.Name {
		case "op_name":
			opName = a.Value.Raw
		case "value":
			if a.Value.Kind == ast.ListValue {
				for _, child := range a.Value.Children {
					values = append(values, child.Value.Raw)
				}
			}
		}
	}
	if opName == "" {
		return "", nil, compilerr.NewCompilationError("", "@filter directive is missing required argument op_name")
	}
	if unaryOperators[opName] {
		if len(values) != 0 {
			return "", nil, compilerr.NewCompilationError("", "filter operator %q takes no value arguments, got %d", opName, len(values))
		}
	} else if len(values) == 0 {
		return "", nil, compilerr.NewCompilationError("", "filter operator %q requires at least one value argument", opName)
	}
	return opName, values, nil
}

type handlerFunc func(info Info, location ir.Location, ctx Context, values []string) (ir.Expression, error)

var operatorHandlers = map[string]handlerFunc{
	"=":                   comparisonHandler(ir.OpEquals),
	"!=":                  comparisonHandler(ir.OpNotEquals),
	"<":                   comparisonHandler(ir.OpLessThan),
	"<=":                  comparisonHandler(ir.OpLessThanOrEqual),
	">":                   comparisonHandler(ir.OpGreaterThan),
	">=":                  comparisonHandler(ir.OpGreaterThanOrEqual),
	"between":             betweenHandler,
	"in_collection":       collectionHandler(true),
	"not_in_collection":   collectionHandler(false),
	"has_substring":       stringHandler(ir.OpHasSubstring),
	"starts_with":         stringHandler(ir.OpStartsWith),
	"ends_with":           stringHandler(ir.OpEndsWith),
	"contains":            listFieldHandler(ir.OpContains),
	"not_contains":        listFieldHandler(ir.OpNotContains),
	"intersects":          intersectsHandler,
	"is_null":             unaryNullHandler(ir.OpIsNull),
	"is_not_null":         unaryNullHandler(ir.OpIsNotNull),
	"has_edge_degree":     hasEdgeDegreeHandler,
	"name_or_alias":       nameOrAliasHandler,
}

func comparisonHandler(op ir.BinaryOperator) handlerFunc {
	return func(info Info, location ir.Location, ctx Context, values []string) (ir.Expression, error) {
		argExpr, nonExistence, err := representArgument(location, ctx, values[0], info.FieldType)
		if err != nil {
			return nil, err
		}
		predicate := ir.BinaryComposition{Operator: op, Left: ir.LocalField{FieldName: info.FieldName, FieldType: info.FieldType}, Right: argExpr}
		return wrapNonExistence(nonExistence, predicate), nil
	}
}

func betweenHandler(info Info, location ir.Location, ctx Context, values []string) (ir.Expression, error) {
	lowExpr, lowGuard, err := representArgument(location, ctx, values[0], info.FieldType)
	if err != nil {
		return nil, err
	}
	highExpr, highGuard, err := representArgument(location, ctx, values[1], info.FieldType)
	if err != nil {
		return nil, err
	}
	lowClause := wrapNonExistence(lowGuard, ir.BinaryComposition{
		Operator: ir.OpGreaterThanOrEqual,
		Left:     ir.LocalField{FieldName: info.FieldName, FieldType: info.FieldType},
		Right:    lowExpr,
	})
	highClause := wrapNonExistence(highGuard, ir.BinaryComposition{
		Operator: ir.OpLessThanOrEqual,
		Left:     ir.LocalField{FieldName: info.FieldName, FieldType: info.FieldType},
		Right:    highExpr,
	})
	return ir.BinaryComposition{Operator: ir.OpAnd, Left: lowClause, Right: highClause}, nil
}

func collectionHandler(membership bool) handlerFunc {
	return func(info Info, location ir.Location, ctx Context, values []string) (ir.Expression, error) {
		listType := &ast.Type{Elem: info.FieldType}
		argExpr, nonExistence, err := representArgument(location, ctx, values[0], listType)
		if err != nil {
			return nil, err
		}
		op := ir.OpContains
		if !membership {
			op = ir.OpNotContains
		}
		predicate := ir.BinaryComposition{Operator: op, Left: argExpr, Right: ir.LocalField{FieldName: info.FieldName, FieldType: info.FieldType}}
		return wrapNonExistence(nonExistence, predicate), nil
	}
}

func stringHandler(op ir.BinaryOperator) handlerFunc {
	return func(info Info, location ir.Location, ctx Context, values []string) (ir.Expression, error) {
		argExpr, nonExistence, err := representArgument(location, ctx, values[0], info.FieldType)
		if err != nil {
			return nil, err
		}
		predicate := ir.BinaryComposition{Operator: op, Left: ir.LocalField{FieldName: info.FieldName, FieldType: info.FieldType}, Right: argExpr}
		return wrapNonExistence(nonExistence, predicate), nil
	}
}

func listFieldHandler(op ir.BinaryOperator) handlerFunc {
	return func(info Info, location ir.Location, ctx Context, values []string) (ir.Expression, error) {
		if !info.IsListField {
			return nil, compilerr.NewCompilationError(location.String(), "filter operator %q requires a list field", op)
		}
		argExpr, nonExistence, err := representArgument(location, ctx, values[0], info.ListElemType)
		if err != nil {
			return nil, err
		}
		predicate := ir.BinaryComposition{Operator: op, Left: ir.LocalField{FieldName: info.FieldName, FieldType: info.FieldType}, Right: argExpr}
		return wrapNonExistence(nonExistence, predicate), nil
	}
}

func intersectsHandler(info Info, location ir.Location, ctx Context, values []string) (ir.Expression, error) {
	if !info.IsListField {
		return nil, compilerr.NewCompilationError(location.String(), "filter operator \"intersects\" requires a list field")
	}
	listType := &ast.Type{Elem: info.ListElemType}
	argExpr, nonExistence, err := representArgument(location, ctx, values[0], listType)
	if err != nil {
		return nil, err
	}
	predicate := ir.BinaryComposition{Operator: ir.OpIntersects, Left: ir.LocalField{FieldName: info.FieldName, FieldType: info.FieldType}, Right: argExpr}
	return wrapNonExistence(nonExistence, predicate), nil
}

func unaryNullHandler(op ir.UnaryOperator) handlerFunc {
	return func(info Info, location ir.Location, ctx Context, values []string) (ir.Expression, error) {
		compareOp := ir.OpEquals
		if op == ir.OpIsNotNull {
			compareOp = ir.OpNotEquals
		}
		return ir.BinaryComposition{
			Operator: compareOp,
			Left:     ir.LocalField{FieldName: info.FieldName, FieldType: info.FieldType},
			Right:    ir.NullLiteral{},
		}, nil
	}
}

// hacked_field_type in the grounding source: has_edge_degree compares a
// vertex field as if it were a list, regardless of its declared
// cardinality, since the difference only communicates edge arity.
func hasEdgeDegreeHandler(info Info, location ir.Location, ctx Context, values []string) (ir.Expression, error) {
	if !info.IsVertexField {
		return nil, compilerr.NewCompilationError(location.String(), "\"has_edge_degree\" may only be applied to a vertex field")
	}
	if !strings.HasPrefix(values[0], "$") {
		return nil, compilerr.NewInvalidArgumentError(values[0], "\"has_edge_degree\" only supports runtime variable arguments")
	}
	intType := &ast.Type{NamedType: "Int", NonNull: true}
	argExpr, nonExistence, err := representArgument(location, ctx, values[0], intType)
	if err != nil {
		return nil, err
	}
	if nonExistence != nil {
		return nil, compilerr.NewInternalError("has_edge_degree argument unexpectedly produced a non-existence guard")
	}
	listType := &ast.Type{Elem: info.FieldType}
	edgeField := ir.LocalField{FieldName: info.FieldName, FieldType: listType}

	argumentIsZero := ir.BinaryComposition{Operator: ir.OpEquals, Left: argExpr, Right: ir.ZeroLiteral{}}
	edgeIsNull := ir.BinaryComposition{Operator: ir.OpEquals, Left: edgeField, Right: ir.NullLiteral{}}
	degreeIsZero := ir.BinaryComposition{Operator: ir.OpAnd, Left: argumentIsZero, Right: edgeIsNull}

	edgeIsNotNull := ir.BinaryComposition{Operator: ir.OpNotEquals, Left: edgeField, Right: ir.NullLiteral{}}
	degree := ir.UnaryTransformation{Operator: ir.OpSize, Operand: edgeField}
	degreeMatches := ir.BinaryComposition{Operator: ir.OpEquals, Left: degree, Right: argExpr}
	degreeIsNonZero := ir.BinaryComposition{Operator: ir.OpAnd, Left: edgeIsNotNull, Right: degreeMatches}

	return ir.BinaryComposition{Operator: ir.OpOr, Left: degreeIsZero, Right: degreeIsNonZero}, nil
}

func nameOrAliasHandler(info Info, location ir.Location, ctx Context, values []string) (ir.Expression, error) {
	if !info.IsVertexField {
		return nil, compilerr.NewCompilationError(location.String(), "\"name_or_alias\" may only be applied to a vertex field")
	}
	if info.IsUnionType {
		return nil, compilerr.NewCompilationError(location.String(), "\"name_or_alias\" cannot apply to a union type")
	}
	if info.NameField == nil {
		return nil, compilerr.NewCompilationError(location.String(), "\"name_or_alias\" requires a scalar \"name\" field")
	}
	if info.AliasField == nil {
		return nil, compilerr.NewCompilationError(location.String(), "\"name_or_alias\" requires a list \"alias\" field")
	}

	argExpr, nonExistence, err := representArgument(location, ctx, values[0], info.NameField)
	if err != nil {
		return nil, err
	}
	checkName := ir.BinaryComposition{Operator: ir.OpEquals, Left: ir.LocalField{FieldName: "name", FieldType: info.NameField}, Right: argExpr}
	checkAlias := ir.BinaryComposition{Operator: ir.OpContains, Left: ir.LocalField{FieldName: "alias", FieldType: info.AliasField}, Right: argExpr}
	predicate := ir.BinaryComposition{Operator: ir.OpOr, Left: checkName, Right: checkAlias}
	return wrapNonExistence(nonExistence, predicate), nil
}

// wrapNonExistence ORs predicate with guard, if guard is non-nil.
func wrapNonExistence(guard ir.Expression, predicate ir.Expression) ir.Expression {
	if guard == nil {
		return predicate
	}
	return ir.BinaryComposition{Operator: ir.OpOr, Left: guard, Right: predicate}
}

// representArgument turns a single "$runtime" or "%tagged" argument name
// into its Expression, plus a non-existence guard expression when the
// argument resolves to a tag declared inside an @optional scope (§4.2
// argument-kind rules; filters.py _represent_argument).
func representArgument(filterLocation ir.Location, ctx Context, argument string, inferredType *ast.Type) (ir.Expression, ir.Expression, error) {
	if len(argument) < 2 {
		return nil, nil, compilerr.NewCompilationError(filterLocation.String(), "invalid filter argument %q", argument)
	}
	name := argument[1:]

	switch argument[0] {
	case '$':
		if !isValidIdentifier(name) {
			return nil, nil, compilerr.NewInvalidArgumentError(argument, "runtime argument name is not a valid identifier")
		}
		if err := ctx.RegisterInput(name, inferredType); err != nil {
			return nil, nil, err
		}
		return ir.Variable{VariableName: argument, VariableType: inferredType}, nil, nil

	case '%':
		if !isValidIdentifier(name) {
			return nil, nil, compilerr.NewInvalidArgumentError(argument, "tagged argument name is not a valid identifier")
		}
		tag, ok := ctx.ResolveTag(name)
		if !ok {
			return nil, nil, compilerr.NewCompilationError(filterLocation.String(), "undeclared tag used: %s", argument)
		}
		if !typesEqual(tag.FieldType, inferredType) {
			return nil, nil, compilerr.NewCompilationError(filterLocation.String(),
				"tagged argument %q has type %s, but the filter requires %s", argument, tag.FieldType, inferredType)
		}
		fieldIsLocal := filterLocation.AtVertex() == tag.Location.AtVertex()

		var guard ir.Expression
		if tag.InOptional {
			if fieldIsLocal {
				guard = ir.FalseLiteral{}
			} else {
				guard = ir.BinaryComposition{
					Operator: ir.OpEquals,
					Left:     ir.ContextFieldExistence{Location: tag.Location.AtVertex()},
					Right:    ir.FalseLiteral{},
				}
			}
		}

		var representation ir.Expression
		if fieldIsLocal {
			representation = ir.LocalField{FieldName: tag.FieldName, FieldType: inferredType}
		} else {
			representation = ir.ContextField{Location: tag.Location, FieldName: tag.FieldName, FieldType: inferredType}
		}
		return representation, guard, nil

	default:
		return nil, nil, compilerr.NewCompilationError(filterLocation.String(),
			"invalid argument %q: only runtime ($) and tagged (%%) arguments are supported", argument)
	}
}

// typesEqual mirrors compiler/context.go's same-named helper: two types are
// equal when their string representations match, without walking wrapper
// structure explicitly.
func typesEqual(a, b *ast.Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		if r == '_' || unicode.IsLetter(r) {
			continue
		}
		if unicode.IsDigit(r) && i > 0 {
			continue
		}
		return false
	}
	return true
}
