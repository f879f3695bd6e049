package ir

import (
	"fmt"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
)

// Expression is the closed set of scalar-valued expression nodes that may
// appear inside a Filter block's predicate or a ConstructResult block's
// output map (§3.2). The interface is sealed: expr() may only be
// implemented by the types in this file.
type Expression interface {
	expr()
	// String renders the expression in a stable, human-readable debug form.
	String() string
}

// ExpressionsEqual reports whether two expressions are structurally equal:
// same variant, same field values, recursively for composite expressions.
func ExpressionsEqual(a, b Expression) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	switch av := a.(type) {
	case LocalField:
		bv, ok := b.(LocalField)
		return ok && av.FieldName == bv.FieldName && sameType(av.FieldType, bv.FieldType)
	case ContextField:
		bv, ok := b.(ContextField)
		return ok && av.Location == bv.Location && av.FieldName == bv.FieldName && sameType(av.FieldType, bv.FieldType)
	case ContextFieldExistence:
		bv, ok := b.(ContextFieldExistence)
		return ok && av.Location == bv.Location
	case Variable:
		bv, ok := b.(Variable)
		return ok && av.VariableName == bv.VariableName && sameType(av.VariableType, bv.VariableType)
	case OutputContextField:
		bv, ok := b.(OutputContextField)
		return ok && av.Location == bv.Location && av.FieldName == bv.FieldName && sameType(av.FieldType, bv.FieldType)
	case FoldedOutputContextField:
		bv, ok := b.(FoldedOutputContextField)
		return ok && av.Fold == bv.Fold && av.FieldName == bv.FieldName && sameType(av.FieldType, bv.FieldType)
	case TernaryConditional:
		bv, ok := b.(TernaryConditional)
		return ok && ExpressionsEqual(av.Predicate, bv.Predicate) &&
			ExpressionsEqual(av.IfTrue, bv.IfTrue) && ExpressionsEqual(av.IfFalse, bv.IfFalse)
	case BinaryComposition:
		bv, ok := b.(BinaryComposition)
		return ok && av.Operator == bv.Operator &&
			ExpressionsEqual(av.Left, bv.Left) && ExpressionsEqual(av.Right, bv.Right)
	case UnaryTransformation:
		bv, ok := b.(UnaryTransformation)
		return ok && av.Operator == bv.Operator && ExpressionsEqual(av.Operand, bv.Operand)
	case NullLiteral:
		_, ok := b.(NullLiteral)
		return ok
	case TrueLiteral:
		_, ok := b.(TrueLiteral)
		return ok
	case FalseLiteral:
		_, ok := b.(FalseLiteral)
		return ok
	case ZeroLiteral:
		_, ok := b.(ZeroLiteral)
		return ok
	default:
		return false
	}
}

// sameType compares two GraphQL type references by their printed form.
func sameType(a, b *ast.Type) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.String() == b.String()
}

// LocalField references a property field of the vertex currently being
// visited, before that vertex has been marked (e.g. inside the @filter
// directive's own scope, which applies before MarkLocation is emitted).
type LocalField struct {
	FieldName string
	FieldType *ast.Type
}

func (LocalField) expr() {}
func (f LocalField) String() string { return fmt.Sprintf("LocalField(%s)", f.FieldName) }

// ContextField references a property field at a previously marked location,
// reached via a @tag directive's bookkeeping.
type ContextField struct {
	Location  Location
	FieldName string
	FieldType *ast.Type
}

func (ContextField) expr() {}
func (f ContextField) String() string {
	return fmt.Sprintf("ContextField(%s.%s)", f.Location, f.FieldName)
}

// ContextFieldExistence tests whether a previously marked location exists,
// used to guard a ContextField reference into an @optional scope that may
// not have been traversed.
type ContextFieldExistence struct {
	Location Location
}

func (ContextFieldExistence) expr() {}
func (f ContextFieldExistence) String() string {
	return fmt.Sprintf("ContextFieldExistence(%s)", f.Location)
}

// Variable references a runtime parameter supplied by the caller at
// execution time ($-prefixed argument in a @filter directive).
type Variable struct {
	VariableName string
	VariableType *ast.Type
}

func (Variable) expr() {}
func (v Variable) String() string { return fmt.Sprintf("Variable(%s)", v.VariableName) }

// OutputContextField references a field selected with @output: it reads the
// value recorded at Location for inclusion in the query's result row.
type OutputContextField struct {
	Location  Location
	FieldName string
	FieldType *ast.Type
}

func (OutputContextField) expr() {}
func (f OutputContextField) String() string {
	return fmt.Sprintf("OutputContextField(%s.%s)", f.Location, f.FieldName)
}

// FoldedOutputContextField references a field selected with @output inside
// an @fold scope: its value is a list, one entry per element folded.
type FoldedOutputContextField struct {
	Fold      FoldScopeLocation
	FieldName string
	FieldType *ast.Type // the list element type; the output's declared type is a list of this
}

func (FoldedOutputContextField) expr() {}
func (f FoldedOutputContextField) String() string {
	return fmt.Sprintf("FoldedOutputContextField(%s.%s)", f.Fold, f.FieldName)
}

// TernaryConditional evaluates IfTrue or IfFalse depending on Predicate; used
// to guard a ContextField reference to a location that might not exist with
// a ContextFieldExistence test.
type TernaryConditional struct {
	Predicate Expression
	IfTrue    Expression
	IfFalse   Expression
}

func (TernaryConditional) expr() {}
func (t TernaryConditional) String() string {
	return fmt.Sprintf("TernaryConditional(%s ? %s : %s)", t.Predicate, t.IfTrue, t.IfFalse)
}

// BinaryOperator is the closed set of operators a BinaryComposition may use.
type BinaryOperator string

// Binary operators recognized by expressions and the filter processor.
const (
	OpEquals             BinaryOperator = "="
	OpNotEquals          BinaryOperator = "!="
	OpLessThan           BinaryOperator = "<"
	OpLessThanOrEqual    BinaryOperator = "<="
	OpGreaterThan        BinaryOperator = ">"
	OpGreaterThanOrEqual BinaryOperator = ">="
	OpAnd                BinaryOperator = "&&"
	OpOr                 BinaryOperator = "||"
	OpContains           BinaryOperator = "contains"
	OpNotContains        BinaryOperator = "not_contains"
	OpIntersects         BinaryOperator = "intersects"
	OpHasSubstring       BinaryOperator = "has_substring"
	OpStartsWith         BinaryOperator = "starts_with"
	OpEndsWith           BinaryOperator = "ends_with"
	OpIn                 BinaryOperator = "in_collection"
)

// BinaryComposition applies Operator to Left and Right.
type BinaryComposition struct {
	Operator BinaryOperator
	Left     Expression
	Right    Expression
}

func (BinaryComposition) expr() {}
func (b BinaryComposition) String() string {
	return fmt.Sprintf("BinaryComposition(%s, %s, %s)", b.Operator, b.Left, b.Right)
}

// UnaryOperator is the closed set of operators a UnaryTransformation may use.
type UnaryOperator string

// Unary operators recognized by expressions and the filter processor.
const (
	OpIsNull    UnaryOperator = "is_null"
	OpIsNotNull UnaryOperator = "is_not_null"
	OpNot       UnaryOperator = "!"
	OpSize      UnaryOperator = "size"
)

// UnaryTransformation applies Operator to Operand.
type UnaryTransformation struct {
	Operator UnaryOperator
	Operand  Expression
}

func (UnaryTransformation) expr() {}
func (u UnaryTransformation) String() string {
	return fmt.Sprintf("UnaryTransformation(%s, %s)", u.Operator, u.Operand)
}

// NullLiteral is the GraphQL null value.
type NullLiteral struct{}

func (NullLiteral) expr()          {}
func (NullLiteral) String() string { return "NullLiteral" }

// TrueLiteral is the boolean literal true.
type TrueLiteral struct{}

func (TrueLiteral) expr()          {}
func (TrueLiteral) String() string { return "TrueLiteral" }

// FalseLiteral is the boolean literal false.
type FalseLiteral struct{}

func (FalseLiteral) expr()          {}
func (FalseLiteral) String() string { return "FalseLiteral" }

// ZeroLiteral is the integer literal 0, used by has_edge_degree's
// zero-degree special case (§4.2).
type ZeroLiteral struct{}

func (ZeroLiteral) expr()          {}
func (ZeroLiteral) String() string { return "ZeroLiteral" }

// joinExpressions is a small formatting helper shared by block String methods.
func joinExpressions(exprs []Expression) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
