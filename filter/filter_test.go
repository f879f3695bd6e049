package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/gqlcompile/ir"
)

// fakeContext is a minimal Context implementation for testing the filter
// processor in isolation from the compiler package.
type fakeContext struct {
	tags   map[string]TagRef
	inputs map[string]*ast.Type
}

func newFakeContext() *fakeContext {
	return &fakeContext{tags: map[string]TagRef{}, inputs: map[string]*ast.Type{}}
}

func (f *fakeContext) ResolveTag(name string) (TagRef, bool) {
	t, ok := f.tags[name]
	return t, ok
}

func (f *fakeContext) RegisterInput(name string, t *ast.Type) error {
	f.inputs[name] = t
	return nil
}

func filterDirective(opName string, values ...string) *ast.Directive {
	children := make(ast.ChildValueList, len(values))
	for i, v := range values {
		children[i] = &ast.ChildValue{Value: &ast.Value{Kind: ast.StringValue, Raw: v}}
	}
	return &ast.Directive{
		Name: "filter",
		Arguments: ast.ArgumentList{
			{Name: "op_name", Value: &ast.Value{Kind: ast.StringValue, Raw: opName}},
			{Name: "value", Value: &ast.Value{Kind: ast.ListValue, Children: children}},
		},
	}
}

func TestProcessFilter_ComparisonOperators(t *testing.T) {
	fieldType := &ast.Type{NamedType: "Int", NonNull: true}
	loc := ir.RootLocation("Animal")

	tests := []struct {
		name   string
		opName string
		op     ir.BinaryOperator
	}{
		{"equals", "=", ir.OpEquals},
		{"not_equals", "!=", ir.OpNotEquals},
		{"less_than", "<", ir.OpLessThan},
		{"less_or_equal", "<=", ir.OpLessThanOrEqual},
		{"greater_than", ">", ir.OpGreaterThan},
		{"greater_or_equal", ">=", ir.OpGreaterThanOrEqual},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := newFakeContext()
			info := Info{Directive: filterDirective(tt.opName, "$value"), FieldName: "net_worth", FieldType: fieldType}

			block, rec, err := ProcessFilter(info, loc, ctx)
			require.NoError(t, err)

			want := ir.Filter{Predicate: ir.BinaryComposition{
				Operator: tt.op,
				Left:     ir.LocalField{FieldName: "net_worth", FieldType: fieldType},
				Right:    ir.Variable{VariableName: "$value", VariableType: fieldType},
			}}
			assert.True(t, ir.BlocksEqual(want, block))
			assert.Equal(t, tt.opName, rec.OpName)
			assert.Equal(t, []string{"net_worth"}, rec.Fields)
			assert.Equal(t, fieldType, ctx.inputs["value"])
		})
	}
}

func TestProcessFilter_Between(t *testing.T) {
	fieldType := &ast.Type{NamedType: "Int", NonNull: true}
	loc := ir.RootLocation("Animal")
	ctx := newFakeContext()
	info := Info{Directive: filterDirective("between", "$lower", "$upper"), FieldName: "net_worth", FieldType: fieldType}

	block, _, err := ProcessFilter(info, loc, ctx)
	require.NoError(t, err)

	want := ir.Filter{Predicate: ir.BinaryComposition{
		Operator: ir.OpAnd,
		Left: ir.BinaryComposition{
			Operator: ir.OpGreaterThanOrEqual,
			Left:     ir.LocalField{FieldName: "net_worth", FieldType: fieldType},
			Right:    ir.Variable{VariableName: "$lower", VariableType: fieldType},
		},
		Right: ir.BinaryComposition{
			Operator: ir.OpLessThanOrEqual,
			Left:     ir.LocalField{FieldName: "net_worth", FieldType: fieldType},
			Right:    ir.Variable{VariableName: "$upper", VariableType: fieldType},
		},
	}}
	assert.True(t, ir.BlocksEqual(want, block))
	assert.Equal(t, fieldType, ctx.inputs["lower"])
	assert.Equal(t, fieldType, ctx.inputs["upper"])
}

func TestProcessFilter_TaggedArgumentTypeMismatch(t *testing.T) {
	intType := &ast.Type{NamedType: "Int", NonNull: true}
	stringType := &ast.Type{NamedType: "String"}
	loc := ir.RootLocation("Animal").NavigateToSubpath("out_Animal_ParentOf")

	ctx := newFakeContext()
	ctx.tags["parent_networth"] = TagRef{Location: ir.RootLocation("Animal"), FieldName: "net_worth", FieldType: intType}

	info := Info{Directive: filterDirective("=", "%parent_networth"), FieldName: "name", FieldType: stringType}

	_, _, err := ProcessFilter(info, loc, ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "has type")
}

func TestProcessFilter_TaggedArgumentSameVertex(t *testing.T) {
	nameType := &ast.Type{NamedType: "String"}
	loc := ir.RootLocation("Animal")
	ctx := newFakeContext()
	ctx.tags["self_name"] = TagRef{Location: loc, FieldName: "name", FieldType: nameType}

	info := Info{Directive: filterDirective("=", "%self_name"), FieldName: "alias_name", FieldType: nameType}
	block, _, err := ProcessFilter(info, loc, ctx)
	require.NoError(t, err)

	want := ir.Filter{Predicate: ir.BinaryComposition{
		Operator: ir.OpEquals,
		Left:     ir.LocalField{FieldName: "alias_name", FieldType: nameType},
		Right:    ir.LocalField{FieldName: "name", FieldType: nameType},
	}}
	assert.True(t, ir.BlocksEqual(want, block))
}

func TestProcessFilter_TaggedArgumentAcrossOptionalScope(t *testing.T) {
	nameType := &ast.Type{NamedType: "String"}
	parentLoc := ir.RootLocation("Animal").NavigateToSubpath("out_Animal_ParentOf")
	childLoc := parentLoc.NavigateToSubpath("out_Animal_ParentOf")

	ctx := newFakeContext()
	ctx.tags["parent_name"] = TagRef{Location: parentLoc, FieldName: "name", FieldType: nameType, InOptional: true}

	info := Info{Directive: filterDirective("=", "%parent_name"), FieldName: "name", FieldType: nameType}
	block, _, err := ProcessFilter(info, childLoc, ctx)
	require.NoError(t, err)

	f, ok := block.(ir.Filter)
	require.True(t, ok)
	outer, ok := f.Predicate.(ir.BinaryComposition)
	require.True(t, ok)
	assert.Equal(t, ir.OpOr, outer.Operator)

	guard, ok := outer.Left.(ir.BinaryComposition)
	require.True(t, ok)
	assert.Equal(t, ir.OpEquals, guard.Operator)
	existence, ok := guard.Left.(ir.ContextFieldExistence)
	require.True(t, ok)
	assert.Equal(t, parentLoc, existence.Location)
	_, ok = guard.Right.(ir.FalseLiteral)
	assert.True(t, ok)

	predicate, ok := outer.Right.(ir.BinaryComposition)
	require.True(t, ok)
	assert.Equal(t, ir.OpEquals, predicate.Operator)
	ctxField, ok := predicate.Right.(ir.ContextField)
	require.True(t, ok)
	assert.Equal(t, parentLoc, ctxField.Location)
}

func TestProcessFilter_HasEdgeDegree(t *testing.T) {
	animalListType := &ast.Type{Elem: &ast.Type{NamedType: "Animal"}}
	loc := ir.RootLocation("Animal")
	ctx := newFakeContext()
	info := Info{
		Directive:     filterDirective("has_edge_degree", "$num_parents"),
		FieldName:     "out_Animal_ParentOf",
		FieldType:     animalListType,
		IsVertexField: true,
	}

	block, rec, err := ProcessFilter(info, loc, ctx)
	require.NoError(t, err)
	assert.Equal(t, "has_edge_degree", rec.OpName)

	f, ok := block.(ir.Filter)
	require.True(t, ok)
	top, ok := f.Predicate.(ir.BinaryComposition)
	require.True(t, ok)
	assert.Equal(t, ir.OpOr, top.Operator)

	assert.Equal(t, &ast.Type{NamedType: "Int", NonNull: true}, ctx.inputs["num_parents"])
}

func TestProcessFilter_HasEdgeDegreeRequiresRuntimeArgument(t *testing.T) {
	loc := ir.RootLocation("Animal")
	ctx := newFakeContext()
	info := Info{Directive: filterDirective("has_edge_degree", "2"), FieldName: "out_Animal_ParentOf", IsVertexField: true}

	_, _, err := ProcessFilter(info, loc, ctx)
	require.Error(t, err)
}

func TestProcessFilter_UnknownOperator(t *testing.T) {
	loc := ir.RootLocation("Animal")
	ctx := newFakeContext()
	info := Info{Directive: filterDirective("bogus_op", "$x"), FieldName: "name"}

	_, _, err := ProcessFilter(info, loc, ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown filter operator")
}

func TestProcessFilter_IsNull(t *testing.T) {
	fieldType := &ast.Type{NamedType: "String"}
	loc := ir.RootLocation("Animal")
	ctx := newFakeContext()
	info := Info{Directive: filterDirective("is_null"), FieldName: "name", FieldType: fieldType}

	block, _, err := ProcessFilter(info, loc, ctx)
	require.NoError(t, err)
	want := ir.Filter{Predicate: ir.BinaryComposition{
		Operator: ir.OpEquals,
		Left:     ir.LocalField{FieldName: "name", FieldType: fieldType},
		Right:    ir.NullLiteral{},
	}}
	assert.True(t, ir.BlocksEqual(want, block))
}

func TestProcessFilter_IsNullRejectsValueArguments(t *testing.T) {
	loc := ir.RootLocation("Animal")
	ctx := newFakeContext()
	info := Info{Directive: filterDirective("is_null", "$x"), FieldName: "name"}

	_, _, err := ProcessFilter(info, loc, ctx)
	require.Error(t, err)
}

func TestProcessFilter_ContainsRequiresListField(t *testing.T) {
	loc := ir.RootLocation("Animal")
	ctx := newFakeContext()
	info := Info{Directive: filterDirective("contains", "$x"), FieldName: "name", IsListField: false}

	_, _, err := ProcessFilter(info, loc, ctx)
	require.Error(t, err)
}

func TestProcessFilter_NameOrAlias(t *testing.T) {
	nameType := &ast.Type{NamedType: "String"}
	aliasType := &ast.Type{Elem: &ast.Type{NamedType: "String"}}
	loc := ir.RootLocation("Animal")
	ctx := newFakeContext()
	info := Info{
		Directive:     filterDirective("name_or_alias", "$target"),
		FieldName:     "out_Animal_ParentOf",
		IsVertexField: true,
		NameField:     nameType,
		AliasField:    aliasType,
	}

	block, _, err := ProcessFilter(info, loc, ctx)
	require.NoError(t, err)

	f := block.(ir.Filter)
	top, ok := f.Predicate.(ir.BinaryComposition)
	require.True(t, ok)
	assert.Equal(t, ir.OpOr, top.Operator)

	left, ok := top.Left.(ir.BinaryComposition)
	require.True(t, ok)
	assert.Equal(t, ir.OpEquals, left.Operator)

	right, ok := top.Right.(ir.BinaryComposition)
	require.True(t, ok)
	assert.Equal(t, ir.OpContains, right.Operator)
}
