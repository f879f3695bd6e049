package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/gqlcompile/compiler"
	"github.com/syssam/gqlcompile/ir"
	"github.com/syssam/gqlcompile/schema"
)

const testSchemaSDL = `
directive @filter(op_name: String!, value: [String!]) repeatable on FIELD
directive @tag(tag_name: String!) on FIELD
directive @output(out_name: String!) on FIELD
directive @optional on FIELD
directive @fold on FIELD
directive @recurse(depth: Int!) on FIELD
directive @output_source on FIELD
directive @macro_edge(name: String!) on FIELD
directive @macro_edge_definition(name: String!) on FIELD
directive @macro_edge_target on FIELD

schema {
  query: SchemaQuery
}

type SchemaQuery {
  Animal: Animal
}

type Species {
  name: String
}

type Animal {
  name: String
  net_worth: Int
  alias: [String]
  out_Animal_ParentOf: [Animal]
  in_Animal_ParentOf: [Animal]
  out_Animal_OfSpecies: [Species]
}
`

func loadTestSchema(t *testing.T) *schema.Schema {
	t.Helper()
	inner, err := gqlparser.LoadSchema(&ast.Source{Input: testSchemaSDL, Name: "test.graphql"})
	require.NoError(t, err)
	return schema.New(inner, nil)
}

func compileText(t *testing.T, sch *schema.Schema, text string) *compiler.IrAndMetadata {
	t.Helper()
	result, err := compiler.GraphQLToIR(sch, nil, text)
	require.NoError(t, err)
	return result
}

func mustFieldType(t *testing.T, sch *schema.Schema, typeName, fieldName string) *ast.Type {
	t.Helper()
	fd, ok := sch.FieldDefinition(typeName, fieldName)
	require.True(t, ok, "no field %s.%s in test schema", typeName, fieldName)
	return fd.Type
}

func assertBlocksEqual(t *testing.T, want, got []ir.Block) {
	t.Helper()
	require.Equal(t, len(want), len(got), "block count mismatch\nwant: %v\ngot:  %v", want, got)
	for i := range want {
		assert.True(t, ir.BlocksEqual(want[i], got[i]), "block %d mismatch\nwant: %s\ngot:  %s", i, want[i], got[i])
	}
}

func findConstructResultField(t *testing.T, blocks []ir.Block, name string) ir.Expression {
	t.Helper()
	for _, b := range blocks {
		if cr, ok := b.(ir.ConstructResult); ok {
			return cr.Fields[name]
		}
	}
	t.Fatalf("no ConstructResult block found")
	return nil
}

// TestGraphQLToIR_TraverseAndOutput exercises the simplest possible query:
// a single mandatory traversal with one @output field at the far end.
func TestGraphQLToIR_TraverseAndOutput(t *testing.T) {
	sch := loadTestSchema(t)
	result := compileText(t, sch, `{
		Animal {
			out_Animal_ParentOf {
				name @output(out_name: "parent_name")
			}
		}
	}`)

	rootLoc := ir.RootLocation("Animal")
	childLoc := rootLoc.NavigateToSubpath("out_Animal_ParentOf")
	nameType := mustFieldType(t, sch, "Animal", "name")

	want := []ir.Block{
		ir.QueryRoot{StartTypes: []string{"Animal"}},
		ir.MarkLocation{Location: rootLoc},
		ir.Traverse{Direction: "out", EdgeName: "Animal_ParentOf"},
		ir.MarkLocation{Location: childLoc},
		ir.Backtrack{Location: rootLoc},
		ir.ConstructResult{Fields: map[string]ir.Expression{
			"parent_name": ir.OutputContextField{Location: childLoc.NavigateToField("name"), FieldName: "name", FieldType: nameType},
		}},
	}
	assertBlocksEqual(t, want, result.IR)

	meta := result.OutputMetadata["parent_name"]
	assert.False(t, meta.Optional)
	assert.False(t, meta.Folded)
}

// TestGraphQLToIR_BetweenFilter exercises a two-valued filter operator and
// checks that both runtime arguments are registered with the field's type.
func TestGraphQLToIR_BetweenFilter(t *testing.T) {
	sch := loadTestSchema(t)
	result := compileText(t, sch, `{
		Animal {
			name @filter(op_name: "between", value: ["$lower", "$upper"]) @output(out_name: "name")
		}
	}`)

	rootLoc := ir.RootLocation("Animal")
	nameType := mustFieldType(t, sch, "Animal", "name")

	want := []ir.Block{
		ir.QueryRoot{StartTypes: []string{"Animal"}},
		ir.Filter{Predicate: ir.BinaryComposition{
			Operator: ir.OpAnd,
			Left: ir.BinaryComposition{
				Operator: ir.OpGreaterThanOrEqual,
				Left:     ir.LocalField{FieldName: "name", FieldType: nameType},
				Right:    ir.Variable{VariableName: "$lower", VariableType: nameType},
			},
			Right: ir.BinaryComposition{
				Operator: ir.OpLessThanOrEqual,
				Left:     ir.LocalField{FieldName: "name", FieldType: nameType},
				Right:    ir.Variable{VariableName: "$upper", VariableType: nameType},
			},
		}},
		ir.MarkLocation{Location: rootLoc},
		ir.ConstructResult{Fields: map[string]ir.Expression{
			"name": ir.OutputContextField{Location: rootLoc.NavigateToField("name"), FieldName: "name", FieldType: nameType},
		}},
	}
	assertBlocksEqual(t, want, result.IR)

	assert.Equal(t, nameType, result.InputMetadata["lower"])
	assert.Equal(t, nameType, result.InputMetadata["upper"])
}

// TestGraphQLToIR_FoldOnOutput exercises a @fold scope producing a
// FoldedOutputContextField, alongside an ordinary output on the root.
func TestGraphQLToIR_FoldOnOutput(t *testing.T) {
	sch := loadTestSchema(t)
	result := compileText(t, sch, `{
		Animal {
			name @output(out_name: "animal_name")
			out_Animal_ParentOf @fold {
				name @output(out_name: "child_names_list")
			}
		}
	}`)

	rootLoc := ir.RootLocation("Animal")
	nameType := mustFieldType(t, sch, "Animal", "name")
	foldScope := ir.NewFoldScopeLocation(rootLoc, "out_Animal_ParentOf")

	want := []ir.Block{
		ir.QueryRoot{StartTypes: []string{"Animal"}},
		ir.MarkLocation{Location: rootLoc},
		ir.Fold{FoldScopeLocation: foldScope},
		ir.Unfold{},
		ir.ConstructResult{Fields: map[string]ir.Expression{
			"animal_name":      ir.OutputContextField{Location: rootLoc.NavigateToField("name"), FieldName: "name", FieldType: nameType},
			"child_names_list": ir.FoldedOutputContextField{Fold: foldScope, FieldName: "name", FieldType: nameType},
		}},
	}
	assertBlocksEqual(t, want, result.IR)

	meta := result.OutputMetadata["child_names_list"]
	assert.True(t, meta.Folded)
	assert.False(t, meta.Optional)
}

// TestGraphQLToIR_HasEdgeDegreeEmittedOuterScope checks that has_edge_degree
// is emitted at the parent vertex (before the traversal it measures) and
// that its argument is registered as a non-null Int.
func TestGraphQLToIR_HasEdgeDegreeEmittedOuterScope(t *testing.T) {
	sch := loadTestSchema(t)
	result := compileText(t, sch, `{
		Animal {
			out_Animal_ParentOf @filter(op_name: "has_edge_degree", value: ["$num_parents"]) {
				name @output(out_name: "child_name")
			}
		}
	}`)

	filterIdx, traverseIdx := -1, -1
	for i, b := range result.IR {
		switch b.(type) {
		case ir.Filter:
			if filterIdx == -1 {
				filterIdx = i
			}
		case ir.Traverse:
			if traverseIdx == -1 {
				traverseIdx = i
			}
		}
	}
	require.NotEqual(t, -1, filterIdx, "expected a Filter block")
	require.NotEqual(t, -1, traverseIdx, "expected a Traverse block")
	assert.Less(t, filterIdx, traverseIdx, "has_edge_degree must filter before traversing the edge it measures")

	filterBlock := result.IR[filterIdx].(ir.Filter)
	outer, ok := filterBlock.Predicate.(ir.BinaryComposition)
	require.True(t, ok)
	assert.Equal(t, ir.OpOr, outer.Operator)

	assert.Equal(t, &ast.Type{NamedType: "Int", NonNull: true}, result.InputMetadata["num_parents"])
}

// TestGraphQLToIR_OptionalScopeFlags exercises review comments #1 and #2
// directly: a mandatory traversal nested inside an @optional one must carry
// within_optional_scope, and closing the optional scope must emit
// EndOptional before the optional Backtrack.
func TestGraphQLToIR_OptionalScopeFlags(t *testing.T) {
	sch := loadTestSchema(t)
	result := compileText(t, sch, `{
		Animal {
			out_Animal_ParentOf @optional {
				out_Animal_ParentOf {
					name @output(out_name: "grandparent_name")
				}
			}
		}
	}`)

	var traversals []ir.Traverse
	var sawEndOptional, sawOptionalBacktrack bool
	for _, b := range result.IR {
		switch v := b.(type) {
		case ir.Traverse:
			traversals = append(traversals, v)
		case ir.EndOptional:
			sawEndOptional = true
		case ir.Backtrack:
			if v.Optional {
				sawOptionalBacktrack = true
			}
		}
	}

	require.Len(t, traversals, 2)
	outer, inner := traversals[0], traversals[1]

	assert.True(t, outer.Optional)
	assert.False(t, outer.WithinOptionalScope, "the optional traversal itself is not within an ancestor's optional scope")

	assert.False(t, inner.Optional)
	assert.True(t, inner.WithinOptionalScope, "a traversal nested inside an @optional scope must be marked within_optional_scope")

	assert.True(t, sawEndOptional, "closing an @optional scope must emit EndOptional")
	assert.True(t, sawOptionalBacktrack, "exiting an @optional scope must emit an optional Backtrack")

	meta := result.OutputMetadata["grandparent_name"]
	assert.True(t, meta.Optional)

	field := findConstructResultField(t, result.IR, "grandparent_name")
	ternary, ok := field.(ir.TernaryConditional)
	require.True(t, ok)
	_, ok = ternary.Predicate.(ir.ContextFieldExistence)
	assert.True(t, ok)
	_, ok = ternary.IfFalse.(ir.NullLiteral)
	assert.True(t, ok)
}

// TestGraphQLToIR_TagAcrossOptionalScopeGuardsReference exercises a %tag
// reference to a field declared inside an @optional scope from a deeper
// descendant: the resulting predicate must be OR-guarded by a
// ContextFieldExistence check on the tag's vertex.
func TestGraphQLToIR_TagAcrossOptionalScopeGuardsReference(t *testing.T) {
	sch := loadTestSchema(t)
	result := compileText(t, sch, `{
		Animal {
			out_Animal_ParentOf @optional {
				name @tag(tag_name: "parent_name")
				out_Animal_ParentOf {
					name @filter(op_name: "=", value: ["%parent_name"]) @output(out_name: "match_name")
				}
			}
		}
	}`)

	var filterBlock ir.Filter
	found := false
	for _, b := range result.IR {
		if f, ok := b.(ir.Filter); ok {
			filterBlock = f
			found = true
		}
	}
	require.True(t, found, "expected a Filter block")

	composition, ok := filterBlock.Predicate.(ir.BinaryComposition)
	require.True(t, ok)
	assert.Equal(t, ir.OpOr, composition.Operator)

	guard, ok := composition.Left.(ir.BinaryComposition)
	require.True(t, ok)
	assert.Equal(t, ir.OpEquals, guard.Operator)
	_, ok = guard.Left.(ir.ContextFieldExistence)
	assert.True(t, ok)
	_, ok = guard.Right.(ir.FalseLiteral)
	assert.True(t, ok)

	predicate, ok := composition.Right.(ir.BinaryComposition)
	require.True(t, ok)
	assert.Equal(t, ir.OpEquals, predicate.Operator)
	_, ok = predicate.Right.(ir.ContextField)
	assert.True(t, ok, "a tag referenced from a different vertex must be represented as a ContextField")
}

func TestGraphQLToIR_CompilationErrors(t *testing.T) {
	sch := loadTestSchema(t)

	tests := []struct {
		name    string
		query   string
		wantErr string
	}{
		{
			name: "optional scopes cannot be nested",
			query: `{
				Animal {
					out_Animal_ParentOf @optional {
						out_Animal_ParentOf @optional {
							name @output(out_name: "n")
						}
					}
				}
			}`,
			wantErr: "cannot be nested",
		},
		{
			name: "optional cannot be combined with recurse",
			query: `{
				Animal {
					out_Animal_ParentOf @optional @recurse(depth: 2) {
						name @output(out_name: "n")
					}
				}
			}`,
			wantErr: "cannot be combined",
		},
		{
			name: "fold requires at least one output",
			query: `{
				Animal {
					out_Animal_ParentOf @fold {
						name
					}
				}
			}`,
			wantErr: "at least one @output",
		},
		{
			name: "query defines no outputs",
			query: `{
				Animal {
					name
				}
			}`,
			wantErr: "no @output fields",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compiler.GraphQLToIR(sch, nil, tt.query)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
