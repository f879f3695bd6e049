package macro_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"

	"github.com/syssam/gqlcompile/macro"
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

type Animal {
  name: String
  out_Animal_ParentOf: [Animal]
  in_Animal_ParentOf: [Animal]
}
`

func loadTestSchema(t *testing.T) *schema.Schema {
	t.Helper()
	inner, err := gqlparser.LoadSchema(&ast.Source{Input: testSchemaSDL, Name: "test.graphql"})
	require.NoError(t, err)
	return schema.New(inner, nil)
}

// grandparentMacroText defines out_Animal_GrandparentOf := two hops of
// out_Animal_ParentOf, matching the macro-edge scenario a grandparent-lookup
// shorthand is meant to cover.
const grandparentMacroText = `{
	Animal @macro_edge_definition(name: "out_Animal_GrandparentOf") {
		out_Animal_ParentOf {
			out_Animal_ParentOf @macro_edge_target {
				name
			}
		}
	}
}`

func TestRegisterMacroEdge(t *testing.T) {
	sch := loadTestSchema(t)
	registry := macro.NewRegistry(sch)

	descriptor, err := macro.RegisterMacroEdge(registry, grandparentMacroText, nil)
	require.NoError(t, err)

	assert.Equal(t, "Animal", descriptor.BaseClass)
	assert.Equal(t, "Animal", descriptor.TargetClass)
	assert.Equal(t, "out_Animal_GrandparentOf", descriptor.MacroEdgeName)
	assert.Empty(t, descriptor.MacroArgs)

	found, ok := registry.Lookup("Animal", "out_Animal_GrandparentOf")
	require.True(t, ok)
	assert.Equal(t, descriptor.ID, found.ID)
}

func TestRegisterMacroEdge_DuplicateNameRejected(t *testing.T) {
	sch := loadTestSchema(t)
	registry := macro.NewRegistry(sch)

	_, err := macro.RegisterMacroEdge(registry, grandparentMacroText, nil)
	require.NoError(t, err)

	_, err = macro.RegisterMacroEdge(registry, grandparentMacroText, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already registered")
}

func TestRegisterMacroEdge_NameMustStartWithDirection(t *testing.T) {
	sch := loadTestSchema(t)
	registry := macro.NewRegistry(sch)

	badText := `{
		Animal @macro_edge_definition(name: "grandparent_of") {
			out_Animal_ParentOf {
				out_Animal_ParentOf @macro_edge_target {
					name
				}
			}
		}
	}`
	_, err := macro.RegisterMacroEdge(registry, badText, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out_ or in_")
}

func TestRegisterMacroEdge_FrozenRegistryRejectsRegistration(t *testing.T) {
	sch := loadTestSchema(t)
	registry := macro.NewRegistry(sch)
	registry.Freeze()

	_, err := macro.RegisterMacroEdge(registry, grandparentMacroText, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "frozen")
}

func TestPerformMacroExpansion_NoMacroUsageReturnsSameSelection(t *testing.T) {
	sch := loadTestSchema(t)
	registry := macro.NewRegistry(sch)

	doc, err := parser.ParseQuery(&ast.Source{Input: "{ Animal { name } }\n", Name: "q"})
	require.NoError(t, err)
	rootField := doc.Operations[0].SelectionSet[0].(*ast.Field)

	expanded, args, err := macro.PerformMacroExpansion(registry, rootField.Name, rootField.SelectionSet, nil)
	require.NoError(t, err)
	assert.Nil(t, args)
	require.NotEmpty(t, expanded)
	require.NotEmpty(t, rootField.SelectionSet)
	assert.Same(t, &rootField.SelectionSet[0], &expanded[0])
}

func TestPerformMacroExpansion_RewritesMacroEdgeUsage(t *testing.T) {
	sch := loadTestSchema(t)
	registry := macro.NewRegistry(sch)
	_, err := macro.RegisterMacroEdge(registry, grandparentMacroText, nil)
	require.NoError(t, err)
	registry.Freeze()

	doc, err := parser.ParseQuery(&ast.Source{Input: "{ Animal { out_Animal_GrandparentOf { name } } }\n", Name: "q"})
	require.NoError(t, err)
	rootField := doc.Operations[0].SelectionSet[0].(*ast.Field)

	expanded, _, err := macro.PerformMacroExpansion(registry, rootField.Name, rootField.SelectionSet, nil)
	require.NoError(t, err)
	require.Len(t, expanded, 1)

	outer, ok := expanded[0].(*ast.Field)
	require.True(t, ok)
	assert.Equal(t, "out_Animal_ParentOf", outer.Name)
	require.Len(t, outer.SelectionSet, 1)

	inner, ok := outer.SelectionSet[0].(*ast.Field)
	require.True(t, ok)
	assert.Equal(t, "out_Animal_ParentOf", inner.Name)

	foundContinuation := false
	for _, s := range inner.SelectionSet {
		if f, ok := s.(*ast.Field); ok && f.Name == "name" {
			foundContinuation = true
		}
	}
	assert.True(t, foundContinuation, "the user's own continuation must be merged into the macro's target node")
}
