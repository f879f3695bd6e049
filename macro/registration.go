package macro

import (
	"strings"

	"github.com/google/uuid"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/parser"
	"github.com/vektah/gqlparser/v2/validator"

	"github.com/syssam/gqlcompile/compilerr"
	"github.com/syssam/gqlcompile/schema"
)

// RegisterMacroEdge parses macroText, validates it against the registry's
// schema, and — if every rule in §4.4.1 passes — stores the resulting
// descriptor in both of the registry's indexes.
//
// macroText must define a single operation with exactly one top-level
// selection, carrying a @macro_edge_definition(name: "out_X_Y" | "in_X_Y")
// directive on that top-level field and exactly one @macro_edge_target
// directive somewhere within its selections.
func RegisterMacroEdge(registry *Registry, macroText string, args map[string]*ast.Type) (*MacroEdgeDescriptor, error) {
	if registry.Frozen() {
		return nil, compilerr.NewInvalidMacroError("cannot register a macro edge on a frozen registry")
	}

	source := &ast.Source{Input: macroText + "\n", Name: "macro"}
	doc, parseErr := parser.ParseQuery(source)
	if parseErr != nil {
		return nil, compilerr.NewParseError(parseErr)
	}
	if errs := validator.Validate(registry.schema.Inner(), doc); len(errs) > 0 {
		return nil, compilerr.NewValidationError(errs)
	}

	if len(doc.Operations) != 1 || len(doc.Operations[0].SelectionSet) != 1 {
		return nil, compilerr.NewInvalidMacroError("macro definition must have exactly one operation with exactly one top-level selection")
	}
	rootField, ok := doc.Operations[0].SelectionSet[0].(*ast.Field)
	if !ok {
		return nil, compilerr.NewInvalidMacroError("macro definition's top-level selection must be a field")
	}

	baseClass := rootField.Name
	if _, ok := registry.schema.TypeByName(baseClass); !ok {
		return nil, compilerr.NewInvalidMacroError("unknown base type %q", baseClass)
	}

	definitionDirective, err := requireOneDirective(rootField.Directives, schema.DirectiveMacroEdgeDefinition)
	if err != nil {
		return nil, err
	}
	macroEdgeName, _ := directiveStringArg(definitionDirective, "name")
	if !strings.HasPrefix(macroEdgeName, "out_") && !strings.HasPrefix(macroEdgeName, "in_") {
		return nil, compilerr.NewInvalidMacroError("macro edge name %q must begin with out_ or in_", macroEdgeName)
	}

	if err := validateNoShadowing(registry.schema, baseClass, macroEdgeName); err != nil {
		return nil, err
	}
	if err := validateNoBaseConflict(registry, baseClass, macroEdgeName); err != nil {
		return nil, err
	}

	_, targetClass, err := findMacroEdgeTarget(registry.schema, rootField.SelectionSet, baseClass)
	if err != nil {
		return nil, err
	}

	if err := validateNoTargetConflict(registry, baseClass, macroEdgeName, targetClass); err != nil {
		return nil, err
	}
	if err := validateReversedEdgeConsistency(registry, macroEdgeName, baseClass, targetClass); err != nil {
		return nil, err
	}

	inferredArgs, err := inferMacroArgs(rootField.SelectionSet)
	if err != nil {
		return nil, err
	}
	if err := validateArgsMatch(args, inferredArgs); err != nil {
		return nil, err
	}

	expansion := stripDirective(rootField.SelectionSet, schema.DirectiveMacroEdgeDefinition)

	descriptor := &MacroEdgeDescriptor{
		ID:                 uuid.New(),
		BaseClass:          baseClass,
		TargetClass:        targetClass,
		MacroEdgeName:       macroEdgeName,
		ExpansionSelection: expansion,
		MacroArgs:          inferredArgs,
		SourceText:         macroText,
	}
	registry.store(descriptor)
	return descriptor, nil
}

func requireOneDirective(directives ast.DirectiveList, name string) (*ast.Directive, error) {
	var found *ast.Directive
	for _, d := range directives {
		if d.Name == name {
			if found != nil {
				return nil, compilerr.NewInvalidMacroError("directive @%s may only appear once", name)
			}
			found = d
		}
	}
	if found == nil {
		return nil, compilerr.NewInvalidMacroError("macro definition is missing required directive @%s", name)
	}
	return found, nil
}

func directiveStringArg(d *ast.Directive, name string) (string, bool) {
	for _, a := range d.Arguments {
		if a.Name == name && a.Value != nil {
			return a.Value.Raw, true
		}
	}
	return "", false
}

// validateNoShadowing rejects a macro edge name that already names a real
// schema field on baseClass or any subclass.
func validateNoShadowing(sch *schema.Schema, baseClass, macroEdgeName string) error {
	if _, ok := sch.FieldDefinition(baseClass, macroEdgeName); ok {
		return compilerr.NewInvalidMacroError("macro edge name %q shadows a real field on %q", macroEdgeName, baseClass)
	}
	for name := range sch.Inner().Types {
		if name == baseClass || !sch.IsSubtypeOf(name, baseClass) {
			continue
		}
		if _, ok := sch.FieldDefinition(name, macroEdgeName); ok {
			return compilerr.NewInvalidMacroError("macro edge name %q shadows a real field on %q, a subclass of %q", macroEdgeName, name, baseClass)
		}
	}
	return nil
}

func validateNoBaseConflict(registry *Registry, baseClass, macroEdgeName string) error {
	for _, d := range registry.descriptorsOnOrBelow(baseClass) {
		if d.MacroEdgeName == macroEdgeName {
			return compilerr.NewInvalidMacroError("macro edge %q is already registered on %q or a subclass", macroEdgeName, baseClass)
		}
	}
	for base, byName := range registry.byBase {
		if registry.schema.IsSubtypeOf(baseClass, base) {
			if _, exists := byName[macroEdgeName]; exists {
				return compilerr.NewInvalidMacroError("macro edge %q is already registered on a superclass of %q", macroEdgeName, baseClass)
			}
		}
	}
	return nil
}

func validateNoTargetConflict(registry *Registry, baseClass, macroEdgeName, targetClass string) error {
	for base, byName := range registry.byBase {
		if base != baseClass && !registry.schema.IsSubtypeOf(base, baseClass) && !registry.schema.IsSubtypeOf(baseClass, base) {
			continue
		}
		d, ok := byName[macroEdgeName]
		if ok && d.TargetClass != targetClass && !registry.schema.IsSubtypeOf(d.TargetClass, targetClass) && !registry.schema.IsSubtypeOf(targetClass, d.TargetClass) {
			return compilerr.NewInvalidMacroError("macro edge %q already points to a conflicting target class", macroEdgeName)
		}
	}
	return nil
}

// validateReversedEdgeConsistency requires that if the reversed-direction
// name for this macro edge is already registered, its endpoint types match.
func validateReversedEdgeConsistency(registry *Registry, macroEdgeName, baseClass, targetClass string) error {
	reversed := reverseEdgeName(macroEdgeName)
	for _, byName := range registry.byBase {
		d, ok := byName[reversed]
		if !ok {
			continue
		}
		if d.BaseClass != targetClass || d.TargetClass != baseClass {
			return compilerr.NewInvalidMacroError(
				"reversed macro edge %q is registered with endpoints (%s -> %s), inconsistent with %q (%s -> %s)",
				reversed, d.BaseClass, d.TargetClass, macroEdgeName, baseClass, targetClass)
		}
	}
	return nil
}

func reverseEdgeName(name string) string {
	if strings.HasPrefix(name, "out_") {
		return "in_" + strings.TrimPrefix(name, "out_")
	}
	return "out_" + strings.TrimPrefix(name, "in_")
}

// findMacroEdgeTarget walks the expansion body depth-first looking for the
// single @macro_edge_target directive, returning the node it was found on
// and the schema type ruling at that node.
func findMacroEdgeTarget(sch *schema.Schema, sel ast.SelectionSet, currentType string) (ast.Selection, string, error) {
	var found ast.Selection
	var foundType string

	var walk func(sel ast.SelectionSet, currentType string) error
	walk = func(sel ast.SelectionSet, currentType string) error {
		for _, selection := range sel {
			switch node := selection.(type) {
			case *ast.Field:
				childType := currentType
				if fd, ok := sch.FieldDefinition(currentType, node.Name); ok {
					childType = schema.NamedType(fd.Type)
				}
				if hasDirective(node.Directives, schema.DirectiveMacroEdgeTarget) {
					if found != nil {
						return compilerr.NewInvalidMacroError("@macro_edge_target may only appear once")
					}
					found, foundType = node, childType
				}
				if err := walk(node.SelectionSet, childType); err != nil {
					return err
				}
			case *ast.InlineFragment:
				fragType := node.TypeCondition
				if fragType == "" {
					fragType = currentType
				}
				if hasDirective(node.Directives, schema.DirectiveMacroEdgeTarget) {
					if found != nil {
						return compilerr.NewInvalidMacroError("@macro_edge_target may only appear once")
					}
					found, foundType = node, fragType
				}
				if err := walk(node.SelectionSet, fragType); err != nil {
					return err
				}
			}
		}
		return nil
	}

	if err := walk(sel, currentType); err != nil {
		return nil, "", err
	}
	if found == nil {
		return nil, "", compilerr.NewInvalidMacroError("macro definition must contain exactly one @macro_edge_target directive")
	}
	return found, foundType, nil
}

// inferMacroArgs collects the name (without its leading "$") of every
// "$..." entry in the value list of a @filter directive, whatever the filter
// operator, on the fields of the expansion body. It does not infer types:
// every collected name maps to nil. Fields inside inline fragments are not
// scanned.
func inferMacroArgs(sel ast.SelectionSet) (map[string]*ast.Type, error) {
	result := map[string]*ast.Type{}
	var walk func(sel ast.SelectionSet)
	walk = func(sel ast.SelectionSet) {
		for _, selection := range sel {
			field, ok := selection.(*ast.Field)
			if !ok {
				continue
			}
			for _, d := range field.Directives {
				if d.Name != schema.DirectiveFilter {
					continue
				}
				for _, a := range d.Arguments {
					if a.Name != "value" || a.Value == nil || a.Value.Kind != ast.ListValue {
						continue
					}
					for _, v := range a.Value.Children {
						if strings.HasPrefix(v.Value.Raw, "$") {
							result[v.Value.Raw[1:]] = nil // inferred type filled in by the filter processor during compilation of the expansion
						}
					}
				}
			}
			walk(field.SelectionSet)
		}
	}
	walk(sel)
	return result, nil
}

func validateArgsMatch(provided, inferred map[string]*ast.Type) error {
	for name := range provided {
		if _, ok := inferred[name]; !ok {
			return compilerr.NewInvalidArgumentError(name, "argument is not used anywhere in the macro expansion")
		}
	}
	for name := range inferred {
		if _, ok := provided[name]; !ok {
			return compilerr.NewInvalidArgumentError(name, "macro expansion uses variable that was not provided")
		}
	}
	return nil
}

func stripDirective(sel ast.SelectionSet, name string) ast.SelectionSet {
	out := make(ast.SelectionSet, len(sel))
	for i, selection := range sel {
		switch node := selection.(type) {
		case *ast.Field:
			cp := *node
			cp.Directives = filterOutDirective(node.Directives, name)
			out[i] = &cp
		case *ast.InlineFragment:
			cp := *node
			cp.Directives = filterOutDirective(node.Directives, name)
			out[i] = &cp
		default:
			out[i] = selection
		}
	}
	return out
}
