package macro

import (
	"sort"

	"github.com/vektah/gqlparser/v2/ast"

	"github.com/syssam/gqlcompile/compilerr"
	"github.com/syssam/gqlcompile/schema"
)

// directivesSupportedOnMacroEdgeUsage is the set of directives a query may
// place directly on a field that turns out to be a macro edge. Anything
// else is rejected: the macro system does not (yet) know how to relocate
// an arbitrary directive into the expanded traversal (SPEC_FULL.md
// SUPPLEMENTED FEATURES; expansion.py
// _ensure_directives_on_macro_edge_are_supported).
var directivesSupportedOnMacroEdgeUsage = map[string]bool{
	schema.DirectiveFilter: true,
}

// PerformMacroExpansion rewrites every macro-edge usage in rootSelection, an
// already-parsed selection set rooted at rootTypeName, into its expansion
// (§4.4.2). It does not parse or validate the query. Macro-edge usages
// inside another usage's own selection set are not expanded.
//
// If the query uses no macro edges, the returned selection set is
// rootSelection itself (structural sharing, §4.4.2 final paragraph;
// invariant 7).
func PerformMacroExpansion(registry *Registry, rootTypeName string, rootSelection ast.SelectionSet, queryArgs map[string]*ast.Type) (ast.SelectionSet, map[string]*ast.Type, error) {
	tagNames := map[string]bool{}
	collectTagNames(rootSelection, tagNames)

	mergedArgs := queryArgs
	expanded, changed, err := rewriteSelectionSet(registry, rootTypeName, rootSelection, tagNames, &mergedArgs)
	if err != nil {
		return nil, nil, err
	}
	if !changed {
		return rootSelection, queryArgs, nil
	}
	return expanded, mergedArgs, nil
}

func rewriteSelectionSet(registry *Registry, currentType string, sel ast.SelectionSet, tagNames map[string]bool, queryArgs *map[string]*ast.Type) (ast.SelectionSet, bool, error) {
	var out ast.SelectionSet
	changedAny := false

	for _, selection := range sel {
		switch node := selection.(type) {
		case *ast.Field:
			childType := currentType
			if fd, ok := registry.schema.FieldDefinition(currentType, node.Name); ok {
				childType = schema.NamedType(fd.Type)
			}

			if descriptor, ok := registry.Lookup(currentType, node.Name); ok && schema.IsVertexFieldName(node.Name) {
				replacement, prefix, suffix, err := expandMacroEdgeUsage(registry, descriptor, node, tagNames, queryArgs)
				if err != nil {
					return nil, false, err
				}
				out = append(out, prefix...)
				out = append(out, replacement)
				out = append(out, suffix...)
				changedAny = true
				continue
			}

			newChildSel, childChanged, err := rewriteSelectionSet(registry, childType, node.SelectionSet, tagNames, queryArgs)
			if err != nil {
				return nil, false, err
			}
			if !childChanged {
				out = append(out, node)
				continue
			}
			cp := *node
			cp.SelectionSet = newChildSel
			out = append(out, &cp)
			changedAny = true

		case *ast.InlineFragment:
			fragType := node.TypeCondition
			if fragType == "" {
				fragType = currentType
			}
			newChildSel, childChanged, err := rewriteSelectionSet(registry, fragType, node.SelectionSet, tagNames, queryArgs)
			if err != nil {
				return nil, false, err
			}
			if !childChanged {
				out = append(out, node)
				continue
			}
			cp := *node
			cp.SelectionSet = newChildSel
			out = append(out, &cp)
			changedAny = true

		default:
			out = append(out, selection)
		}
	}

	if !changedAny {
		return sel, false, nil
	}
	return stablePartitionPropertyFirst(registry.schema, currentType, out), true, nil
}

// stablePartitionPropertyFirst reorders a selection set so every property
// field precedes every vertex field, preserving relative order within each
// group, matching the ordering SplitSelections requires downstream.
func stablePartitionPropertyFirst(sch *schema.Schema, currentType string, sel ast.SelectionSet) ast.SelectionSet {
	out := make(ast.SelectionSet, 0, len(sel))
	var vertices ast.SelectionSet
	for _, selection := range sel {
		field, ok := selection.(*ast.Field)
		if ok && sch.IsVertexField(currentType, field.Name) {
			vertices = append(vertices, selection)
			continue
		}
		out = append(out, selection)
	}
	return append(out, vertices...)
}

// expandMacroEdgeUsage replaces a single macro-edge field usage with its
// descriptor's expansion, merging the user's own selection/directives into
// the expansion's target node (§4.4.2).
func expandMacroEdgeUsage(registry *Registry, descriptor *MacroEdgeDescriptor, usage *ast.Field, tagNames map[string]bool, queryArgs *map[string]*ast.Type) (replacement ast.Selection, prefix, suffix []ast.Selection, err error) {
	for _, d := range usage.Directives {
		if !directivesSupportedOnMacroEdgeUsage[d.Name] {
			return nil, nil, nil, compilerr.NewCompilationError("", "directive @%s is not supported directly on macro edge %q", d.Name, descriptor.MacroEdgeName)
		}
	}

	macroTagNames := map[string]bool{}
	collectTagNames(descriptor.ExpansionSelection, macroTagNames)
	renames := generateDisambiguations(tagNames, macroTagNames)
	for _, newName := range renames {
		tagNames[newName] = true
	}
	sanitized := replaceTagNames(renames, descriptor.ExpansionSelection)

	var foundReplacement ast.Selection
	for _, macroSelection := range sanitized {
		clone, target := findTargetAndCopyPath(macroSelection)
		if target == nil {
			if foundReplacement == nil {
				prefix = append(prefix, macroSelection)
			} else {
				suffix = append(suffix, macroSelection)
			}
			continue
		}
		if foundReplacement != nil {
			return nil, nil, nil, compilerr.NewInternalError("macro %q contains more than one @macro_edge_target", descriptor.MacroEdgeName)
		}
		foundReplacement = clone
		if err := mergeSelectionIntoTarget(registry.schema, target, descriptor.TargetClass, usage); err != nil {
			return nil, nil, nil, err
		}
	}
	if foundReplacement == nil {
		return nil, nil, nil, compilerr.NewInternalError("macro %q contains no @macro_edge_target", descriptor.MacroEdgeName)
	}

	if err := mergeMacroArgs(queryArgs, descriptor.MacroArgs); err != nil {
		return nil, nil, nil, err
	}

	return foundReplacement, prefix, suffix, nil
}

// findTargetAndCopyPath clones only the nodes on the path from node to the
// single @macro_edge_target node beneath it, sharing every other subtree by
// reference (§9 "Structural-sharing rewriter").
func findTargetAndCopyPath(node ast.Selection) (clone ast.Selection, target ast.Selection) {
	switch n := node.(type) {
	case *ast.Field:
		if hasDirective(n.Directives, schema.DirectiveMacroEdgeTarget) {
			cp := *n
			return &cp, &cp
		}
		newSel, childTarget, changed := findTargetInSet(n.SelectionSet)
		if !changed {
			return node, nil
		}
		cp := *n
		cp.SelectionSet = newSel
		return &cp, childTarget
	case *ast.InlineFragment:
		if hasDirective(n.Directives, schema.DirectiveMacroEdgeTarget) {
			cp := *n
			return &cp, &cp
		}
		newSel, childTarget, changed := findTargetInSet(n.SelectionSet)
		if !changed {
			return node, nil
		}
		cp := *n
		cp.SelectionSet = newSel
		return &cp, childTarget
	default:
		return node, nil
	}
}

func findTargetInSet(sel ast.SelectionSet) (ast.SelectionSet, ast.Selection, bool) {
	for i, child := range sel {
		clone, target := findTargetAndCopyPath(child)
		if target != nil {
			newSel := make(ast.SelectionSet, len(sel))
			copy(newSel, sel)
			newSel[i] = clone
			return newSel, target, true
		}
	}
	return sel, nil, false
}

// mergeSelectionIntoTarget merges the user's macro-edge usage (its
// directives, type coercion, and sub-selections) into the macro
// expansion's target node, in place on the already-cloned target (§4.4.2
// "Selection-merge rule").
func mergeSelectionIntoTarget(sch *schema.Schema, target ast.Selection, targetClassName string, usage *ast.Field) error {
	targetField, targetIsField := target.(*ast.Field)
	targetFragment, _ := target.(*ast.InlineFragment)

	removeTargetDirective := func(directives ast.DirectiveList) ast.DirectiveList {
		return filterOutDirective(directives, schema.DirectiveMacroEdgeTarget)
	}
	if targetIsField {
		targetField.Directives = removeTargetDirective(targetField.Directives)
	} else {
		targetFragment.Directives = removeTargetDirective(targetFragment.Directives)
	}

	// Check whether the usage's own selection set begins with a type coercion.
	var coercion *ast.InlineFragment
	continuation := usage.SelectionSet
	if len(usage.SelectionSet) > 0 {
		if frag, ok := usage.SelectionSet[0].(*ast.InlineFragment); ok {
			if len(usage.SelectionSet) != 1 {
				return compilerr.NewCompilationError("", "selections outside a type coercion on macro edge %q must be moved inside the coercion", usage.Name)
			}
			coercion = frag
		}
	}

	targetSelSet, targetDirectives := targetSelectionSet(target)

	if coercion != nil {
		coercionClass := coercion.TypeCondition
		if coercionClass != targetClassName && !sch.IsSubtypeOf(coercionClass, targetClassName) {
			return compilerr.NewCompilationError("", "type coercion to %q is not a subtype of macro edge target type %q", coercionClass, targetClassName)
		}
		continuation = coercion.SelectionSet

		if targetIsField {
			newCoercion := &ast.InlineFragment{TypeCondition: coercionClass, SelectionSet: targetSelSet}
			targetField.SelectionSet = ast.SelectionSet{newCoercion}
			targetDirectives = newCoercion.Directives
			targetSelSet = newCoercion.SelectionSet
			target = newCoercion
			targetFragment, targetIsField = newCoercion, false
		} else {
			targetFragment.TypeCondition = coercionClass
		}
	}

	mergedSel, err := mergeSelectionSets(sch, targetSelSet, continuation)
	if err != nil {
		return err
	}
	mergedDirectives := append(append(ast.DirectiveList{}, targetDirectives...), continuationDirectives(usage, coercion)...)

	if targetIsField {
		targetField.SelectionSet = mergedSel
		targetField.Directives = mergedDirectives
	} else {
		targetFragment.SelectionSet = mergedSel
		targetFragment.Directives = mergedDirectives
	}
	return nil
}

func continuationDirectives(usage *ast.Field, coercion *ast.InlineFragment) ast.DirectiveList {
	if coercion != nil {
		return coercion.Directives
	}
	return usage.Directives
}

func targetSelectionSet(target ast.Selection) (ast.SelectionSet, ast.DirectiveList) {
	switch n := target.(type) {
	case *ast.Field:
		return n.SelectionSet, n.Directives
	case *ast.InlineFragment:
		return n.SelectionSet, n.Directives
	default:
		return nil, nil
	}
}

// mergeSelectionSets implements the selection-merge rule: fields with the
// same name in both sets must not both carry a sub-selection (that would
// traverse the same edge twice); otherwise their directive lists are
// concatenated. Of all merged fields left with no directives and no
// sub-selection ("pro-forma" fields), only the lexicographically first is
// kept. Property fields are kept before vertex fields.
func mergeSelectionSets(sch *schema.Schema, a, b ast.SelectionSet) (ast.SelectionSet, error) {
	byName := map[string]*ast.Field{}
	order := []string{}
	var nonFields ast.SelectionSet

	add := func(sel ast.SelectionSet) error {
		for _, s := range sel {
			field, ok := s.(*ast.Field)
			if !ok {
				nonFields = append(nonFields, s)
				continue
			}
			existing, seen := byName[field.Name]
			if !seen {
				byName[field.Name] = field
				order = append(order, field.Name)
				continue
			}
			if len(existing.SelectionSet) > 0 && len(field.SelectionSet) > 0 {
				return compilerr.NewCompilationError("", "macro expansion would traverse edge %q twice", field.Name)
			}
			merged := *existing
			if len(field.SelectionSet) > 0 {
				merged.SelectionSet = field.SelectionSet
			}
			if len(field.Directives) > 0 {
				for _, d := range field.Directives {
					if d.Name == schema.DirectiveTag {
						for _, existingDirective := range merged.Directives {
							if existingDirective.Name == schema.DirectiveTag {
								return compilerr.NewCompilationError("", "field %q has two @tag directives after macro expansion", field.Name)
							}
						}
					}
				}
				merged.Directives = append(append(ast.DirectiveList{}, existing.Directives...), field.Directives...)
			}
			byName[field.Name] = &merged
		}
		return nil
	}

	if err := add(a); err != nil {
		return nil, err
	}
	if err := add(b); err != nil {
		return nil, err
	}

	// Pro-forma field collapsing: among fields with no directives and no
	// sub-selection, keep only the lexicographically first name.
	var proForma []string
	for _, name := range order {
		f := byName[name]
		if len(f.Directives) == 0 && len(f.SelectionSet) == 0 {
			proForma = append(proForma, name)
		}
	}
	if len(proForma) > 1 {
		sort.Strings(proForma)
		newOrder := make([]string, 0, len(order))
		drop := map[string]bool{}
		for _, name := range proForma[1:] {
			drop[name] = true
		}
		for _, name := range order {
			if !drop[name] {
				newOrder = append(newOrder, name)
			}
		}
		order = newOrder
	}

	// Property fields first, then vertex fields (by the out_/in_ naming
	// convention), each group in first-seen order.
	var properties, vertices ast.SelectionSet
	for _, name := range order {
		if schema.IsVertexFieldName(name) {
			vertices = append(vertices, byName[name])
		} else {
			properties = append(properties, byName[name])
		}
	}
	merged := append(append(nonFields, properties...), vertices...)
	return merged, nil
}

func hasDirective(directives ast.DirectiveList, name string) bool {
	for _, d := range directives {
		if d.Name == name {
			return true
		}
	}
	return false
}

func filterOutDirective(directives ast.DirectiveList, name string) ast.DirectiveList {
	out := make(ast.DirectiveList, 0, len(directives))
	for _, d := range directives {
		if d.Name != name {
			out = append(out, d)
		}
	}
	return out
}

// collectTagNames gathers every @tag(tag_name: ...) value anywhere within
// sel, recursively.
func collectTagNames(sel ast.SelectionSet, into map[string]bool) {
	for _, selection := range sel {
		switch n := selection.(type) {
		case *ast.Field:
			for _, d := range n.Directives {
				if d.Name == schema.DirectiveTag {
					for _, a := range d.Arguments {
						if a.Name == "tag_name" && a.Value != nil {
							into[a.Value.Raw] = true
						}
					}
				}
			}
			collectTagNames(n.SelectionSet, into)
		case *ast.InlineFragment:
			collectTagNames(n.SelectionSet, into)
		}
	}
}

// replaceTagNames returns a copy of sel with every @tag(tag_name: ...)
// argument renamed per renames, sharing unchanged subtrees.
func replaceTagNames(renames map[string]string, sel ast.SelectionSet) ast.SelectionSet {
	if len(renames) == 0 {
		return sel
	}
	out := make(ast.SelectionSet, len(sel))
	for i, selection := range sel {
		switch n := selection.(type) {
		case *ast.Field:
			cp := *n
			cp.Directives = renameTagDirectives(renames, n.Directives)
			cp.SelectionSet = replaceTagNames(renames, n.SelectionSet)
			out[i] = &cp
		case *ast.InlineFragment:
			cp := *n
			cp.SelectionSet = replaceTagNames(renames, n.SelectionSet)
			out[i] = &cp
		default:
			out[i] = selection
		}
	}
	return out
}

func renameTagDirectives(renames map[string]string, directives ast.DirectiveList) ast.DirectiveList {
	out := make(ast.DirectiveList, len(directives))
	for i, d := range directives {
		if d.Name != schema.DirectiveTag {
			out[i] = d
			continue
		}
		cp := *d
		cp.Arguments = make(ast.ArgumentList, len(d.Arguments))
		for j, a := range d.Arguments {
			if a.Name == "tag_name" && a.Value != nil {
				if newName, ok := renames[a.Value.Raw]; ok {
					newArg := *a
					newVal := *a.Value
					newVal.Raw = newName
					newArg.Value = &newVal
					cp.Arguments[j] = &newArg
					continue
				}
			}
			cp.Arguments[j] = a
		}
		out[i] = &cp
	}
	return out
}

// generateDisambiguations maps each name in newNames to a name not in
// existingNames and not previously assigned, using the smallest free
// "_macro_edge_<n>" suffix (§9 "Macro tag disambiguation"; deterministic:
// newNames is processed in sorted order).
func generateDisambiguations(existingNames map[string]bool, newNames map[string]bool) map[string]string {
	sorted := make([]string, 0, len(newNames))
	for name := range newNames {
		sorted = append(sorted, name)
	}
	sort.Strings(sorted)

	assigned := map[string]bool{}
	result := map[string]string{}
	for _, name := range sorted {
		candidate := name
		n := 0
		for existingNames[candidate] || assigned[candidate] {
			candidate = name + "_macro_edge_" + itoa(n)
			n++
		}
		assigned[candidate] = true
		result[name] = candidate
	}
	return result
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}

// mergeMacroArgs merges a macro's pre-bound arguments into the user-
// supplied query arguments, rejecting any key overlap (SPEC_FULL.md
// SUPPLEMENTED FEATURES; global_utils.merge_non_overlapping_dicts).
func mergeMacroArgs(queryArgs *map[string]*ast.Type, macroArgs map[string]*ast.Type) error {
	if *queryArgs == nil {
		*queryArgs = map[string]*ast.Type{}
	}
	for name, t := range macroArgs {
		if _, exists := (*queryArgs)[name]; exists {
			return compilerr.NewInvalidArgumentError(name, "macro argument collides with an existing query argument of the same name")
		}
		(*queryArgs)[name] = t
	}
	return nil
}
