package compiler

import (
	"sort"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"

	astutil "github.com/syssam/gqlcompile/ast"
	"github.com/syssam/gqlcompile/compilerr"
	"github.com/syssam/gqlcompile/filter"
	"github.com/syssam/gqlcompile/ir"
	"github.com/syssam/gqlcompile/schema"
)

// vertexOnlyDirectives may appear only on a field that resolves to a vertex
// type (directive_helpers.py: VERTEX_ONLY_DIRECTIVES).
var vertexOnlyDirectives = map[string]bool{
	schema.DirectiveOptional:     true,
	schema.DirectiveOutputSource: true,
	schema.DirectiveRecurse:      true,
	schema.DirectiveFold:         true,
}

// propertyOnlyDirectives may appear only on a field resolving to a scalar
// or enum type (directive_helpers.py: PROPERTY_ONLY_DIRECTIVES).
var propertyOnlyDirectives = map[string]bool{
	schema.DirectiveTag:    true,
	schema.DirectiveOutput: true,
}

// vertexDirectivesProhibitedOnRoot may not appear on the query's root
// vertex field, since there is nothing to backtrack or fold into
// (SPEC_FULL.md SUPPLEMENTED FEATURES; directive_helpers.py
// VERTEX_DIRECTIVES_PROHIBITED_ON_ROOT).
var vertexDirectivesProhibitedOnRoot = map[string]bool{
	schema.DirectiveOptional: true,
	schema.DirectiveRecurse:  true,
	schema.DirectiveFold:     true,
}

// outerScopeFilterOperators apply to the vertex containing the field they
// decorate, rather than the vertex the field traverses into (§4.2).
var outerScopeFilterOperators = map[string]bool{
	"has_edge_degree": true,
}

// processRoot drives the whole walk: it validates the root selection,
// pushes QueryRoot + the root MarkLocation, walks the query body, and
// assembles the terminal ConstructResult.
func (c *context) processRoot(rootTypeName string, rootField *ast.Field) error {
	rootLoc := ir.RootLocation(rootTypeName)
	c.emit(ir.QueryRoot{StartTypes: []string{rootTypeName}})
	c.locationTypes[rootLoc] = rootTypeName

	if err := c.rootDirectiveCheck(rootLoc, rootField); err != nil {
		return err
	}

	if err := c.processVertex(rootLoc, nil, rootTypeName, rootField.SelectionSet, true); err != nil {
		return err
	}
	return c.emitConstructResult()
}

// rootDirectiveCheck validates the root field's own directives against
// VERTEX_DIRECTIVES_PROHIBITED_ON_ROOT before descending into it; called
// from processRoot with the root AST field (processVertex itself is called
// with selfField == nil at the root, since there is no enclosing traversal
// to attach a Traverse/Fold/Recurse entry block to).
func (c *context) rootDirectiveCheck(loc ir.Location, field *ast.Field) error {
	directives, err := astutil.UniqueDirectives(field.Directives)
	if err != nil {
		return err
	}
	for name := range directives {
		if vertexDirectivesProhibitedOnRoot[name] {
			return compilerr.NewCompilationError(loc.String(), "@%s is not allowed on the query root", name)
		}
	}
	return nil
}

// processVertex processes one vertex node: selfField is the field that led
// here (nil for the query root), loc is this vertex's own location, and sel
// is its selection set. isRoot marks the query root, where certain vertex
// directives are prohibited.
func (c *context) processVertex(loc ir.Location, selfField *ast.Field, currentType string, sel ast.SelectionSet, isRoot bool) error {
	inFold := c.activeFold != nil

	// Step 1 (inner-scope local filters on selfField itself, e.g. name_or_alias).
	if selfField != nil {
		for _, d := range astutil.FilterDirectives(selfField.Directives) {
			opName, _ := astutil.DirectiveStringArg(d, "op_name")
			if outerScopeFilterOperators[opName] {
				continue // already emitted by the parent before traversal
			}
			if err := c.applyFilter(d, loc, selfField.Name, true, currentType); err != nil {
				return err
			}
		}
	}

	propertyFields, vertexFields, fragment, err := astutil.SplitSelections(sel, c.schemaInfo.schema, currentType)
	if err != nil {
		return err
	}

	// Step 1 (local filters on this vertex's own property children, and
	// outer-scope filters on this vertex's own vertex children).
	for _, pf := range propertyFields {
		fieldName := astutil.FieldName(pf)
		fieldType, _ := c.fieldType(currentType, pf.Name)
		for _, d := range astutil.FilterDirectives(pf.Directives) {
			if err := c.applyFilterWithType(d, loc, fieldName, fieldType, false, false, nil); err != nil {
				return err
			}
		}
	}
	for _, vf := range vertexFields {
		for _, d := range astutil.FilterDirectives(vf.Directives) {
			opName, _ := astutil.DirectiveStringArg(d, "op_name")
			if !outerScopeFilterOperators[opName] {
				continue // inner-scope: handled once we recurse into this child
			}
			vfType, _ := c.fieldType(currentType, vf.Name)
			if err := c.applyFilterWithType(d, loc, vf.Name, vfType, true, false, nil); err != nil {
				return err
			}
		}
	}

	// Step 2a: property children (tags/outputs), emitted before this vertex
	// is marked, matching LocalField's "before MarkLocation" semantics.
	for _, pf := range propertyFields {
		if err := c.processPropertyField(loc, pf, currentType); err != nil {
			return err
		}
	}

	if !inFold {
		markLoc := loc
		c.emit(ir.MarkLocation{Location: markLoc})
		c.pushMark(markLoc)
	}

	if selfField != nil {
		directives, err := astutil.UniqueDirectives(selfField.Directives)
		if err != nil {
			return err
		}
		if isRoot {
			for name := range directives {
				if vertexDirectivesProhibitedOnRoot[name] {
					return compilerr.NewCompilationError(loc.String(), "@%s is not allowed on the query root", name)
				}
			}
		}
		if _, ok := directives[schema.DirectiveOutputSource]; ok {
			if c.activeOptional != nil {
				return compilerr.NewCompilationError(loc.String(), "@output_source is not allowed inside an @optional scope")
			}
			if c.outputSourceSeen {
				return compilerr.NewCompilationError(loc.String(), "@output_source may appear at most once per query")
			}
			c.outputSourceSeen = true
			c.emit(ir.OutputSource{})
		}
	}

	// Step 2b: vertex children.
	for _, vf := range vertexFields {
		if err := c.processVertexChild(loc, vf, currentType); err != nil {
			return err
		}
	}

	// Step 2c: fragment / type coercion.
	if fragment != nil {
		if err := c.processFragment(loc, fragment, currentType); err != nil {
			return err
		}
	}

	return nil
}

func (c *context) fieldType(currentType, fieldName string) (*ast.Type, bool) {
	fd, ok := c.schemaInfo.schema.FieldDefinition(currentType, fieldName)
	if !ok {
		return nil, false
	}
	return fd.Type, true
}

func (c *context) applyFilter(d *ast.Directive, loc ir.Location, fieldName string, isVertexField bool, currentType string) error {
	ft, _ := c.fieldType(currentType, fieldName)
	return c.applyFilterWithType(d, loc, fieldName, ft, isVertexField, false, nil)
}

// applyFilterWithType builds a filter.Info for fieldName/fieldType and
// dispatches to the filter processor, emitting the resulting Filter block
// and recording its FilterInfo.
func (c *context) applyFilterWithType(d *ast.Directive, loc ir.Location, fieldName string, fieldType *ast.Type, isVertexField, forcedUnion bool, vertexTypeName *string) error {
	info := filter.Info{Directive: d, FieldName: fieldName, FieldType: fieldType, IsVertexField: isVertexField}

	if fieldType != nil && schema.IsListType(fieldType) {
		info.IsListField = true
		info.ListElemType = schema.ListElem(fieldType)
	}

	if isVertexField && fieldType != nil {
		targetType := schema.NamedType(fieldType)
		def, _ := c.schemaInfo.schema.TypeByName(targetType)
		if def != nil && def.Kind == ast.Union {
			info.IsUnionType = true
		}
		if nameFD, ok := c.schemaInfo.schema.FieldDefinition(targetType, "name"); ok {
			info.NameField = nameFD.Type
		}
		if aliasFD, ok := c.schemaInfo.schema.FieldDefinition(targetType, "alias"); ok {
			info.AliasField = aliasFD.Type
		}
	}

	block, rec, err := filter.ProcessFilter(info, loc, c)
	if err != nil {
		return err
	}
	c.emit(block)
	c.filterMetadata[loc] = append(c.filterMetadata[loc], rec)
	return nil
}

// processPropertyField handles a property field's @tag/@output directives
// (no other directive is permitted on a property field).
func (c *context) processPropertyField(parentLoc ir.Location, field *ast.Field, currentType string) error {
	directives, err := astutil.UniqueDirectives(field.Directives)
	if err != nil {
		return err
	}
	for name := range directives {
		if !propertyOnlyDirectives[name] {
			return compilerr.NewCompilationError(parentLoc.String(), "@%s is not allowed on a property field", name)
		}
	}

	fieldName := astutil.FieldName(field)
	fieldType, _ := c.fieldType(currentType, field.Name)
	fieldLoc := parentLoc.NavigateToField(fieldName)
	inOptional := c.activeOptional != nil

	if tagDirective, ok := directives[schema.DirectiveTag]; ok {
		if c.activeFold != nil {
			return compilerr.NewCompilationError(fieldLoc.String(), "@tag is not allowed inside an @fold scope")
		}
		tagName, _ := astutil.DirectiveStringArg(tagDirective, "tag_name")
		if tagName == "" {
			return compilerr.NewCompilationError(fieldLoc.String(), "@tag directive is missing required argument tag_name")
		}
		if _, exists := c.tags[tagName]; exists {
			return compilerr.NewCompilationError(fieldLoc.String(), "tag name %q is already in use", tagName)
		}
		c.tags[tagName] = tagInfo{location: fieldLoc, fieldName: field.Name, fieldType: fieldType, inOptional: inOptional}
	}

	if outputDirective, ok := directives[schema.DirectiveOutput]; ok {
		outName, _ := astutil.DirectiveStringArg(outputDirective, "out_name")
		if outName == "" {
			return compilerr.NewCompilationError(fieldLoc.String(), "@output directive is missing required argument out_name")
		}
		if _, exists := c.outputs[outName]; exists {
			return compilerr.NewCompilationError(fieldLoc.String(), "output name %q is already in use", outName)
		}
		var fold *ir.FoldScopeLocation
		if c.activeFold != nil {
			f := *c.activeFold
			fold = &f
		}
		c.outputs[outName] = outputInfo{location: fieldLoc, fieldName: field.Name, fieldType: fieldType, inOptional: inOptional, fold: fold}
	}

	return nil
}

// processVertexChild handles one child vertex field: validates its
// directives, emits the entry block (Fold/Recurse/Traverse), recurses, and
// emits the matching exit block.
func (c *context) processVertexChild(parentLoc ir.Location, field *ast.Field, parentType string) error {
	directives, err := astutil.UniqueDirectives(field.Directives)
	if err != nil {
		return err
	}
	for name := range directives {
		if propertyOnlyDirectives[name] {
			return compilerr.NewCompilationError(parentLoc.String(), "@%s is not allowed on a vertex field", name)
		}
	}

	_, isFold := directives[schema.DirectiveFold]
	_, isOptional := directives[schema.DirectiveOptional]
	_, isRecurse := directives[schema.DirectiveRecurse]
	_, isOutputSource := directives[schema.DirectiveOutputSource]

	if c.activeFold != nil && (isFold || isOptional || isRecurse || isOutputSource) {
		return compilerr.NewCompilationError(parentLoc.String(), "@fold, @optional, @recurse, and @output_source are not allowed inside an @fold scope")
	}
	if isFold && (isOptional || isRecurse || isOutputSource) {
		return compilerr.NewCompilationError(parentLoc.String(), "@fold cannot be combined with @optional, @recurse, or @output_source")
	}
	if isOptional && (isRecurse || isOutputSource) {
		return compilerr.NewCompilationError(parentLoc.String(), "@optional cannot be combined with @recurse or @output_source")
	}
	if isOptional && c.activeOptional != nil {
		return compilerr.NewCompilationError(parentLoc.String(), "@optional scopes cannot be nested")
	}
	if c.outputSourceSeen && !isFold {
		return compilerr.NewCompilationError(parentLoc.String(), "no further vertex fields are allowed after @output_source")
	}

	fieldName := astutil.FieldName(field)
	direction, edgeName, err := splitVertexFieldName(field.Name)
	if err != nil {
		return err
	}
	childTypeName := schema.NamedType(mustType(c.fieldType(parentType, field.Name)))

	// Counter-based revisit rule (§4.3 step 2b.2, §9).
	if isOptional && !isFold {
		if top := c.markTop(); top != nil && top.traverseCount > 0 {
			revisited := top.location.Revisit()
			c.emit(ir.MarkLocation{Location: revisited})
			c.popMark()
			c.pushMark(revisited)
		}
	}

	switch {
	case isFold:
		return c.processFold(parentLoc, field, fieldName, direction, edgeName, childTypeName, parentType)
	case isRecurse:
		return c.processRecurse(parentLoc, field, direction, edgeName, childTypeName, isOptional)
	default:
		return c.processTraverse(parentLoc, field, direction, edgeName, childTypeName, isOptional, isOutputSource)
	}
}

func mustType(t *ast.Type, ok bool) *ast.Type {
	if !ok {
		return nil
	}
	return t
}

func (c *context) processTraverse(parentLoc ir.Location, field *ast.Field, direction, edgeName, childTypeName string, isOptional, isOutputSource bool) error {
	// within_optional_scope: nested inside an ancestor's @optional scope,
	// as distinct from this traversal itself being the optional one
	// (compiler_frontend.py: 'optional' in context and not
	// edge_traversal_is_optional).
	withinOptionalScope := c.activeOptional != nil && !isOptional
	c.emit(ir.Traverse{Direction: direction, EdgeName: edgeName, Optional: isOptional, WithinOptionalScope: withinOptionalScope})
	childLoc := parentLoc.NavigateToSubpath(field.Name)
	c.locationTypes[childLoc] = childTypeName

	var prevOptional *ir.Location
	if isOptional {
		prevOptional = c.activeOptional
		oc := childLoc
		c.activeOptional = &oc
	}

	if err := c.processVertex(childLoc, field, childTypeName, field.SelectionSet, false); err != nil {
		return err
	}

	if isOptional {
		c.activeOptional = prevOptional
		c.popMark()
		c.emit(ir.EndOptional{})
		top := c.markTop()
		c.emit(ir.Backtrack{Location: top.location, Optional: true})
		revisited := top.location.Revisit()
		c.emit(ir.MarkLocation{Location: revisited})
		*top = markEntry{location: revisited}
	} else {
		c.popMark()
		if !c.outputSourceSeen || isOutputSource {
			c.emit(ir.Backtrack{Location: parentLoc})
		}
		if top := c.markTop(); top != nil {
			top.traverseCount++
		}
	}
	return nil
}

func (c *context) processRecurse(parentLoc ir.Location, field *ast.Field, direction, edgeName, childTypeName string, isOptional bool) error {
	depthDirective, err := findDirective(field.Directives, schema.DirectiveRecurse)
	if err != nil {
		return err
	}
	depth, ok := directiveIntArg(depthDirective, "depth")
	if !ok || depth < 1 {
		return compilerr.NewCompilationError(parentLoc.String(), "@recurse requires a depth argument of at least 1")
	}

	parentTypeName := c.locationTypes[parentLoc]
	if !c.isRecurseTypeCompatible(childTypeName, parentTypeName) {
		return compilerr.NewCompilationError(parentLoc.String(), "@recurse target type %q is not compatible with the current type %q", childTypeName, parentTypeName)
	}

	// @recurse can never itself be optional (rejected earlier in
	// processVertexChild), so within_optional_scope reduces to whether an
	// ancestor's @optional scope is currently active.
	withinOptionalScope := c.activeOptional != nil
	c.emit(ir.Recurse{Direction: direction, EdgeName: edgeName, Depth: depth, WithinOptionalScope: withinOptionalScope})
	childLoc := parentLoc.NavigateToSubpath(field.Name)
	c.locationTypes[childLoc] = childTypeName

	if err := c.processVertex(childLoc, field, childTypeName, field.SelectionSet, false); err != nil {
		return err
	}

	c.popMark()
	c.emit(ir.Backtrack{Location: parentLoc})
	if top := c.markTop(); top != nil {
		top.traverseCount++
	}
	return nil
}

// isRecurseTypeCompatible implements the @recurse type-compatibility rule:
// the target type must equal, implement, or (via type-equivalence hints) be
// unioned with the current vertex's type.
func (c *context) isRecurseTypeCompatible(target, current string) bool {
	sch := c.schemaInfo.schema
	if target == current {
		return true
	}
	if sch.Implements(target, current) || sch.Implements(current, target) {
		return true
	}
	if equiv, ok := c.schemaInfo.typeEquivalenceHints[current]; ok && equiv == target {
		return true
	}
	if equiv, ok := c.schemaInfo.typeEquivalenceHints[target]; ok && equiv == current {
		return true
	}
	return false
}

func (c *context) processFold(parentLoc ir.Location, field *ast.Field, fieldName, direction, edgeName, childTypeName, parentType string) error {
	foldScope := ir.NewFoldScopeLocation(parentLoc, field.Name)
	c.emit(ir.Fold{FoldScopeLocation: foldScope})

	prevFold := c.activeFold
	c.activeFold = &foldScope
	outputsBefore := len(c.outputs)

	foldLoc := parentLoc.NavigateToSubpath(field.Name)
	if err := c.processVertex(foldLoc, field, childTypeName, field.SelectionSet, false); err != nil {
		c.activeFold = prevFold
		return err
	}

	c.activeFold = prevFold
	if len(c.outputs) == outputsBefore {
		return compilerr.NewCompilationError(parentLoc.String(), "an @fold scope must contain at least one @output")
	}
	c.emit(ir.Unfold{})
	return nil
}

func (c *context) processFragment(parentLoc ir.Location, fragment *ast.InlineFragment, currentType string) error {
	fragmentType := fragment.TypeCondition
	if fragmentType != currentType {
		equivUnion, hasEquiv := c.schemaInfo.typeEquivalenceHints[currentType]
		if !(hasEquiv && equivUnion == fragmentType) {
			c.emit(ir.CoerceType{TargetType: fragmentType})
			c.coercedLocations[parentLoc] = true
			currentType = fragmentType
		}
	}
	return c.processVertex(parentLoc, nil, currentType, fragment.SelectionSet, false)
}

// splitVertexFieldName splits a vertex field's schema name into its
// direction ("out"/"in") and edge name.
func splitVertexFieldName(name string) (direction, edge string, err error) {
	switch {
	case strings.HasPrefix(name, "out_"):
		return "out", strings.TrimPrefix(name, "out_"), nil
	case strings.HasPrefix(name, "in_"):
		return "in", strings.TrimPrefix(name, "in_"), nil
	default:
		return "", "", compilerr.NewInternalError("field %q is not a vertex field", name)
	}
}

func findDirective(directives ast.DirectiveList, name string) (*ast.Directive, error) {
	for _, d := range directives {
		if d.Name == name {
			return d, nil
		}
	}
	return nil, compilerr.NewInternalError("expected directive @%s not found", name)
}

func directiveIntArg(d *ast.Directive, name string) (int, bool) {
	a, ok := astutil.DirectiveArg(d, name)
	if !ok || a.Value == nil {
		return 0, false
	}
	n := 0
	for _, r := range a.Value.Raw {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	return n, true
}

// emitConstructResult builds the terminal ConstructResult block (§4.3
// Terminal) from every recorded @output.
func (c *context) emitConstructResult() error {
	if len(c.outputs) == 0 {
		return compilerr.NewCompilationError("", "query defines no @output fields")
	}

	fields := make(map[string]ir.Expression, len(c.outputs))
	outMeta := make(map[string]OutputMetadata, len(c.outputs))

	names := make([]string, 0, len(c.outputs))
	for name := range c.outputs {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		info := c.outputs[name]
		if info.fold != nil {
			fields[name] = ir.FoldedOutputContextField{Fold: *info.fold, FieldName: info.fieldName, FieldType: info.fieldType}
			outMeta[name] = OutputMetadata{Type: info.fieldType, Optional: false, Folded: true}
			continue
		}
		outputExpr := ir.Expression(ir.OutputContextField{Location: info.location, FieldName: info.fieldName, FieldType: info.fieldType})
		if info.inOptional {
			outputExpr = ir.TernaryConditional{
				Predicate: ir.ContextFieldExistence{Location: info.location.AtVertex()},
				IfTrue:    outputExpr,
				IfFalse:   ir.NullLiteral{},
			}
		}
		fields[name] = outputExpr
		outMeta[name] = OutputMetadata{Type: info.fieldType, Optional: info.inOptional, Folded: false}
	}

	c.emit(ir.ConstructResult{Fields: fields})
	c.outputMetaResult = outMeta
	return nil
}
