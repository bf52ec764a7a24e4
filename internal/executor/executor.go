package executor

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/vektah/gqlparser/v2"
	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/gqlerror"
	"github.com/vektah/gqlparser/v2/validator"

	"github.com/hanpama/portalgraph/internal/schema"
)

type NodeID uint64

// executionState holds the state during query execution
type executionState struct {
	runtime        Runtime
	schema         *schema.Schema
	document       *ast.QueryDocument
	variableValues map[string]any
	context        context.Context
	asyncTaskGroup []asyncTask
	errors         gqlerror.List
	// simple incremental id generator
	nextID uint64
	// prefixes of paths that have been nullified (tombstoned)
	nullifiedPrefix map[string]struct{}
}

// asyncTask represents a pending async field resolution
type asyncTask struct {
	ID           NodeID
	Task         AsyncResolveTask
	ResponsePath ast.Path
	FieldType    *schema.TypeRef
	Fields       []*ast.Field
}

type asyncPending struct{}

type Executor struct {
	runtime   Runtime
	schema    *schema.Schema
	validator *ast.Schema
}

// NewExecutor returns an executor resolving s through runtime. Documents
// are validated against parsed, the gqlparser form of s.
func NewExecutor(runtime Runtime, s *schema.Schema, parsed *ast.Schema) *Executor {
	return &Executor{runtime: runtime, schema: s, validator: parsed}
}

// Prepare parses and validates a query document.
func (e *Executor) Prepare(query string) (*ast.QueryDocument, gqlerror.List) {
	return gqlparser.LoadQuery(e.validator, query)
}

// Operation selects the operation to run: the one called name, or the only
// one when name is empty.
func Operation(doc *ast.QueryDocument, name string) *ast.OperationDefinition {
	return doc.Operations.ForName(name)
}

// ExecuteRequest runs one operation of a prepared document.
func (e *Executor) ExecuteRequest(
	ctx context.Context,
	document *ast.QueryDocument,
	operationName string,
	variableValues map[string]any,
) *ExecutionResult {
	operation := Operation(document, operationName)
	if operation == nil {
		return &ExecutionResult{Errors: gqlerror.List{gqlerror.Errorf("operation not found")}}
	}

	coercedVariableValues, err := validator.VariableValues(e.validator, operation, variableValues)
	if err != nil {
		return &ExecutionResult{Errors: gqlerror.List{asGQLError(err)}}
	}

	var rootType *schema.Type
	switch operation.Operation {
	case ast.Query:
		rootType = e.schema.GetQueryType()
	case ast.Mutation:
		rootType = e.schema.GetMutationType()
	default:
		return &ExecutionResult{Errors: gqlerror.List{gqlerror.Errorf("unsupported operation type: %s", operation.Operation)}}
	}

	if rootType == nil {
		return &ExecutionResult{Errors: gqlerror.List{gqlerror.Errorf("root type not found for %s operation", operation.Operation)}}
	}

	state := &executionState{
		runtime:         e.runtime,
		schema:          e.schema,
		document:        document,
		variableValues:  coercedVariableValues,
		context:         ctx,
		nextID:          1,
		nullifiedPrefix: make(map[string]struct{}),
	}

	// Root selection set: sync immediate expansion, async queued
	responseRoot := executeSelectionSet(state, rootType, operation.SelectionSet, nil, nil)
	if responseRoot == nil {
		responseRoot = map[string]any{}
	}

	// Depth-wise batch loop
	for len(state.asyncTaskGroup) > 0 {
		filtered, results := flushAsyncTasks(state)
		for i, r := range results {
			completeAsyncField(state, filtered[i], r, responseRoot)
		}
	}

	return &ExecutionResult{Data: responseRoot, Errors: state.errors}
}

// executeSelectionSet executes a selection set without flushing
func executeSelectionSet(state *executionState, objectType *schema.Type, selectionSet ast.SelectionSet, objectValue any, path ast.Path) map[string]any {
	groupedFields := collectFields(state, objectType, selectionSet)
	resultMap := make(map[string]any)

	for _, collectedField := range groupedFields.orderedFields() {
		responseName := collectedField.ResponseName
		fields := collectedField.Fields
		fieldPath := appendPath(path, ast.PathName(responseName))

		fieldResult := executeFieldGroup(state, objectType, objectValue, fields, fieldPath)

		// Handle __typename special case
		if fields[0].Name == "__typename" {
			resultMap[responseName] = fieldResult
			continue
		}

		fieldDef := objectType.Field(fields[0].Name)
		if fieldDef == nil {
			// Unknown field – error was already recorded in executeFieldGroup; do not include it
			continue
		}

		// Handle non-null child behavior with nullish detection
		if schema.IsNonNull(fieldDef.Type) && isNullish(fieldResult) {
			if len(path) > 0 {
				return nil
			}
			// Root level: keep going but write nil
			resultMap[responseName] = nil
			continue
		}

		// For nullable fields, coerce typed-nil to interface-nil
		if isNullish(fieldResult) {
			resultMap[responseName] = nil
		} else {
			resultMap[responseName] = fieldResult
		}
	}

	return resultMap
}

func executeFieldGroup(state *executionState, objectType *schema.Type, objectValue any, fields []*ast.Field, path ast.Path) any {
	field := fields[0]
	fieldName := field.Name

	// Handle __typename meta field
	if fieldName == "__typename" {
		return objectType.Name
	}

	fieldDef := objectType.Field(fieldName)
	if fieldDef == nil {
		state.addError(fmt.Errorf("Cannot query field %q on type %q", fieldName, objectType.Name), field, path)
		return nil
	}

	argumentValues := field.ArgumentMap(state.variableValues)

	if !fieldDef.Async {
		resolvedValue := resolveSyncField(state, objectType.Name, field, objectValue, argumentValues, path)
		return completeValue(state, fieldDef.Type, fields, resolvedValue, path)
	}
	id := NodeID(state.nextID)
	state.nextID++
	state.asyncTaskGroup = append(state.asyncTaskGroup, asyncTask{
		ID: id,
		Task: AsyncResolveTask{
			ObjectType: objectType.Name,
			Field:      fieldName,
			Source:     objectValue,
			Args:       argumentValues,
		},
		ResponsePath: path,
		FieldType:    fieldDef.Type,
		Fields:       fields,
	})
	return asyncPending{}
}

// flushAsyncTasks flushes tasks and returns results (filtered by tombstones)
func flushAsyncTasks(state *executionState) ([]asyncTask, []AsyncResolveResult) {
	// Filter out tasks under nullified prefixes
	filtered := make([]asyncTask, 0, len(state.asyncTaskGroup))
	for _, at := range state.asyncTaskGroup {
		if state.hasNullifiedPrefix(at.ResponsePath) {
			continue
		}
		filtered = append(filtered, at)
	}

	tasks := make([]AsyncResolveTask, len(filtered))
	for i, at := range filtered {
		tasks[i] = at.Task
	}

	// Clear group before executing
	state.asyncTaskGroup = nil
	if len(tasks) == 0 {
		return nil, nil
	}

	results := state.runtime.BatchResolveAsync(state.context, tasks)
	if len(results) != len(tasks) {
		err := fmt.Errorf("runtime returned %d results for %d fields", len(results), len(tasks))
		results = make([]AsyncResolveResult, len(tasks))
		for i := range results {
			results[i].Error = err
		}
	}
	return filtered, results
}

// completeAsyncField completes a single async result, with non-null propagation and pruning
func completeAsyncField(state *executionState, at asyncTask, res AsyncResolveResult, responseRoot map[string]any) {
	path := at.ResponsePath
	// If this path is already nullified by an ancestor, ignore
	if state.hasNullifiedPrefix(path) {
		return
	}

	if res.Error != nil {
		state.addError(res.Error, at.Fields[0], path)
		// If non-null field, propagate to top-level field
		if schema.IsNonNull(at.FieldType) {
			top := topLevelFieldPath(path)
			setValueAtPath(responseRoot, top, nil)
			state.markNullifiedPrefix(top)
			return
		}
		setValueAtPath(responseRoot, path, nil)
		return
	}

	completed := completeValue(state, at.FieldType, at.Fields, res.Value, path)

	// If non-null type but completion yielded nullish → propagate
	if schema.IsNonNull(at.FieldType) && isNullish(completed) {
		top := topLevelFieldPath(path)
		setValueAtPath(responseRoot, top, nil)
		state.markNullifiedPrefix(top)
		return
	}

	// Normal write; coerce typed-nil to interface nil
	if isNullish(completed) {
		setValueAtPath(responseRoot, path, nil)
	} else {
		setValueAtPath(responseRoot, path, completed)
	}
}

// completeValue completes a value
func completeValue(state *executionState, fieldType *schema.TypeRef, fields []*ast.Field, result any, path ast.Path) any {
	if schema.IsNonNull(fieldType) {
		if isNullish(result) {
			if !state.hasErrorAtPath(path) {
				state.addError(fmt.Errorf("Cannot return null for non-nullable field %s", path.String()), fields[0], path)
			}
			return nil
		}
		completed := completeValue(state, schema.Unwrap(fieldType), fields, result, path)
		if isNullish(completed) {
			// Error already recorded at original path; propagate only
			return nil
		}
		return completed
	}

	if isNullish(result) {
		return nil
	}

	if schema.IsList(fieldType) {
		return completeListValue(state, fieldType, fields, result, path)
	}
	namedType := schema.GetNamedType(fieldType)
	typeObj := state.schema.Types[namedType]
	if typeObj == nil {
		state.addError(fmt.Errorf("Unknown type: %s", namedType), fields[0], path)
		return nil
	}

	switch typeObj.Kind {
	case schema.TypeKindScalar, schema.TypeKindEnum:
		serialized, err := state.runtime.SerializeLeafValue(state.context, namedType, result)
		if err != nil {
			state.addError(err, fields[0], path)
			return nil
		}
		return serialized
	case schema.TypeKindObject:
		return completeObjectValue(state, typeObj, fields, result, path)
	default:
		state.addError(fmt.Errorf("Cannot complete value of unexpected type: %s", typeObj.Kind), fields[0], path)
		return nil
	}
}

// completeListValue completes a list value
func completeListValue(state *executionState, listType *schema.TypeRef, fields []*ast.Field, result any, path ast.Path) any {
	var items []any
	if direct, ok := result.([]any); ok {
		items = direct
	} else {
		rv := reflect.ValueOf(result)
		if rv.Kind() != reflect.Slice {
			state.addError(fmt.Errorf("Expected list value, got %T", result), fields[0], path)
			return nil
		}
		items = make([]any, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			items[i] = rv.Index(i).Interface()
		}
	}

	inner := schema.Unwrap(listType)
	completed := make([]any, len(items))
	for i, item := range items {
		v := completeValue(state, inner, fields, item, appendPath(path, ast.PathIndex(i)))
		if schema.IsNonNull(inner) && isNullish(v) {
			// Propagate null to the list field; error already recorded by inner completion
			return nil
		}
		completed[i] = v
	}
	return completed
}

func completeObjectValue(state *executionState, objectType *schema.Type, fields []*ast.Field, result any, path ast.Path) any {
	sub := mergeSelectionSets(fields)
	return executeSelectionSet(state, objectType, sub, result, path)
}

func appendPath(path ast.Path, elem ast.PathElement) ast.Path {
	newPath := make(ast.Path, len(path)+1)
	copy(newPath, path)
	newPath[len(path)] = elem
	return newPath
}

// Prefix tombstone helpers
func (s *executionState) markNullifiedPrefix(p ast.Path) {
	key := p.String()
	if key != "" {
		s.nullifiedPrefix[key] = struct{}{}
	}
}

func (s *executionState) hasNullifiedPrefix(p ast.Path) bool {
	if len(s.nullifiedPrefix) == 0 {
		return false
	}
	// Build prefixes progressively
	for i := 1; i <= len(p); i++ {
		if _, ok := s.nullifiedPrefix[p[:i].String()]; ok {
			return true
		}
	}
	return false
}

func topLevelFieldPath(p ast.Path) ast.Path {
	for _, elem := range p {
		if name, ok := elem.(ast.PathName); ok {
			return ast.Path{name}
		}
	}
	return ast.Path{}
}

// addError records err at path. Errors that already are GraphQL errors keep
// their message and extensions.
func (s *executionState) addError(err error, field *ast.Field, path ast.Path) {
	var out gqlerror.Error
	var ge *gqlerror.Error
	if errors.As(err, &ge) {
		out = *ge
	} else {
		out = gqlerror.Error{Message: err.Error()}
	}
	out.Path = path
	if len(out.Locations) == 0 && field != nil && field.Position != nil {
		out.Locations = []gqlerror.Location{{Line: field.Position.Line, Column: field.Position.Column}}
	}
	s.errors = append(s.errors, &out)
}

// hasErrorAtPath reports whether an error with the given path already exists.
func (s *executionState) hasErrorAtPath(path ast.Path) bool {
	key := path.String()
	for _, err := range s.errors {
		if err.Path.String() == key {
			return true
		}
	}
	return false
}

// resolveSyncField resolves a field synchronously
func resolveSyncField(state *executionState, objectType string, field *ast.Field, source any, args map[string]any, path ast.Path) any {
	value, err := state.runtime.ResolveSync(state.context, objectType, field.Name, source, args)
	if err != nil {
		state.addError(err, field, path)
		return nil
	}
	return value
}

// Helper function to set value at a specific path in response tree
func setValueAtPath(responseRoot map[string]any, path ast.Path, value any) {
	if len(path) == 0 {
		return
	}
	current := any(responseRoot)
	for _, elem := range path[:len(path)-1] {
		switch e := elem.(type) {
		case ast.PathName:
			m, ok := current.(map[string]any)
			if !ok {
				return
			}
			next, exists := m[string(e)]
			if !exists || next == nil {
				return
			}
			current = next
		case ast.PathIndex:
			slice, ok := current.([]any)
			if !ok || int(e) >= len(slice) {
				return
			}
			current = slice[e]
		}
	}
	switch fe := path[len(path)-1].(type) {
	case ast.PathName:
		if m, ok := current.(map[string]any); ok {
			m[string(fe)] = value
		}
	case ast.PathIndex:
		if slice, ok := current.([]any); ok && int(fe) < len(slice) {
			slice[fe] = value
		}
	}
}

// mergeSelectionSets merges selection sets from multiple fields
func mergeSelectionSets(fields []*ast.Field) ast.SelectionSet {
	var merged ast.SelectionSet
	for _, f := range fields {
		merged = append(merged, f.SelectionSet...)
	}
	return merged
}

// isNullish returns true for nil interfaces and typed nils (map, slice, ptr, interface)
func isNullish(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Interface, reflect.Ptr, reflect.Slice, reflect.Map, reflect.Func, reflect.Chan:
		return rv.IsNil()
	default:
		return false
	}
}

func asGQLError(err error) *gqlerror.Error {
	var ge *gqlerror.Error
	if errors.As(err, &ge) {
		return ge
	}
	return gqlerror.Wrap(err)
}
