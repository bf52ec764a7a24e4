// Package introspection answers __schema and __type queries from the schema
// model and hands every other field to the wrapped runtime.
package introspection

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/hanpama/portalgraph/internal/executor"
	"github.com/hanpama/portalgraph/internal/schema"
)

// Wrapper holds the wrapping runtime and the schema extended with the
// introspection types. Both go to executor.NewExecutor.
type Wrapper struct {
	Runtime executor.Runtime
	Schema  *schema.Schema
}

// Wrap returns a Runtime that handles GraphQL introspection fields.
func Wrap(base executor.Runtime, sch *schema.Schema) *Wrapper {
	extended := extend(sch)
	return &Wrapper{
		Runtime: &runtime{base: base, schema: extended},
		Schema:  extended,
	}
}

type runtime struct {
	base   executor.Runtime
	schema *schema.Schema
}

func (r *runtime) ResolveSync(ctx context.Context, objectType, field string, source any, args map[string]any) (any, error) {
	switch src := source.(type) {
	case *schema.Schema:
		return resolveSchemaField(src, field), nil
	case *schema.Type:
		return resolveTypeField(src, field, args), nil
	case *schema.TypeRef:
		return r.resolveTypeRefField(src, field, args), nil
	case *schema.Field:
		return resolveFieldField(src, field, args), nil
	case *schema.InputValue:
		return resolveInputValueField(src, field), nil
	case *schema.EnumValue:
		return resolveEnumValueField(src, field), nil
	case *schema.Directive:
		return resolveDirectiveField(src, field, args), nil
	}

	if objectType == r.schema.QueryType {
		switch field {
		case "__schema":
			return r.schema, nil
		case "__type":
			name, _ := args["name"].(string)
			if t := r.schema.Types[name]; t != nil {
				return t, nil
			}
			return nil, nil
		}
	}
	return r.base.ResolveSync(ctx, objectType, field, source, args)
}

func (r *runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	return r.base.BatchResolveAsync(ctx, tasks)
}

func (r *runtime) SerializeLeafValue(ctx context.Context, typ string, value any) (any, error) {
	if strings.HasPrefix(typ, "__") {
		return fmt.Sprint(value), nil
	}
	return r.base.SerializeLeafValue(ctx, typ, value)
}

func resolveSchemaField(sch *schema.Schema, field string) any {
	switch field {
	case "description":
		return optional(sch.Description)
	case "types":
		out := make([]*schema.Type, 0, len(sch.Types))
		for _, t := range sch.Types {
			out = append(out, t)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out
	case "queryType":
		return sch.GetQueryType()
	case "mutationType":
		return sch.GetMutationType()
	case "directives":
		out := make([]*schema.Directive, 0, len(sch.Directives))
		for _, d := range sch.Directives {
			out = append(out, d)
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
		return out
	}
	return nil
}

func resolveTypeField(t *schema.Type, field string, args map[string]any) any {
	switch field {
	case "kind":
		return string(t.Kind)
	case "name":
		return t.Name
	case "description":
		return optional(t.Description)
	case "fields":
		if t.Kind != schema.TypeKindObject {
			return nil
		}
		out := []*schema.Field{}
		for _, f := range t.Fields {
			if f.IsDeprecated && !boolArg(args, "includeDeprecated") {
				continue
			}
			out = append(out, f)
		}
		return out
	case "interfaces":
		if t.Kind != schema.TypeKindObject {
			return nil
		}
		return []*schema.Type{}
	case "enumValues":
		if t.Kind != schema.TypeKindEnum {
			return nil
		}
		out := []*schema.EnumValue{}
		for _, ev := range t.EnumValues {
			if ev.IsDeprecated && !boolArg(args, "includeDeprecated") {
				continue
			}
			out = append(out, ev)
		}
		return out
	case "inputFields":
		if t.Kind != schema.TypeKindInputObject {
			return nil
		}
		return inputValues(t.InputFields, args)
	}
	// possibleTypes, ofType, specifiedByURL and isOneOf are null for every
	// type the gateway declares.
	return nil
}

// resolveTypeRefField answers __Type fields for a field's type. Wrapper
// kinds expose ofType; a named reference reads through to its definition.
func (r *runtime) resolveTypeRefField(tr *schema.TypeRef, field string, args map[string]any) any {
	if tr.Kind == schema.TypeRefKindNamed {
		if def := r.schema.Types[tr.Named]; def != nil {
			return resolveTypeField(def, field, args)
		}
		return nil
	}
	switch field {
	case "kind":
		return string(tr.Kind)
	case "ofType":
		return tr.OfType
	}
	return nil
}

func resolveFieldField(f *schema.Field, field string, args map[string]any) any {
	switch field {
	case "name":
		return f.Name
	case "description":
		return optional(f.Description)
	case "args":
		return inputValues(f.Arguments, args)
	case "type":
		return f.Type
	case "isDeprecated":
		return f.IsDeprecated
	case "deprecationReason":
		return deprecationReason(f.IsDeprecated, f.DeprecationReason)
	}
	return nil
}

func resolveInputValueField(a *schema.InputValue, field string) any {
	switch field {
	case "name":
		return a.Name
	case "description":
		return optional(a.Description)
	case "type":
		return a.Type
	case "defaultValue":
		if a.DefaultValue == nil {
			return nil
		}
		return schema.ValueLiteral(a.DefaultValue)
	case "isDeprecated":
		return a.IsDeprecated
	case "deprecationReason":
		return deprecationReason(a.IsDeprecated, a.DeprecationReason)
	}
	return nil
}

func resolveEnumValueField(ev *schema.EnumValue, field string) any {
	switch field {
	case "name":
		return ev.Name
	case "description":
		return optional(ev.Description)
	case "isDeprecated":
		return ev.IsDeprecated
	case "deprecationReason":
		return deprecationReason(ev.IsDeprecated, ev.DeprecationReason)
	}
	return nil
}

func resolveDirectiveField(d *schema.Directive, field string, args map[string]any) any {
	switch field {
	case "name":
		return d.Name
	case "description":
		return optional(d.Description)
	case "isRepeatable":
		return d.IsRepeatable
	case "locations":
		locs := append([]string(nil), d.Locations...)
		sort.Strings(locs)
		return locs
	case "args":
		return inputValues(d.Arguments, args)
	}
	return nil
}

func inputValues(in []*schema.InputValue, args map[string]any) []*schema.InputValue {
	out := []*schema.InputValue{}
	for _, a := range in {
		if a.IsDeprecated && !boolArg(args, "includeDeprecated") {
			continue
		}
		out = append(out, a)
	}
	return out
}

func deprecationReason(deprecated bool, reason string) any {
	if !deprecated {
		return nil
	}
	return reason
}

// optional maps an empty description to null.
func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolArg(args map[string]any, name string) bool {
	b, _ := args[name].(bool)
	return b
}
