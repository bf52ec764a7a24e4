package schema

import (
	"bytes"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/vektah/gqlparser/v2/ast"
	"github.com/vektah/gqlparser/v2/formatter"
)

// Document converts s into a gqlparser schema document. The root types come
// first, then the other types and the directives sorted by name. Types every
// GraphQL implementation provides, along with the introspection types and
// fields, are left out: gqlparser declares them itself.
func Document(s *Schema) *ast.SchemaDocument {
	doc := &ast.SchemaDocument{}
	if s == nil {
		return doc
	}

	var names []string
	for name, typ := range s.Types {
		if builtin(typ) || reserved(name) || name == s.QueryType || name == s.MutationType {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	for _, root := range []string{s.MutationType, s.QueryType} {
		if root != "" && s.Types[root] != nil {
			names = append([]string{root}, names...)
		}
	}
	for _, name := range names {
		doc.Definitions = append(doc.Definitions, definition(s.Types[name]))
	}

	var directives []string
	for name, d := range s.Directives {
		if d == includeDirective || d == skipDirective || reserved(name) {
			continue
		}
		directives = append(directives, name)
	}
	sort.Strings(directives)
	for _, name := range directives {
		d := s.Directives[name]
		def := &ast.DirectiveDefinition{
			Description:  d.Description,
			Name:         d.Name,
			Arguments:    arguments(d.Arguments),
			IsRepeatable: d.IsRepeatable,
		}
		for _, loc := range d.Locations {
			def.Locations = append(def.Locations, ast.DirectiveLocation(loc))
		}
		doc.Directives = append(doc.Directives, def)
	}
	return doc
}

// Render produces the SDL of s.
func Render(s *Schema) string {
	var buf bytes.Buffer
	formatter.NewFormatter(&buf).FormatSchemaDocument(Document(s))
	return strings.TrimLeft(buf.String(), "\n")
}

func reserved(name string) bool { return strings.HasPrefix(name, "__") }

func definition(t *Type) *ast.Definition {
	def := &ast.Definition{Kind: ast.DefinitionKind(t.Kind), Description: t.Description, Name: t.Name}
	switch t.Kind {
	case TypeKindObject:
		for _, f := range t.Fields {
			if reserved(f.Name) {
				continue
			}
			def.Fields = append(def.Fields, &ast.FieldDefinition{
				Description: f.Description,
				Name:        f.Name,
				Arguments:   arguments(f.Arguments),
				Type:        typeRef(f.Type),
				Directives:  deprecation(f.IsDeprecated, f.DeprecationReason),
			})
		}
	case TypeKindInputObject:
		for _, v := range t.InputFields {
			def.Fields = append(def.Fields, &ast.FieldDefinition{
				Description:  v.Description,
				Name:         v.Name,
				Type:         typeRef(v.Type),
				DefaultValue: defaultLiteral(v.DefaultValue),
				Directives:   deprecation(v.IsDeprecated, v.DeprecationReason),
			})
		}
	case TypeKindEnum:
		for _, v := range t.EnumValues {
			def.EnumValues = append(def.EnumValues, &ast.EnumValueDefinition{
				Description: v.Description,
				Name:        v.Name,
				Directives:  deprecation(v.IsDeprecated, v.DeprecationReason),
			})
		}
	}
	return def
}

func arguments(values []*InputValue) ast.ArgumentDefinitionList {
	var out ast.ArgumentDefinitionList
	for _, v := range values {
		out = append(out, &ast.ArgumentDefinition{
			Description:  v.Description,
			Name:         v.Name,
			Type:         typeRef(v.Type),
			DefaultValue: defaultLiteral(v.DefaultValue),
			Directives:   deprecation(v.IsDeprecated, v.DeprecationReason),
		})
	}
	return out
}

func deprecation(deprecated bool, reason string) ast.DirectiveList {
	if !deprecated {
		return nil
	}
	d := &ast.Directive{Name: "deprecated"}
	if reason != "" {
		d.Arguments = ast.ArgumentList{{Name: "reason", Value: &ast.Value{Kind: ast.StringValue, Raw: reason}}}
	}
	return ast.DirectiveList{d}
}

func typeRef(t *TypeRef) *ast.Type {
	if t == nil {
		return nil
	}
	switch t.Kind {
	case TypeRefKindList:
		return ast.ListType(typeRef(t.OfType), nil)
	case TypeRefKindNonNull:
		inner := *typeRef(t.OfType)
		inner.NonNull = true
		return &inner
	default:
		return ast.NamedType(t.Named, nil)
	}
}

func defaultLiteral(value any) *ast.Value {
	if value == nil {
		return nil
	}
	return literal(value)
}

// ValueLiteral renders value as a GraphQL literal, the form introspection
// reports default values in.
func ValueLiteral(value any) string { return literal(value).String() }

func literal(value any) *ast.Value {
	switch v := value.(type) {
	case nil:
		return &ast.Value{Kind: ast.NullValue, Raw: "null"}
	case string:
		return &ast.Value{Kind: ast.StringValue, Raw: v}
	case bool:
		return &ast.Value{Kind: ast.BooleanValue, Raw: strconv.FormatBool(v)}
	case int, int32, int64:
		return &ast.Value{Kind: ast.IntValue, Raw: fmt.Sprint(v)}
	case float32:
		return &ast.Value{Kind: ast.FloatValue, Raw: strconv.FormatFloat(float64(v), 'g', -1, 32)}
	case float64:
		return &ast.Value{Kind: ast.FloatValue, Raw: strconv.FormatFloat(v, 'g', -1, 64)}
	case []any:
		out := &ast.Value{Kind: ast.ListValue}
		for _, item := range v {
			out.Children = append(out.Children, &ast.ChildValue{Value: literal(item)})
		}
		return out
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := &ast.Value{Kind: ast.ObjectValue}
		for _, k := range keys {
			out.Children = append(out.Children, &ast.ChildValue{Name: k, Value: literal(v[k])})
		}
		return out
	default:
		// enum values
		return &ast.Value{Kind: ast.EnumValue, Raw: fmt.Sprint(v)}
	}
}
