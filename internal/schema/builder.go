package schema

import (
	"strings"

	"github.com/hanpama/portalgraph/internal/args"
	"github.com/hanpama/portalgraph/internal/catalog"
)

const (
	// QueryTypeName and MutationTypeName name the root types.
	QueryTypeName    = "Query"
	MutationTypeName = "Mutation"

	// StartArg and EndArg select the window of list fields.
	StartArg = "start"
	EndArg   = "end"
)

// Options configures schema generation.
type Options struct {
	// Locales adds one flat String argument per locale and translated field
	// to create and update, e.g. title_en_US for titleMap.
	Locales []string
}

// Option mutates Options.
type Option func(*Options)

// WithLocales sets the locales offered as flat translated-text arguments.
func WithLocales(locales ...string) Option {
	return func(o *Options) { o.Locales = append([]string(nil), locales...) }
}

// Operation names the root field of an entity operation.
type Operation int

const (
	OpGet Operation = iota
	OpList
	OpCreate
	OpUpdate
	OpDelete
)

// RootField returns the name of the root field serving op for e.
func RootField(e catalog.Entity, op Operation) string {
	switch op {
	case OpGet:
		return e.SingleName()
	case OpList:
		return e.Plural
	case OpCreate:
		return "create" + e.Name
	case OpUpdate:
		return "update" + e.Name
	case OpDelete:
		return "delete" + e.Name
	}
	return ""
}

// ObjectTypeName names the output type of an Object attribute.
func ObjectTypeName(e catalog.Entity, attr args.Spec) string {
	return e.Name + strings.ToUpper(attr.Name[:1]) + attr.Name[1:]
}

// InputTypeName names the input type of an Object attribute.
func InputTypeName(e catalog.Entity, attr args.Spec) string {
	return ObjectTypeName(e, attr) + "Input"
}

// Build generates the schema serving every entity of c: a lookup and a list
// field per entity on Query, create/update/delete on Mutation, and one
// object type per entity whose reference fields resolve through the
// loaders.
func Build(c *catalog.Catalog, opts ...Option) *Schema {
	var o Options
	for _, f := range opts {
		f(&o)
	}
	s := NewSchema("")
	s.SetQueryType(QueryTypeName).SetMutationType(MutationTypeName)
	s.AddType(stringType).
		AddType(intType).
		AddType(floatType).
		AddType(booleanType).
		AddType(idType).
		AddType(longType).
		AddType(dateType).
		AddType(localeMapType)
	s.AddDirective(includeDirective).
		AddDirective(skipDirective)

	query := NewType(QueryTypeName, TypeKindObject, "")
	mutation := NewType(MutationTypeName, TypeKindObject, "")
	for _, e := range c.Entities() {
		buildEntity(s, e)
		buildQueryFields(query, e)
		buildMutationFields(mutation, e, o.Locales)
	}
	s.AddType(query).AddType(mutation)
	return s
}

func buildEntity(s *Schema, e catalog.Entity) {
	t := NewType(e.Name, TypeKindObject, e.Description)
	for i, attr := range e.Attributes() {
		typ := outputTypeRef(s, e, attr)
		if i == 0 {
			typ = NonNullType(typ)
		}
		t.AddField(NewField(attr.Name, attr.Description, typ))
	}
	for _, ref := range e.References {
		typ := NamedType(ref.Target)
		if ref.Many {
			typ = ListType(typ)
		}
		t.AddField(NewField(ref.Field, "Resolved from "+ref.Key+".", typ).SetAsync(true))
	}
	s.AddType(t)
}

func buildQueryFields(query *Type, e catalog.Entity) {
	query.AddField(NewField(RootField(e, OpGet), "Looks up one "+e.Name+" by id.", NamedType(e.Name)).
		SetAsync(true).
		AddArgument(NewInputValue(e.IDArg, "", NamedType(LongScalar))))
	query.AddField(NewField(RootField(e, OpList), "Lists the "+e.Name+" records in [start, end). end defaults to start+10.",
		NonNullType(ListType(NonNullType(NamedType(e.Name))))).
		SetAsync(true).
		AddArgument(NewInputValue(StartArg, "", NamedType("Int"))).
		AddArgument(NewInputValue(EndArg, "", NamedType("Int"))))
}

func buildMutationFields(mutation *Type, e catalog.Entity, locales []string) {
	create := NewField(RootField(e, OpCreate), "Creates a "+e.Name+".", NamedType(e.Name)).SetAsync(true)
	addInputArguments(create, e, locales)
	mutation.AddField(create)

	update := NewField(RootField(e, OpUpdate), "Updates the given fields of a "+e.Name+".", NamedType(e.Name)).
		SetAsync(true).
		AddArgument(NewInputValue(e.IDArg, "", NamedType(LongScalar)))
	addInputArguments(update, e, locales)
	mutation.AddField(update)

	mutation.AddField(NewField(RootField(e, OpDelete), "Deletes a "+e.Name+".", NamedType(e.Name)).
		SetAsync(true).
		AddArgument(NewInputValue(e.IDArg, "", NamedType(LongScalar))))
}

func addInputArguments(f *Field, e catalog.Entity, locales []string) {
	for _, spec := range e.Fields {
		f.AddArgument(NewInputValue(spec.Name, spec.Description, inputTypeRef(e, spec)))
	}
	for _, spec := range e.Fields {
		if spec.Kind != args.LocaleMap {
			continue
		}
		for _, locale := range locales {
			f.AddArgument(NewInputValue(args.LocaleKey(spec.Name, locale), "", NamedType("String")))
		}
	}
}

func outputTypeRef(s *Schema, e catalog.Entity, attr args.Spec) *TypeRef {
	if attr.Kind == args.Object {
		name := ObjectTypeName(e, attr)
		if s.Types[name] == nil {
			t := NewType(name, TypeKindObject, attr.Description)
			for _, sub := range attr.Fields {
				t.AddField(NewField(sub.Name, sub.Description, outputTypeRef(s, e, sub)))
			}
			s.AddType(t)
			in := NewType(InputTypeName(e, attr), TypeKindInputObject, attr.Description)
			for _, sub := range attr.Fields {
				v := NewInputValue(sub.Name, sub.Description, inputTypeRef(e, sub))
				if sub.Default != nil {
					v.SetDefault(sub.Default)
				}
				in.AddInputField(v)
			}
			s.AddType(in)
		}
		return NamedType(name)
	}
	return scalarTypeRef(attr.Kind)
}

func inputTypeRef(e catalog.Entity, attr args.Spec) *TypeRef {
	if attr.Kind == args.Object {
		return NamedType(InputTypeName(e, attr))
	}
	return scalarTypeRef(attr.Kind)
}

func scalarTypeRef(kind args.Kind) *TypeRef {
	switch kind {
	case args.Int64:
		return NamedType(LongScalar)
	case args.Bool:
		return NamedType("Boolean")
	case args.Float64:
		return NamedType("Float")
	case args.Date:
		return NamedType(DateScalar)
	case args.Int64Array:
		return ListType(NonNullType(NamedType(LongScalar)))
	case args.LocaleMap:
		return NamedType(LocaleMapScalar)
	}
	return NamedType("String")
}
