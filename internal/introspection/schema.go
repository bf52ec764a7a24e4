package introspection

import (
	"github.com/hanpama/portalgraph/internal/schema"
)

// extend returns a copy of original that also carries the introspection
// types and the __schema and __type root fields.
func extend(original *schema.Schema) *schema.Schema {
	extended := schema.NewSchema(original.Description)
	extended.SetQueryType(original.QueryType).SetMutationType(original.MutationType)
	for _, typ := range original.Types {
		extended.AddType(typ)
	}
	for _, d := range original.Directives {
		extended.AddDirective(d)
	}
	for _, typ := range []*schema.Type{
		schemaType(), typeType(), fieldType(), inputValueType(), enumValueType(),
		directiveType(), typeKindEnum(), directiveLocationEnum(),
	} {
		extended.AddType(typ)
	}

	// The query type is copied so the original keeps rendering without
	// the meta fields.
	if query := original.GetQueryType(); query != nil {
		copied := schema.NewType(query.Name, query.Kind, query.Description)
		copied.Fields = append(copied.Fields, query.Fields...)
		copied.AddField(schema.NewField("__schema", "Access the current type schema of this server.",
			schema.NonNullType(named("__Schema"))))
		copied.AddField(schema.NewField("__type", "Request the type information of a single type.", named("__Type")).
			AddArgument(schema.NewInputValue("name", "", schema.NonNullType(named("String")))))
		extended.AddType(copied)
	}
	return extended
}

func named(name string) *schema.TypeRef { return schema.NamedType(name) }

// listOf returns [name!].
func listOf(name string) *schema.TypeRef {
	return schema.ListType(schema.NonNullType(named(name)))
}

func includeDeprecated() *schema.InputValue {
	return schema.NewInputValue("includeDeprecated", "", named("Boolean")).SetDefault(false)
}

func schemaType() *schema.Type {
	return schema.NewType("__Schema", schema.TypeKindObject, "A GraphQL Schema defines the capabilities of a GraphQL server.").
		AddField(schema.NewField("description", "", named("String"))).
		AddField(schema.NewField("types", "A list of all types supported by this server.", schema.NonNullType(listOf("__Type")))).
		AddField(schema.NewField("queryType", "The type that query operations will be rooted at.", schema.NonNullType(named("__Type")))).
		AddField(schema.NewField("mutationType", "The type that mutation operations will be rooted at.", named("__Type"))).
		AddField(schema.NewField("subscriptionType", "Always null: the gateway serves no subscriptions.", named("__Type"))).
		AddField(schema.NewField("directives", "A list of all directives supported by this server.", schema.NonNullType(listOf("__Directive"))))
}

func typeType() *schema.Type {
	return schema.NewType("__Type", schema.TypeKindObject, "The fundamental unit of any GraphQL Schema is the type.").
		AddField(schema.NewField("kind", "", schema.NonNullType(named("__TypeKind")))).
		AddField(schema.NewField("name", "", named("String"))).
		AddField(schema.NewField("description", "", named("String"))).
		AddField(schema.NewField("specifiedByURL", "", named("String"))).
		AddField(schema.NewField("fields", "", listOf("__Field")).AddArgument(includeDeprecated())).
		AddField(schema.NewField("interfaces", "", listOf("__Type"))).
		AddField(schema.NewField("possibleTypes", "", listOf("__Type"))).
		AddField(schema.NewField("enumValues", "", listOf("__EnumValue")).AddArgument(includeDeprecated())).
		AddField(schema.NewField("inputFields", "", listOf("__InputValue")).AddArgument(includeDeprecated())).
		AddField(schema.NewField("ofType", "", named("__Type"))).
		AddField(schema.NewField("isOneOf", "", named("Boolean")))
}

func fieldType() *schema.Type {
	return schema.NewType("__Field", schema.TypeKindObject, "").
		AddField(schema.NewField("name", "", schema.NonNullType(named("String")))).
		AddField(schema.NewField("description", "", named("String"))).
		AddField(schema.NewField("args", "", schema.NonNullType(listOf("__InputValue"))).AddArgument(includeDeprecated())).
		AddField(schema.NewField("type", "", schema.NonNullType(named("__Type")))).
		AddField(schema.NewField("isDeprecated", "", schema.NonNullType(named("Boolean")))).
		AddField(schema.NewField("deprecationReason", "", named("String")))
}

func inputValueType() *schema.Type {
	return schema.NewType("__InputValue", schema.TypeKindObject, "").
		AddField(schema.NewField("name", "", schema.NonNullType(named("String")))).
		AddField(schema.NewField("description", "", named("String"))).
		AddField(schema.NewField("type", "", schema.NonNullType(named("__Type")))).
		AddField(schema.NewField("defaultValue", "", named("String"))).
		AddField(schema.NewField("isDeprecated", "", schema.NonNullType(named("Boolean")))).
		AddField(schema.NewField("deprecationReason", "", named("String")))
}

func enumValueType() *schema.Type {
	return schema.NewType("__EnumValue", schema.TypeKindObject, "").
		AddField(schema.NewField("name", "", schema.NonNullType(named("String")))).
		AddField(schema.NewField("description", "", named("String"))).
		AddField(schema.NewField("isDeprecated", "", schema.NonNullType(named("Boolean")))).
		AddField(schema.NewField("deprecationReason", "", named("String")))
}

func directiveType() *schema.Type {
	return schema.NewType("__Directive", schema.TypeKindObject, "").
		AddField(schema.NewField("name", "", schema.NonNullType(named("String")))).
		AddField(schema.NewField("description", "", named("String"))).
		AddField(schema.NewField("isRepeatable", "", schema.NonNullType(named("Boolean")))).
		AddField(schema.NewField("locations", "", schema.NonNullType(listOf("__DirectiveLocation")))).
		AddField(schema.NewField("args", "", schema.NonNullType(listOf("__InputValue"))).AddArgument(includeDeprecated()))
}

func enumType(name string, values ...string) *schema.Type {
	t := schema.NewType(name, schema.TypeKindEnum, "")
	for _, v := range values {
		t.AddEnumValue(&schema.EnumValue{Name: v})
	}
	return t
}

func typeKindEnum() *schema.Type {
	return enumType("__TypeKind",
		"SCALAR", "OBJECT", "INTERFACE", "UNION", "ENUM", "INPUT_OBJECT", "LIST", "NON_NULL")
}

func directiveLocationEnum() *schema.Type {
	return enumType("__DirectiveLocation",
		"QUERY", "MUTATION", "SUBSCRIPTION", "FIELD", "FRAGMENT_DEFINITION", "FRAGMENT_SPREAD",
		"INLINE_FRAGMENT", "VARIABLE_DEFINITION", "SCHEMA", "SCALAR", "OBJECT", "FIELD_DEFINITION",
		"ARGUMENT_DEFINITION", "INTERFACE", "UNION", "ENUM", "ENUM_VALUE", "INPUT_OBJECT",
		"INPUT_FIELD_DEFINITION")
}
