package protoreg

import (
	"strings"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// PackageName is the proto package of every generated file.
const PackageName = "portal.v1"

func nameFilePath(entity string) string {
	return "portal/v1/" + snakeCase(entity) + ".proto"
}

func nameEntityMessage(entity string) protoreflect.Name {
	return protoreflect.Name(capitalize(entity))
}

func nameObjectMessage(entity, field string) protoreflect.Name {
	return protoreflect.Name(capitalize(entity) + capitalize(field))
}

func nameProtoField(name string) protoreflect.Name {
	return protoreflect.Name(snakeCase(name))
}

func nameService(entity string) protoreflect.Name {
	return protoreflect.Name(capitalize(entity) + "Service")
}

func nameBatchGetMethod(plural string) protoreflect.Name {
	return protoreflect.Name("BatchGet" + capitalize(plural))
}

func nameListMethod(plural string) protoreflect.Name {
	return protoreflect.Name("List" + capitalize(plural))
}

func nameCreateMethod(entity string) protoreflect.Name {
	return protoreflect.Name("Create" + capitalize(entity))
}

func nameUpdateMethod(entity string) protoreflect.Name {
	return protoreflect.Name("Update" + capitalize(entity))
}

func nameDeleteMethod(entity string) protoreflect.Name {
	return protoreflect.Name("Delete" + capitalize(entity))
}

func nameRequest(method protoreflect.Name) protoreflect.Name {
	return method + "Request"
}

func nameResponse(method protoreflect.Name) protoreflect.Name {
	return method + "Response"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// snakeCase converts a string from camelCase or PascalCase to snake_case.
func snakeCase(s string) string {
	var sb strings.Builder
	for i, r := range s {
		if i > 0 && r >= 'A' && r <= 'Z' {
			sb.WriteByte('_')
		}
		sb.WriteRune(r)
	}
	return strings.ToLower(sb.String())
}

// comment turns a description into a leading comment, one " line" per line.
func comment(desc string) protobuilder.Comments {
	if desc == "" {
		return protobuilder.Comments{}
	}
	var b strings.Builder
	for _, line := range strings.Split(desc, "\n") {
		b.WriteString(" " + line + "\n")
	}
	return protobuilder.Comments{LeadingComment: b.String()}
}
