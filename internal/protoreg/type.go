package protoreg

import (
	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/hanpama/portalgraph/internal/args"
)

// newAttributeField maps one declared attribute to a proto field:
//
//	Int64       int64
//	String      string
//	Bool        bool
//	Float64     double
//	Date        google.protobuf.Timestamp
//	Int64Array  repeated int64
//	LocaleMap   map<string, string>
//	Object      nested record message
func (b *builder) newAttributeField(fb *protobuilder.FileBuilder, entity string, spec args.Spec) *protobuilder.FieldBuilder {
	name := nameProtoField(spec.Name)
	var field *protobuilder.FieldBuilder
	switch spec.Kind {
	case args.Int64:
		field = protobuilder.NewField(name, protobuilder.FieldTypeScalar(protoreflect.Int64Kind))
	case args.String:
		field = protobuilder.NewField(name, protobuilder.FieldTypeScalar(protoreflect.StringKind))
	case args.Bool:
		field = protobuilder.NewField(name, protobuilder.FieldTypeScalar(protoreflect.BoolKind))
	case args.Float64:
		field = protobuilder.NewField(name, protobuilder.FieldTypeScalar(protoreflect.DoubleKind))
	case args.Date:
		field = protobuilder.NewField(name, protobuilder.FieldTypeImportedMessage(timestampDescriptor))
	case args.Int64Array:
		field = protobuilder.NewField(name, protobuilder.FieldTypeScalar(protoreflect.Int64Kind))
		field.SetRepeated()
	case args.LocaleMap:
		field = protobuilder.NewMapField(name,
			protobuilder.FieldTypeScalar(protoreflect.StringKind),
			protobuilder.FieldTypeScalar(protoreflect.StringKind))
	case args.Object:
		mb := b.newObjectMessage(fb, entity, spec)
		field = protobuilder.NewField(name, protobuilder.FieldTypeMessage(mb))
	default:
		panic("protoreg: unsupported argument kind " + spec.Kind.String())
	}
	field.SetJsonName(spec.Name)
	field.SetComments(comment(spec.Description))
	return field
}

var timestampDescriptor = (&timestamppb.Timestamp{}).ProtoReflect().Descriptor()
