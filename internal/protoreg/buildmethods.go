package protoreg

import (
	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/known/fieldmaskpb"

	"github.com/hanpama/portalgraph/internal/catalog"
	"github.com/hanpama/portalgraph/internal/grpcrt"
)

var fieldMaskDescriptor = (&fieldmaskpb.FieldMask{}).ProtoReflect().Descriptor()

// addService adds the entity service with its five methods.
func (b *builder) addService(fb *protobuilder.FileBuilder, e catalog.Entity, entityMB *protobuilder.MessageBuilder) {
	sb := protobuilder.NewService(nameService(e.Name))
	sb.SetComments(comment("Domain service layer of " + e.Name + "."))

	batchGet := nameBatchGetMethod(e.Plural)
	req := protobuilder.NewMessage(nameRequest(batchGet))
	req.AddField(numbered(protobuilder.NewField("ids", protobuilder.FieldTypeScalar(protoreflect.Int64Kind)).SetRepeated(), 1))
	resp := protobuilder.NewMessage(nameResponse(batchGet))
	resp.AddField(numbered(protobuilder.NewMapField("entities",
		protobuilder.FieldTypeScalar(protoreflect.Int64Kind),
		protobuilder.FieldTypeMessage(entityMB)), 1))
	b.addMethod(fb, sb, e.Name, grpcrt.OpBatchGet, batchGet, req, resp,
		"Returns the requested records keyed by id. Unknown ids are omitted.")

	list := nameListMethod(e.Plural)
	req = protobuilder.NewMessage(nameRequest(list))
	req.AddField(numbered(protobuilder.NewField("start", protobuilder.FieldTypeScalar(protoreflect.Int32Kind)), 1))
	req.AddField(numbered(protobuilder.NewField("end", protobuilder.FieldTypeScalar(protoreflect.Int32Kind)), 2))
	resp = protobuilder.NewMessage(nameResponse(list))
	resp.AddField(numbered(protobuilder.NewField("entities", protobuilder.FieldTypeMessage(entityMB)).SetRepeated(), 1))
	b.addMethod(fb, sb, e.Name, grpcrt.OpList, list, req, resp,
		"Returns the records in [start, end).")

	create := nameCreateMethod(e.Name)
	req = protobuilder.NewMessage(nameRequest(create))
	req.AddField(numbered(protobuilder.NewField("entity", protobuilder.FieldTypeMessage(entityMB)), 1))
	b.addMethod(fb, sb, e.Name, grpcrt.OpCreate, create, req, entityMB, "")

	update := nameUpdateMethod(e.Name)
	req = protobuilder.NewMessage(nameRequest(update))
	req.AddField(numbered(protobuilder.NewField("entity", protobuilder.FieldTypeMessage(entityMB)), 1))
	req.AddField(numbered(protobuilder.NewField("update_mask", protobuilder.FieldTypeImportedMessage(fieldMaskDescriptor)), 2))
	b.addMethod(fb, sb, e.Name, grpcrt.OpUpdate, update, req, entityMB,
		"Applies the attributes named by update_mask. Fails with NOT_FOUND for unknown ids.")

	del := nameDeleteMethod(e.Name)
	req = protobuilder.NewMessage(nameRequest(del))
	req.AddField(numbered(protobuilder.NewField("id", protobuilder.FieldTypeScalar(protoreflect.Int64Kind)), 1))
	b.addMethod(fb, sb, e.Name, grpcrt.OpDelete, del, req, entityMB,
		"Fails with NOT_FOUND for unknown ids.")

	fb.AddService(sb)
}

func (b *builder) addMethod(
	fb *protobuilder.FileBuilder,
	sb *protobuilder.ServiceBuilder,
	entity string,
	op grpcrt.Operation,
	name protoreflect.Name,
	req, resp *protobuilder.MessageBuilder,
	doc string,
) {
	fb.AddMessage(req)
	if resp.Name() != nameEntityMessage(entity) {
		fb.AddMessage(resp)
	}
	mb := protobuilder.NewMethod(name,
		protobuilder.RpcTypeMessage(req, false),
		protobuilder.RpcTypeMessage(resp, false),
	)
	mb.SetComments(comment(doc))
	sb.AddMethod(mb)
	b.methods[methodKey{entity, op}] = [2]string{string(sb.Name()), string(name)}
}

func numbered(fb *protobuilder.FieldBuilder, n int) *protobuilder.FieldBuilder {
	return fb.SetNumber(protoreflect.FieldNumber(n))
}
