package protoreg

import (
	"github.com/jhump/protoreflect/v2/protobuilder"

	"github.com/hanpama/portalgraph/internal/args"
	"github.com/hanpama/portalgraph/internal/catalog"
)

// addEntityMessage adds the record message of e to its file.
func (b *builder) addEntityMessage(fb *protobuilder.FileBuilder, e catalog.Entity) *protobuilder.MessageBuilder {
	mb := protobuilder.NewMessage(nameEntityMessage(e.Name))
	mb.SetComments(comment(e.Description))
	b.addRecordFields(fb, mb, e.Name, e.Attributes())
	fb.AddMessage(mb)
	return mb
}

// newObjectMessage adds the message carrying an embedded object attribute.
func (b *builder) newObjectMessage(fb *protobuilder.FileBuilder, entity string, spec args.Spec) *protobuilder.MessageBuilder {
	mb := protobuilder.NewMessage(nameObjectMessage(entity, spec.Name))
	mb.SetComments(comment(spec.Description))
	b.addRecordFields(fb, mb, entity, spec.Fields)
	fb.AddMessage(mb)
	return mb
}

func (b *builder) addRecordFields(fb *protobuilder.FileBuilder, mb *protobuilder.MessageBuilder, entity string, specs []args.Spec) {
	fields := make([]*protobuilder.FieldBuilder, 0, len(specs))
	for _, spec := range specs {
		field := b.newAttributeField(fb, entity, spec)
		mb.AddField(field)
		fields = append(fields, field)
	}
	allocateFieldNumbers(fields)
}
