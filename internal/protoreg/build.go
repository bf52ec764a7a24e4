// Package protoreg builds the protobuf descriptors of the entity services
// from the catalog and implements grpcrt.Registry over them.
package protoreg

import (
	"fmt"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/portalgraph/internal/catalog"
	"github.com/hanpama/portalgraph/internal/grpcrt"
)

type methodKey struct {
	entity string
	op     grpcrt.Operation
}

type builder struct {
	// methods maps (entity, op) to [service, method] names.
	methods map[methodKey][2]string
}

// Build generates one file per entity: the record message, any embedded
// object messages, the request/response messages and the entity service.
func Build(c *catalog.Catalog) (*Registry, error) {
	b := &builder{methods: map[methodKey][2]string{}}

	reg := &Registry{
		entityDescriptors: map[string]protoreflect.MessageDescriptor{},
		methodDescriptors: map[methodKey]protoreflect.MethodDescriptor{},
	}
	for _, e := range c.Entities() {
		fb := protobuilder.NewFile(nameFilePath(e.Name))
		fb.SetPackageName(PackageName)
		fb.SetSyntax(protoreflect.Proto3)

		entityMB := b.addEntityMessage(fb, e)
		b.addService(fb, e, entityMB)

		fd, err := fb.Build()
		if err != nil {
			return nil, fmt.Errorf("protoreg: build %s: %w", e.Name, err)
		}
		reg.fileDescriptors = append(reg.fileDescriptors, fd)
		reg.entityDescriptors[e.Name] = fd.Messages().ByName(nameEntityMessage(e.Name))

		svc := fd.Services().ByName(nameService(e.Name))
		for key, names := range b.methods {
			if key.entity != e.Name {
				continue
			}
			md := svc.Methods().ByName(protoreflect.Name(names[1]))
			if md == nil {
				return nil, fmt.Errorf("protoreg: %s.%s missing from built service", names[0], names[1])
			}
			reg.methodDescriptors[key] = md
		}
	}
	return reg, nil
}
