package protoreg

import (
	"github.com/hanpama/portalgraph/internal/grpcrt"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// Registry implements grpcrt.Registry
type Registry struct {
	fileDescriptors   []protoreflect.FileDescriptor
	entityDescriptors map[string]protoreflect.MessageDescriptor
	methodDescriptors map[methodKey]protoreflect.MethodDescriptor
}

// GetAllServiceFiles implements grpcrt.Registry.
func (r *Registry) GetAllServiceFiles() []protoreflect.FileDescriptor {
	return r.fileDescriptors
}

// GetEntityDescriptor implements grpcrt.Registry.
func (r *Registry) GetEntityDescriptor(entity string) protoreflect.MessageDescriptor {
	return r.entityDescriptors[entity]
}

// GetMethodDescriptor implements grpcrt.Registry.
func (r *Registry) GetMethodDescriptor(entity string, op grpcrt.Operation) protoreflect.MethodDescriptor {
	return r.methodDescriptors[methodKey{entity, op}]
}

var _ grpcrt.Registry = (*Registry)(nil)
