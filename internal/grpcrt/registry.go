package grpcrt

import "google.golang.org/protobuf/reflect/protoreflect"

// Operation is one of the five standard calls of an entity service.
type Operation int

const (
	OpBatchGet Operation = iota + 1
	OpList
	OpCreate
	OpUpdate
	OpDelete
)

func (o Operation) String() string {
	switch o {
	case OpBatchGet:
		return "BatchGet"
	case OpList:
		return "List"
	case OpCreate:
		return "Create"
	case OpUpdate:
		return "Update"
	case OpDelete:
		return "Delete"
	default:
		return "Unknown"
	}
}

// Registry exposes the wire descriptors of the entity services.
//
// Request and response shapes are fixed per operation:
//
//	BatchGet  request {repeated int64 ids = 1}        response {map<int64, Entity> entities = 1}
//	List      request {int32 start = 1; int32 end = 2} response {repeated Entity entities = 1}
//	Create    request {Entity entity = 1}             response Entity
//	Update    request {Entity entity = 1; google.protobuf.FieldMask update_mask = 2} response Entity
//	Delete    request {int64 id = 1}                  response Entity
type Registry interface {
	// GetAllServiceFiles returns every generated file descriptor.
	GetAllServiceFiles() []protoreflect.FileDescriptor
	// GetEntityDescriptor returns the record message of an entity, or nil.
	GetEntityDescriptor(entity string) protoreflect.MessageDescriptor
	// GetMethodDescriptor returns the method serving op for entity, or nil.
	GetMethodDescriptor(entity string, op Operation) protoreflect.MethodDescriptor
}
