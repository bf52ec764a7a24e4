package grpcrt

import (
	"context"

	"google.golang.org/protobuf/reflect/protoreflect"
)

// Transport handles the actual gRPC communication.
// This interface allows for different transport implementations (real gRPC, mock, etc.).
// Implementations MUST be safe for concurrent use: loaders of different
// entity types dispatch their batches in parallel.
//
// Provided implementations:
// - internal/grpctp.Transport: production-ready client with pooling and timeouts
// - MockTransport: recording fake for tests
type Transport interface {
	// Call executes a single gRPC method call.
	Call(ctx context.Context, method protoreflect.MethodDescriptor, request protoreflect.Message) (protoreflect.Message, error)
}
