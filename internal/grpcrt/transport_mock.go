package grpcrt

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
)

// CallRecord captures a single Call invocation for assertions.
type CallRecord struct {
	// Method is the descriptor invoked.
	Method protoreflect.MethodDescriptor
	// FullMethod is "/<service full name>/<method>" for convenience.
	FullMethod string
	// Request is a deep-cloned proto message snapshot of the input.
	Request proto.Message
}

// MockHandler answers one call of a MockTransport.
type MockHandler func(method protoreflect.MethodDescriptor, request protoreflect.Message) (protoreflect.Message, error)

// MockTransport implements Transport by delegating to a handler while
// recording Call invocations for inspection.
type MockTransport struct {
	mu      sync.Mutex
	handler MockHandler
	calls   []CallRecord
}

// NewMockTransport creates a MockTransport answering every call with h.
func NewMockTransport(h MockHandler) *MockTransport {
	return &MockTransport{handler: h}
}

// Call records the invocation and returns the handler's answer.
func (m *MockTransport) Call(ctx context.Context, method protoreflect.MethodDescriptor, request protoreflect.Message) (protoreflect.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var reqClone proto.Message
	if request != nil {
		reqClone = proto.Clone(request.Interface())
	}
	full := ""
	if method != nil {
		full = fmt.Sprintf("/%s/%s", method.Parent().FullName(), method.Name())
	}

	m.mu.Lock()
	m.calls = append(m.calls, CallRecord{Method: method, FullMethod: full, Request: reqClone})
	h := m.handler
	m.mu.Unlock()

	if h == nil {
		return nil, fmt.Errorf("mock transport: no handler for %s", full)
	}
	return h(method, request)
}

// Calls returns a snapshot of recorded Call invocations.
func (m *MockTransport) Calls() []CallRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]CallRecord, len(m.calls))
	copy(out, m.calls)
	return out
}
