// Package actor carries the acting identity of a request in its context.
package actor

import (
	"context"
	"strconv"

	"google.golang.org/grpc/metadata"
)

// MetadataKey is the gRPC metadata key carrying the acting identity to the
// domain service layer.
const MetadataKey = "x-portal-user-id"

type key struct{}

// NewContext returns a copy of parent carrying id as the acting identity.
func NewContext(parent context.Context, id int64) context.Context {
	return context.WithValue(parent, key{}, id)
}

// FromContext extracts the acting identity from ctx.
func FromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(key{}).(int64)
	return id, ok
}

// FromIncoming reads the acting identity a client sent in gRPC metadata.
func FromIncoming(ctx context.Context) (int64, bool) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return 0, false
	}
	vals := md.Get(MetadataKey)
	if len(vals) == 0 {
		return 0, false
	}
	id, err := strconv.ParseInt(vals[0], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}
