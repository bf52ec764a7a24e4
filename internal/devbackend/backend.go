// Package devbackend is an in-memory domain service layer. It serves every
// entity service of a registry over gRPC without generated stubs, decoding
// requests into dynamic messages. It backs local development and the
// integration tests; it is not a persistence layer.
package devbackend

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
	"google.golang.org/protobuf/types/known/timestamppb"

	"github.com/hanpama/portalgraph/internal/actor"
	"github.com/hanpama/portalgraph/internal/catalog"
	"github.com/hanpama/portalgraph/internal/grpcrt"
)

type route struct {
	entity string
	op     grpcrt.Operation
	md     protoreflect.MethodDescriptor
}

type table struct {
	name    string
	desc    protoreflect.MessageDescriptor
	idField protoreflect.FieldDescriptor
	rows    map[int64]protoreflect.Message
	nextID  int64
}

// Backend stores entity records in memory and answers the entity services.
type Backend struct {
	now func() time.Time

	routes map[string]route // key: "/<service>/<method>"

	mu     sync.Mutex
	tables map[string]*table
}

// Option configures a Backend.
type Option func(*Backend)

// WithClock replaces the clock used for audit timestamps.
func WithClock(now func() time.Time) Option { return func(b *Backend) { b.now = now } }

// New creates an empty backend for every entity of c described by reg.
func New(c *catalog.Catalog, reg grpcrt.Registry, opts ...Option) (*Backend, error) {
	b := &Backend{
		now:    time.Now,
		routes: map[string]route{},
		tables: map[string]*table{},
	}
	for _, o := range opts {
		o(b)
	}
	for _, e := range c.Entities() {
		desc := reg.GetEntityDescriptor(e.Name)
		if desc == nil {
			return nil, fmt.Errorf("devbackend: no descriptor for %s", e.Name)
		}
		idField := desc.Fields().ByJSONName(e.IDArg)
		if idField == nil {
			return nil, fmt.Errorf("devbackend: %s has no id attribute %s", e.Name, e.IDArg)
		}
		b.tables[e.Name] = &table{name: e.Name, desc: desc, idField: idField, rows: map[int64]protoreflect.Message{}}
		for _, op := range []grpcrt.Operation{grpcrt.OpBatchGet, grpcrt.OpList, grpcrt.OpCreate, grpcrt.OpUpdate, grpcrt.OpDelete} {
			md := reg.GetMethodDescriptor(e.Name, op)
			if md == nil {
				return nil, fmt.Errorf("devbackend: %s has no %s method", e.Name, op)
			}
			full := fmt.Sprintf("/%s/%s", md.Parent().FullName(), md.Name())
			b.routes[full] = route{entity: e.Name, op: op, md: md}
		}
	}
	return b, nil
}

// NewServer returns a gRPC server answering every entity service of b.
func (b *Backend) NewServer(opts ...grpc.ServerOption) *grpc.Server {
	return grpc.NewServer(append(opts, grpc.UnknownServiceHandler(b.handle))...)
}

func (b *Backend) handle(_ any, stream grpc.ServerStream) error {
	full, ok := grpc.MethodFromServerStream(stream)
	if !ok {
		return status.Error(codes.Internal, "devbackend: no method in stream")
	}
	r, ok := b.routes[full]
	if !ok {
		return status.Errorf(codes.Unimplemented, "unknown method %s", full)
	}
	req := dynamicpb.NewMessage(r.md.Input())
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	resp, err := b.Invoke(stream.Context(), r.entity, r.op, req)
	if err != nil {
		return err
	}
	return stream.SendMsg(resp.Interface())
}

// Invoke answers one operation in process. Errors are gRPC status errors.
func (b *Backend) Invoke(ctx context.Context, entity string, op grpcrt.Operation, req protoreflect.Message) (protoreflect.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, status.FromContextError(err).Err()
	}
	var md protoreflect.MethodDescriptor
	for _, r := range b.routes {
		if r.entity == entity && r.op == op {
			md = r.md
			break
		}
	}
	if md == nil {
		return nil, status.Errorf(codes.Unimplemented, "%s has no %s operation", entity, op)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	t := b.tables[entity]
	in := req.Descriptor().Fields()
	switch op {
	case grpcrt.OpBatchGet:
		return t.batchGet(md, req.Get(in.ByName("ids")).List()), nil
	case grpcrt.OpList:
		return t.list(md, int(req.Get(in.ByName("start")).Int()), int(req.Get(in.ByName("end")).Int())), nil
	case grpcrt.OpCreate:
		owner, _ := actor.FromIncoming(ctx)
		return t.create(req.Get(in.ByName("entity")).Message(), owner, b.now())
	case grpcrt.OpUpdate:
		mask := req.Get(in.ByName("update_mask")).Message()
		return t.update(req.Get(in.ByName("entity")).Message(), maskPaths(mask), b.now())
	case grpcrt.OpDelete:
		return t.delete(req.Get(in.ByName("id")).Int())
	}
	return nil, status.Errorf(codes.Unimplemented, "unsupported operation %s", op)
}

// Len reports the number of stored records of entity.
func (b *Backend) Len(entity string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if t, ok := b.tables[entity]; ok {
		return len(t.rows)
	}
	return 0
}

func (t *table) batchGet(md protoreflect.MethodDescriptor, ids protoreflect.List) protoreflect.Message {
	resp := dynamicpb.NewMessage(md.Output())
	out := resp.Mutable(md.Output().Fields().ByName("entities")).Map()
	for i := 0; i < ids.Len(); i++ {
		id := ids.Get(i).Int()
		if row, ok := t.rows[id]; ok {
			out.Set(protoreflect.ValueOfInt64(id).MapKey(), protoreflect.ValueOfMessage(clone(row)))
		}
	}
	return resp
}

// list returns the records in [start, end) ordered by id. Out of range
// windows yield an empty list.
func (t *table) list(md protoreflect.MethodDescriptor, start, end int) protoreflect.Message {
	resp := dynamicpb.NewMessage(md.Output())
	ids := t.sortedIDs()
	if start < 0 {
		start = 0
	}
	if end > len(ids) {
		end = len(ids)
	}
	out := resp.Mutable(md.Output().Fields().ByName("entities")).List()
	for i := start; i < end; i++ {
		out.Append(protoreflect.ValueOfMessage(clone(t.rows[ids[i]])))
	}
	return resp
}

// create stores a copy of in under the next id. A record sent without an
// owner is owned by the calling identity, if the call carried one.
func (t *table) create(in protoreflect.Message, owner int64, now time.Time) (protoreflect.Message, error) {
	row := clone(in)
	if fd := t.desc.Fields().ByJSONName("userId"); fd != nil && owner != 0 && row.Get(fd).Int() == 0 {
		row.Set(fd, protoreflect.ValueOfInt64(owner))
	}
	if err := t.validate(row); err != nil {
		return nil, err
	}
	t.nextID++
	row.Set(t.idField, protoreflect.ValueOfInt64(t.nextID))
	stamp(row, "createDate", now)
	stamp(row, "modifiedDate", now)
	t.rows[t.nextID] = row
	return clone(row), nil
}

func (t *table) update(in protoreflect.Message, paths []string, now time.Time) (protoreflect.Message, error) {
	id := in.Get(t.idField).Int()
	row, ok := t.rows[id]
	if !ok {
		return nil, t.notFound(id)
	}
	fields := t.desc.Fields()
	for _, p := range paths {
		fd := fields.ByName(protoreflect.Name(p))
		if fd == nil {
			return nil, status.Errorf(codes.InvalidArgument, "%s has no attribute %s", t.name, p)
		}
		if fd == t.idField {
			continue
		}
		if in.Has(fd) {
			row.Set(fd, in.Get(fd))
		} else {
			row.Clear(fd)
		}
	}
	if err := t.validate(row); err != nil {
		return nil, err
	}
	stamp(row, "modifiedDate", now)
	return clone(row), nil
}

func (t *table) delete(id int64) (protoreflect.Message, error) {
	row, ok := t.rows[id]
	if !ok {
		return nil, t.notFound(id)
	}
	delete(t.rows, id)
	return row, nil
}

// validate applies the only rule shared by every entity: records are owned
// by a user.
func (t *table) validate(row protoreflect.Message) error {
	if fd := t.desc.Fields().ByJSONName("userId"); fd != nil && row.Get(fd).Int() == 0 {
		return status.Errorf(codes.InvalidArgument, "%s requires a userId", t.name)
	}
	return nil
}

func (t *table) notFound(id int64) error {
	return status.Errorf(codes.NotFound, "No %s exists with the primary key %d", t.name, id)
}

func (t *table) sortedIDs() []int64 {
	ids := make([]int64, 0, len(t.rows))
	for id := range t.rows {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func stamp(row protoreflect.Message, attr string, now time.Time) {
	fd := row.Descriptor().Fields().ByJSONName(attr)
	if fd == nil || fd.Message() == nil {
		return
	}
	ts := row.Mutable(fd).Message()
	pb := timestamppb.New(now)
	ts.Set(ts.Descriptor().Fields().ByName("seconds"), protoreflect.ValueOfInt64(pb.GetSeconds()))
	ts.Set(ts.Descriptor().Fields().ByName("nanos"), protoreflect.ValueOfInt32(pb.GetNanos()))
}

func maskPaths(mask protoreflect.Message) []string {
	fd := mask.Descriptor().Fields().ByName("paths")
	if fd == nil {
		return nil
	}
	lst := mask.Get(fd).List()
	out := make([]string, 0, lst.Len())
	for i := 0; i < lst.Len(); i++ {
		out = append(out, strings.TrimSpace(lst.Get(i).String()))
	}
	return out
}

func clone(m protoreflect.Message) protoreflect.Message {
	return proto.Clone(m.Interface()).ProtoReflect()
}

// Call answers md in process, making the backend a grpcrt.Transport for
// tests and single-binary development.
func (b *Backend) Call(ctx context.Context, md protoreflect.MethodDescriptor, req protoreflect.Message) (protoreflect.Message, error) {
	r, ok := b.routes[fmt.Sprintf("/%s/%s", md.Parent().FullName(), md.Name())]
	if !ok {
		return nil, status.Errorf(codes.Unimplemented, "unknown method %s", md.FullName())
	}
	return b.Invoke(ctx, r.entity, r.op, req)
}

var _ grpcrt.Transport = (*Backend)(nil)
