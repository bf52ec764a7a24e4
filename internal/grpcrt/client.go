// Package grpcrt is the gRPC-backed domain service layer client: it turns
// the entity operations into calls of the generated entity services, using
// dynamic messages built from the registry's descriptors.
package grpcrt

import (
	"context"
	"fmt"
	"sort"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

// Client binds a registry to a transport.
// Invariants and boundaries:
//   - Registry trust: a healthy registry returns every descriptor of a
//     registered entity; a missing one is a configuration error reported by
//     Service, never at call time.
//   - Errors: transport errors (gRPC status errors included) are returned
//     unchanged so domain not-found and validation failures reach the caller
//     as the backend raised them.
type Client struct {
	reg       Registry
	transport Transport
}

// NewClient returns a client calling the services of reg through transport.
func NewClient(registry Registry, transport Transport) *Client {
	return &Client{reg: registry, transport: transport}
}

// Service returns the domain service of one entity. idAttr names the
// identifier attribute of the entity record.
func (c *Client) Service(entity, idAttr string) (*EntityService, error) {
	desc := c.reg.GetEntityDescriptor(entity)
	if desc == nil {
		return nil, fmt.Errorf("grpcrt: no descriptor for entity %s", entity)
	}
	idField := fieldByJSONName(desc, idAttr)
	if idField == nil {
		return nil, fmt.Errorf("grpcrt: entity %s has no attribute %s", entity, idAttr)
	}
	s := &EntityService{entity: entity, desc: desc, idField: idField, transport: c.transport}
	for _, op := range []Operation{OpBatchGet, OpList, OpCreate, OpUpdate, OpDelete} {
		md := c.reg.GetMethodDescriptor(entity, op)
		if md == nil {
			return nil, fmt.Errorf("grpcrt: entity %s has no %s method", entity, op)
		}
		s.methods[op] = md
	}
	return s, nil
}

// EntityService implements the domain operations of one entity over gRPC.
// Entities are dynamic messages of the entity record descriptor.
type EntityService struct {
	entity    string
	desc      protoreflect.MessageDescriptor
	idField   protoreflect.FieldDescriptor
	methods   [OpDelete + 1]protoreflect.MethodDescriptor
	transport Transport
}

// Descriptor returns the entity record descriptor.
func (s *EntityService) Descriptor() protoreflect.MessageDescriptor { return s.desc }

// FetchMany calls BatchGet. Ids the backend omits are left out.
func (s *EntityService) FetchMany(ctx context.Context, ids []int64) (map[int64]protoreflect.Message, error) {
	md := s.methods[OpBatchGet]
	req := dynamicpb.NewMessage(md.Input())
	list := req.Mutable(md.Input().Fields().ByName("ids")).List()
	for _, id := range ids {
		list.Append(protoreflect.ValueOfInt64(id))
	}
	resp, err := s.transport.Call(ctx, md, req)
	if err != nil {
		return nil, err
	}
	out := make(map[int64]protoreflect.Message, len(ids))
	fd := resp.Descriptor().Fields().ByName("entities")
	if fd == nil || !fd.IsMap() {
		return nil, fmt.Errorf("grpcrt: %s response has no entities map", md.FullName())
	}
	resp.Get(fd).Map().Range(func(k protoreflect.MapKey, v protoreflect.Value) bool {
		out[k.Int()] = v.Message()
		return true
	})
	return out, nil
}

// FindRange calls List with the window forwarded verbatim.
func (s *EntityService) FindRange(ctx context.Context, start, end int) ([]protoreflect.Message, error) {
	md := s.methods[OpList]
	req := dynamicpb.NewMessage(md.Input())
	req.Set(md.Input().Fields().ByName("start"), protoreflect.ValueOfInt32(int32(start)))
	req.Set(md.Input().Fields().ByName("end"), protoreflect.ValueOfInt32(int32(end)))
	resp, err := s.transport.Call(ctx, md, req)
	if err != nil {
		return nil, err
	}
	fd := resp.Descriptor().Fields().ByName("entities")
	if fd == nil || !fd.IsList() {
		return nil, fmt.Errorf("grpcrt: %s response has no entities list", md.FullName())
	}
	lst := resp.Get(fd).List()
	out := make([]protoreflect.Message, 0, lst.Len())
	for i := 0; i < lst.Len(); i++ {
		out = append(out, lst.Get(i).Message())
	}
	return out, nil
}

// Create calls Create with every given field set on the record.
func (s *EntityService) Create(ctx context.Context, fields map[string]any) (protoreflect.Message, error) {
	md := s.methods[OpCreate]
	req := dynamicpb.NewMessage(md.Input())
	entityField := md.Input().Fields().ByName("entity")
	rec := req.Mutable(entityField).Message()
	if err := setMessageFieldsByJSON(rec, fields); err != nil {
		return nil, err
	}
	return s.transport.Call(ctx, md, req)
}

// Update calls Update; the mask lists exactly the given fields.
func (s *EntityService) Update(ctx context.Context, id int64, fields map[string]any) (protoreflect.Message, error) {
	md := s.methods[OpUpdate]
	req := dynamicpb.NewMessage(md.Input())
	rec := req.Mutable(md.Input().Fields().ByName("entity")).Message()
	rec.Set(s.idField, protoreflect.ValueOfInt64(id))
	if err := setMessageFieldsByJSON(rec, fields); err != nil {
		return nil, err
	}
	mask := req.Mutable(md.Input().Fields().ByName("update_mask")).Message()
	paths := mask.Mutable(mask.Descriptor().Fields().ByName("paths")).List()
	for _, p := range maskPaths(s.desc, fields) {
		paths.Append(protoreflect.ValueOfString(p))
	}
	return s.transport.Call(ctx, md, req)
}

// Delete calls Delete.
func (s *EntityService) Delete(ctx context.Context, id int64) (protoreflect.Message, error) {
	md := s.methods[OpDelete]
	req := dynamicpb.NewMessage(md.Input())
	req.Set(md.Input().Fields().ByName("id"), protoreflect.ValueOfInt64(id))
	return s.transport.Call(ctx, md, req)
}

// maskPaths returns the proto field names of the known attributes in
// fields, sorted.
func maskPaths(desc protoreflect.MessageDescriptor, fields map[string]any) []string {
	paths := make([]string, 0, len(fields))
	for name := range fields {
		if fd := fieldByJSONName(desc, name); fd != nil {
			paths = append(paths, string(fd.Name()))
		}
	}
	sort.Strings(paths)
	return paths
}

func fieldByJSONName(desc protoreflect.MessageDescriptor, name string) protoreflect.FieldDescriptor {
	if fd := desc.Fields().ByJSONName(name); fd != nil {
		return fd
	}
	return desc.Fields().ByName(protoreflect.Name(name))
}
