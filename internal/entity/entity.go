// Package entity composes argument resolution, pagination and batched
// loading into the five operations every portal entity exposes: list, get,
// create, update and delete.
//
// A Set is instantiated once per entity type; the entity value type E is
// opaque to it.
package entity

import (
	"context"
	"errors"

	"github.com/hanpama/portalgraph/internal/args"
	"github.com/hanpama/portalgraph/internal/loader"
	"github.com/hanpama/portalgraph/internal/paginate"
)

// DefaultActorArg names the argument that carries the acting identity.
const DefaultActorArg = "userId"

// ErrNoRegistry is returned by lookups made outside a query execution.
var ErrNoRegistry = errors.New("entity: no loader registry")

// Service is the domain service layer of one entity type.
type Service[E any] interface {
	// FetchMany returns the entities it knows among ids. Unknown ids are
	// left out of the map.
	FetchMany(ctx context.Context, ids []int64) (map[int64]E, error)
	// FindRange returns the entities in [start, end).
	FindRange(ctx context.Context, start, end int) ([]E, error)
	Create(ctx context.Context, fields map[string]any) (E, error)
	Update(ctx context.Context, id int64, fields map[string]any) (E, error)
	Delete(ctx context.Context, id int64) (E, error)
}

// Definition declares the arguments of one entity type.
type Definition struct {
	// Name is the entity type name; it also keys the entity's loader.
	Name string
	// IDArg names the identifier argument of get, update and delete.
	IDArg string
	// Fields are the arguments of create and update.
	Fields []args.Spec
	// ActorArg names the field defaulted to the acting identity on create.
	// Empty disables the default.
	ActorArg string
}

// Env is the per-field-resolution input of an operation.
type Env struct {
	Args    args.Bag
	Loaders *loader.Registry
	// Actor is the identity the request acts as.
	Actor int64
}

// Set is the resolver set of one entity type.
type Set[E any] struct {
	def Definition
	svc Service[E]
}

// NewSet binds def to the domain service svc.
func NewSet[E any](def Definition, svc Service[E]) *Set[E] {
	return &Set[E]{def: def, svc: svc}
}

// Definition returns the declaration the set was built from.
func (s *Set[E]) Definition() Definition { return s.def }

// Loader returns the entity's loader in reg.
func (s *Set[E]) Loader(reg *loader.Registry) *loader.Loader[E] {
	return loader.For(reg, s.def.Name, s.svc.FetchMany)
}

// List reads the window selected by the start and end arguments. The result
// is never nil on success.
func (s *Set[E]) List(ctx context.Context, env Env) ([]E, error) {
	return paginate.Paginate(ctx, env.Args, s.svc.FindRange)
}

// Get looks the entity up by its id argument. An absent or zero id resolves
// to Absent without touching the loader.
func (s *Set[E]) Get(env Env) *loader.Future[E] {
	id := env.Args.Int64(s.def.IDArg)
	if id == 0 {
		return loader.Absent[E]()
	}
	return s.Load(env.Loaders, id)
}

// Load looks up one entity through the execution's loader.
func (s *Set[E]) Load(reg *loader.Registry, id int64) *loader.Future[E] {
	if id == 0 {
		return loader.Absent[E]()
	}
	if reg == nil {
		return loader.Failed[E](ErrNoRegistry)
	}
	return s.Loader(reg).Load(id)
}

// LoadMany looks up several entities, preserving the order of ids.
func (s *Set[E]) LoadMany(reg *loader.Registry, ids []int64) []*loader.Future[E] {
	if reg == nil {
		out := make([]*loader.Future[E], len(ids))
		for i, id := range ids {
			out[i] = s.Load(nil, id)
		}
		return out
	}
	return s.Loader(reg).LoadMany(ids)
}

// Create resolves every declared field and creates the entity. The actor
// field defaults to the acting identity; no other validation happens here.
func (s *Set[E]) Create(ctx context.Context, env Env) (E, error) {
	fields := env.Args.Resolve(s.def.Fields)
	if s.def.ActorArg != "" {
		fields[s.def.ActorArg] = env.Args.Int64(s.def.ActorArg, env.Actor)
	}
	return s.svc.Create(ctx, fields)
}

// Update sends the supplied fields to the entity named by the id argument.
// Domain errors, not-found included, are returned unchanged.
func (s *Set[E]) Update(ctx context.Context, env Env) (E, error) {
	id := env.Args.Int64(s.def.IDArg)
	e, err := s.svc.Update(ctx, id, env.Args.Changed(s.def.Fields))
	if err != nil {
		return e, err
	}
	s.forget(env.Loaders, id)
	return e, nil
}

// Delete removes the entity named by the id argument. Domain errors are
// returned unchanged.
func (s *Set[E]) Delete(ctx context.Context, env Env) (E, error) {
	id := env.Args.Int64(s.def.IDArg)
	e, err := s.svc.Delete(ctx, id)
	if err != nil {
		return e, err
	}
	s.forget(env.Loaders, id)
	return e, nil
}

// forget drops a mutated entity from the execution cache.
func (s *Set[E]) forget(reg *loader.Registry, id int64) {
	if reg == nil || id == 0 {
		return
	}
	s.Loader(reg).Clear(id)
}
