// Package gateway resolves the portal schema: root fields run the entity
// operations of the matching entity.Set, attributes are read off the entity
// messages, and reference fields load their targets through the request's
// loader registry.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/vektah/gqlparser/v2/gqlerror"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/reflect/protoreflect"

	"github.com/hanpama/portalgraph/internal/actor"
	"github.com/hanpama/portalgraph/internal/args"
	"github.com/hanpama/portalgraph/internal/catalog"
	"github.com/hanpama/portalgraph/internal/entity"
	"github.com/hanpama/portalgraph/internal/executor"
	"github.com/hanpama/portalgraph/internal/grpcrt"
	"github.com/hanpama/portalgraph/internal/loader"
	"github.com/hanpama/portalgraph/internal/schema"
)

// Set is the resolver set of one entity type over gRPC messages.
type Set = entity.Set[protoreflect.Message]

type rootField struct {
	set *Set
	op  schema.Operation
}

// Runtime implements executor.Runtime for the schema schema.Build generates
// from the same catalog.
type Runtime struct {
	catalog *catalog.Catalog
	sets    map[string]*Set
	roots   map[string]rootField // keyed by "Type.field"
	opts    Options
}

var _ executor.Runtime = (*Runtime)(nil)

// New binds every entity of c to its service in client.
func New(c *catalog.Catalog, client *grpcrt.Client, opts ...Option) (*Runtime, error) {
	services := make(map[string]entity.Service[protoreflect.Message], len(c.Entities()))
	for _, e := range c.Entities() {
		svc, err := client.Service(e.Name, e.IDArg)
		if err != nil {
			return nil, fmt.Errorf("gateway: %w", err)
		}
		services[e.Name] = svc
	}
	return NewWithServices(c, services, opts...)
}

// NewWithServices binds the entities of c to services, which must hold one
// service per entity.
func NewWithServices(c *catalog.Catalog, services map[string]entity.Service[protoreflect.Message], opts ...Option) (*Runtime, error) {
	r := &Runtime{
		catalog: c,
		sets:    make(map[string]*Set, len(services)),
		roots:   make(map[string]rootField),
	}
	for _, f := range opts {
		f(&r.opts)
	}
	for _, e := range c.Entities() {
		svc, ok := services[e.Name]
		if !ok {
			return nil, fmt.Errorf("gateway: no service for entity %s", e.Name)
		}
		def := e.Definition
		def.Fields = args.Localize(def.Fields, r.opts.Locales)
		set := entity.NewSet(def, svc)
		r.sets[e.Name] = set
		for _, op := range []schema.Operation{schema.OpGet, schema.OpList} {
			r.roots[schema.QueryTypeName+"."+schema.RootField(e, op)] = rootField{set: set, op: op}
		}
		for _, op := range []schema.Operation{schema.OpCreate, schema.OpUpdate, schema.OpDelete} {
			r.roots[schema.MutationTypeName+"."+schema.RootField(e, op)] = rootField{set: set, op: op}
		}
	}
	return r, nil
}

// Set returns the resolver set of an entity.
func (r *Runtime) Set(name string) (*Set, bool) {
	s, ok := r.sets[name]
	return s, ok
}

// ResolveSync reads an attribute off an entity message or one of its
// embedded objects. Unset timestamps and objects resolve to null.
func (r *Runtime) ResolveSync(_ context.Context, objectType, field string, source any, _ map[string]any) (any, error) {
	msg, ok := source.(protoreflect.Message)
	if !ok {
		return nil, fmt.Errorf("gateway: %s.%s resolved on %T", objectType, field, source)
	}
	v, ok := grpcrt.FieldValue(msg, field)
	if !ok {
		return nil, nil
	}
	return v, nil
}

// BatchResolveAsync resolves one depth. Lookups of every task are enqueued
// first, the registry is flushed once, then each task awaits its futures.
// Mutations run one after another in task order.
func (r *Runtime) BatchResolveAsync(ctx context.Context, tasks []executor.AsyncResolveTask) []executor.AsyncResolveResult {
	results := make([]executor.AsyncResolveResult, len(tasks))

	reg := loader.FromContext(ctx)
	if reg == nil {
		reg = loader.NewRegistry(ctx, r.opts.LoaderOptions...)
		defer reg.Close()
	}
	actorID := r.actor(ctx)

	var (
		awaits []func()
		lists  errgroup.Group
	)
	for i, task := range tasks {
		env := entity.Env{Args: args.Bag(task.Args), Loaders: reg, Actor: actorID}
		if root, ok := r.roots[task.ObjectType+"."+task.Field]; ok {
			switch root.op {
			case schema.OpGet:
				fut := root.set.Get(env)
				awaits = append(awaits, func() { results[i] = awaitOne(ctx, fut) })
			case schema.OpList:
				lists.Go(func() error {
					items, err := root.set.List(ctx, env)
					results[i] = result(messages(items), err)
					return nil
				})
			default:
				// Each mutation completes before the next one starts.
				v, err := mutate(ctx, root, env)
				results[i] = result(v, err)
			}
			continue
		}
		awaits = append(awaits, r.enqueueReference(ctx, reg, task, &results[i]))
	}

	// Batch failures reach every affected future; the returned error only
	// repeats the first of them.
	_ = reg.Flush()
	for _, await := range awaits {
		await()
	}
	_ = lists.Wait()
	return results
}

// enqueueReference starts the lookups of a reference field and returns the
// function completing it.
func (r *Runtime) enqueueReference(ctx context.Context, reg *loader.Registry, task executor.AsyncResolveTask, out *executor.AsyncResolveResult) func() {
	fail := func(err error) func() { return func() { *out = executor.AsyncResolveResult{Error: err} } }

	e, ok := r.catalog.Lookup(task.ObjectType)
	if !ok {
		return fail(fmt.Errorf("gateway: no entity %s", task.ObjectType))
	}
	ref, ok := e.Reference(task.Field)
	if !ok {
		return fail(fmt.Errorf("gateway: no field %s.%s", task.ObjectType, task.Field))
	}
	target := r.sets[ref.Target]
	src, ok := task.Source.(protoreflect.Message)
	if !ok || target == nil {
		return fail(fmt.Errorf("gateway: cannot resolve %s.%s", task.ObjectType, task.Field))
	}

	if !ref.Many {
		fut := target.Load(reg, grpcrt.Int64Value(src, ref.Key))
		return func() { *out = awaitOne(ctx, fut) }
	}
	futs := target.LoadMany(reg, grpcrt.Int64sValue(src, ref.Key))
	return func() {
		// Ids the backend no longer knows are left out of the list.
		items := make([]any, 0, len(futs))
		for _, fut := range futs {
			v, ok, err := fut.Await(ctx)
			if err != nil {
				*out = executor.AsyncResolveResult{Error: presentError(err)}
				return
			}
			if ok {
				items = append(items, v)
			}
		}
		*out = executor.AsyncResolveResult{Value: items}
	}
}

func mutate(ctx context.Context, root rootField, env entity.Env) (protoreflect.Message, error) {
	switch root.op {
	case schema.OpCreate:
		return root.set.Create(ctx, env)
	case schema.OpUpdate:
		return root.set.Update(ctx, env)
	case schema.OpDelete:
		return root.set.Delete(ctx, env)
	}
	return nil, fmt.Errorf("gateway: unsupported operation %d", root.op)
}

// actor returns the acting identity of ctx, falling back to the configured
// default.
func (r *Runtime) actor(ctx context.Context) int64 {
	if id, ok := actor.FromContext(ctx); ok {
		return id
	}
	return r.opts.DefaultActor
}

func awaitOne(ctx context.Context, fut *loader.Future[protoreflect.Message]) executor.AsyncResolveResult {
	v, ok, err := fut.Await(ctx)
	if err != nil || !ok {
		return result(nil, err)
	}
	return result(v, nil)
}

func messages(items []protoreflect.Message) any {
	if items == nil {
		return nil
	}
	out := make([]any, len(items))
	for i, m := range items {
		out[i] = m
	}
	return out
}

func result(v any, err error) executor.AsyncResolveResult {
	if err != nil {
		return executor.AsyncResolveResult{Error: presentError(err)}
	}
	return executor.AsyncResolveResult{Value: v}
}

func statusError(err error, st *status.Status) *gqlerror.Error {
	return &gqlerror.Error{
		Err:        err,
		Message:    st.Message(),
		Extensions: map[string]any{"code": st.Code().String()},
	}
}

type grpcStatus interface{ GRPCStatus() *status.Status }

// presentError turns a backend status error into a GraphQL error whose
// message is the backend's and whose extensions.code is the gRPC code name.
// Other errors are returned as they are.
func presentError(err error) error {
	var se grpcStatus
	if errors.As(err, &se) {
		st := se.GRPCStatus()
		return statusError(err, st)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		st := status.FromContextError(err)
		return statusError(err, st)
	}
	return err
}
