package loader

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"
)

// ErrClosed fails lookups that outlive their registry.
var ErrClosed = errors.New("loader: registry closed")

// Options configures a Registry.
type Options struct {
	// MaxConcurrentBatches bounds how many loaders Flush dispatches at once.
	// Zero or negative means unbounded.
	MaxConcurrentBatches int
}

// Option mutates Options.
type Option func(*Options)

// WithMaxConcurrentBatches bounds the number of parallel batch calls.
func WithMaxConcurrentBatches(n int) Option {
	return func(o *Options) { o.MaxConcurrentBatches = n }
}

type flusher interface {
	Flush() error
	fail(error)
}

// Registry owns the loaders of one query execution. It must not be shared
// between executions; Close it when the execution ends.
type Registry struct {
	ctx  context.Context
	opts Options
	stop func() bool

	mu      sync.Mutex
	loaders map[string]flusher
	order   []string
	closed  error
}

// NewRegistry creates a registry bound to the execution context ctx. Batch
// calls run with ctx, and cancelling it fails every outstanding future.
func NewRegistry(ctx context.Context, opts ...Option) *Registry {
	var o Options
	for _, fn := range opts {
		fn(&o)
	}
	r := &Registry{ctx: ctx, opts: o, loaders: map[string]flusher{}}
	r.stop = context.AfterFunc(ctx, func() { r.shutdown(context.Cause(ctx)) })
	return r
}

// Context returns the execution context the registry is bound to.
func (r *Registry) Context() context.Context { return r.ctx }

// For returns the loader registered under name, creating it with fetch on
// first use. Registering the same name with two entity types is a
// programming error and panics.
func For[E any](r *Registry, name string, fetch FetchFunc[E]) *Loader[E] {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.loaders[name]; ok {
		l, ok := existing.(*Loader[E])
		if !ok {
			panic(fmt.Sprintf("loader: %q registered with type %T", name, existing))
		}
		return l
	}
	l := &Loader[E]{name: name, fetch: fetch, reg: r, cache: map[int64]*Future[E]{}}
	if r.closed != nil {
		l.failed = r.closed
	}
	r.loaders[name] = l
	r.order = append(r.order, name)
	return l
}

// Flush dispatches the collecting batch of every loader. Loaders of
// different entity types are dispatched in parallel. The returned error is
// the first batch failure; every failure is also delivered to its futures.
// Once the execution context is done, Flush fails every outstanding future
// with its cause and reaches no backend.
func (r *Registry) Flush() error {
	if r.ctx.Err() != nil {
		cause := context.Cause(r.ctx)
		r.shutdown(cause)
		return cause
	}
	r.mu.Lock()
	ls := make([]flusher, 0, len(r.order))
	for _, name := range r.order {
		ls = append(ls, r.loaders[name])
	}
	r.mu.Unlock()

	var g errgroup.Group
	if r.opts.MaxConcurrentBatches > 0 {
		g.SetLimit(r.opts.MaxConcurrentBatches)
	}
	for _, l := range ls {
		g.Go(l.Flush)
	}
	return g.Wait()
}

// Close fails every outstanding future with ErrClosed and releases the
// registry's hold on its context.
func (r *Registry) Close() {
	r.stop()
	r.shutdown(ErrClosed)
}

func (r *Registry) shutdown(cause error) {
	if cause == nil {
		cause = ErrClosed
	}
	r.mu.Lock()
	if r.closed != nil {
		r.mu.Unlock()
		return
	}
	r.closed = cause
	ls := make([]flusher, 0, len(r.loaders))
	for _, l := range r.loaders {
		ls = append(ls, l)
	}
	r.mu.Unlock()
	for _, l := range ls {
		l.fail(cause)
	}
}

type ctxKey struct{}

// WithRegistry returns a copy of ctx carrying r.
func WithRegistry(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, ctxKey{}, r)
}

// FromContext returns the registry carried by ctx, or nil.
func FromContext(ctx context.Context) *Registry {
	r, _ := ctx.Value(ctxKey{}).(*Registry)
	return r
}
