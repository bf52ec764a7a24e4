// Package loader implements request-scoped batched entity lookups.
//
// A Loader collects the ids requested while one pass of field resolution runs
// and fetches them with a single call to the domain service layer when the
// pass ends (Registry.Flush) or when a caller awaits a future whose batch is
// still collecting. Results are cached for the lifetime of the Registry, so
// an id is fetched at most once per execution. The zero id never reaches a
// batch: it resolves to Absent immediately.
package loader

import (
	"context"
	"sync"
	"time"

	"github.com/hanpama/portalgraph/internal/eventbus"
	"github.com/hanpama/portalgraph/internal/events"
)

// FetchFunc reads many entities by id. Ids missing from the result resolve
// to Absent; a returned error fails the whole batch.
type FetchFunc[E any] func(ctx context.Context, ids []int64) (map[int64]E, error)

// Loader batches and caches lookups of one entity type.
type Loader[E any] struct {
	name  string
	fetch FetchFunc[E]
	reg   *Registry

	mu      sync.Mutex
	cache   map[int64]*Future[E]
	pending *batch[E]
	failed  error
}

type batch[E any] struct {
	loader  *Loader[E]
	ids     []int64
	futures map[int64]*Future[E]
	once    sync.Once
}

// Name returns the entity type name the loader was registered under.
func (l *Loader[E]) Name() string { return l.name }

// Load requests one entity. Repeated ids share a single future.
func (l *Loader[E]) Load(id int64) *Future[E] {
	if id == 0 {
		return Absent[E]()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.failed != nil {
		return Failed[E](l.failed)
	}
	if ctx := l.reg.ctx; ctx.Err() != nil {
		return Failed[E](context.Cause(ctx))
	}
	if f, ok := l.cache[id]; ok {
		return f
	}
	if l.pending == nil {
		l.pending = &batch[E]{loader: l, futures: map[int64]*Future[E]{}}
	}
	f := newFuture(l.pending)
	l.pending.ids = append(l.pending.ids, id)
	l.pending.futures[id] = f
	l.cache[id] = f
	return f
}

// LoadMany requests several entities, preserving the order of ids.
func (l *Loader[E]) LoadMany(ids []int64) []*Future[E] {
	out := make([]*Future[E], len(ids))
	for i, id := range ids {
		out[i] = l.Load(id)
	}
	return out
}

// Clear drops id from the cache so the next Load fetches it again. Futures
// already handed out are unaffected.
func (l *Loader[E]) Clear(id int64) {
	l.mu.Lock()
	if f, ok := l.cache[id]; ok {
		select {
		case <-f.done:
			delete(l.cache, id)
		default:
			// still pending: the batch owns it
		}
	}
	l.mu.Unlock()
}

// Flush dispatches the collecting batch, if any, and returns the batch
// error. Failures are also delivered through every future of the batch.
func (l *Loader[E]) Flush() error {
	l.mu.Lock()
	b := l.pending
	l.mu.Unlock()
	if b == nil {
		return nil
	}
	return l.dispatch(b)
}

func (l *Loader[E]) collecting(b *batch[E]) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending == b
}

func (l *Loader[E]) dispatch(b *batch[E]) error {
	var err error
	b.once.Do(func() {
		l.mu.Lock()
		if l.pending == b {
			l.pending = nil
		}
		l.mu.Unlock()
		err = l.run(b)
	})
	return err
}

func (l *Loader[E]) run(b *batch[E]) error {
	ctx := l.reg.ctx
	started := time.Now()
	var (
		results map[int64]E
		err     error
	)
	// a cancelled execution never reaches the backend
	if ctx.Err() != nil {
		err = context.Cause(ctx)
	} else {
		results, err = l.fetch(ctx, b.ids)
	}
	found := 0
	for _, id := range b.ids {
		f := b.futures[id]
		if err != nil {
			var zero E
			f.complete(zero, false, err)
			continue
		}
		v, ok := results[id]
		if ok {
			found++
		}
		f.complete(v, ok, nil)
	}
	eventbus.Publish(ctx, events.LoaderBatch{
		Loader:   l.name,
		Size:     len(b.ids),
		Found:    found,
		Err:      err,
		Started:  started,
		Duration: time.Since(started),
	})
	return err
}

// fail resolves every outstanding future with err and makes further loads
// fail the same way.
func (l *Loader[E]) fail(err error) {
	l.mu.Lock()
	if l.failed == nil {
		l.failed = err
	}
	outstanding := make([]*Future[E], 0, len(l.cache))
	for _, f := range l.cache {
		outstanding = append(outstanding, f)
	}
	l.pending = nil
	l.mu.Unlock()

	var zero E
	for _, f := range outstanding {
		f.complete(zero, false, err)
	}
}
