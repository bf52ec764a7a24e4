package loader

import (
	"context"
	"sync"
)

// Future is the handle of one pending lookup. It resolves exactly once, to
// an entity, to Absent (ok == false) or to an error.
type Future[E any] struct {
	done  chan struct{}
	once  sync.Once
	value E
	ok    bool
	err   error

	// batch is set for futures waiting on a dispatch; it is never mutated.
	batch *batch[E]
}

func newFuture[E any](b *batch[E]) *Future[E] {
	return &Future[E]{done: make(chan struct{}), batch: b}
}

// Resolved returns a future that already holds v.
func Resolved[E any](v E) *Future[E] {
	f := newFuture[E](nil)
	f.complete(v, true, nil)
	return f
}

// Absent returns a future that already resolved to no value.
func Absent[E any]() *Future[E] {
	f := newFuture[E](nil)
	var zero E
	f.complete(zero, false, nil)
	return f
}

// Failed returns a future that already failed with err.
func Failed[E any](err error) *Future[E] {
	f := newFuture[E](nil)
	var zero E
	f.complete(zero, false, err)
	return f
}

func (f *Future[E]) complete(v E, ok bool, err error) {
	f.once.Do(func() {
		f.value, f.ok, f.err = v, ok, err
		close(f.done)
	})
}

// Done is closed once the future resolved.
func (f *Future[E]) Done() <-chan struct{} { return f.done }

// Await blocks until the future resolves or ctx is done. A future whose
// batch is still collecting starts the dispatch itself, so awaiting never
// depends on someone else flushing.
func (f *Future[E]) Await(ctx context.Context) (E, bool, error) {
	select {
	case <-f.done:
		return f.value, f.ok, f.err
	default:
	}
	if b := f.batch; b != nil && b.loader.collecting(b) {
		go func() { _ = b.loader.dispatch(b) }()
	}
	select {
	case <-f.done:
		return f.value, f.ok, f.err
	case <-ctx.Done():
		var zero E
		return zero, false, ctx.Err()
	}
}
