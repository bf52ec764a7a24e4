package loader

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tag struct {
	ID   int64
	Name string
}

// MockBackend records every batch call and serves a fixed set of tags.
type MockBackend struct {
	mu    sync.Mutex
	tags  map[int64]tag
	calls [][]int64
	err   error
	gate  chan struct{}
}

func newMockBackend(ids ...int64) *MockBackend {
	m := &MockBackend{tags: map[int64]tag{}}
	for _, id := range ids {
		m.tags[id] = tag{ID: id, Name: "tag"}
	}
	return m
}

func (m *MockBackend) FetchMany(ctx context.Context, ids []int64) (map[int64]tag, error) {
	m.mu.Lock()
	m.calls = append(m.calls, append([]int64(nil), ids...))
	gate, err := m.gate, m.err
	m.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	out := map[int64]tag{}
	for _, id := range ids {
		if t, ok := m.tags[id]; ok {
			out[id] = t
		}
	}
	return out, nil
}

func (m *MockBackend) Calls() [][]int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]int64, len(m.calls))
	for i, c := range m.calls {
		sorted := append([]int64(nil), c...)
		sort.Slice(sorted, func(a, b int) bool { return sorted[a] < sorted[b] })
		out[i] = sorted
	}
	return out
}

func TestLoader_DeduplicatesWithinBatch(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend(1, 2)
	reg := NewRegistry(ctx)
	defer reg.Close()
	l := For(reg, "Tag", backend.FetchMany)

	a := l.Load(1)
	b := l.Load(1)
	c := l.Load(2)
	assert.Same(t, a, b)

	require.NoError(t, reg.Flush())
	for _, f := range []*Future[tag]{a, b, c} {
		v, ok, err := f.Await(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.NotZero(t, v.ID)
	}
	if diff := cmp.Diff([][]int64{{1, 2}}, backend.Calls()); diff != "" {
		t.Fatalf("batch calls mismatch (-want +got):\n%s", diff)
	}
}

func TestLoader_CachesAcrossFlushes(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend(1, 2, 3)
	reg := NewRegistry(ctx)
	defer reg.Close()
	l := For(reg, "Tag", backend.FetchMany)

	l.Load(1)
	require.NoError(t, reg.Flush())

	again := l.Load(1)
	fresh := l.Load(3)
	require.NoError(t, reg.Flush())

	_, ok, err := again.Await(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	_, ok, err = fresh.Await(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.Equal(t, [][]int64{{1}, {3}}, backend.Calls())
}

func TestLoader_ZeroIDNeverFetched(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend(1)
	reg := NewRegistry(ctx)
	defer reg.Close()
	l := For(reg, "Tag", backend.FetchMany)

	f := l.Load(0)
	select {
	case <-f.Done():
	default:
		t.Fatal("zero id future must be resolved immediately")
	}
	v, ok, err := f.Await(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Zero(t, v)

	require.NoError(t, reg.Flush())
	assert.Empty(t, backend.Calls())
}

func TestLoader_MissingIDResolvesAbsent(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend(1)
	reg := NewRegistry(ctx)
	defer reg.Close()
	l := For(reg, "Tag", backend.FetchMany)

	hit := l.Load(1)
	miss := l.Load(404)
	require.NoError(t, reg.Flush())

	_, ok, err := miss.Await(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	v, ok, err := hit.Await(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, int64(1), v.ID)
}

func TestLoader_BatchFailureFailsEveryHandle(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("backend unreachable")
	backend := newMockBackend(1, 2)
	backend.err = boom
	reg := NewRegistry(ctx)
	defer reg.Close()
	l := For(reg, "Tag", backend.FetchMany)

	futures := l.LoadMany([]int64{1, 2, 3})
	assert.ErrorIs(t, reg.Flush(), boom)
	for _, f := range futures {
		_, ok, err := f.Await(ctx)
		assert.False(t, ok)
		assert.Same(t, boom, err)
	}
	assert.Len(t, backend.Calls(), 1)
}

func TestLoader_AwaitDispatchesLazily(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend(7, 8)
	reg := NewRegistry(ctx)
	defer reg.Close()
	l := For(reg, "Tag", backend.FetchMany)

	a := l.Load(7)
	b := l.Load(8)
	v, ok, err := a.Await(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(7), v.ID)

	_, ok, err = b.Await(ctx)
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, reg.Flush())
	assert.Equal(t, [][]int64{{7, 8}}, backend.Calls())
}

func TestLoader_ConcurrentLoadsSingleBatch(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend(1, 2, 3, 4, 5)
	reg := NewRegistry(ctx)
	defer reg.Close()
	l := For(reg, "Tag", backend.FetchMany)

	var wg sync.WaitGroup
	futures := make([]*Future[tag], 50)
	for i := range futures {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			futures[i] = l.Load(int64(i%5 + 1))
		}(i)
	}
	wg.Wait()
	require.NoError(t, reg.Flush())

	for _, f := range futures {
		_, ok, err := f.Await(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	assert.Equal(t, [][]int64{{1, 2, 3, 4, 5}}, backend.Calls())
}

func TestLoader_ClearRefetches(t *testing.T) {
	ctx := context.Background()
	backend := newMockBackend(1)
	reg := NewRegistry(ctx)
	defer reg.Close()
	l := For(reg, "Tag", backend.FetchMany)

	_, _, err := l.Load(1).Await(ctx)
	require.NoError(t, err)
	l.Clear(1)
	_, _, err = l.Load(1).Await(ctx)
	require.NoError(t, err)

	assert.Equal(t, [][]int64{{1}, {1}}, backend.Calls())
}

func TestRegistry_FlushDispatchesEveryLoader(t *testing.T) {
	ctx := context.Background()
	tags := newMockBackend(1)
	folders := newMockBackend(10)
	reg := NewRegistry(ctx, WithMaxConcurrentBatches(1))
	defer reg.Close()

	tf := For(reg, "Tag", tags.FetchMany).Load(1)
	ff := For(reg, "Folder", folders.FetchMany).Load(10)
	require.NoError(t, reg.Flush())

	for _, f := range []*Future[tag]{tf, ff} {
		select {
		case <-f.Done():
		default:
			t.Fatal("flush must resolve every loader")
		}
	}
	assert.Len(t, tags.Calls(), 1)
	assert.Len(t, folders.Calls(), 1)
}

func TestRegistry_ForReturnsSameLoader(t *testing.T) {
	reg := NewRegistry(context.Background())
	defer reg.Close()
	backend := newMockBackend()
	assert.Same(t, For(reg, "Tag", backend.FetchMany), For(reg, "Tag", backend.FetchMany))
	assert.Panics(t, func() {
		For(reg, "Tag", func(context.Context, []int64) (map[int64]string, error) { return nil, nil })
	})
}

func TestRegistry_CancellationFailsOutstandingFutures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := newMockBackend(1, 2)
	backend.gate = make(chan struct{})
	reg := NewRegistry(ctx)
	defer reg.Close()
	tagsLoader := For(reg, "Tag", backend.FetchMany)
	inflight := tagsLoader.Load(1)

	flushed := make(chan error, 1)
	go func() { flushed <- reg.Flush() }()

	// wait until the tag batch reached the backend
	require.Eventually(t, func() bool { return len(backend.Calls()) == 1 }, time.Second, time.Millisecond)
	folders := newMockBackend(3)
	collecting := For(reg, "Folder", folders.FetchMany).Load(3)
	cancel()

	for _, f := range []*Future[tag]{inflight, collecting} {
		select {
		case <-f.Done():
		case <-time.After(time.Second):
			t.Fatal("future not failed after cancellation")
		}
		_, ok, err := f.Await(context.Background())
		assert.False(t, ok)
		assert.ErrorIs(t, err, context.Canceled)
	}
	assert.ErrorIs(t, <-flushed, context.Canceled)
	assert.Empty(t, folders.Calls())

	late := tagsLoader.Load(2)
	_, _, err := late.Await(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegistry_CancelBeforeFlushSkipsBackend(t *testing.T) {
	for i := 0; i < 100; i++ {
		ctx, cancel := context.WithCancel(context.Background())
		backend := newMockBackend(3)
		reg := NewRegistry(ctx)
		tags := For(reg, "Tag", backend.FetchMany)
		f := tags.Load(3)

		cancel()
		err := reg.Flush()

		_, ok, awaitErr := f.Await(context.Background())
		assert.False(t, ok)
		assert.ErrorIs(t, awaitErr, context.Canceled)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, backend.Calls())

		_, _, lateErr := tags.Load(4).Await(context.Background())
		assert.ErrorIs(t, lateErr, context.Canceled)
		reg.Close()
	}
}

func TestRegistry_CancelBeforeAwaitSkipsBackend(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	backend := newMockBackend(3)
	reg := NewRegistry(ctx)
	defer reg.Close()
	f := For(reg, "Tag", backend.FetchMany).Load(3)

	cancel()
	_, ok, err := f.Await(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, backend.Calls())
}

func TestRegistry_CloseFailsOutstandingFutures(t *testing.T) {
	backend := newMockBackend(1)
	reg := NewRegistry(context.Background())
	f := For(reg, "Tag", backend.FetchMany).Load(1)
	reg.Close()

	_, ok, err := f.Await(context.Background())
	assert.False(t, ok)
	assert.ErrorIs(t, err, ErrClosed)
	assert.Empty(t, backend.Calls())
}

func TestFuture_AwaitHonoursCallerContext(t *testing.T) {
	backend := newMockBackend(1)
	backend.gate = make(chan struct{})
	defer close(backend.gate)
	reg := NewRegistry(context.Background())
	defer reg.Close()
	l := For(reg, "Tag", backend.FetchMany)
	f := l.Load(1)
	go func() { _ = reg.Flush() }()
	require.Eventually(t, func() bool { return len(backend.Calls()) == 1 }, time.Second, time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, ok, err := f.Await(ctx)
	assert.False(t, ok)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestContextRoundTrip(t *testing.T) {
	reg := NewRegistry(context.Background())
	defer reg.Close()
	ctx := WithRegistry(context.Background(), reg)
	assert.Same(t, reg, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}
