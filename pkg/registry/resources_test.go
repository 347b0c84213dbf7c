package registry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type bufferDesc struct {
	Size int
}

type buffer struct {
	size     int
	released bool
}

func (b *buffer) Release() { b.released = true }

type imageDesc struct {
	Width, Height int
}

type image struct{}

var bufferType = TypeOf[bufferDesc, *buffer]()

// countingFactories registers a buffer factory and returns a pointer to its
// invocation count.
func countingFactories(t *testing.T) (*Factories, *int) {
	t.Helper()
	calls := 0
	f := NewFactories()
	Register(f, func(d bufferDesc) (*buffer, error) {
		calls++
		return &buffer{size: d.Size}, nil
	})
	return f, &calls
}

func TestResources_IDsIncreaseAcrossKinds(t *testing.T) {
	r := NewResources()

	a := r.Create("a", bufferDesc{Size: 1}, bufferType)
	b, err := r.ImportRetained("b", bufferDesc{Size: 2}, bufferType, &buffer{})
	require.NoError(t, err)
	c := r.Create("c", bufferDesc{Size: 3}, bufferType)

	assert.Equal(t, ResourceID(1), a.ID())
	assert.Equal(t, ResourceID(2), b.ID())
	assert.Equal(t, ResourceID(3), c.ID())
	assert.Equal(t, 3, r.Len())

	n, ok := r.Node(b.ID())
	require.True(t, ok)
	assert.Equal(t, Retained, n.Kind)
	assert.Equal(t, NoTask, n.Versions[0].Producer)
}

func TestResources_WriteChainMakesOlderHandlesStale(t *testing.T) {
	r := NewResources()
	v0 := r.Create("chain", bufferDesc{}, bufferType)
	require.NoError(t, r.MarkCreator(v0, 1))

	v1, err := r.RecordWrite(v0, 2)
	require.NoError(t, err)
	v2, err := r.RecordWrite(v1, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, v2.Version())
	assert.Equal(t, v0.ID(), v2.ID())

	for _, stale := range []Handle{v0, v1} {
		err := r.RecordRead(stale, 4)
		var staleErr *StaleHandleError
		require.ErrorAs(t, err, &staleErr)
		assert.Equal(t, stale.Version(), staleErr.Version)
		assert.Equal(t, 2, staleErr.Latest)

		_, err = r.RecordWrite(stale, 4)
		assert.ErrorIs(t, err, ErrStaleHandle)
	}

	require.NoError(t, r.RecordRead(v2, 4))
	n, _ := r.Node(v2.ID())
	assert.Equal(t, []TaskID{4}, n.Versions[2].Readers)
	assert.Equal(t, TaskID(3), n.Versions[2].Producer)
}

func TestResources_RecordReadIsIdempotent(t *testing.T) {
	r := NewResources()
	h := r.Create("x", bufferDesc{}, bufferType)
	require.NoError(t, r.RecordRead(h, 2))
	require.NoError(t, r.RecordRead(h, 2))
	require.NoError(t, r.RecordRead(h, 3))

	n, _ := r.Node(h.ID())
	assert.Equal(t, []TaskID{2, 3}, n.Versions[0].Readers)
}

func TestResources_InvalidHandles(t *testing.T) {
	r := NewResources()

	err := r.RecordRead(Handle{}, 1)
	assert.ErrorIs(t, err, ErrGraphConstruction)

	h := r.Create("x", bufferDesc{}, bufferType)
	r.Reset(context.Background())
	r.Create("y", bufferDesc{}, bufferType)

	err = r.RecordRead(h, 1)
	var gce *GraphConstructionError
	require.ErrorAs(t, err, &gce)
	assert.Contains(t, gce.Msg, "generation 1")
}

func TestResources_MarkCreatorRejectsRetainedAndDuplicates(t *testing.T) {
	r := NewResources()
	rh, err := r.ImportRetained("ret", bufferDesc{}, bufferType, nil)
	require.NoError(t, err)
	assert.ErrorIs(t, r.MarkCreator(rh, 1), ErrGraphConstruction)

	h := r.Create("x", bufferDesc{}, bufferType)
	require.NoError(t, r.MarkCreator(h, 1))
	assert.ErrorIs(t, r.MarkCreator(h, 2), ErrGraphConstruction)
}

func TestResources_ImportRetainedChecksTypes(t *testing.T) {
	r := NewResources()

	_, err := r.ImportRetained("bad-instance", bufferDesc{}, bufferType, &image{})
	assert.ErrorIs(t, err, ErrGraphConstruction)

	_, err = r.ImportRetained("bad-desc", imageDesc{}, bufferType, &buffer{})
	assert.ErrorIs(t, err, ErrGraphConstruction)
	assert.Equal(t, 0, r.Len())
}

func TestResources_RealizeMemoizesTransient(t *testing.T) {
	ctx := context.Background()
	f, calls := countingFactories(t)
	r := NewResources(WithFactories(f))
	h := r.Create("x", bufferDesc{Size: 64}, bufferType)

	first, src, err := r.Realize(ctx, h.ID())
	require.NoError(t, err)
	assert.Equal(t, SourceFactory, src)
	assert.Equal(t, 64, first.(*buffer).size)

	second, src, err := r.Realize(ctx, h.ID())
	require.NoError(t, err)
	assert.Equal(t, SourceMemoized, src)
	assert.Same(t, first, second)
	assert.Equal(t, 1, *calls)
}

func TestResources_RealizeRetainedSkipsFactory(t *testing.T) {
	ctx := context.Background()
	f, calls := countingFactories(t)
	r := NewResources(WithFactories(f))
	external := &buffer{size: 7}
	h, err := r.ImportRetained("ext", bufferDesc{Size: 7}, bufferType, external)
	require.NoError(t, err)

	inst, src, err := r.Realize(ctx, h.ID())
	require.NoError(t, err)
	assert.Equal(t, SourceRetained, src)
	assert.Same(t, external, inst)
	assert.Zero(t, *calls)

	assert.ErrorIs(t, r.Release(ctx, h.ID()), ErrGraphConstruction)

	r.Reset(ctx)
	assert.False(t, external.released, "retained instances are borrowed")
}

func TestResources_RealizeWithoutFactory(t *testing.T) {
	r := NewResources()
	h := r.Create("x", bufferDesc{}, bufferType)

	_, _, err := r.Realize(context.Background(), h.ID())
	var realizeErr *RealizeError
	require.ErrorAs(t, err, &realizeErr)
	assert.Equal(t, h.ID(), realizeErr.Resource)
	assert.ErrorIs(t, err, ErrNoFactory)
}

func TestResources_RealizeFactoryFailure(t *testing.T) {
	boom := errors.New("out of memory")
	f := NewFactories()
	Register(f, func(bufferDesc) (*buffer, error) { return nil, boom })
	r := NewResources(WithFactories(f))
	h := r.Create("x", bufferDesc{}, bufferType)

	_, _, err := r.Realize(context.Background(), h.ID())
	assert.ErrorIs(t, err, boom)

	_, err = r.Instance(h.ID())
	assert.ErrorIs(t, err, ErrNotRealized)
}

func TestResources_ReleaseWithoutPoolDestroys(t *testing.T) {
	ctx := context.Background()
	f, calls := countingFactories(t)
	r := NewResources(WithFactories(f), WithPooling(false))
	h := r.Create("x", bufferDesc{Size: 8}, bufferType)

	inst, _, err := r.Realize(ctx, h.ID())
	require.NoError(t, err)
	require.NoError(t, r.Release(ctx, h.ID()))
	assert.True(t, inst.(*buffer).released)
	assert.Zero(t, r.Pooled())

	_, err = r.Instance(h.ID())
	assert.ErrorIs(t, err, ErrNotRealized)

	require.NoError(t, r.Release(ctx, h.ID()), "releasing twice is a no-op")

	_, src, err := r.Realize(ctx, h.ID())
	require.NoError(t, err)
	assert.Equal(t, SourceFactory, src)
	assert.Equal(t, 2, *calls)
}

func TestResources_PoolAliasesEqualDescriptions(t *testing.T) {
	ctx := context.Background()
	f, calls := countingFactories(t)
	r := NewResources(WithFactories(f))
	a := r.Create("a", bufferDesc{Size: 16}, bufferType)
	b := r.Create("b", bufferDesc{Size: 16}, bufferType)
	c := r.Create("c", bufferDesc{Size: 32}, bufferType)

	instA, _, err := r.Realize(ctx, a.ID())
	require.NoError(t, err)
	require.NoError(t, r.Release(ctx, a.ID()))
	assert.False(t, instA.(*buffer).released)
	assert.Equal(t, 1, r.Pooled())

	instB, src, err := r.Realize(ctx, b.ID())
	require.NoError(t, err)
	assert.Equal(t, SourcePool, src)
	assert.Same(t, instA, instB)

	_, src, err = r.Realize(ctx, c.ID())
	require.NoError(t, err)
	assert.Equal(t, SourceFactory, src, "different description must not alias")
	assert.Equal(t, 2, *calls)
}

func TestResources_ResetDiscardsTransientsAndPool(t *testing.T) {
	ctx := context.Background()
	f, _ := countingFactories(t)
	r := NewResources(WithFactories(f))
	live := r.Create("live", bufferDesc{Size: 1}, bufferType)
	parked := r.Create("parked", bufferDesc{Size: 2}, bufferType)

	liveInst, _, err := r.Realize(ctx, live.ID())
	require.NoError(t, err)
	parkedInst, _, err := r.Realize(ctx, parked.ID())
	require.NoError(t, err)
	require.NoError(t, r.Release(ctx, parked.ID()))

	r.Reset(ctx)

	assert.True(t, liveInst.(*buffer).released)
	assert.True(t, parkedInst.(*buffer).released)
	assert.Zero(t, r.Pooled())
	assert.Zero(t, r.Len())
	assert.Equal(t, uint64(2), r.Generation())

	h := r.Create("again", bufferDesc{}, bufferType)
	assert.Equal(t, ResourceID(1), h.ID())
	assert.Equal(t, uint64(2), h.Generation())
}

func TestFactories_DuplicateRegistrationPanics(t *testing.T) {
	f := NewFactories()
	Register(f, func(bufferDesc) (*buffer, error) { return &buffer{}, nil })
	assert.Panics(t, func() {
		Register(f, func(bufferDesc) (*buffer, error) { return &buffer{}, nil })
	})
	assert.Equal(t, 1, f.Len())
}

func TestFactories_SameDescriptionDifferentInstance(t *testing.T) {
	f := NewFactories()
	Register(f, func(imageDesc) (*image, error) { return &image{}, nil })
	Register(f, func(imageDesc) (*buffer, error) { return &buffer{}, nil })

	_, ok := f.Lookup(TypeOf[imageDesc, *image]())
	assert.True(t, ok)
	_, ok = f.Lookup(TypeOf[imageDesc, *buffer]())
	assert.True(t, ok)
	_, ok = f.Lookup(TypeOf[bufferDesc, *image]())
	assert.False(t, ok)
}

func TestFactories_RegisterDoesNotUseGlobalLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { slog.SetDefault(prev) })

	f := NewFactories()
	Register(f, func(bufferDesc) (*buffer, error) { return &buffer{}, nil })

	assert.Equal(t, 1, f.Len())
	assert.Empty(t, buf.String())
}
