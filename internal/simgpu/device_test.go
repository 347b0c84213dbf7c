package simgpu

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/framegraph/internal/pipeline"
	"github.com/vk/framegraph/internal/testutil"
	"github.com/vk/framegraph/pkg/framegraph"
)

func TestTextureBytes(t *testing.T) {
	for _, tc := range []struct {
		format string
		want   int64
	}{
		{"", 400},
		{"bgra8", 400},
		{"r8", 100},
		{"rg16f", 400},
		{"rgba16f", 800},
		{"rgba32f", 1600},
	} {
		t.Run(tc.format, func(t *testing.T) {
			assert.Equal(t, tc.want, TextureDesc{Width: 10, Height: 10, Format: tc.format}.Bytes())
		})
	}
}

func TestDevice_Accounting(t *testing.T) {
	d := NewDevice()

	b, err := d.NewBuffer(BufferDesc{Size: 64})
	require.NoError(t, err)
	tex, err := d.NewTexture(TextureDesc{Width: 2, Height: 2})
	require.NoError(t, err)

	assert.Equal(t, Stats{Allocations: 2, LiveBytes: 80, PeakBytes: 80}, d.Stats())

	b.Release()
	assert.True(t, b.Released())
	assert.Equal(t, Stats{Allocations: 2, Frees: 1, LiveBytes: 16, PeakBytes: 80}, d.Stats())
	assert.Panics(t, b.Release)

	tex.Release()
	assert.Equal(t, int64(0), d.Stats().LiveBytes)
}

func TestDevice_RejectsEmptyDescriptions(t *testing.T) {
	d := NewDevice()
	_, err := d.NewBuffer(BufferDesc{})
	assert.ErrorContains(t, err, "buffer size must be positive")
	_, err = d.NewTexture(TextureDesc{Width: 4})
	assert.ErrorContains(t, err, "texture extent must be positive")
	assert.Zero(t, d.Stats().Allocations)
}

func TestDevice_RetainedAreNotCounted(t *testing.T) {
	d := NewDevice()
	desc := TextureDesc{Width: 8, Height: 8}

	sc := d.Swapchain("backbuffer", desc)
	assert.Same(t, sc, d.Swapchain("backbuffer", desc))
	assert.NotSame(t, sc, d.Swapchain("backbuffer", TextureDesc{Width: 16, Height: 16}))

	pb := d.Persistent("history", BufferDesc{Size: 4})
	assert.Same(t, pb, d.Persistent("history", BufferDesc{Size: 4}))

	assert.Zero(t, d.Stats().Allocations)
	sc.Release()
	assert.Zero(t, d.Stats().Frees)
}

func TestDevice_BindRetained(t *testing.T) {
	d := NewDevice()

	inst, err := d.BindRetained(&pipeline.ResourceDecl{Name: "bb", Description: TextureDesc{Width: 1, Height: 1}})
	require.NoError(t, err)
	assert.IsType(t, &Texture{}, inst)

	inst, err = d.BindRetained(&pipeline.ResourceDecl{Name: "hist", Description: BufferDesc{Size: 1}})
	require.NoError(t, err)
	assert.IsType(t, &Buffer{}, inst)

	_, err = d.BindRetained(&pipeline.ResourceDecl{Name: "odd", Description: 3})
	assert.ErrorContains(t, err, `cannot bind retained "odd"`)
}

const deferred = `
retained "texture2d" "backbuffer" {
  width  = 4
  height = 4
}

task "gbuffer" {
  create "texture2d" "albedo" {
    width  = 4
    height = 4
  }
  create "buffer" "depth" { size = 16 }
}

task "lighting" {
  read  = ["albedo", "depth"]
  create "texture2d" "hdr" {
    width  = 4
    height = 4
    format = "rgba16f"
  }
}

task "tonemap" {
  read  = ["hdr"]
  write = ["backbuffer"]
}
`

func TestDevice_RunsPipeline(t *testing.T) {
	ctx := context.Background()
	dir := testutil.WriteFiles(t, map[string]string{"deferred.hcl": deferred})
	p, err := pipeline.NewLoader(Types(), nil).Load(ctx, dir)
	require.NoError(t, err)

	d := NewDevice()
	g := framegraph.New(framegraph.WithFactories(d.Factories()))

	const frames = 3
	for frame := 1; frame <= frames; frame++ {
		require.NoError(t, pipeline.Declare(g, p, Types(), d))
		_, err = g.Compile(ctx)
		require.NoError(t, err)

		d.BeginFrame(frame)
		require.NoError(t, g.Execute(ctx))
		g.Clear()
	}

	sc := d.Swapchain("backbuffer", TextureDesc{Width: 4, Height: 4})
	assert.Equal(t, []string{"tonemap@1", "tonemap@2", "tonemap@3"}, sc.Writes)

	stats := d.Stats()
	assert.Equal(t, 3*frames, stats.PassRuns)
	// Clear drains the pool, so every frame allocates its transients again.
	assert.Equal(t, 3*frames, stats.Allocations)
	assert.Equal(t, stats.Allocations, stats.Frees)
	assert.Zero(t, stats.LiveBytes)
	assert.Equal(t, int64(64+16+128), stats.PeakBytes)
}
