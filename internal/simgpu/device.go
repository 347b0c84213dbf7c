// Package simgpu is a simulated graphics device. It realizes frame graph
// resources as plain memory objects, tracks how many bytes are allocated,
// and records which passes wrote each object so tests and the CLI can check
// what ran.
package simgpu

import (
	"context"
	"fmt"
	"sync"

	"github.com/vk/framegraph/internal/ctxlog"
	"github.com/vk/framegraph/internal/pipeline"
	"github.com/vk/framegraph/pkg/framegraph"
	"github.com/vk/framegraph/pkg/registry"
)

// BufferDesc describes a linear buffer.
type BufferDesc struct {
	Size int `hcl:"size" yaml:"size" json:"size"`
}

// TextureDesc describes a 2D texture.
type TextureDesc struct {
	Width  int    `hcl:"width" yaml:"width" json:"width"`
	Height int    `hcl:"height" yaml:"height" json:"height"`
	Format string `hcl:"format,optional" yaml:"format,omitempty" json:"format,omitempty"`
}

// Bytes returns the storage size of the texture.
func (d TextureDesc) Bytes() int64 {
	return int64(d.Width) * int64(d.Height) * bytesPerPixel(d.Format)
}

func bytesPerPixel(format string) int64 {
	switch format {
	case "r8":
		return 1
	case "rg16f":
		return 4
	case "rgba16f":
		return 8
	case "rgba32f":
		return 16
	default:
		return 4
	}
}

// Object is the common part of buffers and textures.
type Object struct {
	dev      *Device
	id       int
	bytes    int64
	external bool
	released bool
	// Writes lists "pass@frame" stamps in the order passes wrote the object.
	Writes []string
}

// ID returns the allocation number of the object.
func (o *Object) ID() int { return o.id }

// Released reports whether the object was destroyed.
func (o *Object) Released() bool { return o.released }

// Release frees the object. Releasing twice panics, which catches double
// frees in the engine.
func (o *Object) Release() {
	if o.released {
		panic(fmt.Sprintf("simgpu: object %d released twice", o.id))
	}
	o.released = true
	if !o.external {
		o.dev.free(o.bytes)
	}
}

func (o *Object) stamp(s string) { o.Writes = append(o.Writes, s) }

// Buffer is a realized BufferDesc.
type Buffer struct {
	Object
	Desc BufferDesc
}

// Texture is a realized TextureDesc.
type Texture struct {
	Object
	Desc TextureDesc
}

// Stats is a snapshot of the device counters.
type Stats struct {
	Allocations int   `yaml:"allocations" json:"allocations"`
	Frees       int   `yaml:"frees" json:"frees"`
	LiveBytes   int64 `yaml:"live_bytes" json:"live_bytes"`
	PeakBytes   int64 `yaml:"peak_bytes" json:"peak_bytes"`
	PassRuns    int   `yaml:"pass_runs" json:"pass_runs"`
}

// Device allocates simulated objects. It is safe for concurrent use.
type Device struct {
	mu        sync.Mutex
	nextID    int
	frame     int
	stats     Stats
	swapchain map[string]*Texture
	persist   map[string]*Buffer
}

// NewDevice creates an empty device.
func NewDevice() *Device {
	return &Device{
		swapchain: make(map[string]*Texture),
		persist:   make(map[string]*Buffer),
	}
}

// Types returns the pipeline resource types the device understands.
func Types() *pipeline.Types {
	return pipeline.NewTypes(
		pipeline.NewType[BufferDesc, *Buffer]("buffer"),
		pipeline.NewType[TextureDesc, *Texture]("texture2d"),
	)
}

// Factories returns realize factories for buffers and textures.
func (d *Device) Factories() *registry.Factories {
	f := registry.NewFactories()
	registry.Register(f, d.NewBuffer)
	registry.Register(f, d.NewTexture)
	return f
}

// NewBuffer allocates a buffer.
func (d *Device) NewBuffer(desc BufferDesc) (*Buffer, error) {
	if desc.Size <= 0 {
		return nil, fmt.Errorf("simgpu: buffer size must be positive, got %d", desc.Size)
	}
	b := &Buffer{Desc: desc}
	b.Object = d.alloc(int64(desc.Size), false)
	return b, nil
}

// NewTexture allocates a texture.
func (d *Device) NewTexture(desc TextureDesc) (*Texture, error) {
	if desc.Width <= 0 || desc.Height <= 0 {
		return nil, fmt.Errorf("simgpu: texture extent must be positive, got %dx%d", desc.Width, desc.Height)
	}
	t := &Texture{Desc: desc}
	t.Object = d.alloc(desc.Bytes(), false)
	return t, nil
}

func (d *Device) alloc(bytes int64, external bool) Object {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	if !external {
		d.stats.Allocations++
		d.stats.LiveBytes += bytes
		d.stats.PeakBytes = max(d.stats.PeakBytes, d.stats.LiveBytes)
	}
	return Object{dev: d, id: d.nextID, bytes: bytes, external: external}
}

func (d *Device) free(bytes int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.stats.Frees++
	d.stats.LiveBytes -= bytes
}

// Stats returns a snapshot of the counters.
func (d *Device) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// BeginFrame sets the frame number used in write stamps.
func (d *Device) BeginFrame(frame int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.frame = frame
}

// Swapchain returns the presentable image registered under name, creating it
// on first use. Swapchain images are owned by the device and outlive every
// frame graph generation.
func (d *Device) Swapchain(name string, desc TextureDesc) *Texture {
	d.mu.Lock()
	t, ok := d.swapchain[name]
	d.mu.Unlock()
	if ok && t.Desc == desc {
		return t
	}
	t = &Texture{Desc: desc}
	t.Object = d.alloc(desc.Bytes(), true)
	d.mu.Lock()
	d.swapchain[name] = t
	d.mu.Unlock()
	return t
}

// Persistent returns the long-lived buffer registered under name, creating it
// on first use.
func (d *Device) Persistent(name string, desc BufferDesc) *Buffer {
	d.mu.Lock()
	b, ok := d.persist[name]
	d.mu.Unlock()
	if ok && b.Desc == desc {
		return b
	}
	b = &Buffer{Desc: desc}
	b.Object = d.alloc(int64(desc.Size), true)
	d.mu.Lock()
	d.persist[name] = b
	d.mu.Unlock()
	return b
}

// BindRetained hands out swapchain images and persistent buffers for the
// retained declarations of a pipeline.
func (d *Device) BindRetained(decl *pipeline.ResourceDecl) (any, error) {
	switch desc := decl.Description.(type) {
	case TextureDesc:
		return d.Swapchain(decl.Name, desc), nil
	case BufferDesc:
		return d.Persistent(decl.Name, desc), nil
	default:
		return nil, fmt.Errorf("simgpu: cannot bind retained %q of type %T", decl.Name, decl.Description)
	}
}

// RunTask simulates a pass: it checks that every input is bound and stamps
// every output with the pass name and frame number.
func (d *Device) RunTask(ctx context.Context, b *pipeline.Binding, res framegraph.Resources) error {
	d.mu.Lock()
	frame := d.frame
	d.stats.PassRuns++
	d.mu.Unlock()

	for _, h := range b.Reads {
		if _, err := object(res, h); err != nil {
			return err
		}
	}
	stamp := fmt.Sprintf("%s@%d", b.Task.Name, frame)
	for _, h := range b.Outputs() {
		o, err := object(res, h)
		if err != nil {
			return err
		}
		o.stamp(stamp)
	}
	ctxlog.FromContext(ctx).Debug("Simulated pass.", "frame", frame, "reads", len(b.Reads), "outputs", len(b.Outputs()))
	return nil
}

func object(res framegraph.Resources, h registry.Handle) (*Object, error) {
	inst, err := res.Instance(h.ID())
	if err != nil {
		return nil, err
	}
	switch o := inst.(type) {
	case *Buffer:
		return &o.Object, nil
	case *Texture:
		return &o.Object, nil
	default:
		return nil, fmt.Errorf("simgpu: resource %s is bound to %T", h, inst)
	}
}
