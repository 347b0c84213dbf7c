package registry

import (
	"context"
	"fmt"

	"github.com/vk/framegraph/internal/ctxlog"
)

// Source tells where Realize obtained an instance from.
type Source int

const (
	// SourceFactory means the host factory produced a new instance.
	SourceFactory Source = iota
	// SourcePool means a released instance with an equal description was reused.
	SourcePool
	// SourceMemoized means the resource was already realized.
	SourceMemoized
	// SourceRetained means the borrowed instance of a retained resource.
	SourceRetained
)

func (s Source) String() string {
	switch s {
	case SourceFactory:
		return "factory"
	case SourcePool:
		return "pool"
	case SourceMemoized:
		return "memoized"
	case SourceRetained:
		return "retained"
	default:
		return fmt.Sprintf("source(%d)", int(s))
	}
}

// Version is one point in a resource's write history.
type Version struct {
	// Seq is the 0-based position in the history.
	Seq int
	// Producer is the task that created or wrote this version, NoTask for
	// version 0 of an imported retained resource.
	Producer TaskID
	// Readers lists the tasks that read this version, in declaration order.
	Readers []TaskID
}

func (v *Version) addReader(id TaskID) {
	for _, r := range v.Readers {
		if r == id {
			return
		}
	}
	v.Readers = append(v.Readers, id)
}

// ResourceNode is a resource and its version history. Callers outside this
// package must treat it as read-only.
type ResourceNode struct {
	ID          ResourceID
	Name        string
	Description any
	Type        ResourceType
	Kind        Kind
	Versions    []*Version

	instance any
	realized bool
}

// Latest returns the most recent version.
func (n *ResourceNode) Latest() *Version {
	return n.Versions[len(n.Versions)-1]
}

// Realized reports whether a backing instance is currently bound. Retained
// resources are always bound.
func (n *ResourceNode) Realized() bool {
	return n.Kind == Retained || n.realized
}

// Resources is the resource registry of one frame graph.
type Resources struct {
	factories *Factories
	pool      *pool
	nodes     []*ResourceNode
	gen       uint64
}

// ResourcesOption configures a Resources registry.
type ResourcesOption func(*Resources)

// WithFactories sets the realize factory table.
func WithFactories(f *Factories) ResourcesOption {
	return func(r *Resources) { r.factories = f }
}

// WithPooling enables or disables reuse of released transient instances.
// Pooling is enabled by default.
func WithPooling(enabled bool) ResourcesOption {
	return func(r *Resources) {
		if enabled {
			r.pool = newPool()
		} else {
			r.pool = nil
		}
	}
}

// NewResources creates an empty registry in generation 1.
func NewResources(opts ...ResourcesOption) *Resources {
	r := &Resources{
		factories: NewFactories(),
		pool:      newPool(),
		gen:       1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Generation returns the current generation.
func (r *Resources) Generation() uint64 { return r.gen }

// Len returns the number of resources declared in this generation.
func (r *Resources) Len() int { return len(r.nodes) }

// Create registers a new transient resource at version 0 with no producer.
func (r *Resources) Create(name string, description any, typ ResourceType) Handle {
	return r.add(name, description, typ, Transient, nil)
}

// ImportRetained registers a retained resource whose version 0 is bound to
// the borrowed instance.
func (r *Resources) ImportRetained(name string, description any, typ ResourceType, instance any) (Handle, error) {
	if !typ.AcceptsDescription(description) {
		return Handle{}, constructionf("retained resource %q: description of type %T does not match %s", name, description, typ)
	}
	if !typ.AcceptsInstance(instance) {
		return Handle{}, constructionf("retained resource %q: instance of type %T does not match %s", name, instance, typ)
	}
	return r.add(name, description, typ, Retained, instance), nil
}

func (r *Resources) add(name string, description any, typ ResourceType, kind Kind, instance any) Handle {
	n := &ResourceNode{
		ID:          ResourceID(len(r.nodes) + 1),
		Name:        name,
		Description: description,
		Type:        typ,
		Kind:        kind,
		Versions:    []*Version{{Seq: 0, Producer: NoTask}},
	}
	if kind == Retained {
		n.instance = instance
	}
	r.nodes = append(r.nodes, n)
	return Handle{id: n.ID, version: 0, gen: r.gen}
}

// MarkCreator records task as the producer of version 0 of a transient
// resource that has no producer yet.
func (r *Resources) MarkCreator(h Handle, task TaskID) error {
	n, err := r.Lookup(h)
	if err != nil {
		return err
	}
	if n.Kind != Transient {
		return constructionf("resource %q (#%d) is retained and cannot be created by a task", n.Name, n.ID)
	}
	v := n.Versions[0]
	if h.version != 0 || v.Producer != NoTask {
		return constructionf("resource %q (#%d) already has a creator", n.Name, n.ID)
	}
	v.Producer = task
	return nil
}

// RecordRead appends reader to the readers of the version h names.
func (r *Resources) RecordRead(h Handle, reader TaskID) error {
	n, err := r.current(h)
	if err != nil {
		return err
	}
	n.Versions[h.version].addReader(reader)
	return nil
}

// RecordWrite appends a new version produced by writer and returns its
// handle. The handle passed in is stale afterwards.
func (r *Resources) RecordWrite(h Handle, writer TaskID) (Handle, error) {
	n, err := r.current(h)
	if err != nil {
		return Handle{}, err
	}
	next := &Version{Seq: len(n.Versions), Producer: writer}
	n.Versions = append(n.Versions, next)
	return Handle{id: n.ID, version: next.Seq, gen: r.gen}, nil
}

// Lookup resolves a handle to its node without checking staleness.
func (r *Resources) Lookup(h Handle) (*ResourceNode, error) {
	if !h.IsValid() {
		return nil, constructionf("invalid resource handle")
	}
	if h.gen != r.gen {
		return nil, constructionf("handle %s was issued in generation %d, current generation is %d", h, h.gen, r.gen)
	}
	n, ok := r.Node(h.id)
	if !ok {
		return nil, constructionf("unknown resource #%d", h.id)
	}
	if h.version < 0 || h.version >= len(n.Versions) {
		return nil, constructionf("resource %q (#%d) has no version %d", n.Name, n.ID, h.version)
	}
	return n, nil
}

// current resolves a handle and fails if a later version exists.
func (r *Resources) current(h Handle) (*ResourceNode, error) {
	n, err := r.Lookup(h)
	if err != nil {
		return nil, err
	}
	if latest := len(n.Versions) - 1; h.version != latest {
		return nil, &StaleHandleError{Resource: n.ID, Name: n.Name, Version: h.version, Latest: latest}
	}
	return n, nil
}

// Node returns the resource with the given id.
func (r *Resources) Node(id ResourceID) (*ResourceNode, bool) {
	if id == 0 || int(id) > len(r.nodes) {
		return nil, false
	}
	return r.nodes[id-1], true
}

// Nodes returns all resources in id order.
func (r *Resources) Nodes() []*ResourceNode {
	out := make([]*ResourceNode, len(r.nodes))
	copy(out, r.nodes)
	return out
}

// Realize binds a backing instance to a transient resource, or returns the
// borrowed instance of a retained one. Realizing an already realized resource
// returns the memoized instance.
func (r *Resources) Realize(ctx context.Context, id ResourceID) (any, Source, error) {
	logger := ctxlog.FromContext(ctx)
	n, ok := r.Node(id)
	if !ok {
		return nil, 0, constructionf("unknown resource #%d", id)
	}
	if n.Kind == Retained {
		return n.instance, SourceRetained, nil
	}
	if n.realized {
		return n.instance, SourceMemoized, nil
	}

	if inst, ok := r.pool.take(n); ok {
		n.instance, n.realized = inst, true
		logger.Debug("Reused pooled instance for resource.", "resource", n.Name, "id", n.ID)
		return inst, SourcePool, nil
	}

	factory, ok := r.factories.Lookup(n.Type)
	if !ok {
		return nil, 0, &RealizeError{Resource: n.ID, Name: n.Name, Err: fmt.Errorf("%w for %s", ErrNoFactory, n.Type)}
	}
	inst, err := factory(n.Description)
	if err != nil {
		return nil, 0, &RealizeError{Resource: n.ID, Name: n.Name, Err: err}
	}
	if !n.Type.AcceptsInstance(inst) {
		return nil, 0, &RealizeError{Resource: n.ID, Name: n.Name, Err: fmt.Errorf("factory returned %T, want %v", inst, n.Type.Instance)}
	}
	n.instance, n.realized = inst, true
	logger.Debug("Realized resource.", "resource", n.Name, "id", n.ID, "type", n.Type.String())
	return inst, SourceFactory, nil
}

// Release unbinds the backing instance of a transient resource. The instance
// is parked in the pool when pooling is enabled and destroyed otherwise.
// Releasing an unrealized resource does nothing.
func (r *Resources) Release(ctx context.Context, id ResourceID) error {
	n, ok := r.Node(id)
	if !ok {
		return constructionf("unknown resource #%d", id)
	}
	if n.Kind == Retained {
		return constructionf("resource %q (#%d) is retained and cannot be released by the graph", n.Name, n.ID)
	}
	if !n.realized {
		return nil
	}
	inst := n.instance
	n.instance, n.realized = nil, false
	if r.pool.put(n, inst) {
		ctxlog.FromContext(ctx).Debug("Parked released instance.", "resource", n.Name, "id", n.ID)
		return nil
	}
	discard(inst)
	ctxlog.FromContext(ctx).Debug("Destroyed released instance.", "resource", n.Name, "id", n.ID)
	return nil
}

// Instance returns the instance currently bound to a resource.
func (r *Resources) Instance(id ResourceID) (any, error) {
	n, ok := r.Node(id)
	if !ok {
		return nil, constructionf("unknown resource #%d", id)
	}
	if !n.Realized() {
		return nil, fmt.Errorf("resource %q (#%d): %w", n.Name, n.ID, ErrNotRealized)
	}
	return n.instance, nil
}

// Pooled returns the number of released instances waiting for reuse.
func (r *Resources) Pooled() int { return r.pool.size() }

// Reset discards every transient instance, drains the pool, forgets retained
// bindings, restarts ids at 1 and moves to the next generation.
func (r *Resources) Reset(ctx context.Context) {
	discarded := 0
	for _, n := range r.nodes {
		if n.Kind == Transient && n.realized {
			discard(n.instance)
			discarded++
		}
		n.instance, n.realized = nil, false
	}
	r.pool.drain(func(inst any) {
		discard(inst)
		discarded++
	})
	ctxlog.FromContext(ctx).Debug("Resource registry reset.", "generation", r.gen, "resources", len(r.nodes), "discarded", discarded)
	r.nodes = nil
	r.gen++
}

func discard(inst any) {
	if rel, ok := inst.(Releasable); ok {
		rel.Release()
	}
}
