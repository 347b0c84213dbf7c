package framegraph

import (
	"context"
	"errors"

	"github.com/vk/framegraph/pkg/registry"
)

// Task is a declared task with payload type P.
type Task[P any] struct {
	node *registry.TaskNode
}

// ID returns the task id.
func (t *Task[P]) ID() registry.TaskID { return t.node.ID }

// Name returns the task name.
func (t *Task[P]) Name() string { return t.node.Name }

// Culled reports whether the last compile removed the task.
func (t *Task[P]) Culled() bool { return t.node.Culled }

// Data returns the payload filled in by the declare callback. It returns nil
// once the graph has been cleared.
func (t *Task[P]) Data() *P {
	p, _ := t.node.Payload.(*P)
	return p
}

// AddTask declares a task. declare runs immediately with a zero payload and a
// Builder valid only for the duration of the call. run is deferred until
// Execute and may be nil. When declare fails, the error is returned and every
// later Compile fails with it until Clear.
func AddTask[P any](
	g *FrameGraph,
	name string,
	declare func(*P, *Builder) error,
	run func(context.Context, *P, Resources) error,
) (*Task[P], error) {
	if g.executing {
		return nil, constructionf(name, "cannot add a task while executing")
	}

	payload := new(P)
	var fn registry.RunFunc
	if run != nil {
		fn = func(ctx context.Context, inst registry.Instances) error {
			return run(ctx, payload, Resources{inst: inst})
		}
	}
	node := g.tasks.Add(name, payload, fn)
	g.plan = nil

	if declare != nil {
		b := &Builder{g: g, task: node}
		err := declare(payload, b)
		b.done = true
		if err != nil {
			if g.poisoned == nil {
				g.poisoned = err
			}
			g.log().Debug("Task declaration failed.", "task", name, "id", node.ID, "error", err)
			return nil, err
		}
	}

	g.log().Debug("Declared task.", "task", name, "id", node.ID,
		"creates", len(node.Creates), "reads", len(node.Reads), "writes", len(node.Writes))
	return &Task[P]{node: node}, nil
}

// Builder records the resource accesses of the task being declared.
type Builder struct {
	g    *FrameGraph
	task *registry.TaskNode
	done bool
}

// TaskName returns the name of the task being declared.
func (b *Builder) TaskName() string { return b.task.Name }

func (b *Builder) check() error {
	if b.done {
		return constructionf(b.task.Name, "builder used outside its declare callback")
	}
	return nil
}

// CreateResource creates a transient resource without compile-time types.
func (b *Builder) CreateResource(name string, description any, typ registry.ResourceType) (registry.Handle, error) {
	if err := b.check(); err != nil {
		return registry.Handle{}, err
	}
	if !typ.AcceptsDescription(description) {
		return registry.Handle{}, constructionf(b.task.Name, "resource %q: description of type %T does not match %s", name, description, typ)
	}
	h := b.g.resources.Create(name, description, typ)
	if err := b.g.resources.MarkCreator(h, b.task.ID); err != nil {
		return registry.Handle{}, b.attribute(err)
	}
	b.task.RecordCreate(h)
	return h, nil
}

// ReadResource records a read of the version h names.
func (b *Builder) ReadResource(h registry.Handle) (registry.Handle, error) {
	if err := b.check(); err != nil {
		return registry.Handle{}, err
	}
	if err := b.g.resources.RecordRead(h, b.task.ID); err != nil {
		return registry.Handle{}, b.attribute(err)
	}
	b.task.RecordRead(h)
	return h, nil
}

// WriteResource records a write of the version h names and returns the
// handle of the new version. h is stale afterwards.
func (b *Builder) WriteResource(h registry.Handle) (registry.Handle, error) {
	if err := b.check(); err != nil {
		return registry.Handle{}, err
	}
	next, err := b.g.resources.RecordWrite(h, b.task.ID)
	if err != nil {
		return registry.Handle{}, b.attribute(err)
	}
	b.task.RecordWrite(next)
	return next, nil
}

// attribute names the declaring task in construction errors raised by the
// registry.
func (b *Builder) attribute(err error) error {
	var gce *GraphConstructionError
	if errors.As(err, &gce) && gce.Task == "" {
		return constructionf(b.task.Name, "%s", gce.Msg)
	}
	return err
}

func (b *Builder) checkType(h registry.Handle, want registry.ResourceType) error {
	n, err := b.g.resources.Lookup(h)
	if err != nil {
		return b.attribute(err)
	}
	if n.Type != want {
		return &TypeMismatchError{Task: b.task.Name, Resource: n.ID, Name: n.Name, Want: n.Type, Got: want}
	}
	return nil
}

// Create declares a new transient resource created by the task.
func Create[D, T any](b *Builder, name string, description D) (Resource[D, T], error) {
	h, err := b.CreateResource(name, description, registry.TypeOf[D, T]())
	if err != nil {
		return Resource[D, T]{}, err
	}
	return Resource[D, T]{h: h}, nil
}

// Read declares that the task reads r.
func Read[D, T any](b *Builder, r Resource[D, T]) (Resource[D, T], error) {
	if err := b.check(); err != nil {
		return Resource[D, T]{}, err
	}
	if err := b.checkType(r.h, registry.TypeOf[D, T]()); err != nil {
		return Resource[D, T]{}, err
	}
	h, err := b.ReadResource(r.h)
	if err != nil {
		return Resource[D, T]{}, err
	}
	return Resource[D, T]{h: h}, nil
}

// Write declares that the task writes r and returns the handle of the new
// version. r is stale afterwards.
func Write[D, T any](b *Builder, r Resource[D, T]) (Resource[D, T], error) {
	if err := b.check(); err != nil {
		return Resource[D, T]{}, err
	}
	if err := b.checkType(r.h, registry.TypeOf[D, T]()); err != nil {
		return Resource[D, T]{}, err
	}
	h, err := b.WriteResource(r.h)
	if err != nil {
		return Resource[D, T]{}, err
	}
	return Resource[D, T]{h: h}, nil
}
