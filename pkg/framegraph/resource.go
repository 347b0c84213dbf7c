package framegraph

import (
	"fmt"

	"github.com/vk/framegraph/pkg/registry"
)

// Resource is a typed handle to one version of a resource whose description
// has type D and whose backing instance has type T.
type Resource[D, T any] struct {
	h registry.Handle
}

// Handle returns the untyped handle.
func (r Resource[D, T]) Handle() registry.Handle { return r.h }

// ID returns the resource id.
func (r Resource[D, T]) ID() registry.ResourceID { return r.h.ID() }

// Version returns the version the handle names.
func (r Resource[D, T]) Version() int { return r.h.Version() }

// IsValid reports whether the handle was issued by a frame graph.
func (r Resource[D, T]) IsValid() bool { return r.h.IsValid() }

func (r Resource[D, T]) String() string { return r.h.String() }

// ImportRetained registers an externally owned resource. Its borrowed
// instance is handed to tasks as is; the graph never realizes or releases
// it. Retained resources must be imported again after every Clear.
func ImportRetained[D, T any](g *FrameGraph, name string, description D, instance T) (Resource[D, T], error) {
	h, err := g.ImportRetainedResource(name, description, registry.TypeOf[D, T](), instance)
	if err != nil {
		return Resource[D, T]{}, err
	}
	g.log().Debug("Imported retained resource.", "resource", name, "id", h.ID())
	return Resource[D, T]{h: h}, nil
}

// Resources gives a run callback access to the instances of the resources
// its task declared.
type Resources struct {
	inst registry.Instances
}

// Instance returns the untyped instance bound to a resource.
func (r Resources) Instance(id registry.ResourceID) (any, error) {
	return r.inst.Instance(id)
}

// Actual returns the instance bound to r during execution.
func Actual[D, T any](res Resources, r Resource[D, T]) (T, error) {
	var zero T
	inst, err := res.Instance(r.ID())
	if err != nil {
		return zero, err
	}
	if inst == nil {
		return zero, nil
	}
	typed, ok := inst.(T)
	if !ok {
		return zero, fmt.Errorf("resource #%d holds %T, want %v", r.ID(), inst, registry.TypeOf[D, T]().Instance)
	}
	return typed, nil
}
