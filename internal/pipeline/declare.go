package pipeline

import (
	"context"
	"fmt"

	"github.com/vk/framegraph/pkg/framegraph"
	"github.com/vk/framegraph/pkg/registry"
)

// Host supplies what a pipeline file cannot: the borrowed instances of
// retained resources and the work each task performs.
type Host interface {
	BindRetained(decl *ResourceDecl) (any, error)
	RunTask(ctx context.Context, b *Binding, res framegraph.Resources) error
}

// Binding is the payload of a declared pipeline task: the declaration it came
// from and the handles recorded for it, parallel to Creates, Reads and Writes
// of the declaration.
type Binding struct {
	Task    *TaskDecl
	Creates []registry.Handle
	Reads   []registry.Handle
	Writes  []registry.Handle
}

// Outputs returns the handles the task created or wrote.
func (b *Binding) Outputs() []registry.Handle {
	out := make([]registry.Handle, 0, len(b.Creates)+len(b.Writes))
	out = append(out, b.Creates...)
	return append(out, b.Writes...)
}

// Declare imports the retained resources and adds every task of p to g, in
// file order.
func Declare(g *framegraph.FrameGraph, p *Pipeline, types *Types, host Host) error {
	current := make(map[string]registry.Handle)

	for _, r := range p.Retained {
		typ, ok := types.Lookup(r.Type)
		if !ok {
			return fmt.Errorf("%s: unknown resource type %q", r.Range, r.Type)
		}
		inst, err := host.BindRetained(r)
		if err != nil {
			return fmt.Errorf("%s: bind retained resource %q: %w", r.Range, r.Name, err)
		}
		h, err := g.ImportRetainedResource(r.Name, r.Description, typ.Resource, inst)
		if err != nil {
			return err
		}
		current[r.Name] = h
	}

	for _, t := range p.Tasks {
		_, err := framegraph.AddTask(g, t.Name,
			func(b *Binding, builder *framegraph.Builder) error {
				return declareTask(b, builder, t, types, current)
			},
			func(ctx context.Context, b *Binding, res framegraph.Resources) error {
				return host.RunTask(ctx, b, res)
			})
		if err != nil {
			return err
		}
	}
	return nil
}

func declareTask(b *Binding, builder *framegraph.Builder, t *TaskDecl, types *Types, current map[string]registry.Handle) error {
	b.Task = t
	for _, c := range t.Creates {
		typ, ok := types.Lookup(c.Type)
		if !ok {
			return fmt.Errorf("%s: unknown resource type %q", c.Range, c.Type)
		}
		h, err := builder.CreateResource(c.Name, c.Description, typ.Resource)
		if err != nil {
			return err
		}
		current[c.Name] = h
		b.Creates = append(b.Creates, h)
	}
	for _, name := range t.Reads {
		h, ok := current[name]
		if !ok {
			return fmt.Errorf("%s: task %q reads %q, which no earlier declaration provides", t.Range, t.Name, name)
		}
		h, err := builder.ReadResource(h)
		if err != nil {
			return err
		}
		b.Reads = append(b.Reads, h)
	}
	for _, name := range t.Writes {
		h, ok := current[name]
		if !ok {
			return fmt.Errorf("%s: task %q writes %q, which no earlier declaration provides", t.Range, t.Name, name)
		}
		next, err := builder.WriteResource(h)
		if err != nil {
			return err
		}
		current[name] = next
		b.Writes = append(b.Writes, next)
	}
	return nil
}
