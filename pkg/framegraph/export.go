package framegraph

import (
	"bufio"
	"fmt"
	"io"

	"github.com/vk/framegraph/pkg/registry"
)

type exportConfig struct {
	includeCulled bool
}

// ExportOption tunes ExportGraphviz.
type ExportOption func(*exportConfig)

// IncludeCulled also draws culled tasks and the resources only they touch,
// with dashed outlines.
func IncludeCulled() ExportOption {
	return func(c *exportConfig) { c.includeCulled = true }
}

// ExportGraphviz writes the compiled graph in DOT format. Tasks are boxes in
// plan order, transient resources ellipses and retained resources double
// octagons. Creations and writes point from task to resource, reads from
// resource to task.
func (g *FrameGraph) ExportGraphviz(w io.Writer, opts ...ExportOption) error {
	if g.plan == nil {
		return &NotCompiledError{Generation: g.Generation()}
	}
	var cfg exportConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	tasks := make([]*registry.TaskNode, 0, g.tasks.Len())
	for _, id := range g.plan.Order() {
		t, _ := g.tasks.Get(id)
		tasks = append(tasks, t)
	}
	if cfg.includeCulled {
		for _, id := range g.plan.Culled {
			t, _ := g.tasks.Get(id)
			tasks = append(tasks, t)
		}
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "digraph framegraph {\n")
	fmt.Fprintf(bw, "  rankdir=LR;\n")
	fmt.Fprintf(bw, "  label=%q;\n", fmt.Sprintf("generation %d", g.plan.Generation))

	for _, t := range tasks {
		if t.Culled {
			fmt.Fprintf(bw, "  %s [label=%q, shape=box, style=dashed];\n", taskNodeID(t.ID), t.Name+" (culled)")
			continue
		}
		fmt.Fprintf(bw, "  %s [label=%q, shape=box];\n", taskNodeID(t.ID), t.Name)
	}

	for _, n := range g.resources.Nodes() {
		touched, live := false, false
		for _, t := range tasks {
			if t.Touches(n.ID) {
				touched = true
				live = live || !t.Culled
			}
		}
		if !touched {
			continue
		}
		shape := "ellipse"
		if n.Kind == registry.Retained {
			shape = "doubleoctagon"
		}
		style := ""
		if !live {
			style = ", style=dashed"
		}
		fmt.Fprintf(bw, "  %s [label=%q, shape=%s%s];\n", resourceNodeID(n.ID), n.Name, shape, style)
	}

	for _, t := range tasks {
		for _, h := range t.Creates {
			fmt.Fprintf(bw, "  %s -> %s [label=\"create\"];\n", taskNodeID(t.ID), resourceNodeID(h.ID()))
		}
		for _, h := range t.Reads {
			fmt.Fprintf(bw, "  %s -> %s [label=%q];\n", resourceNodeID(h.ID()), taskNodeID(t.ID), fmt.Sprintf("read v%d", h.Version()))
		}
		for _, h := range t.Writes {
			fmt.Fprintf(bw, "  %s -> %s [label=%q];\n", taskNodeID(t.ID), resourceNodeID(h.ID()), fmt.Sprintf("write v%d", h.Version()))
		}
	}

	fmt.Fprintf(bw, "}\n")
	return bw.Flush()
}

func taskNodeID(id registry.TaskID) string { return fmt.Sprintf("t%d", id) }

func resourceNodeID(id registry.ResourceID) string { return fmt.Sprintf("r%d", id) }
