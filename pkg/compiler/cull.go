package compiler

import (
	"slices"

	"github.com/vk/framegraph/pkg/registry"
)

type versionKey struct {
	id  registry.ResourceID
	seq int
}

// liveness holds the reference counts used by the cull pass.
type liveness struct {
	resources *registry.Resources
	tasks     *registry.Tasks
	// refs counts, per version, the tasks other than its producer that read
	// or overwrite it.
	refs map[versionKey]int
	// live counts, per task, the outputs whose refs are nonzero.
	live   map[registry.TaskID]int
	pinned map[registry.TaskID]bool
	culled map[registry.TaskID]bool
}

func newLiveness(resources *registry.Resources, tasks *registry.Tasks, policy CullPolicy) *liveness {
	l := &liveness{
		resources: resources,
		tasks:     tasks,
		refs:      make(map[versionKey]int),
		live:      make(map[registry.TaskID]int),
		pinned:    make(map[registry.TaskID]bool),
		culled:    make(map[registry.TaskID]bool),
	}

	for _, n := range resources.Nodes() {
		for seq, v := range n.Versions {
			count := 0
			for _, r := range v.Readers {
				if r != v.Producer {
					count++
				}
			}
			if seq+1 < len(n.Versions) && n.Versions[seq+1].Producer != v.Producer {
				count++
			}
			l.refs[versionKey{n.ID, seq}] = count
		}
	}

	for _, t := range tasks.All() {
		outputs := t.Outputs()
		for _, h := range outputs {
			if l.refs[versionKey{h.ID(), h.Version()}] > 0 {
				l.live[t.ID]++
			}
		}
		switch {
		case len(outputs) == 0:
			l.pinned[t.ID] = true
		case policy == KeepUnreadCreators && len(t.Creates) > 0:
			l.pinned[t.ID] = true
		case l.writesRetained(t):
			l.pinned[t.ID] = true
		}
	}
	return l
}

func (l *liveness) writesRetained(t *registry.TaskNode) bool {
	for _, h := range t.Writes {
		if n, ok := l.resources.Node(h.ID()); ok && n.Kind == registry.Retained {
			return true
		}
	}
	return false
}

// run culls tasks until no further task qualifies and returns the culled ids
// in ascending order.
func (l *liveness) run() []registry.TaskID {
	var queue []registry.TaskID
	for _, t := range l.tasks.All() {
		if l.removable(t.ID) {
			queue = append(queue, t.ID)
		}
	}

	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if l.culled[id] {
			continue
		}
		l.culled[id] = true

		t, _ := l.tasks.Get(id)
		for _, in := range t.Inputs() {
			n, ok := l.resources.Node(in.ID())
			if !ok {
				continue
			}
			if n.Versions[in.Version()].Producer == id {
				continue
			}
			key := versionKey{in.ID(), in.Version()}
			l.refs[key]--
			if l.refs[key] != 0 {
				continue
			}
			producer := n.Versions[in.Version()].Producer
			if producer == registry.NoTask || l.culled[producer] {
				continue
			}
			l.live[producer]--
			if l.removable(producer) {
				queue = append(queue, producer)
			}
		}
	}

	culled := make([]registry.TaskID, 0, len(l.culled))
	for id := range l.culled {
		culled = append(culled, id)
	}
	slices.Sort(culled)
	return culled
}

func (l *liveness) removable(id registry.TaskID) bool {
	return !l.pinned[id] && !l.culled[id] && l.live[id] == 0
}
