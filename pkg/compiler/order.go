package compiler

import (
	"cmp"
	"container/heap"
	"slices"

	"github.com/vk/framegraph/pkg/registry"
)

type edgeKey struct {
	from, to registry.TaskID
}

// buildEdges collects the ordering constraints among surviving tasks. Only
// the first reason found for a (from, to) pair is kept. The result is sorted
// by source then target.
func buildEdges(resources *registry.Resources, survivors []*registry.TaskNode, alive map[registry.TaskID]bool) []Edge {
	seen := make(map[edgeKey]bool)
	var edges []Edge
	add := func(from, to registry.TaskID, res registry.ResourceID, kind EdgeKind) {
		if from == registry.NoTask || from == to || !alive[from] {
			return
		}
		k := edgeKey{from, to}
		if seen[k] {
			return
		}
		seen[k] = true
		edges = append(edges, Edge{From: from, To: to, Resource: res, Kind: kind})
	}

	for _, t := range survivors {
		for _, h := range t.Reads {
			n, ok := resources.Node(h.ID())
			if !ok {
				continue
			}
			add(n.Versions[h.Version()].Producer, t.ID, n.ID, ReadAfterWrite)
		}
		for _, h := range t.Writes {
			n, ok := resources.Node(h.ID())
			if !ok {
				continue
			}
			prev := n.Versions[h.Version()-1]
			add(prev.Producer, t.ID, n.ID, WriteAfterWrite)
			for _, r := range prev.Readers {
				add(r, t.ID, n.ID, WriteAfterRead)
			}
		}
	}

	slices.SortFunc(edges, func(a, b Edge) int {
		if c := cmp.Compare(a.From, b.From); c != 0 {
			return c
		}
		return cmp.Compare(a.To, b.To)
	})
	return edges
}

// taskGraph is the adjacency form of the surviving tasks. Node indices follow
// ascending TaskID so index order is declaration order.
type taskGraph struct {
	nodes    []*registry.TaskNode
	outgoing [][]int
	indeg    []int
}

func newTaskGraph(nodes []*registry.TaskNode, edges []Edge) *taskGraph {
	g := &taskGraph{
		nodes:    nodes,
		outgoing: make([][]int, len(nodes)),
		indeg:    make([]int, len(nodes)),
	}
	pos := make(map[registry.TaskID]int, len(nodes))
	for i, n := range nodes {
		pos[n.ID] = i
	}
	for _, e := range edges {
		from, ok1 := pos[e.From]
		to, ok2 := pos[e.To]
		if !ok1 || !ok2 {
			continue
		}
		g.outgoing[from] = append(g.outgoing[from], to)
		g.indeg[to]++
	}
	for i := range g.outgoing {
		slices.Sort(g.outgoing[i])
	}
	return g
}

type intMinHeap []int

func (h intMinHeap) Len() int           { return len(h) }
func (h intMinHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h intMinHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *intMinHeap) Push(x any)        { *h = append(*h, x.(int)) }
func (h *intMinHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// order returns the tasks in topological order, or a CycleError when some
// task can never become ready.
func (g *taskGraph) order() ([]*registry.TaskNode, error) {
	indeg := slices.Clone(g.indeg)

	ready := &intMinHeap{}
	heap.Init(ready)
	for i := range indeg {
		if indeg[i] == 0 {
			heap.Push(ready, i)
		}
	}

	out := make([]*registry.TaskNode, 0, len(indeg))
	for ready.Len() > 0 {
		n := heap.Pop(ready).(int)
		out = append(out, g.nodes[n])
		for _, m := range g.outgoing[n] {
			indeg[m]--
			if indeg[m] == 0 {
				heap.Push(ready, m)
			}
		}
	}
	if len(out) != len(g.nodes) {
		return nil, &CycleError{Path: g.findCycle()}
	}
	return out, nil
}

// findCycle runs a DFS in index order and returns the task names of the first
// back edge it meets, closed on the starting task.
func (g *taskGraph) findCycle() []string {
	const (
		white = iota
		gray
		black
	)

	color := make([]int, len(g.nodes))
	parent := make([]int, len(g.nodes))
	for i := range parent {
		parent[i] = -1
	}

	var cycle []int
	var dfs func(u int) bool
	dfs = func(u int) bool {
		color[u] = gray
		for _, v := range g.outgoing[u] {
			switch color[v] {
			case white:
				parent[v] = u
				if dfs(v) {
					return true
				}
			case gray:
				cycle = append(cycle, v)
				for cur := u; cur != -1 && cur != v; cur = parent[cur] {
					cycle = append(cycle, cur)
				}
				cycle = append(cycle, v)
				return true
			}
		}
		color[u] = black
		return false
	}

	for i := range g.nodes {
		if color[i] == white && dfs(i) {
			break
		}
	}
	if len(cycle) == 0 {
		return nil
	}

	slices.Reverse(cycle)
	names := make([]string, len(cycle))
	for i, idx := range cycle {
		names[i] = g.nodes[idx].Name
	}
	return names
}
