package compiler

import (
	"context"
	"slices"

	"github.com/vk/framegraph/internal/ctxlog"
	"github.com/vk/framegraph/pkg/registry"
)

// Compile validates the declarations, culls dead tasks and orders the rest.
// The Culled flag of every task node is rewritten.
func Compile(ctx context.Context, resources *registry.Resources, tasks *registry.Tasks, opts Options) (*Plan, error) {
	logger := ctxlog.FromContext(ctx).With("generation", resources.Generation())
	all := tasks.All()
	for _, t := range all {
		t.Culled = false
	}

	if err := validate(resources, all); err != nil {
		return nil, err
	}

	culled := newLiveness(resources, tasks, opts.Policy).run()
	dead := make(map[registry.TaskID]bool, len(culled))
	for _, id := range culled {
		dead[id] = true
	}

	survivors := make([]*registry.TaskNode, 0, len(all)-len(culled))
	alive := make(map[registry.TaskID]bool, len(all))
	for _, t := range all {
		if dead[t.ID] {
			t.Culled = true
			logger.Debug("Culled task.", "task", t.Name, "id", t.ID)
			continue
		}
		survivors = append(survivors, t)
		alive[t.ID] = true
	}

	edges := buildEdges(resources, survivors, alive)
	ordered, err := newTaskGraph(survivors, edges).order()
	if err != nil {
		return nil, err
	}

	plan := newPlan(resources.Generation(), opts.Policy)
	plan.Culled = culled
	plan.Edges = edges
	plan.Steps = make([]Step, len(ordered))
	for i, t := range ordered {
		plan.Steps[i] = Step{Task: t.ID}
		plan.index[t.ID] = i
	}
	computeLifetimes(resources, ordered, plan)

	logger.Info("Compiled frame graph.",
		"tasks", len(all),
		"survivors", len(plan.Steps),
		"culled", len(culled),
		"resources", len(plan.Lifetimes),
		"policy", opts.Policy.String(),
	)
	return plan, nil
}

func computeLifetimes(resources *registry.Resources, ordered []*registry.TaskNode, plan *Plan) {
	spans := make(map[registry.ResourceID]*Lifetime)
	touch := func(h registry.Handle, i int) {
		lt, ok := spans[h.ID()]
		if !ok {
			n, _ := resources.Node(h.ID())
			spans[h.ID()] = &Lifetime{Resource: h.ID(), Kind: n.Kind, First: i, Last: i}
			return
		}
		lt.First = min(lt.First, i)
		lt.Last = max(lt.Last, i)
	}
	for i, t := range ordered {
		for _, h := range t.Creates {
			touch(h, i)
		}
		for _, h := range t.Reads {
			touch(h, i)
		}
		for _, h := range t.Writes {
			touch(h, i)
		}
	}

	ids := make([]registry.ResourceID, 0, len(spans))
	for id := range spans {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	plan.Lifetimes = make([]Lifetime, len(ids))
	for i, id := range ids {
		lt := *spans[id]
		plan.Lifetimes[i] = lt
		plan.lifetimes[id] = i
		if lt.Kind != registry.Transient {
			continue
		}
		plan.Steps[lt.First].Realize = append(plan.Steps[lt.First].Realize, id)
		plan.Steps[lt.Last].Release = append(plan.Steps[lt.Last].Release, id)
	}
}
