package compiler

import (
	"errors"
	"slices"

	"github.com/vk/framegraph/pkg/registry"
)

// validate checks that every handle a task references resolves to a version
// of the current generation and that both registries agree on the edge.
func validate(resources *registry.Resources, tasks []*registry.TaskNode) error {
	for _, t := range tasks {
		for _, h := range t.Creates {
			n, err := lookup(resources, t, h)
			if err != nil {
				return err
			}
			if n.Kind != registry.Transient || h.Version() != 0 {
				return invalidf(t, "create of resource %q (#%d) must be version 0 of a transient resource", n.Name, n.ID)
			}
			if n.Versions[0].Producer != t.ID {
				return invalidf(t, "resource %q (#%d) is not recorded as created by this task", n.Name, n.ID)
			}
		}
		for _, h := range t.Reads {
			n, err := lookup(resources, t, h)
			if err != nil {
				return err
			}
			v := n.Versions[h.Version()]
			if !slices.Contains(v.Readers, t.ID) {
				return invalidf(t, "read of resource %q (#%d) version %d is not recorded on the resource", n.Name, n.ID, h.Version())
			}
			if next := h.Version() + 1; next < len(n.Versions) && n.Versions[next].Producer < t.ID {
				return invalidf(t, "read of resource %q (#%d) version %d was already superseded when declared", n.Name, n.ID, h.Version())
			}
		}
		for _, h := range t.Writes {
			n, err := lookup(resources, t, h)
			if err != nil {
				return err
			}
			if h.Version() == 0 {
				return invalidf(t, "write of resource %q (#%d) cannot produce version 0", n.Name, n.ID)
			}
			if n.Versions[h.Version()].Producer != t.ID {
				return invalidf(t, "resource %q (#%d) version %d is not recorded as written by this task", n.Name, n.ID, h.Version())
			}
		}
	}
	return nil
}

func lookup(resources *registry.Resources, t *registry.TaskNode, h registry.Handle) (*registry.ResourceNode, error) {
	n, err := resources.Lookup(h)
	if err != nil {
		var gce *registry.GraphConstructionError
		if errors.As(err, &gce) {
			return nil, invalidf(t, "%s", gce.Msg)
		}
		return nil, err
	}
	return n, nil
}
