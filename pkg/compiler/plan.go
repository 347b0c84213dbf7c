package compiler

import (
	"fmt"
	"strings"

	"github.com/vk/framegraph/pkg/registry"
)

// CullPolicy decides the fate of a task whose only observable effect is the
// creation of resources nobody reads.
type CullPolicy int

const (
	// CullUnread removes such tasks. This is the default.
	CullUnread CullPolicy = iota
	// KeepUnreadCreators keeps every task that creates a resource.
	KeepUnreadCreators
)

func (p CullPolicy) String() string {
	switch p {
	case CullUnread:
		return "cull"
	case KeepUnreadCreators:
		return "keep"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParseCullPolicy parses the String form of a policy.
func ParseCullPolicy(s string) (CullPolicy, error) {
	switch strings.ToLower(s) {
	case "", "cull":
		return CullUnread, nil
	case "keep":
		return KeepUnreadCreators, nil
	default:
		return 0, fmt.Errorf("unknown cull policy %q: must be 'cull' or 'keep'", s)
	}
}

// Options tunes compilation.
type Options struct {
	Policy CullPolicy
}

// EdgeKind classifies why one task must run before another.
type EdgeKind int

const (
	// ReadAfterWrite: the target reads a version the source produced.
	ReadAfterWrite EdgeKind = iota
	// WriteAfterWrite: the target overwrites a version the source produced.
	WriteAfterWrite
	// WriteAfterRead: the target overwrites a version the source read.
	WriteAfterRead
)

func (k EdgeKind) String() string {
	switch k {
	case ReadAfterWrite:
		return "raw"
	case WriteAfterWrite:
		return "waw"
	case WriteAfterRead:
		return "war"
	default:
		return fmt.Sprintf("edge(%d)", int(k))
	}
}

// Edge is an ordering constraint between two surviving tasks.
type Edge struct {
	From     registry.TaskID
	To       registry.TaskID
	Resource registry.ResourceID
	Kind     EdgeKind
}

// Lifetime bounds the plan positions in which a resource is in use.
type Lifetime struct {
	Resource registry.ResourceID
	Kind     registry.Kind
	// First is the index of the first step that touches the resource.
	First int
	// Last is the index of the last step that touches the resource.
	Last int
}

// Step is one entry of the plan.
type Step struct {
	Task registry.TaskID
	// Realize lists the transient resources to realize before the task runs.
	Realize []registry.ResourceID
	// Release lists the transient resources to release after the task runs.
	Release []registry.ResourceID
}

// Plan is a compiled, immutable execution plan.
type Plan struct {
	Generation uint64
	Policy     CullPolicy
	Steps      []Step
	Lifetimes  []Lifetime
	Culled     []registry.TaskID
	Edges      []Edge

	index     map[registry.TaskID]int
	lifetimes map[registry.ResourceID]int
}

func newPlan(gen uint64, policy CullPolicy) *Plan {
	return &Plan{
		Generation: gen,
		Policy:     policy,
		index:      make(map[registry.TaskID]int),
		lifetimes:  make(map[registry.ResourceID]int),
	}
}

// Order returns the surviving task ids in execution order.
func (p *Plan) Order() []registry.TaskID {
	out := make([]registry.TaskID, len(p.Steps))
	for i, s := range p.Steps {
		out[i] = s.Task
	}
	return out
}

// Index returns the plan position of a surviving task.
func (p *Plan) Index(id registry.TaskID) (int, bool) {
	i, ok := p.index[id]
	return i, ok
}

// Survives reports whether a task is part of the plan.
func (p *Plan) Survives(id registry.TaskID) bool {
	_, ok := p.index[id]
	return ok
}

// Lifetime returns the lifetime of a resource used by the plan.
func (p *Plan) Lifetime(id registry.ResourceID) (Lifetime, bool) {
	i, ok := p.lifetimes[id]
	if !ok {
		return Lifetime{}, false
	}
	return p.Lifetimes[i], true
}

// Dependencies returns the tasks that must finish before id may start, in
// ascending id order. Hosts dispatching independent tasks concurrently can
// use it instead of the sequential order.
func (p *Plan) Dependencies(id registry.TaskID) []registry.TaskID {
	var deps []registry.TaskID
	for _, e := range p.Edges {
		if e.To == id {
			deps = append(deps, e.From)
		}
	}
	return deps
}
