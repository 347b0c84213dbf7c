package registry

import "context"

// Instances gives run callbacks access to the instances bound to resources.
type Instances interface {
	Instance(id ResourceID) (any, error)
}

// RunFunc is the deferred run phase of a task.
type RunFunc func(ctx context.Context, res Instances) error

// TaskNode is a declared task.
type TaskNode struct {
	ID   TaskID
	Name string

	// Creates lists the handles of resources the task created (version 0).
	Creates []Handle
	// Reads lists the versions the task read.
	Reads []Handle
	// Writes lists the versions the task produced. Each write consumed the
	// version immediately before it.
	Writes []Handle

	// Payload is the task's data, owned by the task until the next reset.
	Payload any
	// Run is invoked once per execution of a plan the task survived in.
	Run RunFunc

	// Culled is set by the compiler when the task does not contribute to any
	// observable output.
	Culled bool
}

// RecordCreate notes that the task created the resource behind h.
func (t *TaskNode) RecordCreate(h Handle) {
	t.Creates = append(t.Creates, h)
}

// RecordRead notes that the task read h. Repeated reads are recorded once.
func (t *TaskNode) RecordRead(h Handle) {
	for _, r := range t.Reads {
		if r == h {
			return
		}
	}
	t.Reads = append(t.Reads, h)
}

// RecordWrite notes that the task produced h.
func (t *TaskNode) RecordWrite(h Handle) {
	t.Writes = append(t.Writes, h)
}

// Outputs returns every version the task produced: its creations followed by
// its writes.
func (t *TaskNode) Outputs() []Handle {
	out := make([]Handle, 0, len(t.Creates)+len(t.Writes))
	out = append(out, t.Creates...)
	return append(out, t.Writes...)
}

// Inputs returns every version the task consumed: its reads followed by the
// versions its writes superseded.
func (t *TaskNode) Inputs() []Handle {
	out := make([]Handle, 0, len(t.Reads)+len(t.Writes))
	out = append(out, t.Reads...)
	for _, w := range t.Writes {
		out = append(out, Handle{id: w.id, version: w.version - 1, gen: w.gen})
	}
	return out
}

// Touches reports whether the task declared any access to resource id.
func (t *TaskNode) Touches(id ResourceID) bool {
	for _, list := range [][]Handle{t.Creates, t.Reads, t.Writes} {
		for _, h := range list {
			if h.id == id {
				return true
			}
		}
	}
	return false
}

// Tasks is the task registry of one frame graph.
type Tasks struct {
	nodes []*TaskNode
}

// NewTasks creates an empty task registry.
func NewTasks() *Tasks {
	return &Tasks{}
}

// Add allocates a task with the next id.
func (ts *Tasks) Add(name string, payload any, run RunFunc) *TaskNode {
	t := &TaskNode{
		ID:      TaskID(len(ts.nodes) + 1),
		Name:    name,
		Payload: payload,
		Run:     run,
	}
	ts.nodes = append(ts.nodes, t)
	return t
}

// Get returns the task with the given id.
func (ts *Tasks) Get(id TaskID) (*TaskNode, bool) {
	if id == NoTask || int(id) > len(ts.nodes) {
		return nil, false
	}
	return ts.nodes[id-1], true
}

// All returns every task in declaration order.
func (ts *Tasks) All() []*TaskNode {
	out := make([]*TaskNode, len(ts.nodes))
	copy(out, ts.nodes)
	return out
}

// Len returns the number of declared tasks.
func (ts *Tasks) Len() int { return len(ts.nodes) }

// Reset drops every task and its payload and restarts ids at 1.
func (ts *Tasks) Reset() {
	for _, t := range ts.nodes {
		t.Payload = nil
		t.Run = nil
	}
	ts.nodes = nil
}
