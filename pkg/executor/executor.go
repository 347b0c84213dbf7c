// Package executor runs compiled plans against the resource registry.
package executor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vk/framegraph/internal/ctxlog"
	"github.com/vk/framegraph/pkg/compiler"
	"github.com/vk/framegraph/pkg/registry"
)

// ErrUndeclaredAccess is returned when a run callback asks for a resource its
// task did not declare.
var ErrUndeclaredAccess = errors.New("resource not declared by task")

// ErrStalePlan is returned when a plan from an earlier generation is executed.
var ErrStalePlan = errors.New("plan belongs to a previous generation")

// Executor walks a plan step by step, realizing resources right before their
// first use and releasing them right after their last.
type Executor struct {
	resources *registry.Resources
	tasks     *registry.Tasks
	metrics   *Metrics
}

// Option configures an Executor.
type Option func(*Executor)

// WithMetrics records execution metrics on m.
func WithMetrics(m *Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

// New creates an executor over the given registries.
func New(resources *registry.Resources, tasks *registry.Tasks, opts ...Option) *Executor {
	e := &Executor{resources: resources, tasks: tasks}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs every step of plan in order. The first failure stops the
// execution. Resources realized before the failure stay bound, so executing
// the same plan again picks up the memoized instances.
func (e *Executor) Execute(ctx context.Context, plan *compiler.Plan) (err error) {
	start := time.Now()
	defer func() { e.metrics.observeExecution(start, err) }()

	if plan.Generation != e.resources.Generation() {
		return fmt.Errorf("%w: plan generation %d, current generation %d", ErrStalePlan, plan.Generation, e.resources.Generation())
	}

	logger := ctxlog.FromContext(ctx)
	logger.Debug("Executing plan.", "generation", plan.Generation, "steps", len(plan.Steps))
	for i, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("execution cancelled before step %d: %w", i, err)
		}
		if err := e.runStep(ctx, step); err != nil {
			return err
		}
	}
	logger.Debug("Plan executed.", "generation", plan.Generation)
	return nil
}

func (e *Executor) runStep(ctx context.Context, step compiler.Step) error {
	t, ok := e.tasks.Get(step.Task)
	if !ok {
		return fmt.Errorf("plan references unknown task #%d", step.Task)
	}
	logger := ctxlog.FromContext(ctx).With("task", t.Name)

	for _, id := range step.Realize {
		_, src, err := e.resources.Realize(ctx, id)
		if err != nil {
			return fmt.Errorf("task %q: %w", t.Name, err)
		}
		e.metrics.observeRealize(src)
	}

	if t.Run != nil {
		logger.Debug("Running task.")
		start := time.Now()
		err := t.Run(ctxlog.WithLogger(ctx, logger), &scope{resources: e.resources, task: t})
		e.metrics.observeTask(t.Name, start, err)
		if err != nil {
			return fmt.Errorf("task %q failed: %w", t.Name, err)
		}
	}

	for _, id := range step.Release {
		if err := e.resources.Release(ctx, id); err != nil {
			return fmt.Errorf("task %q: %w", t.Name, err)
		}
		e.metrics.observeRelease()
	}
	return nil
}

// scope restricts instance access to the resources a task declared.
type scope struct {
	resources *registry.Resources
	task      *registry.TaskNode
}

func (s *scope) Instance(id registry.ResourceID) (any, error) {
	if !s.task.Touches(id) {
		return nil, fmt.Errorf("task %q, resource #%d: %w", s.task.Name, id, ErrUndeclaredAccess)
	}
	return s.resources.Instance(id)
}
