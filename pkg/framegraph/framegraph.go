package framegraph

import (
	"context"
	"log/slog"

	"github.com/vk/framegraph/internal/ctxlog"
	"github.com/vk/framegraph/pkg/compiler"
	"github.com/vk/framegraph/pkg/executor"
	"github.com/vk/framegraph/pkg/registry"
)

// FrameGraph owns the declarations of one generation and the plan compiled
// from them.
type FrameGraph struct {
	logger    *slog.Logger
	resources *registry.Resources
	tasks     *registry.Tasks
	executor  *executor.Executor
	policy    compiler.CullPolicy

	plan *compiler.Plan
	// poisoned holds the first declare error of the generation.
	poisoned  error
	executing bool
}

type config struct {
	logger    *slog.Logger
	factories *registry.Factories
	policy    compiler.CullPolicy
	pooling   bool
	metrics   *executor.Metrics
}

// Option configures a FrameGraph.
type Option func(*config)

// WithLogger sets the logger for engine output. It replaces any logger
// carried by the contexts passed to Compile and Execute.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithFactories sets the realize factories for transient resources.
func WithFactories(f *registry.Factories) Option {
	return func(c *config) { c.factories = f }
}

// WithCullPolicy sets the policy applied to tasks whose creations are unread.
func WithCullPolicy(p compiler.CullPolicy) Option {
	return func(c *config) { c.policy = p }
}

// WithPooling enables or disables reuse of released transient instances.
// Pooling is on by default.
func WithPooling(enabled bool) Option {
	return func(c *config) { c.pooling = enabled }
}

// WithMetrics records execution metrics.
func WithMetrics(m *executor.Metrics) Option {
	return func(c *config) { c.metrics = m }
}

// New creates an empty frame graph at generation 1.
func New(opts ...Option) *FrameGraph {
	cfg := config{pooling: true}
	for _, opt := range opts {
		opt(&cfg)
	}

	resources := registry.NewResources(
		registry.WithFactories(cfg.factories),
		registry.WithPooling(cfg.pooling),
	)
	tasks := registry.NewTasks()
	g := &FrameGraph{
		logger:    cfg.logger,
		resources: resources,
		tasks:     tasks,
		executor:  executor.New(resources, tasks, executor.WithMetrics(cfg.metrics)),
		policy:    cfg.policy,
	}
	g.log().Debug("Frame graph created.", "factories", cfg.factories.Len(), "pooling", cfg.pooling, "policy", cfg.policy.String())
	return g
}

// Generation returns the current generation, starting at 1.
func (g *FrameGraph) Generation() uint64 { return g.resources.Generation() }

// Plan returns the plan of the last successful Compile, or nil when the
// declarations changed since.
func (g *FrameGraph) Plan() *compiler.Plan { return g.plan }

// Compile builds the execution plan for the current declarations. A graph
// whose declare callback failed keeps returning that error until Clear.
func (g *FrameGraph) Compile(ctx context.Context) (*compiler.Plan, error) {
	if g.executing {
		return nil, constructionf("", "cannot compile while executing")
	}
	if g.poisoned != nil {
		return nil, g.poisoned
	}
	plan, err := compiler.Compile(g.ctx(ctx), g.resources, g.tasks, compiler.Options{Policy: g.policy})
	if err != nil {
		g.plan = nil
		return nil, err
	}
	g.plan = plan
	return plan, nil
}

// Execute runs the compiled plan. It may be called any number of times per
// compilation; declare callbacks are never re-run.
func (g *FrameGraph) Execute(ctx context.Context) error {
	if g.executing {
		return constructionf("", "Execute called from a run callback")
	}
	if g.plan == nil {
		return &NotCompiledError{Generation: g.Generation()}
	}
	g.executing = true
	defer func() { g.executing = false }()
	return g.executor.Execute(g.ctx(ctx), g.plan)
}

// Clear discards every declaration, destroys transient instances, forgets
// retained bindings and moves to the next generation. Handles and Task
// values from earlier generations become invalid. Clear must not be called
// from a run callback.
func (g *FrameGraph) Clear() {
	ctx := g.ctx(context.Background())
	ctxlog.FromContext(ctx).Debug("Clearing frame graph.", "generation", g.Generation(), "tasks", g.tasks.Len(), "resources", g.resources.Len())
	g.resources.Reset(ctx)
	g.tasks.Reset()
	g.plan = nil
	g.poisoned = nil
}

// ImportRetainedResource registers an externally owned resource without
// compile-time types.
func (g *FrameGraph) ImportRetainedResource(name string, description any, typ registry.ResourceType, instance any) (registry.Handle, error) {
	if g.executing {
		return registry.Handle{}, constructionf("", "cannot import retained resource %q while executing", name)
	}
	h, err := g.resources.ImportRetained(name, description, typ, instance)
	if err != nil {
		return registry.Handle{}, err
	}
	g.plan = nil
	return h, nil
}

// Task returns the declared task with the given id.
func (g *FrameGraph) Task(id registry.TaskID) (*registry.TaskNode, bool) {
	return g.tasks.Get(id)
}

// Resource returns the declared resource with the given id.
func (g *FrameGraph) Resource(id registry.ResourceID) (*registry.ResourceNode, bool) {
	return g.resources.Node(id)
}

// Pooled returns the number of released transient instances kept for reuse.
func (g *FrameGraph) Pooled() int { return g.resources.Pooled() }

func (g *FrameGraph) ctx(ctx context.Context) context.Context {
	if g.logger == nil {
		return ctx
	}
	return ctxlog.WithLogger(ctx, g.logger)
}

func (g *FrameGraph) log() *slog.Logger {
	if g.logger == nil {
		return slog.Default()
	}
	return g.logger
}
