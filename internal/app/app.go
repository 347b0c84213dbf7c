package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vk/framegraph/internal/ctxlog"
	"github.com/vk/framegraph/internal/pipeline"
	"github.com/vk/framegraph/internal/simgpu"
	"github.com/vk/framegraph/pkg/compiler"
	"github.com/vk/framegraph/pkg/executor"
	"github.com/vk/framegraph/pkg/framegraph"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	logger   *slog.Logger
	config   *Config
	types    *pipeline.Types
	pipeline *pipeline.Pipeline
	device   *simgpu.Device
	metrics  *prometheus.Registry
	graph    *framegraph.FrameGraph
}

// NewApp loads the pipeline named by cfg and wires the frame graph to a fresh
// simulated device. Reports go to outW, logs to logW.
func NewApp(outW, logW io.Writer, cfg *Config) (*App, error) {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, logW)
	ctx := ctxlog.WithLogger(context.Background(), logger)
	logger.Debug("Logger configured successfully.")

	policy, err := compiler.ParseCullPolicy(cfg.CullPolicy)
	if err != nil {
		return nil, err
	}

	types := simgpu.Types()
	p, err := pipeline.NewLoader(types, cfg.Vars).Load(ctx, cfg.PipelinePath)
	if err != nil {
		return nil, fmt.Errorf("failed to load pipeline: %w", err)
	}
	logger.Debug("Pipeline loaded.", "files", len(p.Files), "tasks", len(p.Tasks), "retained", len(p.Retained))

	device := simgpu.NewDevice()
	reg := prometheus.NewRegistry()
	graph := framegraph.New(
		framegraph.WithLogger(logger),
		framegraph.WithFactories(device.Factories()),
		framegraph.WithCullPolicy(policy),
		framegraph.WithPooling(cfg.Pooling),
		framegraph.WithMetrics(executor.NewMetrics(reg)),
	)

	return &App{
		outW:     outW,
		logger:   logger,
		config:   cfg,
		types:    types,
		pipeline: p,
		device:   device,
		metrics:  reg,
		graph:    graph,
	}, nil
}

// Device returns the simulated device. This is primarily for testing.
func (a *App) Device() *simgpu.Device {
	return a.device
}

// Gatherer returns the registry holding the execution metrics.
func (a *App) Gatherer() prometheus.Gatherer {
	return a.metrics
}
