package app

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/vk/framegraph/internal/ctxlog"
	"github.com/vk/framegraph/internal/pipeline"
	"github.com/vk/framegraph/pkg/framegraph"
	"github.com/vk/framegraph/pkg/registry"
)

// Run declares, compiles and executes the pipeline for the configured number
// of generations, then writes the report.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	var (
		report Report
		first  []registry.TaskID
		frame  int
	)
	generations := a.config.Generations
	if a.config.PlanOnly {
		generations = 1
	}

	for gen := 1; gen <= generations; gen++ {
		if err := pipeline.Declare(a.graph, a.pipeline, a.types, a.device); err != nil {
			a.graph.Clear()
			return fmt.Errorf("failed to declare generation %d: %w", gen, err)
		}
		plan, err := a.graph.Compile(ctx)
		if err != nil {
			a.graph.Clear()
			return fmt.Errorf("failed to compile generation %d: %w", gen, err)
		}

		if gen == 1 {
			first = plan.Order()
			report.Plan = newPlanView(a.graph, plan)
			if err := a.writeGraphviz(); err != nil {
				a.graph.Clear()
				return err
			}
		} else if !slices.Equal(first, plan.Order()) {
			a.logger.Warn("Plan order changed between generations.", "generation", gen)
		}

		if !a.config.PlanOnly {
			for range a.config.Frames {
				frame++
				a.device.BeginFrame(frame)
				if err := a.graph.Execute(ctx); err != nil {
					a.graph.Clear()
					return fmt.Errorf("frame %d failed: %w", frame, err)
				}
			}
		}
		a.graph.Clear()
	}

	if !a.config.PlanOnly {
		stats := a.device.Stats()
		report.Frames = frame
		report.Stats = &stats
		a.logger.Info("Execution finished.", "frames", frame, "generations", generations, "peak_bytes", stats.PeakBytes)
	}

	if err := writeReport(a.outW, a.config.PlanFormat, &report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	if a.config.Metrics {
		if err := writeMetrics(a.outW, a.metrics); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

func (a *App) writeGraphviz() error {
	if a.config.GraphvizPath == "" {
		return nil
	}
	f, err := os.Create(a.config.GraphvizPath)
	if err != nil {
		return fmt.Errorf("failed to create graphviz file: %w", err)
	}
	var opts []framegraph.ExportOption
	if a.config.IncludeCulled {
		opts = append(opts, framegraph.IncludeCulled())
	}
	if err := a.graph.ExportGraphviz(f, opts...); err != nil {
		f.Close()
		return fmt.Errorf("failed to export graphviz: %w", err)
	}
	a.logger.Debug("Graphviz export written.", "path", a.config.GraphvizPath)
	return f.Close()
}
