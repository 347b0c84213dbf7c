package app

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"
	"gopkg.in/yaml.v3"

	"github.com/vk/framegraph/internal/simgpu"
	"github.com/vk/framegraph/pkg/compiler"
	"github.com/vk/framegraph/pkg/framegraph"
	"github.com/vk/framegraph/pkg/registry"
)

// Report is what a run prints: the plan of the first generation and, when
// the plan was executed, the device statistics.
type Report struct {
	Plan   *PlanView     `yaml:"plan" json:"plan"`
	Frames int           `yaml:"frames,omitempty" json:"frames,omitempty"`
	Stats  *simgpu.Stats `yaml:"stats,omitempty" json:"stats,omitempty"`
}

// PlanView is a compiled plan with ids resolved to names.
type PlanView struct {
	Generation uint64         `yaml:"generation" json:"generation"`
	Policy     string         `yaml:"policy" json:"policy"`
	Steps      []StepView     `yaml:"steps" json:"steps"`
	Culled     []string       `yaml:"culled" json:"culled"`
	Edges      []EdgeView     `yaml:"edges,omitempty" json:"edges,omitempty"`
	Lifetimes  []LifetimeView `yaml:"lifetimes,omitempty" json:"lifetimes,omitempty"`
}

// StepView is one plan step: the task and the transients realized before
// and released after it.
type StepView struct {
	Task    string   `yaml:"task" json:"task"`
	Realize []string `yaml:"realize,omitempty" json:"realize,omitempty"`
	Release []string `yaml:"release,omitempty" json:"release,omitempty"`
}

// EdgeView is an ordering constraint between two tasks.
type EdgeView struct {
	From     string `yaml:"from" json:"from"`
	To       string `yaml:"to" json:"to"`
	Resource string `yaml:"resource" json:"resource"`
	Kind     string `yaml:"kind" json:"kind"`
}

// LifetimeView spans the first and last steps that touch a resource.
type LifetimeView struct {
	Resource string `yaml:"resource" json:"resource"`
	Kind     string `yaml:"kind" json:"kind"`
	First    int    `yaml:"first" json:"first"`
	Last     int    `yaml:"last" json:"last"`
}

func newPlanView(g *framegraph.FrameGraph, plan *compiler.Plan) *PlanView {
	taskName := func(id registry.TaskID) string {
		if t, ok := g.Task(id); ok {
			return t.Name
		}
		return fmt.Sprintf("#%d", id)
	}
	resName := func(id registry.ResourceID) string {
		if n, ok := g.Resource(id); ok {
			return n.Name
		}
		return fmt.Sprintf("#%d", id)
	}
	resNames := func(ids []registry.ResourceID) []string {
		if len(ids) == 0 {
			return nil
		}
		out := make([]string, len(ids))
		for i, id := range ids {
			out[i] = resName(id)
		}
		return out
	}

	v := &PlanView{
		Generation: plan.Generation,
		Policy:     plan.Policy.String(),
		Culled:     []string{},
	}
	for _, s := range plan.Steps {
		v.Steps = append(v.Steps, StepView{
			Task:    taskName(s.Task),
			Realize: resNames(s.Realize),
			Release: resNames(s.Release),
		})
	}
	for _, id := range plan.Culled {
		v.Culled = append(v.Culled, taskName(id))
	}
	for _, e := range plan.Edges {
		v.Edges = append(v.Edges, EdgeView{
			From:     taskName(e.From),
			To:       taskName(e.To),
			Resource: resName(e.Resource),
			Kind:     e.Kind.String(),
		})
	}
	for _, l := range plan.Lifetimes {
		v.Lifetimes = append(v.Lifetimes, LifetimeView{
			Resource: resName(l.Resource),
			Kind:     l.Kind.String(),
			First:    l.First,
			Last:     l.Last,
		})
	}
	return v
}

func writeReport(w io.Writer, format string, r *Report) error {
	switch format {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(r); err != nil {
			return err
		}
		return enc.Close()
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	default:
		return writeText(w, r)
	}
}

func writeText(w io.Writer, r *Report) error {
	p := r.Plan
	fmt.Fprintf(w, "Plan for generation %d (cull policy: %s)\n", p.Generation, p.Policy)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STEP\tTASK\tREALIZE\tRELEASE")
	for i, s := range p.Steps {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i, s.Task, list(s.Realize), list(s.Release))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "Culled: %s\n", list(p.Culled))

	if r.Stats != nil {
		s := r.Stats
		fmt.Fprintf(w, "Frames: %d, pass runs: %d\n", r.Frames, s.PassRuns)
		fmt.Fprintf(w, "Allocations: %d, frees: %d, live bytes: %d, peak bytes: %d\n",
			s.Allocations, s.Frees, s.LiveBytes, s.PeakBytes)
	}
	return nil
}

func list(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, ",")
}

// writeMetrics dumps every gathered family in the Prometheus text format.
func writeMetrics(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return err
	}
	for _, mf := range families {
		if !hasSamples(mf) {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return err
		}
	}
	return nil
}

func hasSamples(mf *dto.MetricFamily) bool {
	return len(mf.GetMetric()) > 0
}
