package executor

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vk/framegraph/pkg/registry"
)

// Label values for execution results.
const (
	resultOK    = "ok"
	resultError = "error"
)

// Metrics holds the Prometheus collectors of an executor. A nil *Metrics
// records nothing.
type Metrics struct {
	executions      *prometheus.CounterVec
	executeDuration prometheus.Histogram
	taskRuns        *prometheus.CounterVec
	taskDuration    *prometheus.HistogramVec
	realizations    *prometheus.CounterVec
	releases        prometheus.Counter
}

// NewMetrics creates the executor collectors and registers them on reg.
// Registering twice on the same registerer panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		executions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "framegraph_executions_total",
				Help: "Total number of plan executions.",
			},
			[]string{"result"},
		),
		executeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "framegraph_execute_seconds",
				Help:    "Duration of a full plan execution, in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		),
		taskRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "framegraph_task_runs_total",
				Help: "Total number of task run callbacks invoked.",
			},
			[]string{"task", "result"},
		),
		taskDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "framegraph_task_seconds",
				Help:    "Duration of a task run callback, in seconds.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"task"},
		),
		realizations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "framegraph_realizations_total",
				Help: "Total number of resource realizations by instance source.",
			},
			[]string{"source"},
		),
		releases: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "framegraph_releases_total",
				Help: "Total number of transient resources released.",
			},
		),
	}

	reg.MustRegister(m.executions, m.executeDuration, m.taskRuns, m.taskDuration, m.realizations, m.releases)

	for _, r := range []string{resultOK, resultError} {
		m.executions.WithLabelValues(r)
	}
	for _, s := range []registry.Source{registry.SourceFactory, registry.SourcePool, registry.SourceMemoized, registry.SourceRetained} {
		m.realizations.WithLabelValues(s.String())
	}
	return m
}

func (m *Metrics) observeExecution(start time.Time, err error) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(result(err)).Inc()
	m.executeDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeTask(name string, start time.Time, err error) {
	if m == nil {
		return
	}
	m.taskRuns.WithLabelValues(name, result(err)).Inc()
	m.taskDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeRealize(src registry.Source) {
	if m == nil {
		return
	}
	m.realizations.WithLabelValues(src.String()).Inc()
}

func (m *Metrics) observeRelease() {
	if m == nil {
		return
	}
	m.releases.Inc()
}

func result(err error) string {
	if err != nil {
		return resultError
	}
	return resultOK
}
