package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/framegraph/pkg/compiler"
	"github.com/vk/framegraph/pkg/registry"
)

type texDesc struct {
	Width int
}

type tex struct {
	width    int
	released bool
}

func (t *tex) Release() { t.released = true }

var texType = registry.TypeOf[texDesc, *tex]()

type harness struct {
	t       *testing.T
	res     *registry.Resources
	tasks   *registry.Tasks
	created []*tex
	ran     []string
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, tasks: registry.NewTasks()}
	f := registry.NewFactories()
	registry.Register(f, func(d texDesc) (*tex, error) {
		inst := &tex{width: d.Width}
		h.created = append(h.created, inst)
		return inst, nil
	})
	h.res = registry.NewResources(registry.WithFactories(f))
	return h
}

func (h *harness) task(name string, run registry.RunFunc) *registry.TaskNode {
	return h.tasks.Add(name, nil, func(ctx context.Context, res registry.Instances) error {
		h.ran = append(h.ran, name)
		if run == nil {
			return nil
		}
		return run(ctx, res)
	})
}

func (h *harness) create(task *registry.TaskNode, name string) registry.Handle {
	h.t.Helper()
	r := h.res.Create(name, texDesc{Width: 8}, texType)
	require.NoError(h.t, h.res.MarkCreator(r, task.ID))
	task.RecordCreate(r)
	return r
}

func (h *harness) read(task *registry.TaskNode, r registry.Handle) {
	h.t.Helper()
	require.NoError(h.t, h.res.RecordRead(r, task.ID))
	task.RecordRead(r)
}

func (h *harness) compile() *compiler.Plan {
	h.t.Helper()
	plan, err := compiler.Compile(context.Background(), h.res, h.tasks, compiler.Options{})
	require.NoError(h.t, err)
	return plan
}

func TestExecute_RealizesAroundUse(t *testing.T) {
	h := newHarness(t)
	var r registry.Handle
	producer := h.task("producer", func(ctx context.Context, res registry.Instances) error {
		inst, err := res.Instance(r.ID())
		require.NoError(t, err)
		assert.Equal(t, 8, inst.(*tex).width)
		return nil
	})
	r = h.create(producer, "r")
	consumer := h.task("consumer", func(ctx context.Context, res registry.Instances) error {
		_, err := res.Instance(r.ID())
		return err
	})
	h.read(consumer, r)

	plan := h.compile()
	require.NoError(t, New(h.res, h.tasks).Execute(context.Background(), plan))

	assert.Equal(t, []string{"producer", "consumer"}, h.ran)
	require.Len(t, h.created, 1)
	_, err := h.res.Instance(r.ID())
	assert.ErrorIs(t, err, registry.ErrNotRealized)
	assert.Equal(t, 1, h.res.Pooled())
	assert.False(t, h.created[0].released)
}

func TestExecute_UndeclaredAccess(t *testing.T) {
	h := newHarness(t)
	owner := h.task("owner", nil)
	r := h.create(owner, "r")
	h.read(h.task("reader", nil), r)

	h.task("snoop", func(ctx context.Context, res registry.Instances) error {
		_, err := res.Instance(r.ID())
		return err
	})

	err := New(h.res, h.tasks).Execute(context.Background(), h.compile())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUndeclaredAccess)
	assert.Contains(t, err.Error(), `task "snoop"`)
}

func TestExecute_FailureIsRetrySafe(t *testing.T) {
	h := newHarness(t)
	fail := true
	producer := h.task("producer", nil)
	r := h.create(producer, "r")
	consumer := h.task("consumer", func(ctx context.Context, res registry.Instances) error {
		if fail {
			return errors.New("device lost")
		}
		return nil
	})
	h.read(consumer, r)

	plan := h.compile()
	exec := New(h.res, h.tasks)

	err := exec.Execute(context.Background(), plan)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `task "consumer" failed: device lost`)
	assert.True(t, h.res.Nodes()[0].Realized())

	fail = false
	require.NoError(t, exec.Execute(context.Background(), plan))
	assert.Len(t, h.created, 1)
	assert.Equal(t, []string{"producer", "consumer", "producer", "consumer"}, h.ran)
	assert.False(t, h.res.Nodes()[0].Realized())
}

func TestExecute_CancelledContext(t *testing.T) {
	h := newHarness(t)
	h.task("present", nil)
	plan := h.compile()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := New(h.res, h.tasks).Execute(ctx, plan)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, h.ran)
}

func TestExecute_StalePlan(t *testing.T) {
	h := newHarness(t)
	h.task("present", nil)
	plan := h.compile()

	h.res.Reset(context.Background())
	err := New(h.res, h.tasks).Execute(context.Background(), plan)
	assert.ErrorIs(t, err, ErrStalePlan)
	assert.Empty(t, h.ran)
}

func TestExecute_Metrics(t *testing.T) {
	h := newHarness(t)
	producer := h.task("producer", nil)
	r := h.create(producer, "r")
	h.read(h.task("consumer", nil), r)
	plan := h.compile()

	m := NewMetrics(prometheus.NewRegistry())
	exec := New(h.res, h.tasks, WithMetrics(m))
	require.NoError(t, exec.Execute(context.Background(), plan))
	require.NoError(t, exec.Execute(context.Background(), plan))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.executions.WithLabelValues(resultOK)))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.executions.WithLabelValues(resultError)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.realizations.WithLabelValues("factory")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.realizations.WithLabelValues("pool")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.releases))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.taskRuns.WithLabelValues("producer", resultOK)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.taskDuration))
}

func TestNewMetrics_RegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg)

	families, err := reg.Gather()
	require.NoError(t, err)

	found := make(map[string]bool)
	for _, fam := range families {
		found[fam.GetName()] = true
	}
	for _, name := range []string{
		"framegraph_executions_total",
		"framegraph_realizations_total",
	} {
		assert.True(t, found[name], name)
	}
}
