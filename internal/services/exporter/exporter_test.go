package exporter

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vshulcz/prefect-exporter/internal/adapters/orchestration/memory"
	"github.com/vshulcz/prefect-exporter/internal/config"
	"github.com/vshulcz/prefect-exporter/internal/domain"
	"github.com/vshulcz/prefect-exporter/internal/ports"
	"github.com/vshulcz/prefect-exporter/internal/services/metrics"
)

type fakeUnit struct {
	refresh func(context.Context, ports.Session, time.Duration) error
	name    string
}

func (f *fakeUnit) Name() string                         { return f.name }
func (f *fakeUnit) Register(prometheus.Registerer) error { return nil }
func (f *fakeUnit) Refresh(ctx context.Context, s ports.Session, since time.Duration) error {
	return f.refresh(ctx, s, since)
}

func newService(t *testing.T, interval time.Duration, c ports.Connector, units []ports.MetricUnit, opts ...Option) (*Service, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.RegisterAll(reg, units))
	svc, err := New(config.ExporterConfig{Interval: interval}, reg, c, units, zap.NewNop(), opts...)
	require.NoError(t, err)
	return svc, reg
}

func seededStore() *memory.Store {
	s := memory.New()
	s.AddFlowRun("etl", "Completed")
	s.AddFlowRun("etl", "Failed")
	s.AddFlowRun("etl", "Running")
	s.AddDeployment("a-prod", "a", domain.DeploymentReady)
	return s
}

func TestRunOnce_UpdatesCatalog(t *testing.T) {
	store := seededStore()
	svc, reg := newService(t, 30*time.Second, store, metrics.Catalog([]string{"a", "b", "c"}))

	rep := svc.RunOnce(context.Background())
	require.NoError(t, rep.Err)
	assert.Zero(t, rep.Failed)
	assert.Zero(t, testutil.ToFloat64(svc.errors))

	mfs, err := reg.Gather()
	require.NoError(t, err)
	got := map[string]float64{}
	for _, mf := range mfs {
		if g := mf.GetMetric()[0].GetGauge(); g != nil {
			got[mf.GetName()] = g.GetValue()
		}
	}
	assert.Equal(t, map[string]float64{
		"prefect_flow_runs_total":            3,
		"prefect_flow_runs_successes_total":  1,
		"prefect_flow_runs_in_error_total":   1,
		"prefect_flow_runs_in_warning_total": 0,
		"prefect_missing_deployments_total":  2,
	}, got)

	opened, open := store.Sessions()
	assert.Equal(t, 1, opened)
	assert.Zero(t, open, "session must be closed after the cycle")
	assert.Equal(t, 1, testutil.CollectAndCount(svc.duration))
}

func TestRunOnce_UnitFailureIsolated(t *testing.T) {
	store := seededStore()
	flowRuns := metrics.NewFlowRuns()
	units := []ports.MetricUnit{
		&fakeUnit{name: "broken", refresh: func(context.Context, ports.Session, time.Duration) error {
			return errors.New("boom")
		}},
		&fakeUnit{name: "panics", refresh: func(context.Context, ports.Session, time.Duration) error {
			panic("unit bug")
		}},
		flowRuns,
	}
	svc, reg := newService(t, 30*time.Second, store, units)

	rep := svc.RunOnce(context.Background())
	require.NoError(t, rep.Err)
	assert.Equal(t, 2, rep.Failed)
	assert.Equal(t, 2.0, testutil.ToFloat64(svc.errors))

	n, err := testutil.GatherAndCount(reg, "prefect_flow_runs_total")
	require.NoError(t, err)
	require.Equal(t, 1, n)
	assert.Equal(t, 3, gaugeOf(t, reg, "prefect_flow_runs_total"))

	svc.RunOnce(context.Background())
	assert.Equal(t, 4.0, testutil.ToFloat64(svc.errors))
}

func gaugeOf(t *testing.T, g prometheus.Gatherer, name string) int {
	t.Helper()
	mfs, err := g.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == name {
			return int(mf.GetMetric()[0].GetGauge().GetValue())
		}
	}
	t.Fatalf("metric %s not gathered", name)
	return 0
}

func TestRunOnce_TimeoutCountsOnce(t *testing.T) {
	store := seededStore()
	store.Delay(memory.OpCountFlowRuns, 10*time.Second)
	svc, _ := newService(t, 30*time.Second, store, metrics.Catalog(nil))
	svc.timeout = 50 * time.Millisecond

	began := time.Now()
	rep := svc.RunOnce(context.Background())
	require.ErrorIs(t, rep.Err, domain.ErrCycleTimeout)
	assert.Less(t, time.Since(began), 5*time.Second)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.errors))

	require.Eventually(t, func() bool {
		_, open := store.Sessions()
		return open == 0
	}, time.Second, 5*time.Millisecond)
}

func TestRunOnce_TimeoutCancelsInFlightWork(t *testing.T) {
	cancelled := make(chan struct{})
	u := &fakeUnit{name: "slow", refresh: func(ctx context.Context, _ ports.Session, _ time.Duration) error {
		<-ctx.Done()
		close(cancelled)
		return ctx.Err()
	}}
	svc, _ := newService(t, 30*time.Second, memory.New(), []ports.MetricUnit{u})
	svc.timeout = 20 * time.Millisecond

	svc.RunOnce(context.Background())
	select {
	case <-cancelled:
	case <-time.After(time.Second):
		t.Fatal("in-flight refresh not cancelled")
	}
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.errors))
}

func TestRunOnce_ConnectFailure(t *testing.T) {
	store := memory.New()
	store.FailConnect(domain.ErrUnavailable)
	called := false
	u := &fakeUnit{name: "u", refresh: func(context.Context, ports.Session, time.Duration) error {
		called = true
		return nil
	}}
	svc, _ := newService(t, 30*time.Second, store, []ports.MetricUnit{u})

	rep := svc.RunOnce(context.Background())
	require.ErrorIs(t, rep.Err, domain.ErrUnavailable)
	assert.False(t, called)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.errors))

	store.FailConnect(nil)
	rep = svc.RunOnce(context.Background())
	require.NoError(t, rep.Err)
	assert.True(t, called)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.errors))
}

func TestRunOnce_Since(t *testing.T) {
	var seen []time.Duration
	u := &fakeUnit{name: "u", refresh: func(_ context.Context, _ ports.Session, since time.Duration) error {
		seen = append(seen, since)
		return nil
	}}
	svc, _ := newService(t, 30*time.Second, memory.New(), []ports.MetricUnit{u})

	clock := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	first := svc.RunOnce(context.Background())
	clock = clock.Add(31 * time.Second)
	second := svc.RunOnce(context.Background())

	assert.Equal(t, []time.Duration{0, 31 * time.Second}, seen)
	assert.Zero(t, first.Since)
	assert.Equal(t, 31*time.Second, second.Since)
}

func TestRunOnce_Observers(t *testing.T) {
	var got []Report
	obs := ObserverFunc(func(_ context.Context, r Report) error {
		got = append(got, r)
		return errors.New("observer failures are logged only")
	})
	u := &fakeUnit{name: "u", refresh: func(context.Context, ports.Session, time.Duration) error {
		return errors.New("x")
	}}
	svc, _ := newService(t, 30*time.Second, memory.New(), []ports.MetricUnit{u}, WithObserver(obs))

	svc.RunOnce(context.Background())
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].Failed)
	assert.NoError(t, got[0].Err)
}

func TestRun_StopsBetweenCycles(t *testing.T) {
	var cycles atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	var ctxErr error
	u := &fakeUnit{name: "u", refresh: func(ctx context.Context, _ ports.Session, _ time.Duration) error {
		if cycles.Add(1) == 2 {
			close(started)
			<-release
			ctxErr = ctx.Err()
		}
		return nil
	}}
	svc, _ := newService(t, 10*time.Millisecond, memory.New(), []ports.MetricUnit{u})
	svc.timeout = 5 * time.Second

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	<-started
	cancel()
	select {
	case <-done:
		t.Fatal("Run returned before the in-flight cycle finished")
	case <-time.After(30 * time.Millisecond):
	}
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
	assert.NoError(t, ctxErr, "stop must not cancel the running cycle")
	assert.Equal(t, int32(2), cycles.Load())
	assert.Zero(t, testutil.ToFloat64(svc.errors))
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	u := &fakeUnit{name: "u", refresh: func(context.Context, ports.Session, time.Duration) error {
		t.Error("no cycle expected")
		return nil
	}}
	svc, _ := newService(t, time.Second, memory.New(), []ports.MetricUnit{u})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, svc.Run(ctx))
}

func TestNew_DuplicateSelfMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	cfg := config.ExporterConfig{Interval: time.Second}
	_, err := New(cfg, reg, memory.New(), nil, nil)
	require.NoError(t, err)
	_, err = New(cfg, reg, memory.New(), nil, nil)
	require.ErrorIs(t, err, domain.ErrDuplicateMetric)
}

func TestNew_InvalidInterval(t *testing.T) {
	_, err := New(config.ExporterConfig{}, prometheus.NewRegistry(), memory.New(), nil, nil)
	require.Error(t, err)
}

func TestCycleTimeout(t *testing.T) {
	tests := []struct {
		interval time.Duration
		want     time.Duration
	}{
		{30 * time.Second, 29 * time.Second},
		{1500 * time.Millisecond, 500 * time.Millisecond},
		{time.Second, time.Second},
		{200 * time.Millisecond, 200 * time.Millisecond},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, cycleTimeout(tt.interval), tt.interval.String())
	}
}

type panicConnector struct {
	next   ports.Connector
	panics atomic.Bool
}

func (c *panicConnector) Connect(ctx context.Context) (ports.Session, error) {
	if c.panics.Load() {
		panic("connector bug")
	}
	return c.next.Connect(ctx)
}

func TestRunOnce_LoopPanicCountedOnce(t *testing.T) {
	conn := &panicConnector{next: seededStore()}
	conn.panics.Store(true)
	svc, reg := newService(t, 30*time.Second, conn, metrics.Catalog(nil))

	rep := svc.RunOnce(context.Background())
	require.Error(t, rep.Err)
	assert.Contains(t, rep.Err.Error(), "connector bug")
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.errors))

	conn.panics.Store(false)
	rep = svc.RunOnce(context.Background())
	require.NoError(t, rep.Err)
	assert.Zero(t, rep.Failed)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.errors))
	assert.Equal(t, 3, gaugeOf(t, reg, "prefect_flow_runs_total"))
}

func TestRun_NextCycleWaitsAfterTimeout(t *testing.T) {
	const (
		interval = 50 * time.Millisecond
		timeout  = 20 * time.Millisecond
	)
	var calls atomic.Int32
	second := make(chan struct{})
	u := &fakeUnit{name: "u", refresh: func(ctx context.Context, _ ports.Session, _ time.Duration) error {
		switch calls.Add(1) {
		case 1:
			<-ctx.Done()
			return ctx.Err()
		case 2:
			close(second)
		}
		return nil
	}}
	var mu sync.Mutex
	var reports []Report
	record := ObserverFunc(func(_ context.Context, r Report) error {
		mu.Lock()
		reports = append(reports, r)
		mu.Unlock()
		return nil
	})
	svc, _ := newService(t, interval, memory.New(), []ports.MetricUnit{u}, WithObserver(record))
	svc.timeout = timeout

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	select {
	case <-second:
	case <-time.After(2 * time.Second):
		t.Fatal("second cycle never started")
	}
	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	require.GreaterOrEqual(t, len(reports), 2)
	require.ErrorIs(t, reports[0].Err, domain.ErrCycleTimeout)
	assert.GreaterOrEqual(t, reports[1].Start.Sub(reports[0].Start), timeout+interval)
	assert.Equal(t, 1.0, testutil.ToFloat64(svc.errors))
}

func TestJoined(t *testing.T) {
	closedDone := func() chan struct{} {
		c := make(chan struct{})
		close(c)
		return c
	}
	expired := func() context.Context {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	tests := []struct {
		ctx  context.Context
		done chan struct{}
		name string
		want bool
	}{
		{name: "finished in time", ctx: context.Background(), done: closedDone(), want: true},
		{name: "finished as the deadline passed", ctx: expired(), done: closedDone(), want: true},
		{name: "still running at the deadline", ctx: expired(), done: make(chan struct{}), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, joined(tt.ctx, tt.done))
		})
	}
}
