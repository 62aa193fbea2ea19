package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vshulcz/prefect-exporter/internal/domain"
	"github.com/vshulcz/prefect-exporter/internal/ports"
)

// FlowRunCount sets a gauge to the number of flow runs whose state name is
// in a fixed set, or to the total number of runs when the set is empty.
type FlowRunCount struct {
	gauge  prometheus.Gauge
	name   string
	help   string
	states []string
}

var _ ports.MetricUnit = (*FlowRunCount)(nil)

// NewFlowRuns counts every flow run.
func NewFlowRuns() *FlowRunCount {
	return &FlowRunCount{name: "flow_runs_total", help: "Total number of flow runs."}
}

// NewFlowRunSuccesses counts runs that finished correctly.
func NewFlowRunSuccesses() *FlowRunCount {
	return newStateCount("flow_runs_successes_total", "Number of flow runs that finished successfully", domain.SuccessStateNames)
}

// NewFlowRunsInError counts runs in an error state.
func NewFlowRunsInError() *FlowRunCount {
	return newStateCount("flow_runs_in_error_total", "Number of flow runs in an error state", domain.ErrorStateNames)
}

// NewFlowRunsInWarning counts runs in a warning state.
func NewFlowRunsInWarning() *FlowRunCount {
	return newStateCount("flow_runs_in_warning_total", "Number of flow runs in a warning state", domain.WarningStateNames)
}

func newStateCount(name, help string, states []string) *FlowRunCount {
	return &FlowRunCount{
		name:   name,
		help:   fmt.Sprintf("%s (%s).", help, strings.Join(states, ", ")),
		states: states,
	}
}

func (m *FlowRunCount) Name() string {
	return prometheus.BuildFQName(namespace, "", m.name)
}

func (m *FlowRunCount) Register(reg prometheus.Registerer) error {
	g, err := registerGauge(reg, prometheus.GaugeOpts{Namespace: namespace, Name: m.name, Help: m.help})
	if err != nil {
		return err
	}
	m.gauge = g
	return nil
}

func (m *FlowRunCount) Refresh(ctx context.Context, s ports.Session, _ time.Duration) error {
	if m.gauge == nil {
		return errNotRegistered
	}
	n, err := s.CountFlowRuns(ctx, domain.FlowRunFilter{StateNames: m.states})
	if err != nil {
		return fmt.Errorf("count flow runs: %w", err)
	}
	m.gauge.Set(float64(n))
	return nil
}
