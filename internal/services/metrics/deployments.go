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

// MissingDeployments reports how many watched flows lack a ready deployment.
// The value is len(watched) minus the number of READY deployments found and
// is not clamped: several ready deployments of one flow drive it negative.
type MissingDeployments struct {
	gauge   prometheus.Gauge
	watched []string
}

var _ ports.MetricUnit = (*MissingDeployments)(nil)

func NewMissingDeployments(watched []string) *MissingDeployments {
	return &MissingDeployments{watched: append([]string(nil), watched...)}
}

func (m *MissingDeployments) Name() string {
	return prometheus.BuildFQName(namespace, "", "missing_deployments_total")
}

func (m *MissingDeployments) Register(reg prometheus.Registerer) error {
	g, err := registerGauge(reg, prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "missing_deployments_total",
		Help: fmt.Sprintf("Number of watched deployments missing from the Prefect instance (watched: %s).",
			strings.Join(m.watched, ", ")),
	})
	if err != nil {
		return err
	}
	m.gauge = g
	return nil
}

func (m *MissingDeployments) Refresh(ctx context.Context, s ports.Session, _ time.Duration) error {
	if m.gauge == nil {
		return errNotRegistered
	}
	if len(m.watched) == 0 {
		m.gauge.Set(0)
		return nil
	}
	deps, err := s.ReadDeployments(ctx, domain.DeploymentFilter{FlowNames: m.watched})
	if err != nil {
		return fmt.Errorf("read deployments: %w", err)
	}
	ready := 0
	for _, d := range deps {
		if d.Ready() {
			ready++
		}
	}
	m.gauge.Set(float64(len(m.watched) - ready))
	return nil
}
