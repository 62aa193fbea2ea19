// Package metrics holds the exporter's metric catalog: one unit per observed
// condition, each owning its own registry handles.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vshulcz/prefect-exporter/internal/domain"
)

const namespace = "prefect"

var errNotRegistered = errors.New("metric refreshed before registration")

func registerGauge(reg prometheus.Registerer, opts prometheus.GaugeOpts) (prometheus.Gauge, error) {
	g := prometheus.NewGauge(opts)
	if err := register(reg, g, prometheus.BuildFQName(opts.Namespace, opts.Subsystem, opts.Name)); err != nil {
		return nil, err
	}
	return g, nil
}

func register(reg prometheus.Registerer, c prometheus.Collector, name string) error {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateMetric, name)
		}
		return fmt.Errorf("register %s: %w", name, err)
	}
	return nil
}
