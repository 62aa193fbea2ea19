package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/vshulcz/prefect-exporter/internal/domain"
	"github.com/vshulcz/prefect-exporter/internal/ports"
)

// Catalog returns the fixed set of units the exporter publishes.
func Catalog(watchedDeployments []string) []ports.MetricUnit {
	return []ports.MetricUnit{
		NewFlowRuns(),
		NewFlowRunSuccesses(),
		NewFlowRunsInError(),
		NewFlowRunsInWarning(),
		NewMissingDeployments(watchedDeployments),
	}
}

// RegisterAll registers every unit once and stops at the first failure.
// Two units sharing a name are rejected even when the registry would accept them.
func RegisterAll(reg prometheus.Registerer, units []ports.MetricUnit) error {
	seen := make(map[string]struct{}, len(units))
	for _, u := range units {
		name := u.Name()
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: %s", domain.ErrDuplicateMetric, name)
		}
		seen[name] = struct{}{}
		if err := u.Register(reg); err != nil {
			return err
		}
	}
	return nil
}
