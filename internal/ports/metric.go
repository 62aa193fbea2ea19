package ports

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricUnit is one exported measurement: it declares its handles once and refreshes them every cycle.
type MetricUnit interface {
	// Name is the stable identity used in logs.
	Name() string
	// Register creates the unit's handles on reg. It is called exactly once.
	Register(reg prometheus.Registerer) error
	// Refresh queries s and updates the unit's handles. since is the time elapsed
	// since the previous cycle started, zero on the first cycle.
	Refresh(ctx context.Context, s Session, since time.Duration) error
}
