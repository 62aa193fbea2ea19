package domain

import "errors"

var (
	// ErrUnavailable is returned when the orchestration service cannot be reached or reports itself unhealthy.
	ErrUnavailable = errors.New("orchestration service unavailable")
	// ErrCycleTimeout indicates the refresh fan-out did not finish within its bound.
	ErrCycleTimeout = errors.New("collection cycle timed out")
	// ErrDuplicateMetric is returned when a metric name is registered twice.
	ErrDuplicateMetric = errors.New("duplicate metric registration")
)
