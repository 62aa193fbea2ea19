package exporter

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vshulcz/prefect-exporter/pkg/observer"
)

// Report summarizes one collection cycle.
type Report struct {
	Start    time.Time
	Err      error // connect failure, timeout or loop panic
	Since    time.Duration
	Duration time.Duration
	// Failed is how much the cycle added to the collect errors counter.
	Failed int
}

// Observer receives a Report after every cycle.
type Observer = observer.Observer[Report]

// ObserverFunc adapts a function to Observer.
type ObserverFunc = observer.Func[Report]

func logObserver(log *zap.Logger) Observer {
	return ObserverFunc(func(_ context.Context, r Report) error {
		fields := []zap.Field{
			zap.Duration("duration", r.Duration),
			zap.Duration("since", r.Since),
			zap.Int("failed", r.Failed),
		}
		switch {
		case r.Err != nil:
			log.Warn("collection cycle failed", append(fields, zap.Error(r.Err))...)
		case r.Failed > 0:
			log.Info("collection cycle finished with errors", fields...)
		default:
			log.Debug("collection cycle finished", fields...)
		}
		return nil
	})
}

func durationObserver(h prometheus.Observer) Observer {
	return ObserverFunc(func(_ context.Context, r Report) error {
		h.Observe(r.Duration.Seconds())
		return nil
	})
}
