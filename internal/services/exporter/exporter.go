// Package exporter runs the collection loop: every interval it opens an
// orchestration session, refreshes all metric units concurrently and reports
// the outcome.
package exporter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/vshulcz/prefect-exporter/internal/config"
	"github.com/vshulcz/prefect-exporter/internal/domain"
	"github.com/vshulcz/prefect-exporter/internal/ports"
	"github.com/vshulcz/prefect-exporter/pkg/observer"
)

// Service periodically refreshes the registered metric units.
type Service struct {
	connector ports.Connector
	log       *zap.Logger
	errors    prometheus.Counter
	duration  prometheus.Histogram
	reports   *observer.Subject[Report]
	now       func() time.Time
	previous  time.Time
	units     []ports.MetricUnit
	interval  time.Duration
	timeout   time.Duration
}

// Option customizes a Service.
type Option func(*Service)

// WithObserver attaches extra cycle observers after the built-in ones.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.reports.Attach(o) }
}

// New registers the loop's own metrics on reg. The units must already be
// registered.
func New(cfg config.ExporterConfig, reg prometheus.Registerer, c ports.Connector,
	units []ports.MetricUnit, log *zap.Logger, opts ...Option,
) (*Service, error) {
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("interval must be positive, got %s", cfg.Interval)
	}
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{
		connector: c,
		units:     append([]ports.MetricUnit(nil), units...),
		log:       log,
		interval:  cfg.Interval,
		timeout:   cycleTimeout(cfg.Interval),
		now:       time.Now,
		errors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "prefect",
			Subsystem: "exporter",
			Name:      "collect_errors_total",
			Help:      "Number of failed metric refreshes and failed collection cycles.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "prefect",
			Subsystem: "exporter",
			Name:      "collect_duration_seconds",
			Help:      "Duration of collection cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	for _, col := range []prometheus.Collector{s.errors, s.duration} {
		if err := reg.Register(col); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				return nil, fmt.Errorf("%w: exporter self metrics", domain.ErrDuplicateMetric)
			}
			return nil, fmt.Errorf("register exporter metrics: %w", err)
		}
	}
	s.reports = observer.NewSubject[Report](logObserver(log), durationObserver(s.duration))
	for _, o := range opts {
		o(s)
	}
	return s, nil
}

// cycleTimeout leaves a second of slack before the next cycle is due.
func cycleTimeout(interval time.Duration) time.Duration {
	if d := interval - time.Second; d > 0 {
		return d
	}
	return interval
}

// Run collects until ctx is cancelled. Cancellation is observed between
// cycles only; a cycle already in progress runs to completion or timeout.
func (s *Service) Run(ctx context.Context) error {
	s.log.Info("collector loop started",
		zap.Duration("interval", s.interval),
		zap.Duration("timeout", s.timeout),
		zap.Int("metrics", len(s.units)))
	for {
		if ctx.Err() != nil {
			s.log.Info("collector loop stopped")
			return nil
		}
		s.RunOnce(ctx)

		t := time.NewTimer(s.interval)
		select {
		case <-ctx.Done():
			t.Stop()
		case <-t.C:
		}
	}
}

// RunOnce executes a single collection cycle and returns its report.
func (s *Service) RunOnce(ctx context.Context) Report {
	start := s.now()
	rep := Report{Start: start}
	if !s.previous.IsZero() {
		rep.Since = start.Sub(s.previous)
	}

	rep.Failed, rep.Err = s.safeCollect(ctx, rep.Since)
	rep.Duration = s.now().Sub(start)
	s.previous = start

	if err := s.reports.Publish(ctx, rep); err != nil {
		s.log.Warn("cycle observer failed", zap.Error(err))
	}
	return rep
}

func (s *Service) safeCollect(ctx context.Context, since time.Duration) (failed int, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.errors.Inc()
			failed, err = 1, fmt.Errorf("collection panic: %v", r)
			s.log.Error("collection cycle panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	return s.collect(ctx, since)
}

func (s *Service) collect(parent context.Context, since time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), s.timeout)
	defer cancel()

	sess, err := s.connector.Connect(ctx)
	if err != nil {
		s.errors.Inc()
		s.log.Error("connect to orchestration service failed", zap.Error(err), zap.Stack("stack"))
		return 1, fmt.Errorf("connect: %w", err)
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			s.log.Warn("close session", zap.Error(cerr))
		}
	}()

	errs := make([]error, len(s.units))
	var wg sync.WaitGroup
	for i, u := range s.units {
		i, u := i, u
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = refresh(ctx, u, sess, since)
		}()
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	if !joined(ctx, done) {
		cancel()
		s.errors.Inc()
		s.log.Error("collection cycle abandoned", zap.Duration("timeout", s.timeout))
		return 1, domain.ErrCycleTimeout
	}

	failed := 0
	for i, err := range errs {
		if err == nil {
			continue
		}
		failed++
		s.errors.Inc()
		s.log.Error("metric refresh failed", zap.String("metric", s.units[i].Name()), zap.Error(err))
	}
	return failed, nil
}

// joined waits for done or the end of ctx. A join that completed is reported
// as such even when the deadline has passed by the time it is observed.
func joined(ctx context.Context, done <-chan struct{}) bool {
	select {
	case <-done:
		return true
	case <-ctx.Done():
		select {
		case <-done:
			return true
		default:
			return false
		}
	}
}

func refresh(ctx context.Context, u ports.MetricUnit, sess ports.Session, since time.Duration) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("refresh panic: %v", r)
		}
	}()
	return u.Refresh(ctx, sess, since)
}
