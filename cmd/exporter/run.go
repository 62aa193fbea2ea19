package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	auditfile "github.com/vshulcz/prefect-exporter/internal/adapters/audit/file"
	"github.com/vshulcz/prefect-exporter/internal/adapters/collector/host"
	"github.com/vshulcz/prefect-exporter/internal/adapters/http/ginserver"
	"github.com/vshulcz/prefect-exporter/internal/adapters/http/ginserver/middlewares"
	"github.com/vshulcz/prefect-exporter/internal/adapters/orchestration/prefect"
	"github.com/vshulcz/prefect-exporter/internal/config"
	"github.com/vshulcz/prefect-exporter/internal/logger"
	"github.com/vshulcz/prefect-exporter/internal/ports"
	"github.com/vshulcz/prefect-exporter/internal/services/exporter"
	"github.com/vshulcz/prefect-exporter/internal/services/metrics"
	"github.com/vshulcz/prefect-exporter/pkg/util"
)

// run wires the exporter and blocks until ctx is cancelled. Every error
// returned before the listener is up is a startup failure.
func run(ctx context.Context, args []string, stderr io.Writer) error {
	cfg, err := config.LoadExporterConfig(args, stderr)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	build := util.BuildInfo{Version: buildVersion, Date: buildDate, Commit: buildCommit}
	log.Info("exporter starting", append(build.Fields(),
		zap.String("prefect_api_url", cfg.PrefectAPIURL),
		zap.Bool("prefect_api_key_set", cfg.PrefectAPIKey != ""),
		zap.Int("port", cfg.Port),
		zap.Duration("interval", cfg.Interval),
		zap.Strings("check_deployments", cfg.CheckDeployments),
		zap.Bool("host_metrics", cfg.HostMetrics),
	)...)

	reg, units, err := buildRegistry(cfg, build, log)
	if err != nil {
		log.Error("metric registration failed", zap.Error(err))
		return err
	}

	client, err := prefect.New(cfg.PrefectAPIURL,
		prefect.WithAPIKey(cfg.PrefectAPIKey),
		prefect.WithRequestTimeout(cfg.RequestTimeout),
		prefect.WithLogger(log.Named("prefect")),
	)
	if err != nil {
		return fmt.Errorf("prefect client: %w", err)
	}

	var opts []exporter.Option
	if cfg.AuditFile != "" {
		opts = append(opts, exporter.WithObserver(auditfile.New(cfg.AuditFile)))
	}
	loop, err := exporter.New(cfg, reg, client, units, log.Named("collector"), opts...)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.ListenAddress())
	if err != nil {
		log.Error("listen failed", zap.String("addr", cfg.ListenAddress()), zap.Error(err))
		return fmt.Errorf("listen %s: %w", cfg.ListenAddress(), err)
	}

	router := ginserver.NewRouter(reg, log, middlewares.ZapLogger(log.Named("http"), ginserver.MetricsPath))
	srv := ginserver.NewServer(cfg.ListenAddress(), router, log)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	srvErr := make(chan error, 1)
	go func() { srvErr <- srv.Serve(ctx, ln) }()
	loopErr := make(chan error, 1)
	go func() { loopErr <- loop.Run(ctx) }()

	select {
	case err = <-srvErr:
		cancel()
		err = errors.Join(err, <-loopErr)
	case <-ctx.Done():
		err = errors.Join(<-loopErr, <-srvErr)
	}
	if err != nil {
		log.Error("exporter stopped with error", zap.Error(err))
		return err
	}
	log.Info("exporter stopped")
	return nil
}

func buildRegistry(cfg config.ExporterConfig, build util.BuildInfo, log *zap.Logger) (*prometheus.Registry, []ports.MetricUnit, error) {
	reg := prometheus.NewRegistry()
	units := metrics.Catalog(cfg.CheckDeployments)
	if err := metrics.RegisterAll(reg, units); err != nil {
		return nil, nil, err
	}

	extra := []prometheus.Collector{
		build.Collector("prefect_exporter"),
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	}
	if cfg.HostMetrics {
		extra = append(extra, host.New(log.Named("host")))
	}
	for _, c := range extra {
		if err := reg.Register(c); err != nil {
			return nil, nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return reg, units, nil
}
