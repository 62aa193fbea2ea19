// Package util holds small process-level helpers shared by the binaries.
package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// BuildInfo is stamped into the binary with -ldflags "-X main.buildVersion=...".
type BuildInfo struct {
	Version string
	Date    string
	Commit  string
}

// na returns "N/A" for unset values.
func na(v string) string {
	if v == "" {
		return "N/A"
	}
	return v
}

// Fields renders the build info for structured logs.
func (b BuildInfo) Fields() []zap.Field {
	return []zap.Field{
		zap.String("version", na(b.Version)),
		zap.String("build_date", na(b.Date)),
		zap.String("commit", na(b.Commit)),
	}
}

// Collector returns a constant gauge of 1 labelled with the build info.
func (b BuildInfo) Collector(namespace string) prometheus.Collector {
	return prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "build_info",
		Help:      "A metric with a constant '1' value labeled by version, build date and commit of the exporter.",
		ConstLabels: prometheus.Labels{
			"version":    na(b.Version),
			"build_date": na(b.Date),
			"commit":     na(b.Commit),
		},
	}, func() float64 { return 1 })
}
