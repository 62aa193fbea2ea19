package a

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func explicit(reg *prometheus.Registry) {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "ok"})
	reg.MustRegister(g)
	_ = reg.Register(g)
	promauto.With(reg).NewGauge(prometheus.GaugeOpts{Name: "ok_factory"})
}

func global() {
	g := prometheus.NewGauge(prometheus.GaugeOpts{Name: "bad"})
	prometheus.MustRegister(g)    // want `prometheus.MustRegister uses the global Prometheus registry`
	_ = prometheus.Register(g)    // want `prometheus.Register uses the global Prometheus registry`
	_ = prometheus.Unregister(g)  // want `prometheus.Unregister uses the global Prometheus registry`
	_ = prometheus.DefaultGatherer // want `prometheus.DefaultGatherer uses the global Prometheus registry`
	promauto.NewGauge(prometheus.GaugeOpts{Name: "bad_auto"}) // want `promauto.NewGauge uses the global Prometheus registry`
	promauto.With(prometheus.DefaultRegisterer)              // want `prometheus.DefaultRegisterer uses the global Prometheus registry`
}
