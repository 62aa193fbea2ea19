// Package host exposes CPU and memory usage of the machine running the
// exporter, sampled with gopsutil whenever the registry is gathered.
package host

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"
	"go.uber.org/zap"
)

// Collector implements prometheus.Collector over gopsutil samples.
type Collector struct {
	log         *zap.Logger
	cpuPercent  func() ([]float64, error)
	virtualMem  func() (*mem.VirtualMemoryStat, error)
	memTotal    *prometheus.Desc
	memFree     *prometheus.Desc
	memUsed     *prometheus.Desc
	cpuUtilized *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

// New returns a collector reading the live host.
func New(log *zap.Logger) *Collector {
	if log == nil {
		log = zap.NewNop()
	}
	fq := func(name string) string { return prometheus.BuildFQName("prefect", "exporter_host", name) }
	return &Collector{
		log:        log,
		cpuPercent: func() ([]float64, error) { return cpu.Percent(0, true) },
		virtualMem: mem.VirtualMemory,
		memTotal:   prometheus.NewDesc(fq("memory_total_bytes"), "Total physical memory of the exporter host.", nil, nil),
		memFree:    prometheus.NewDesc(fq("memory_free_bytes"), "Free physical memory of the exporter host.", nil, nil),
		memUsed:    prometheus.NewDesc(fq("memory_used_ratio"), "Fraction of physical memory in use on the exporter host.", nil, nil),
		cpuUtilized: prometheus.NewDesc(fq("cpu_utilization_ratio"),
			"Fraction of time each logical CPU of the exporter host was busy since the previous scrape.", []string{"cpu"}, nil),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.memTotal
	ch <- c.memFree
	ch <- c.memUsed
	ch <- c.cpuUtilized
}

// Collect emits whatever could be sampled; a failing source is logged and skipped.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if vm, err := c.virtualMem(); err != nil {
		c.log.Debug("sample host memory", zap.Error(err))
	} else if vm != nil {
		ch <- prometheus.MustNewConstMetric(c.memTotal, prometheus.GaugeValue, float64(vm.Total))
		ch <- prometheus.MustNewConstMetric(c.memFree, prometheus.GaugeValue, float64(vm.Free))
		ch <- prometheus.MustNewConstMetric(c.memUsed, prometheus.GaugeValue, vm.UsedPercent/100)
	}

	pct, err := c.cpuPercent()
	if err != nil {
		c.log.Debug("sample host cpu", zap.Error(err))
		return
	}
	for i, p := range pct {
		ch <- prometheus.MustNewConstMetric(c.cpuUtilized, prometheus.GaugeValue, p/100, strconv.Itoa(i+1))
	}
}
