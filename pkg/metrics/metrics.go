package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// RunMetric holds the data points from one dashboard run.
type RunMetric struct {
	HostsScanned  int // Hosts that produced at least one scanned image.
	HostsSkipped  int // Hosts skipped as unreachable.
	ImagesScanned int // Images scanned across all hosts.
	ImagesUnsafe  int // Images with critical or high findings.
	ScanFailures  int // Per-image scan or aggregation failures.
}

// Metrics exposes dashboard run results to Prometheus. Gauges reflect
// the last completed run; counters accumulate across runs of one
// process.
type Metrics struct {
	hostsScanned  prometheus.Gauge
	imagesScanned prometheus.Gauge
	imagesUnsafe  prometheus.Gauge
	runsTotal     prometheus.Counter
	hostsSkipped  prometheus.Counter
	scanFailures  prometheus.Counter
}

// NewWithRegistry creates a Metrics handler registered on the given
// registerer. Registering twice on the same registry is an error.
func NewWithRegistry(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		hostsScanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trivy_dashboard_hosts_scanned",
			Help: "Number of hosts that produced scan results during the last run",
		}),
		imagesScanned: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trivy_dashboard_images_scanned",
			Help: "Number of images scanned during the last run",
		}),
		imagesUnsafe: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "trivy_dashboard_images_unsafe",
			Help: "Number of images with critical or high findings during the last run",
		}),
		runsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trivy_dashboard_runs_total",
			Help: "Number of dashboard runs since the process started",
		}),
		hostsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trivy_dashboard_hosts_skipped_total",
			Help: "Number of hosts skipped as unreachable since the process started",
		}),
		scanFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "trivy_dashboard_scan_failures_total",
			Help: "Number of per-image scan failures since the process started",
		}),
	}

	collectors := []prometheus.Collector{
		m.hostsScanned,
		m.imagesScanned,
		m.imagesUnsafe,
		m.runsTotal,
		m.hostsSkipped,
		m.scanFailures,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}
	return m, nil
}

// RegisterRun records the results of one completed run.
func (m *Metrics) RegisterRun(metric RunMetric) {
	m.runsTotal.Inc()
	m.hostsScanned.Set(float64(metric.HostsScanned))
	m.imagesScanned.Set(float64(metric.ImagesScanned))
	m.imagesUnsafe.Set(float64(metric.ImagesUnsafe))
	m.hostsSkipped.Add(float64(metric.HostsSkipped))
	m.scanFailures.Add(float64(metric.ScanFailures))
}
