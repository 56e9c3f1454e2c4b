package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ATHScanner/internal/model"
)

// Registry holds the scanner's Prometheus metrics. It is a report sink
// (scan gauges) and a fetch observer (upstream outcomes and latency).
type Registry struct {
	reg *prometheus.Registry

	scans        prometheus.Counter
	scanDuration prometheus.Histogram
	lastMatches  prometheus.Gauge
	lastScanTime prometheus.Gauge
	running      prometheus.Gauge
	total        prometheus.Gauge
	processed    prometheus.Gauge
	matched      prometheus.Gauge
	failed       prometheus.Gauge
	fetches      *prometheus.CounterVec
	fetchLatency prometheus.Histogram
}

func New() *Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	f := promauto.With(reg)

	return &Registry{
		reg: reg,
		scans: f.NewCounter(prometheus.CounterOpts{
			Name: "athscan_scans_completed_total",
			Help: "Scans that ran to completion and were published",
		}),
		scanDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "athscan_scan_duration_seconds",
			Help:    "Wall time of completed scans",
			Buckets: []float64{30, 60, 120, 300, 600, 900, 1200, 1800, 3600},
		}),
		lastMatches: f.NewGauge(prometheus.GaugeOpts{
			Name: "athscan_last_scan_matches",
			Help: "Instruments at or near their all-time high in the last completed scan",
		}),
		lastScanTime: f.NewGauge(prometheus.GaugeOpts{
			Name: "athscan_last_scan_timestamp_seconds",
			Help: "Unix time of the last completed scan",
		}),
		running: f.NewGauge(prometheus.GaugeOpts{
			Name: "athscan_scan_running",
			Help: "1 while a scan is running",
		}),
		total: f.NewGauge(prometheus.GaugeOpts{
			Name: "athscan_scan_instruments_total",
			Help: "Instruments in the current or last scan",
		}),
		processed: f.NewGauge(prometheus.GaugeOpts{
			Name: "athscan_scan_instruments_processed",
			Help: "Instruments processed so far",
		}),
		matched: f.NewGauge(prometheus.GaugeOpts{
			Name: "athscan_scan_instruments_matched",
			Help: "Matches found so far",
		}),
		failed: f.NewGauge(prometheus.GaugeOpts{
			Name: "athscan_scan_instruments_failed",
			Help: "Instruments whose fetch failed so far",
		}),
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Name: "athscan_fetch_total",
			Help: "History fetches by outcome",
		}, []string{"outcome"}),
		fetchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "athscan_fetch_duration_seconds",
			Help:    "History fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (r *Registry) Publish(_ context.Context, report *model.ScanReport) error {
	r.scans.Inc()
	r.scanDuration.Observe(report.Duration.Seconds())
	r.lastMatches.Set(float64(len(report.Matches)))
	r.lastScanTime.Set(float64(report.ScanTimestamp.Unix()))
	return nil
}

func (r *Registry) UpdateProgress(p model.ScanProgress) {
	if p.Running {
		r.running.Set(1)
	} else {
		r.running.Set(0)
	}
	r.total.Set(float64(p.Total))
	r.processed.Set(float64(p.Processed))
	r.matched.Set(float64(p.Matched))
	r.failed.Set(float64(p.Failed))
}

func (r *Registry) ObserveFetch(outcome string, elapsed time.Duration) {
	r.fetches.WithLabelValues(outcome).Inc()
	r.fetchLatency.Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{Registry: r.reg})
}
