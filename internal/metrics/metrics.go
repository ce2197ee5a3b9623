package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"TWHeatmap/internal/snapcache"
)

var (
	CyclesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heatmap_cycles_total",
		Help: "Total number of fetch cycles by resulting status",
	}, []string{"status"})

	BatchFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "heatmap_batch_failures_total",
		Help: "Total number of omitted request batches",
	})

	SkippedRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heatmap_skipped_rows_total",
		Help: "Total number of instruments excluded during normalization",
	}, []string{"reason"})

	SnapshotRows = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "heatmap_snapshot_rows",
		Help: "Rows in the snapshot currently served",
	})

	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "heatmap_cycle_duration_seconds",
		Help:    "Duration of fetch cycles",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
	})

	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "heatmap_http_requests_total",
		Help: "Total number of HTTP requests by route and status code",
	}, []string{"route", "code"})
)

// ObserveCycle records one executed cycle. It is registered as a cache observer.
func ObserveCycle(r snapcache.Result) {
	CyclesTotal.WithLabelValues(string(r.Status)).Inc()
	SnapshotRows.Set(float64(r.Snapshot.Len()))
	CycleDuration.Observe(r.Duration.Seconds())
	if r.Report == nil {
		return
	}
	BatchFailures.Add(float64(len(r.Report.Failures)))
	for _, s := range r.Report.Skips {
		SkippedRows.WithLabelValues(string(s.Reason)).Inc()
	}
}
