package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Analysis lifecycle metrics
	analysesStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analysis_started_total",
		Help: "Total number of analyses started",
	})

	analysesFinishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "analysis_finished_total",
		Help: "Total number of analyses reaching a terminal state",
	}, []string{"outcome"}) // finished, failed, cancelled, superseded

	analysesActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "analysis_active_total",
		Help: "Number of analyses currently running",
	})

	analysisDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "analysis_duration_seconds",
		Help:    "Wall-clock duration of completed analyses",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 14), // 10ms to ~160s
	})

	// Ingestion metrics
	packetsIngestedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analysis_packets_ingested_total",
		Help: "Total packet records ingested across all analyses",
	})

	invalidPacketsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "analysis_packets_invalid_total",
		Help: "Packet records excluded from statistics (bad timestamp or size)",
	})

	// Viewport metrics
	downsampleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "viewport_downsample_duration_seconds",
		Help:    "Duration of viewport series computations",
		Buckets: prometheus.ExponentialBuckets(0.00001, 10, 7), // 10µs to 10s
	})

	downsampleOutputPoints = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "viewport_series_points",
		Help:    "Number of points emitted per viewport series",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12), // 1 to 2048
	})
)

// AnalysisStarted records a new analysis run.
func AnalysisStarted() {
	analysesStartedTotal.Inc()
	analysesActive.Inc()
}

// AnalysisFinished records the end of a run. Every started run must
// report exactly one outcome, superseded runs included, or the active
// gauge drifts.
func AnalysisFinished(outcome string, durationSeconds float64) {
	analysesFinishedTotal.WithLabelValues(outcome).Inc()
	analysesActive.Dec()
	analysisDuration.Observe(durationSeconds)
}

// PacketsIngested adds to the ingested packet counter.
func PacketsIngested(n int) {
	packetsIngestedTotal.Add(float64(n))
}

// InvalidPackets adds to the excluded packet counter.
func InvalidPackets(n int) {
	invalidPacketsTotal.Add(float64(n))
}

// DownsampleObserved records one viewport series computation.
func DownsampleObserved(durationSeconds float64, points int) {
	downsampleDuration.Observe(durationSeconds)
	downsampleOutputPoints.Observe(float64(points))
}
