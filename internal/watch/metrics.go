package watch

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus metrics for the artifact watcher.
type Metrics struct {
	ArtifactsProcessed prometheus.Counter   // Event artifacts analyzed successfully
	AnalysisErrors     prometheus.Counter   // Failed analysis runs
	AnalysisDuration   prometheus.Histogram // Wall-clock seconds per analysis run
	QueueDepth         prometheus.Gauge     // Sessions waiting for their debounce window
}

// NewMetrics creates and registers the watcher metrics. The registerer
// parameter allows flexible registration (global registry, test
// registry).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	artifactsProcessed := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "primeline_artifacts_processed_total",
		Help: "Total number of event artifacts analyzed successfully",
	})

	analysisErrors := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "primeline_analysis_errors_total",
		Help: "Total number of analysis runs that failed",
	})

	analysisDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "primeline_analysis_duration_seconds",
		Help:    "Wall-clock duration of one analysis run in seconds",
		Buckets: prometheus.DefBuckets,
	})

	queueDepth := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "primeline_watch_queue_depth",
		Help: "Number of sessions waiting for their debounce window to close",
	})

	reg.MustRegister(artifactsProcessed)
	reg.MustRegister(analysisErrors)
	reg.MustRegister(analysisDuration)
	reg.MustRegister(queueDepth)

	return &Metrics{
		ArtifactsProcessed: artifactsProcessed,
		AnalysisErrors:     analysisErrors,
		AnalysisDuration:   analysisDuration,
		QueueDepth:         queueDepth,
	}
}
