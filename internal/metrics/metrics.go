// Package metrics exposes pipeline counters and gauges for the /metrics
// endpoint.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Recorder holds the pipeline's prometheus collectors.
type Recorder struct {
	registry *prometheus.Registry

	unitsProcessed *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	watermark      *prometheus.GaugeVec
	sourceRequests *prometheus.CounterVec
}

// New creates a recorder with its own registry.
func New() *Recorder {
	r := &Recorder{registry: prometheus.NewRegistry()}

	r.unitsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tidemark_units_processed_total",
		Help: "Processing units handled, by stream and outcome.",
	}, []string{"stream", "status"})

	r.runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tidemark_run_duration_seconds",
		Help:    "Wall time of layer runner invocations.",
		Buckets: prometheus.ExponentialBuckets(0.1, 2, 14),
	}, []string{"stream", "run_type", "status"})

	r.watermark = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "tidemark_watermark",
		Help: "Current watermark (yyyymmdd) per stream.",
	}, []string{"stream"})

	r.sourceRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tidemark_source_requests_total",
		Help: "Upstream source requests, by outcome.",
	}, []string{"status"})

	r.registry.MustRegister(r.unitsProcessed, r.runDuration, r.watermark, r.sourceRequests)
	return r
}

// Registry returns the underlying registry for the ops server.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

func (r *Recorder) UnitProcessed(stream, status string) {
	r.unitsProcessed.WithLabelValues(stream, status).Inc()
}

func (r *Recorder) RunFinished(stream, runType, status string, elapsed time.Duration) {
	r.runDuration.WithLabelValues(stream, runType, status).Observe(elapsed.Seconds())
}

func (r *Recorder) SetWatermark(stream string, unit int) {
	r.watermark.WithLabelValues(stream).Set(float64(unit))
}

func (r *Recorder) SourceRequest(status string) {
	r.sourceRequests.WithLabelValues(status).Inc()
}
