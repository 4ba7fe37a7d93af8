// Package metrics registers the Prometheus collectors for the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all collectors. A single instance is wired at start-up
// and shared by the HTTP layer and the pipeline.
type Metrics struct {
	HTTPRequests     *prometheus.CounterVec
	HTTPDuration     *prometheus.HistogramVec
	PipelineRequests *prometheus.CounterVec
	PipelineDuration prometheus.Histogram
	LLMCalls         *prometheus.CounterVec
	IndexOperations  *prometheus.CounterVec
	StaleDocuments   prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskchat_http_requests_total",
			Help: "HTTP requests by method, path and status.",
		}, []string{"method", "path", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "taskchat_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		PipelineRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskchat_pipeline_requests_total",
			Help: "Chat pipeline requests by classification and cache outcome.",
		}, []string{"classification", "from_cache"}),
		PipelineDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "taskchat_pipeline_duration_seconds",
			Help:    "End to end chat pipeline latency.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		LLMCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskchat_llm_calls_total",
			Help: "LLM completions by model and outcome.",
		}, []string{"model", "outcome"}),
		IndexOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "taskchat_index_operations_total",
			Help: "Vector index writes by kind and outcome.",
		}, []string{"kind", "outcome"}),
		StaleDocuments: factory.NewGauge(prometheus.GaugeOpts{
			Name: "taskchat_index_stale_documents",
			Help: "Documents awaiting reindex after a failed post-write index.",
		}),
	}
}

// Default returns metrics registered on the default Prometheus registry.
func Default() *Metrics {
	return New(prometheus.DefaultRegisterer)
}
