package rag

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// pipelineMetrics holds the Prometheus collectors for the retrieval pipeline.
type pipelineMetrics struct {
	retrievals        *prometheus.CounterVec
	retrievalDuration prometheus.Histogram
	cacheHits         prometheus.Counter
	cacheMisses       prometheus.Counter
	stageFailures     *prometheus.CounterVec
}

// newPipelineMetrics registers the pipeline collectors on reg. A nil
// registerer falls back to the default registry.
func newPipelineMetrics(reg prometheus.Registerer) *pipelineMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &pipelineMetrics{
		retrievals: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledge_retrievals_total",
			Help: "Retrieval requests by resolving pipeline stage.",
		}, []string{"stage"}),
		retrievalDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "knowledge_retrieval_duration_seconds",
			Help:    "End-to-end retrieval latency.",
			Buckets: prometheus.DefBuckets,
		}),
		cacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "knowledge_result_cache_hits_total",
			Help: "Retrieval result cache hits.",
		}),
		cacheMisses: factory.NewCounter(prometheus.CounterOpts{
			Name: "knowledge_result_cache_misses_total",
			Help: "Retrieval result cache misses.",
		}),
		stageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "knowledge_stage_failures_total",
			Help: "Pipeline stages that errored and were skipped.",
		}, []string{"stage"}),
	}
}
