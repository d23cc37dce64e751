// Package metrics centralizes the Prometheus collectors shared by the
// adapters, query pipeline, rate limiter, and embedding service, in the
// teacher's promauto-under-one-namespace style.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "agent_memory"

// Registry bundles every metric family used across the service.
type Registry struct {
	CacheHits      *prometheus.CounterVec
	CacheMisses    *prometheus.CounterVec
	CacheEvictions *prometheus.CounterVec
	CacheErrors    *prometheus.CounterVec
	CacheSize      *prometheus.GaugeVec
	CacheLatency   *prometheus.HistogramVec

	StorageOperations *prometheus.CounterVec
	StorageDuration   *prometheus.HistogramVec

	PipelineStageDuration *prometheus.HistogramVec
	PipelineTruncations   *prometheus.CounterVec

	RateLimiterRejections *prometheus.CounterVec

	AuditWriteFailures prometheus.Counter

	EmbeddingQueueDepth prometheus.Gauge
	EmbeddingFailures   *prometheus.CounterVec
	EmbeddingDuration   prometheus.Histogram

	EventBusDropped  prometheus.Counter
	EventBusFanoutMs prometheus.Histogram

	MemoryAllocBytes prometheus.Gauge
	Goroutines       prometheus.Gauge
}

// New registers and returns a fresh Registry against reg (pass
// prometheus.DefaultRegisterer in production, a fresh prometheus.NewRegistry()
// in tests to avoid duplicate-registration panics across test binaries).
func New(reg prometheus.Registerer) *Registry {
	factory := promauto.With(reg)

	return &Registry{
		CacheHits: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Total number of cache hits.",
		}, []string{"layer"}),
		CacheMisses: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Total number of cache misses.",
		}, []string{"layer"}),
		CacheEvictions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "evictions_total",
			Help: "Total number of cache evictions.",
		}, []string{"layer"}),
		CacheErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "errors_total",
			Help: "Total number of cache errors.",
		}, []string{"layer", "kind"}),
		CacheSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache", Name: "size_bytes",
			Help: "Approximate number of bytes accounted for in the cache.",
		}, []string{"layer"}),
		CacheLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "cache", Name: "operation_duration_seconds",
			Help:    "Cache operation duration in seconds.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"layer", "operation", "status"}),

		StorageOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "storage", Name: "operations_total",
			Help: "Total number of storage adapter operations.",
		}, []string{"backend", "operation", "status"}),
		StorageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "storage", Name: "operation_duration_seconds",
			Help:    "Storage adapter operation duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"backend", "operation"}),

		PipelineStageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "query", Name: "stage_duration_seconds",
			Help:    "Query pipeline stage duration in seconds.",
			Buckets: []float64{.0001, .0005, .001, .005, .01, .025, .05, .1, .25},
		}, []string{"stage"}),
		PipelineTruncations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "query", Name: "truncations_total",
			Help: "Total number of pipeline result truncations.",
		}, []string{"stage"}),

		RateLimiterRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "ratelimit", Name: "rejections_total",
			Help: "Total number of requests rejected by the rate limiter.",
		}, []string{"operation_class"}),

		AuditWriteFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "audit", Name: "write_failures_total",
			Help: "Total number of audit record write failures.",
		}),

		EmbeddingQueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "embedding", Name: "queue_depth",
			Help: "Current number of queued embedding jobs.",
		}),
		EmbeddingFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "embedding", Name: "failures_total",
			Help: "Total number of embedding job failures.",
		}, []string{"reason"}),
		EmbeddingDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "embedding", Name: "job_duration_seconds",
			Help:    "Embedding job duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}),

		EventBusDropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "event_bus", Name: "dropped_total",
			Help: "Total number of events dropped due to a full channel.",
		}),
		EventBusFanoutMs: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "event_bus", Name: "fanout_duration_seconds",
			Help:    "Event bus fan-out duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}),

		MemoryAllocBytes: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "runtime", Name: "memory_alloc_bytes",
			Help: "Bytes allocated and not yet freed, sampled periodically.",
		}),
		Goroutines: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "runtime", Name: "goroutines",
			Help: "Number of goroutines, sampled periodically.",
		}),
	}
}
