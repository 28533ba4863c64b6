package indexer

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Indexer's Prometheus counters, mirroring
// internal/background's metrics pattern (one promauto-registered counter
// per outcome, namespaced under the module).
type Metrics struct {
	batchesProcessed prometheus.Counter
	segmentsIndexed  prometheus.Counter
	phatiqueSkipped  prometheus.Counter
}

var (
	metricsOnce   sync.Once
	sharedMetrics *Metrics
)

// newMetrics returns the package-wide Metrics instance, building it once —
// every BulkIndexer in a process shares the same counters, since Prometheus
// collectors can only be registered a single time against the default
// registry.
func newMetrics() *Metrics {
	metricsOnce.Do(func() { sharedMetrics = buildMetrics() })
	return sharedMetrics
}

func buildMetrics() *Metrics {
	return &Metrics{
		batchesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "memoire",
			Subsystem: "indexer",
			Name:      "batches_processed_total",
			Help:      "Number of extractor batches processed by the bulk indexer.",
		}),
		segmentsIndexed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "memoire",
			Subsystem: "indexer",
			Name:      "segments_indexed_total",
			Help:      "Number of segments inserted by the indexer.",
		}),
		phatiqueSkipped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "memoire",
			Subsystem: "indexer",
			Name:      "phatique_skipped_total",
			Help:      "Number of turns skipped because the extractor marked them non-indexable.",
		}),
	}
}
