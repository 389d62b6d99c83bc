// Package metrics exposes Prometheus counters for the restage pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "glacier_restager"

// Metrics holds the process-side counters. The aggregation and dashboard
// layers live elsewhere; this is only the instrumentation.
type Metrics struct {
	RowsSubmitted       prometheus.Counter
	RowsSkipped         prometheus.Counter
	BytesRequested      prometheus.Counter
	PartitionsCompleted prometheus.Counter
	PartitionsFailed    prometheus.Counter
	NameCollisions      prometheus.Counter
}

// New creates the counters registered against reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		RowsSubmitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_submitted_total",
			Help:      "Inventory rows whose retrieval job was submitted.",
		}),
		RowsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_skipped_total",
			Help:      "Inventory rows skipped because the cursor already covered them.",
		}),
		BytesRequested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_requested_total",
			Help:      "Total archive bytes across submitted retrieval jobs.",
		}),
		PartitionsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partitions_completed_total",
			Help:      "Partitions processed to completion.",
		}),
		PartitionsFailed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "partitions_failed_total",
			Help:      "Partition invocations aborted by an error.",
		}),
		NameCollisions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "name_collisions_total",
			Help:      "Filenames that needed a timestamp suffix to stay unique.",
		}),
	}
}

// NewNop creates counters that are not registered anywhere. For tests and
// dry runs.
func NewNop() *Metrics {
	return New(nil)
}
