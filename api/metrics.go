/*
metrics.go - Prometheus instrumentation

PURPOSE:
  Counters for the write paths that matter operationally: how much is moving
  through the ledger and how often batches partially fail. Exposed on
  /metrics via promhttp (see server.go).
*/
package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	movementsRecorded = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_movements_recorded_total",
		Help: "Movements appended to the stock ledger, by kind.",
	}, []string{"kind"})

	movementsCancelled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_movements_cancelled_total",
		Help: "Movements reversed via cancellation.",
	})

	batchItems = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "inventory_batch_items_total",
		Help: "Batch items processed, by operation and outcome.",
	}, []string{"operation", "outcome"})
)

func observeBatch(operation string, summary BatchSummaryDTO) {
	batchItems.WithLabelValues(operation, "succeeded").Add(float64(summary.Succeeded))
	batchItems.WithLabelValues(operation, "failed").Add(float64(summary.Failed))
}
