// Package metrics exposes Prometheus counters for scheduler activity. The
// collectors register on the default registry; hosts that scrape wire
// promhttp themselves.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tasksExecuted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskgrid_tasks_executed_total",
		Help: "Tasks executed by workers, by task kind.",
	}, []string{"kind"})

	tasksDiscarded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskgrid_tasks_discarded_total",
		Help: "Tasks discarded without executing due to upstream failure.",
	})

	dispatchesIssued = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "taskgrid_dispatches_issued_total",
		Help: "Dispatches fanned out into slices or shards, by mode.",
	}, []string{"mode"})

	tilesExecuted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "taskgrid_tiles_executed_total",
		Help: "Workgroup invocations executed across all dispatches.",
	})
)

// TaskExecuted records a task of the given kind picked up by a worker.
func TaskExecuted(kind string) {
	tasksExecuted.WithLabelValues(kind).Inc()
}

// TasksDiscarded records n tasks cleaned up without executing.
func TasksDiscarded(n int) {
	tasksDiscarded.Add(float64(n))
}

// DispatchIssued records a dispatch fanning out in the given mode.
func DispatchIssued(mode string) {
	dispatchesIssued.WithLabelValues(mode).Inc()
}

// TilesExecuted records n workgroup invocations, observed when a dispatch
// retires with its statistics fully merged.
func TilesExecuted(n uint64) {
	tilesExecuted.Add(float64(n))
}
