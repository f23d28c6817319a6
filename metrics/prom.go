package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	TasksAdmitted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "fleet_tasks_admitted_total", Help: "Requests admitted to the pending queue"},
	)
	TasksDispatched = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "fleet_tasks_dispatched_total", Help: "Tasks dispatched to a worker"},
	)
	TasksCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "fleet_tasks_completed_total", Help: "Tasks completed by workers"},
	)
	MigrationSignals = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "fleet_migration_events_total", Help: "Tasks moved between workers by the migration coordinator"},
	)
	Turnaround = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fleet_turnaround_seconds",
			Help:    "Per-task turnaround time (completion - arrival), simulated seconds",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		},
	)
	WorkerLoad = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{Name: "fleet_worker_accumulated_load", Help: "Capacity-normalized outstanding work per worker"},
		[]string{"worker"},
	)
)

func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		TasksAdmitted, TasksDispatched, TasksCompleted,
		MigrationSignals, Turnaround, WorkerLoad,
	}
}
