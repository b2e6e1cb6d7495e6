package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors are the Prometheus series exported by the planner.
type Collectors struct {
	// OperationsTotal counts planner operations by operation and outcome.
	OperationsTotal *prometheus.CounterVec
	// OperationDuration tracks planner operation latency.
	OperationDuration *prometheus.HistogramVec
	// DaysMaterialized counts plan days written per operation.
	DaysMaterialized *prometheus.CounterVec
	// DuplicateMealDaysTotal counts days that reused an existing meal combination.
	DuplicateMealDaysTotal prometheus.Counter
	// LockConflictsTotal counts extend calls rejected because the plan was locked.
	LockConflictsTotal prometheus.Counter
}

// NewCollectors registers the planner series with reg.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	factory := promauto.With(reg)
	return &Collectors{
		OperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planner_operations_total",
				Help: "Total number of planner operations",
			},
			[]string{"operation", "outcome"},
		),
		OperationDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "planner_operation_duration_seconds",
				Help:    "Duration of planner operations in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"operation"},
		),
		DaysMaterialized: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "planner_days_materialized_total",
				Help: "Total number of plan days written",
			},
			[]string{"operation"},
		),
		DuplicateMealDaysTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "planner_duplicate_meal_days_total",
				Help: "Total number of days that reused a meal combination",
			},
		),
		LockConflictsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "planner_lock_conflicts_total",
				Help: "Total number of extend calls rejected by the plan lock",
			},
		),
	}
}
