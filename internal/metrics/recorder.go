package metrics

import (
	"context"
	"time"

	"github.com/khoii1/DA-Fitness/internal/logger"
	"github.com/khoii1/DA-Fitness/internal/planner"
)

// Recorder feeds planner executions into Prometheus and the metrics store.
// Either sink may be nil.
type Recorder struct {
	collectors *Collectors
	store      *Store
	log        *logger.Logger
}

func NewRecorder(collectors *Collectors, store *Store, log *logger.Logger) *Recorder {
	return &Recorder{collectors: collectors, store: store, log: log.With("component", "metrics")}
}

var _ planner.Recorder = (*Recorder)(nil)

// RecordExecution never fails; store errors are logged.
func (r *Recorder) RecordExecution(ctx context.Context, e planner.Execution) {
	if c := r.collectors; c != nil {
		c.OperationsTotal.WithLabelValues(e.Operation, e.Outcome).Inc()
		c.OperationDuration.WithLabelValues(e.Operation).Observe(e.Latency.Seconds())
		if e.Outcome == planner.OutcomeSuccess && e.Days > 0 {
			c.DaysMaterialized.WithLabelValues(e.Operation).Add(float64(e.Days))
		}
		if e.DuplicateDays > 0 {
			c.DuplicateMealDaysTotal.Add(float64(e.DuplicateDays))
		}
		if e.Outcome == planner.OutcomeConflict {
			c.LockConflictsTotal.Inc()
		}
	}

	if r.store == nil {
		return
	}
	// Metrics are written after the request's own work; a cancelled request
	// should still leave its trace.
	if err := r.store.Record(context.WithoutCancel(ctx), FromExecution(e, time.Now())); err != nil {
		r.log.Warn("failed to persist execution metric", "operation", e.Operation, "error", err)
	}
}
