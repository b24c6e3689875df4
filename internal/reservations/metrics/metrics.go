package metrics

import (
	"errors"
	"time"

	"calendra/internal/reservations/coordinator"
	reservationerrors "calendra/internal/reservations/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_operations_total",
		Help: "Engine operations by name and outcome.",
	}, []string{"operation", "result"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "reservation_operation_duration_seconds",
		Help:    "Engine operation latency, lock wait included.",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	lockWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "reservation_lock_wait_seconds",
		Help:    "Time spent waiting for a resource lock.",
		Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
	})

	holdsExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservation_holds_expired_total",
		Help: "Holds moved to expired by the sweeper or on late confirmation.",
	})

	sweepFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "reservation_sweep_failures_total",
		Help: "Holds the sweeper gave up on after exhausting retries.",
	})

	publishFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "reservation_event_publish_failures_total",
		Help: "Domain events that could not be delivered.",
	}, []string{"event_type"})

	calendarsLoaded = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "reservation_calendars_loaded",
		Help: "Resource calendars currently held in memory.",
	})
)

const (
	ResultOK                = "ok"
	ResultConflict          = "conflict"
	ResultValidation        = "validation"
	ResultNotFound          = "not_found"
	ResultForbidden         = "forbidden"
	ResultAlreadyCompleted  = "already_completed"
	ResultHoldExpired       = "hold_expired"
	ResultInvalidTransition = "invalid_transition"
	ResultLockTimeout       = "lock_timeout"
	ResultError             = "error"
)

// Result buckets an engine error into a low-cardinality label.
func Result(err error) string {
	switch {
	case err == nil:
		return ResultOK
	case errors.Is(err, reservationerrors.ErrConflict):
		return ResultConflict
	case errors.Is(err, reservationerrors.ErrValidation):
		return ResultValidation
	case errors.Is(err, reservationerrors.ErrNotFound):
		return ResultNotFound
	case errors.Is(err, reservationerrors.ErrForbidden):
		return ResultForbidden
	case errors.Is(err, reservationerrors.ErrAlreadyCompleted):
		return ResultAlreadyCompleted
	case errors.Is(err, reservationerrors.ErrHoldExpired):
		return ResultHoldExpired
	case errors.Is(err, reservationerrors.ErrInvalidTransition):
		return ResultInvalidTransition
	case errors.Is(err, coordinator.ErrLockTimeout):
		return ResultLockTimeout
	default:
		return ResultError
	}
}

func ObserveOperation(operation string, start time.Time, err error) {
	operationsTotal.WithLabelValues(operation, Result(err)).Inc()
	operationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func ObserveLockWait(d time.Duration) {
	lockWaitSeconds.Observe(d.Seconds())
}

func HoldExpired() {
	holdsExpiredTotal.Inc()
}

func SweepFailed() {
	sweepFailuresTotal.Inc()
}

func PublishFailed(eventType string) {
	publishFailuresTotal.WithLabelValues(eventType).Inc()
}

func SetCalendarsLoaded(n int) {
	calendarsLoaded.Set(float64(n))
}
