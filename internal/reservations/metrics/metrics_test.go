package metrics

import (
	"fmt"
	"testing"
	"time"

	"calendra/internal/reservations/coordinator"
	reservationerrors "calendra/internal/reservations/errors"
	"calendra/pkg/model"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestResult(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ResultOK},
		{&reservationerrors.ConflictError{ResourceID: "r"}, ResultConflict},
		{reservationerrors.Validation("end", "is required"), ResultValidation},
		{fmt.Errorf("load: %w", reservationerrors.NotFound("resource", "x")), ResultNotFound},
		{reservationerrors.ErrForbidden, ResultForbidden},
		{reservationerrors.ErrAlreadyCompleted, ResultAlreadyCompleted},
		{reservationerrors.ErrHoldExpired, ResultHoldExpired},
		{&reservationerrors.InvalidTransitionError{From: model.StatusPending, To: model.StatusCancelled}, ResultInvalidTransition},
		{fmt.Errorf("acquire: %w", coordinator.ErrLockTimeout), ResultLockTimeout},
		{fmt.Errorf("boom"), ResultError},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, Result(tt.err), "error: %v", tt.err)
	}
}

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(operationsTotal.WithLabelValues("submit", ResultConflict))
	ObserveOperation("submit", time.Now(), reservationerrors.ErrConflict)
	after := testutil.ToFloat64(operationsTotal.WithLabelValues("submit", ResultConflict))
	require.Equal(t, before+1, after)
}
