package errors

import (
	"errors"

	apperrors "calendra/pkg/errors"
)

// ToAppError maps engine errors onto the HTTP error taxonomy.
func ToAppError(err error) *apperrors.AppError {
	if err == nil {
		return nil
	}

	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		details := map[string]any{"reason": validationErr.Reason}
		if validationErr.Field != "" {
			details["field"] = validationErr.Field
		}
		return apperrors.Validation(validationErr.Error(), details)
	}

	var conflictErr *ConflictError
	if errors.As(err, &conflictErr) {
		return apperrors.Conflict(ErrConflict.Error()).WithDetails(map[string]any{
			"resource_id":              conflictErr.ResourceID,
			"range":                    conflictErr.Range,
			"blocking_reservation_ids": conflictErr.BlockingIDs,
		})
	}

	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) {
		return apperrors.NotFoundWithID(notFoundErr.Kind, notFoundErr.ID)
	}

	var transitionErr *InvalidTransitionError
	if errors.As(err, &transitionErr) {
		return apperrors.InvalidTransition(string(transitionErr.From), string(transitionErr.To))
	}

	switch {
	case errors.Is(err, ErrAlreadyExists):
		return apperrors.Conflict(err.Error())
	case errors.Is(err, ErrVersionConflict):
		return apperrors.Conflict("reservation was modified concurrently, retry the request")
	case errors.Is(err, ErrForbidden):
		return apperrors.Forbidden(ErrForbidden.Error())
	case errors.Is(err, ErrHoldExpired):
		return apperrors.Gone(ErrHoldExpired.Error())
	case errors.Is(err, ErrValidation):
		return apperrors.Validation(err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		return apperrors.NotFound("reservation")
	case errors.Is(err, ErrPersistence):
		return apperrors.Unavailable("reservation store")
	}

	return apperrors.Internal("An unexpected error occurred", err)
}
