package handler

import (
	"errors"
	"net/http"

	reservationerrors "calendra/internal/reservations/errors"
	apperrors "calendra/pkg/errors"
	httputil "calendra/pkg/http"
	"calendra/pkg/identity"
	"calendra/pkg/logger"
	"calendra/pkg/middleware"
)

// writeError maps engine and repository errors to the API taxonomy. Server
// side failures are logged; client errors are not.
func writeError(log *logger.Logger, w http.ResponseWriter, r *http.Request, handler string, err error) {
	appErr := reservationerrors.ToAppError(err)
	if appErr.StatusCode() >= http.StatusInternalServerError {
		log.Ctx(r.Context()).Error("Request failed",
			"handler", handler,
			"request_id", middleware.RequestID(r.Context()),
			"error", err,
		)
	}
	if writeErr := httputil.WriteError(w, appErr); writeErr != nil {
		log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}

func writeSuccess(log *logger.Logger, w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteSuccess(w, data); err != nil {
		log.Error("failed to write success response", "handler", handler, "operation", "WriteSuccess", "error", err)
	}
}

func writeCreated(log *logger.Logger, w http.ResponseWriter, handler string, data any) {
	if err := httputil.WriteCreated(w, data); err != nil {
		log.Error("failed to write created response", "handler", handler, "operation", "WriteCreated", "error", err)
	}
}

func writePaginated(log *logger.Logger, w http.ResponseWriter, handler string, data any, total int64, limit int, offset int64) {
	if err := httputil.WritePaginated(w, data, total, limit, offset); err != nil {
		log.Error("failed to write paginated response", "handler", handler, "operation", "WritePaginated", "error", err)
	}
}

func actorFrom(r *http.Request) (identity.Actor, error) {
	actor, ok := identity.FromContext(r.Context())
	if !ok {
		return identity.Actor{}, apperrors.Unauthorized("request is not authenticated")
	}
	return actor, nil
}

// isBenign reports outcomes that still carry a usable reservation.
func isBenign(err error) bool {
	return errors.Is(err, reservationerrors.ErrAlreadyCompleted)
}
