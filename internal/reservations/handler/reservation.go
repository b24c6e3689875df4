package handler

import (
	"context"
	"net/http"
	"time"

	reservationerrors "calendra/internal/reservations/errors"
	"calendra/internal/reservations/repository"
	"calendra/internal/reservations/service"
	"calendra/internal/reservations/validator"
	httputil "calendra/pkg/http"
	"calendra/pkg/identity"
	"calendra/pkg/logger"
	"calendra/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const maxHoldTTL = 24 * time.Hour

type HoldRequest struct {
	model.ReservationRequest
	TTLSeconds int `json:"ttl_seconds,omitempty"`
}

// ReservationResponse flags a cancel of an already finished reservation,
// which is answered with the unchanged reservation instead of an error.
type ReservationResponse struct {
	*model.Reservation
	AlreadyCompleted bool `json:"already_completed,omitempty"`
}

type ReservationHandler struct {
	engine    service.ReservationEngine
	audit     repository.AuditLog
	validator *validator.ReservationValidator
	log       *logger.Logger
}

func NewReservationHandler(
	engine service.ReservationEngine,
	audit repository.AuditLog,
	validator *validator.ReservationValidator,
	log *logger.Logger,
) *ReservationHandler {
	return &ReservationHandler{
		engine:    engine,
		audit:     audit,
		validator: validator,
		log:       log.Component("reservation-handler"),
	}
}

func (h *ReservationHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/reservations", h.Submit)
	router.POST("/api/v1/reservations/holds", h.Hold)
	router.GET("/api/v1/reservations/id/:id", h.GetByID)
	router.PATCH("/api/v1/reservations/id/:id", h.Reschedule)
	router.POST("/api/v1/reservations/id/:id/confirm", h.Confirm)
	router.POST("/api/v1/reservations/id/:id/cancel", h.Cancel)
	router.GET("/api/v1/reservations/id/:id/history", h.History)
	router.GET("/api/v1/reservations/requester/:requester_id", h.ListByRequester)
}

func (h *ReservationHandler) Submit(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req model.ReservationRequest
	if err := httputil.DecodeJSON(r, &req); err != nil {
		writeError(h.log, w, r, "Submit", err)
		return
	}
	if err := h.prepare(r, &req); err != nil {
		writeError(h.log, w, r, "Submit", err)
		return
	}

	res, err := h.engine.Submit(r.Context(), req)
	if err != nil {
		writeError(h.log, w, r, "Submit", err)
		return
	}
	writeCreated(h.log, w, "Submit", res)
}

func (h *ReservationHandler) Hold(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body HoldRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		writeError(h.log, w, r, "Hold", err)
		return
	}
	if err := h.prepare(r, &body.ReservationRequest); err != nil {
		writeError(h.log, w, r, "Hold", err)
		return
	}

	ttl := time.Duration(body.TTLSeconds) * time.Second
	if body.TTLSeconds < 0 || ttl > maxHoldTTL {
		writeError(h.log, w, r, "Hold", reservationerrors.Validation("ttl_seconds", "must be between 0 and 86400"))
		return
	}

	res, err := h.engine.Hold(r.Context(), body.ReservationRequest, ttl)
	if err != nil {
		writeError(h.log, w, r, "Hold", err)
		return
	}
	writeCreated(h.log, w, "Hold", res)
}

func (h *ReservationHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	res, err := h.readable(r, ps.ByName("id"))
	if err != nil {
		writeError(h.log, w, r, "GetByID", err)
		return
	}
	writeSuccess(h.log, w, "GetByID", res)
}

func (h *ReservationHandler) Confirm(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.command(w, r, ps, "Confirm", h.engine.Confirm)
}

func (h *ReservationHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.command(w, r, ps, "Cancel", h.engine.Cancel)
}

func (h *ReservationHandler) Reschedule(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	actor, err := h.actorAndID(r, "id", id)
	if err != nil {
		writeError(h.log, w, r, "Reschedule", err)
		return
	}

	var body model.RescheduleRequest
	if err := httputil.DecodeJSON(r, &body); err != nil {
		writeError(h.log, w, r, "Reschedule", err)
		return
	}
	if err := h.validator.ValidateReschedule(&body); err != nil {
		writeError(h.log, w, r, "Reschedule", err)
		return
	}
	to, err := model.NewTimeRange(body.Start, body.End)
	if err != nil {
		writeError(h.log, w, r, "Reschedule", reservationerrors.Validation("range", err.Error()))
		return
	}

	res, err := h.engine.Reschedule(r.Context(), id, actor, to)
	if err != nil {
		writeError(h.log, w, r, "Reschedule", err)
		return
	}
	writeSuccess(h.log, w, "Reschedule", res)
}

func (h *ReservationHandler) History(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	res, err := h.readable(r, ps.ByName("id"))
	if err != nil {
		writeError(h.log, w, r, "History", err)
		return
	}

	entries, err := h.audit.FindByReservation(r.Context(), res.ID)
	if err != nil {
		writeError(h.log, w, r, "History", err)
		return
	}
	writeSuccess(h.log, w, "History", entries)
}

func (h *ReservationHandler) ListByRequester(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	requesterID := ps.ByName("requester_id")
	actor, err := h.actorAndID(r, "requester_id", requesterID)
	if err != nil {
		writeError(h.log, w, r, "ListByRequester", err)
		return
	}
	if !actor.Privileged && actor.ID != requesterID {
		writeError(h.log, w, r, "ListByRequester", reservationerrors.ErrForbidden)
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		writeError(h.log, w, r, "ListByRequester", err)
		return
	}

	reservations, total, err := h.engine.ListByRequester(r.Context(), requesterID, limit, offset)
	if err != nil {
		writeError(h.log, w, r, "ListByRequester", err)
		return
	}
	writePaginated(h.log, w, "ListByRequester", reservations, total, limit, offset)
}

// command runs a state transition on behalf of the caller.
func (h *ReservationHandler) command(
	w http.ResponseWriter,
	r *http.Request,
	ps httprouter.Params,
	name string,
	run func(ctx context.Context, id string, actor identity.Actor) (*model.Reservation, error),
) {
	id := ps.ByName("id")
	actor, err := h.actorAndID(r, "id", id)
	if err != nil {
		writeError(h.log, w, r, name, err)
		return
	}

	res, err := run(r.Context(), id, actor)
	if err != nil && !(isBenign(err) && res != nil) {
		writeError(h.log, w, r, name, err)
		return
	}
	writeSuccess(h.log, w, name, ReservationResponse{Reservation: res, AlreadyCompleted: err != nil})
}

// prepare fills in the requester for ordinary callers, who may only reserve
// on their own behalf without a capacity override, and validates the result.
func (h *ReservationHandler) prepare(r *http.Request, req *model.ReservationRequest) error {
	actor, err := actorFrom(r)
	if err != nil {
		return err
	}

	if !actor.Privileged {
		if req.RequesterID == "" {
			req.RequesterID = actor.ID
		} else if req.RequesterID != actor.ID {
			return reservationerrors.ErrForbidden
		}
		// Overriding capacity is an operator decision.
		if req.CapacityOverride != nil {
			return reservationerrors.ErrForbidden
		}
	}
	return h.validator.ValidateRequest(req)
}

// readable hides reservations the caller does not own behind a not found.
func (h *ReservationHandler) readable(r *http.Request, id string) (*model.Reservation, error) {
	actor, err := h.actorAndID(r, "id", id)
	if err != nil {
		return nil, err
	}

	res, err := h.engine.Get(r.Context(), id)
	if err != nil {
		return nil, err
	}
	if !actor.Privileged && res.RequesterID != actor.ID {
		return nil, reservationerrors.NotFound("reservation", id)
	}
	return res, nil
}

func (h *ReservationHandler) actorAndID(r *http.Request, field, id string) (identity.Actor, error) {
	actor, err := actorFrom(r)
	if err != nil {
		return identity.Actor{}, err
	}
	if err := h.validator.ValidateID(field, id); err != nil {
		return identity.Actor{}, err
	}
	return actor, nil
}
