package handler

import (
	"net/http"
	"slices"

	reservationerrors "calendra/internal/reservations/errors"
	"calendra/internal/reservations/service"
	httputil "calendra/pkg/http"
	"calendra/pkg/identity"
	"calendra/pkg/logger"
	"calendra/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type AvailabilityResponse struct {
	ResourceID string            `json:"resource_id"`
	Window     model.TimeRange   `json:"window"`
	Free       []model.TimeRange `json:"free"`
}

type SlotsResponse struct {
	ResourceID string          `json:"resource_id"`
	Window     model.TimeRange `json:"window"`
	Slots      []model.Slot    `json:"slots"`
}

type ResourceHandler struct {
	resources service.ResourceService
	engine    service.ReservationEngine
	log       *logger.Logger
}

func NewResourceHandler(resources service.ResourceService, engine service.ReservationEngine, log *logger.Logger) *ResourceHandler {
	return &ResourceHandler{
		resources: resources,
		engine:    engine,
		log:       log.Component("resource-handler"),
	}
}

func (h *ResourceHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/resources", h.Create)
	router.GET("/api/v1/resources", h.GetAll)
	router.GET("/api/v1/resources/id/:id", h.GetByID)
	router.GET("/api/v1/resources/id/:id/availability", h.Availability)
}

// Create is restricted to privileged actors.
func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if actor, ok := identity.FromContext(r.Context()); !ok || !actor.Privileged {
		writeError(h.log, w, r, "Create", reservationerrors.ErrForbidden)
		return
	}

	var resource model.Resource
	if err := httputil.DecodeJSON(r, &resource); err != nil {
		writeError(h.log, w, r, "Create", err)
		return
	}

	if err := h.resources.Create(r.Context(), &resource); err != nil {
		writeError(h.log, w, r, "Create", err)
		return
	}
	writeCreated(h.log, w, "Create", resource)
}

func (h *ResourceHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	resource, err := h.resources.GetByID(r.Context(), ps.ByName("id"))
	if err != nil {
		writeError(h.log, w, r, "GetByID", err)
		return
	}
	writeSuccess(h.log, w, "GetByID", resource)
}

func (h *ResourceHandler) GetAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		writeError(h.log, w, r, "GetAll", err)
		return
	}

	resources, total, err := h.resources.GetAll(r.Context(), limit, offset)
	if err != nil {
		writeError(h.log, w, r, "GetAll", err)
		return
	}
	writePaginated(h.log, w, "GetAll", resources, total, limit, offset)
}

// Availability answers free intervals for start and end, or fixed-step
// slots when step is given.
func (h *ResourceHandler) Availability(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	resourceID := ps.ByName("id")

	start, err := httputil.ExtractTime(r, "start")
	if err != nil {
		writeError(h.log, w, r, "Availability", err)
		return
	}
	end, err := httputil.ExtractTime(r, "end")
	if err != nil {
		writeError(h.log, w, r, "Availability", err)
		return
	}
	window, err := model.NewTimeRange(start, end)
	if err != nil {
		writeError(h.log, w, r, "Availability", reservationerrors.Validation("end", err.Error()))
		return
	}
	step, hasStep, err := httputil.ExtractDuration(r, "step")
	if err != nil {
		writeError(h.log, w, r, "Availability", err)
		return
	}

	if hasStep {
		slots, err := h.engine.Slots(r.Context(), resourceID, window, step)
		if err != nil {
			writeError(h.log, w, r, "Availability", err)
			return
		}
		writeSuccess(h.log, w, "Availability", SlotsResponse{ResourceID: resourceID, Window: window, Slots: slots})
		return
	}

	free, err := h.engine.GetAvailability(r.Context(), resourceID, window)
	if err != nil {
		writeError(h.log, w, r, "Availability", err)
		return
	}
	resp := AvailabilityResponse{ResourceID: resourceID, Window: window, Free: slices.Collect(free)}
	if resp.Free == nil {
		resp.Free = []model.TimeRange{}
	}
	writeSuccess(h.log, w, "Availability", resp)
}
