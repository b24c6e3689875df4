package handler

import (
	"context"
	"net/http"
	"time"

	httputil "calendra/pkg/http"
	"calendra/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
)

type HealthResponse struct {
	Status      string `json:"status"`
	Database    string `json:"database,omitempty"`
	Coordinator string `json:"coordinator,omitempty"`
}

// HealthHandler reports liveness and, on /ready, pings whichever backends are configured.
type HealthHandler struct {
	mongoClient *mongo.Client
	redisClient *redis.Client
	log         *logger.Logger
}

func NewHealthHandler(mongoClient *mongo.Client, redisClient *redis.Client, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		mongoClient: mongoClient,
		redisClient: redisClient,
		log:         log,
	}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
	}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ready"}
	status := http.StatusOK

	if h.mongoClient != nil {
		resp.Database = "ok"
		if err := h.mongoClient.Ping(ctx, nil); err != nil {
			h.log.Error("Database health check failed", "error", err, "path", r.URL.Path)
			resp.Database = "error"
			status = http.StatusServiceUnavailable
		}
	}
	if h.redisClient != nil {
		resp.Coordinator = "ok"
		if err := h.redisClient.Ping(ctx).Err(); err != nil {
			h.log.Error("Coordinator health check failed", "error", err, "path", r.URL.Path)
			resp.Coordinator = "error"
			status = http.StatusServiceUnavailable
		}
	}
	if status != http.StatusOK {
		resp.Status = "unavailable"
	}

	if err := httputil.WriteJSON(w, status, resp); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *HealthHandler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
