package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Pinger is anything the health check can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	db     Pinger
	redis  Pinger
	logger zerolog.Logger
}

func NewHealthHandler(db, redis Pinger, logger zerolog.Logger) *HealthHandler {
	return &HealthHandler{db: db, redis: redis, logger: logger}
}

type HealthResponse struct {
	Status string `json:"status"`
	DB     string `json:"db"`
	Redis  string `json:"redis"`
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{Status: "ok", DB: "ok", Redis: "ok"}
	code := http.StatusOK
	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("Database health check failed")
		resp.DB, resp.Status, code = "down", "degraded", http.StatusServiceUnavailable
	}
	if err := h.redis.Ping(ctx); err != nil {
		h.logger.Warn().Err(err).Msg("Redis health check failed")
		resp.Redis, resp.Status, code = "down", "degraded", http.StatusServiceUnavailable
	}
	respondWithJSON(w, code, resp)
}
