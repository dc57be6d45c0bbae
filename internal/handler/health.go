package handler

import (
	"encoding/json"
	"net/http"

	"github.com/nmalakhov/shortly/internal/models"
	"go.uber.org/zap"
)

func (h *Handler) HealthHandler(rw http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := "ok"
	dependencies := map[string]string{
		"database":      "ok",
		"counter_store": "ok",
	}

	if err := h.service.Ping(ctx); err != nil {
		h.logger.Error("Database health check failed", zap.Error(err))
		dependencies["database"] = "unavailable"
		status = "degraded"
	}

	if err := h.limiter.Ping(ctx); err != nil {
		h.logger.Error("Counter store health check failed", zap.Error(err))
		dependencies["counter_store"] = "unavailable"
		status = "degraded"
	}

	rw.Header().Set("Content-Type", "application/json")
	if status != "ok" {
		rw.WriteHeader(http.StatusServiceUnavailable)
	} else {
		rw.WriteHeader(http.StatusOK)
	}

	encoder := json.NewEncoder(rw)
	if err := encoder.Encode(models.HealthResponse{
		Status:       status,
		Dependencies: dependencies,
	}); err != nil {
		h.logger.Error("Failed to encode health response", zap.Error(err))
	}
}
