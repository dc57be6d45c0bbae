package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nmalakhov/shortly/internal/models"
	"github.com/nmalakhov/shortly/internal/service"
	"go.uber.org/zap"
)

func (h *Handler) AnalyticsHandler(rw http.ResponseWriter, r *http.Request) {
	reports, err := h.service.ReportAll(r.Context())
	if err != nil {
		h.logger.Error("Failed to build analytics", zap.Error(err))
		http.Error(rw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)

	encoder := json.NewEncoder(rw)
	if err := encoder.Encode(models.AnalyticsResponse{URLs: reports}); err != nil {
		h.logger.Error("Failed to encode analytics response", zap.Error(err))
	}
}

func (h *Handler) AliasAnalyticsHandler(rw http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "alias")

	report, err := h.service.Report(r.Context(), alias)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			http.Error(rw, "Not Found", http.StatusNotFound)
			return
		}

		h.logger.Error("Failed to build alias analytics",
			zap.String("alias", alias),
			zap.Error(err))
		http.Error(rw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(http.StatusOK)

	encoder := json.NewEncoder(rw)
	if err := encoder.Encode(map[string]models.AliasReport{alias: report}); err != nil {
		h.logger.Error("Failed to encode alias analytics response", zap.Error(err))
	}
}
