package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/nmalakhov/shortly/internal/models"
	"github.com/nmalakhov/shortly/internal/service"
	"go.uber.org/zap"
)

func (h *Handler) ShortenHandler(rw http.ResponseWriter, r *http.Request) {
	contentType := r.Header.Get("Content-Type")
	if contentType != "application/json" {
		http.Error(rw, "Content-Type must be application/json", http.StatusBadRequest)
		return
	}

	var req models.ShortenRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		http.Error(rw, "Invalid JSON", http.StatusBadRequest)
		return
	}

	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		http.Error(rw, "URL is required", http.StatusBadRequest)
		return
	}

	if err := h.validate.Struct(req); err != nil {
		writeError(rw, http.StatusUnprocessableEntity, "invalid url")
		return
	}

	alias, err := h.service.Shorten(r.Context(), req.URL)
	status := http.StatusCreated

	switch {
	case err == nil:
	case errors.Is(err, service.ErrURLAlreadyExists):
		status = http.StatusOK
	case errors.Is(err, service.ErrEmptyURL), errors.Is(err, service.ErrInvalidURL):
		writeError(rw, http.StatusUnprocessableEntity, "invalid url")
		return
	case errors.Is(err, service.ErrUnresolvableHost):
		writeError(rw, http.StatusNotFound, "host does not resolve")
		return
	default:
		h.logger.Error("Failed to shorten URL",
			zap.String("caller", r.RemoteAddr),
			zap.Error(err))
		http.Error(rw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)

	encoder := json.NewEncoder(rw)
	if err := encoder.Encode(models.ShortenResponse{Alias: alias}); err != nil {
		h.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func writeError(rw http.ResponseWriter, status int, msg string) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	json.NewEncoder(rw).Encode(models.ErrorResponse{Error: msg}) //nolint:errcheck
}
