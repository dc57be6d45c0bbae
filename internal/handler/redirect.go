package handler

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nmalakhov/shortly/internal/service"
	"go.uber.org/zap"
)

func (h *Handler) RedirectHandler(rw http.ResponseWriter, r *http.Request) {
	alias := chi.URLParam(r, "alias")
	if alias == "" {
		http.Error(rw, "Empty alias", http.StatusBadRequest)
		return
	}

	originalURL, err := h.service.ResolveAndRecord(r.Context(), alias)
	if err != nil {
		if errors.Is(err, service.ErrNotFound) {
			http.Error(rw, "Not Found", http.StatusNotFound)
			return
		}

		h.logger.Error("Failed to resolve alias",
			zap.String("alias", alias),
			zap.String("caller", r.RemoteAddr),
			zap.Error(err))
		http.Error(rw, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	rw.Header().Set("Location", originalURL)
	rw.WriteHeader(http.StatusFound)
}
