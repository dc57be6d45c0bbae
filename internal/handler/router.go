package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nmalakhov/shortly/internal/middleware"
)

func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(h.logger))

	r.Route("/api", func(r chi.Router) {
		r.With(middleware.RateLimit(h.limiter, "shorten", h.logger)).
			Post("/shorten", h.ShortenHandler)

		r.Get("/analytics", h.AnalyticsHandler)
		r.Get("/analytics/{alias}", h.AliasAnalyticsHandler)
		r.Get("/health", h.HealthHandler)
	})

	r.Get("/{alias}", h.RedirectHandler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Not Found", http.StatusNotFound)
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
	})

	return r
}
