package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the public item routes behind API key auth and leaves
// the operational endpoints open.
func NewRouter(h *Handlers) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))
	r.Use(h.requestID)

	r.Get("/health", h.handleHealth)
	r.Handle("/metrics", promhttp.Handler())
	r.Post("/api_key/{email}", h.handleCreateAPIKey)

	r.Group(func(r chi.Router) {
		r.Use(h.apiKeyAuth)
		r.Get("/v2/items", h.handleSearch)
		r.Get("/v2/items/{ids}", h.handleFetch)
		r.Get("/v2/random", h.handleRandom)
	})

	return r
}
