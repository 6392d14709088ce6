package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/metrics"
)

// availableEndpoints is listed in every 404 body.
var availableEndpoints = []string{
	"/api/stats",
	"/api/executions",
	"/api/urls",
	"/api/execution/:id",
	"/api/url/:urlPath",
	"/api/raw",
	"/api/health",
	"/api/trigger-report (POST)",
	"/api/config/urls (GET, POST, PUT, DELETE)",
}

// SetupRoutes configures all API routes.
func SetupRoutes(h *Handlers, corsOrigins []string) *chi.Mux {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(recoverer)
	r.Use(countRequests)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		MaxAge:         300,
	}))

	r.Get("/", h.Index)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		// Consolidated store views
		r.Get("/stats", h.Stats)
		r.Get("/executions", h.Executions)
		r.Get("/urls", h.URLs)
		r.Get("/execution/{id}", h.Execution)
		r.Get("/url/*", h.URLHistory)
		r.Get("/raw", h.Raw)

		r.Post("/trigger-report", h.TriggerReport)

		// URL config
		r.Get("/config/urls", h.ListConfigURLs)
		r.Post("/config/urls", h.AddConfigURL)
		r.Put("/config/urls", h.ReplaceConfigURLs)
		r.Delete("/config/urls", h.RemoveConfigURL)
	})

	r.NotFound(h.NotFound)
	r.MethodNotAllowed(h.NotFound)

	return r
}
