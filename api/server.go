/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend tooling

ROUTE GROUPS:
  /api/fabrics/*    Catalog management
  /api/variants     Variant listing/filtering
  /api/movements/*  Ledger writes and history
  /api/stock/*      Balance reads
  /api/scenarios/*  Demo data loaders (development only)
  /healthz          Liveness probe
  /metrics          Prometheus scrape endpoint

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/traider/fabric-inventory/inventory"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Fabric routes
		r.Route("/fabrics", func(r chi.Router) {
			r.Get("/", h.ListFabrics)
			r.Post("/", h.CreateFabric)
			r.Route("/{code}", func(r chi.Router) {
				r.Get("/", h.GetFabric)
				r.Patch("/", h.UpdateFabric)
				r.Post("/aliases", h.AddAlias)
				r.Delete("/aliases/{alias}", h.RemoveAlias)

				r.Route("/variants", func(r chi.Router) {
					r.Post("/", h.CreateVariant)
					r.Post("/batch", h.BatchCreateVariants)
					r.Post("/lookup", h.LookupVariants)
					r.Get("/{color}", h.GetVariant)
					r.Patch("/{color}", h.UpdateVariant)
					r.Delete("/{color}", h.DeleteVariant)
				})
			})
		})

		// Variant listing across fabrics
		r.Get("/variants", h.ListVariants)

		// Movement routes
		r.Route("/movements", func(r chi.Router) {
			r.Get("/", h.ListMovements)
			r.Post("/receive", h.Receive)
			r.Post("/issue", h.Issue)
			r.Post("/adjust", h.Adjust)
			r.Post("/receive/batch", h.BatchMovements(inventory.MovementReceipt))
			r.Post("/issue/batch", h.BatchMovements(inventory.MovementIssue))
			r.Post("/adjust/batch", h.BatchMovements(inventory.MovementAdjust))
			r.Get("/{id}", h.GetMovement)
			r.Post("/{id}/cancel", h.CancelMovement)
		})

		// Stock routes
		r.Get("/stock/{code}/{color}", h.GetStock)

		// Demo scenarios
		r.Get("/scenarios", h.ListScenarios)
		r.Post("/scenarios/load", h.LoadScenario)
	})

	// Operational endpoints
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.Handler())

	return r
}
