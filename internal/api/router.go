// Package api exposes the projection engine over HTTP.
package api

import (
	"net/http"

	"github.com/rpgo/finplan/internal/observability"
	"github.com/rpgo/finplan/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("api")

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(planner *service.Planner, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler())
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		// POST /v1/projections: one projection for an inline input
		r.Post("/projections", projectionHandler(planner, logger))

		// POST /v1/plans/projection: every scenario of an inline plan
		r.Post("/plans/projection", planProjectionHandler(planner, logger))

		// POST /v1/comparisons: current vs proposed
		r.Post("/comparisons", comparisonHandler(planner, logger))

		// GET /v1/users/{userID}/projection: stored plan
		r.Get("/users/{userID}/projection", userProjectionHandler(planner, logger))

		r.Get("/stats", statsHandler(metrics))
	})

	return r
}
