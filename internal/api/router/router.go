package router

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/pratik-mahalle/tocguard/internal/api/handlers"
	"github.com/pratik-mahalle/tocguard/internal/api/middleware"
	"github.com/pratik-mahalle/tocguard/internal/config"
	"github.com/pratik-mahalle/tocguard/internal/pkg/logger"
	"github.com/pratik-mahalle/tocguard/internal/pkg/metrics"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Handlers struct {
	Health     *handlers.HealthHandler
	Constraint *handlers.ConstraintHandler
	Violation  *handlers.ViolationHandler
	Buffer     *handlers.BufferHandler
	Drum       *handlers.DrumHandler
}

// New builds the HTTP handler. Background work started by the middleware
// stops when ctx is done.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, h *Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID())
	r.Use(metrics.Middleware)
	r.Use(middleware.Logger(log))
	r.Use(middleware.Recovery(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.DefaultCORS(cfg.Server.FrontendURL))
	r.Use(middleware.RateLimit(ctx, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))

	// Operational routes
	r.Group(func(r chi.Router) {
		r.Get("/swagger/*", httpSwagger.WrapHandler)
		r.Handle("/metrics", metrics.Handler())

		r.Get("/health", h.Health.Healthz)
		r.Get("/healthz", h.Health.Healthz)
		r.Get("/ready", h.Health.Readyz)
		r.Get("/readyz", h.Health.Readyz)
	})

	r.Route("/api/v1/toc", func(r chi.Router) {
		r.Use(middleware.UserRateLimit(ctx, cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst))
		if cfg.TOC.OperationTimeout > 0 {
			r.Use(chimiddleware.Timeout(cfg.TOC.OperationTimeout))
		}

		// Rule evaluator
		r.Post("/evaluate", h.Constraint.Evaluate)
		r.Route("/constraints", func(r chi.Router) {
			r.Get("/", h.Constraint.List)
			r.Post("/", h.Constraint.Create)
			r.Get("/{id}", h.Constraint.Get)
			r.Put("/{id}", h.Constraint.Update)
			r.Delete("/{id}", h.Constraint.Delete)
			r.Get("/{id}/exceptions", h.Constraint.ListExceptions)
			r.Post("/{id}/exceptions", h.Constraint.CreateException)
		})
		r.Delete("/exceptions/{exceptionId}", h.Constraint.DeactivateException)

		// Violation workflow
		r.Route("/violations", func(r chi.Router) {
			r.Get("/", h.Violation.List)
			r.Get("/summary", h.Violation.GetSummary)
			r.Get("/{id}", h.Violation.Get)
			r.Post("/{id}/resolve", h.Violation.Resolve)
			r.Post("/{id}/waive", h.Violation.Waive)
		})

		// Buffer monitor
		r.Route("/buffers", func(r chi.Router) {
			r.Get("/", h.Buffer.List)
			r.Post("/", h.Buffer.Create)
			r.Get("/alerts", h.Buffer.Alerts)
			r.Get("/{id}", h.Buffer.Get)
			r.Put("/{id}", h.Buffer.Update)
			r.Post("/{id}/level", h.Buffer.UpdateLevel)
			r.Get("/{id}/health", h.Buffer.Health)
			r.Get("/{id}/consumptions", h.Buffer.Consumptions)
			r.Get("/{id}/history", h.Buffer.History)
			r.Put("/{id}/policy", h.Buffer.SetPolicy)
		})

		// Drum analyzer
		r.Route("/drums", func(r chi.Router) {
			r.Get("/", h.Drum.List)
			r.Post("/analyze", h.Drum.Analyze)
			r.Get("/history", h.Drum.History)
		})
		r.Route("/resources", func(r chi.Router) {
			r.Post("/", h.Drum.RegisterResource)
			r.Get("/utilization", h.Drum.Utilization)
			r.Post("/{id}/operations", h.Drum.RecordOperation)
			r.Post("/{id}/drum", h.Drum.Designate)
			r.Delete("/{id}/drum", h.Drum.Clear)
		})
	})

	return r
}
