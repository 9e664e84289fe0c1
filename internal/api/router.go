package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each dependency check on /health.
const healthCheckTimeout = 3 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
// Every route is served at the root and mirrored under /api/v1.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.withRequestID)
	r.Use(s.accessLog)
	r.Use(s.recoverPanics)
	if s.metrics != nil {
		r.Use(s.metrics.Instrument)
	}
	r.Use(cors(s.cfg.CORS))
	if s.limiter != nil {
		r.Use(s.rateLimitMiddleware)
	}
	r.Use(limitBody)

	r.Group(s.routes)
	r.Route("/api/v1", s.routes)

	return r
}

func (s *Server) routes(r chi.Router) {
	// Public
	r.Get("/health", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.Post("/users", s.handleRegisterUser)
	r.Post("/auth/login", s.handleLogin)

	// Bearer token required
	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)

		r.Delete("/users", s.handleUnregisterUser)
		r.Post("/auth/ws-ticket", s.handleWSTicket)
		r.Get("/audit", s.handleListAudit)
	})

	r.Route("/devices", func(r chi.Router) {
		// Live stream, authenticated by single-use ticket
		r.Get("/{id}/{topic}/stream", s.handleStream)

		r.Group(func(r chi.Router) {
			r.Use(s.requireAuth)

			r.Get("/", s.handleListDevices)
			r.Post("/", s.handleRegisterDevice)
			r.Delete("/", s.handleUnregisterDevice)

			r.Post("/{id}/topics", s.handleAddTopics)
			r.Delete("/{id}/topics", s.handleRemoveTopics)

			r.Post("/{id}/{topic}", s.handleAppendTelemetry)
			r.Get("/{id}/{topic}/latest", s.handleLatestTelemetry)
			r.Get("/{id}/{topic}/periodic", s.handlePeriodicTelemetry)
		})
	})
}

// handleHealth reports the server version and the state of each
// dependency. Any failing check turns the response into a 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	checks := make(map[string]string, len(s.checks))

	for name, checker := range s.checks {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := checker.HealthCheck(ctx)
		cancel()

		if err != nil {
			checks[name] = err.Error()
			status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}
