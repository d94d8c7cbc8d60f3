package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// Roster and room selection
			r.Route("/rooms", func(r chi.Router) {
				r.Get("/", s.handleListRooms)
				r.Post("/", s.handleCreateRoom)
				r.Post("/{name}/select", s.handleSelectRoom)
				r.Delete("/{name}", s.handleDeleteRoom)
			})
			r.Get("/room", s.handleActiveRoom)

			// Live device state and commands
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Get("/changed", s.handleChangedDevices)
				r.Post("/", s.handleCreateDevice)

				r.Route("/{name}", func(r chi.Router) {
					r.Delete("/", s.handleDeleteDevice)
					r.Put("/screen-lock", s.handleScreenLock)
					r.Put("/input-lock", s.handleInputLock)
					r.Post("/power-on", s.handlePowerOn)
					r.Post("/power-off", s.handlePowerOff)
					r.Post("/restart", s.handleRestart)
					r.Post("/logout", s.handleLogout)
					r.Get("/screenshot", s.handleScreenshot)
				})
			})

			// Demo broadcast
			r.Route("/demo", func(r chi.Router) {
				r.Get("/", s.handleGetDemo)
				r.Post("/", s.handleStartDemo)
				r.Delete("/", s.handleStopDemo)
			})

			// WebSocket (auth via token query parameter, see authMiddleware)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// healthCheckTimeout bounds the dependency probes in the health handler.
const healthCheckTimeout = 2 * time.Second

// handleHealth returns the server health status, including the state of the
// optional push and telemetry backends.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	checks := map[string]string{}

	if s.db != nil {
		checks["database"] = healthStatus(s.db.HealthCheck(ctx))
	}
	if s.mqtt != nil {
		checks["mqtt"] = healthStatus(s.mqtt.HealthCheck(ctx))
	}
	if s.metrics != nil {
		checks["metrics"] = healthStatus(s.metrics.HealthCheck(ctx))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
		"checks":  checks,
	})
}

// healthStatus maps a health check error onto a response string.
func healthStatus(err error) string {
	if err != nil {
		return err.Error()
	}
	return "ok"
}
