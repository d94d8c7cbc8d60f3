// Package api provides the HTTP REST API and WebSocket server for Roomwatch
// Core.
//
// It exposes roster management, room selection, live device state, device
// commands, demo broadcast control, and screenshot capture to operator
// consoles.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/roomwatch/roomwatch-core/internal/directory"
	"github.com/roomwatch/roomwatch-core/internal/infrastructure/config"
	"github.com/roomwatch/roomwatch-core/internal/infrastructure/database"
	"github.com/roomwatch/roomwatch-core/internal/infrastructure/logging"
	"github.com/roomwatch/roomwatch-core/internal/infrastructure/metrics"
	"github.com/roomwatch/roomwatch-core/internal/infrastructure/mqtt"
	"github.com/roomwatch/roomwatch-core/internal/monitor"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Security   config.SecurityConfig
	Poll       config.PollConfig
	Logger     *logging.Logger
	Controller *monitor.Controller
	Directory  directory.Repository
	DB         *database.DB
	MQTT       *mqtt.Client    // optional: state-event publishing disabled when nil
	Metrics    *metrics.Client // optional: poll telemetry disabled when nil
	Version    string
}

// Server is the HTTP API server for Roomwatch Core.
//
// It manages the HTTP listener, routes, middleware, WebSocket hub, and the
// state watcher that fans device changes out to push channels.
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	pollCfg    config.PollConfig
	logger     *logging.Logger
	controller *monitor.Controller
	directory  directory.Repository
	db         *database.DB
	mqtt       *mqtt.Client
	metrics    *metrics.Client
	version    string
	server     *http.Server
	hub        *Hub
	cancel     context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Controller == nil {
		return nil, fmt.Errorf("room controller is required")
	}
	if deps.Directory == nil {
		return nil, fmt.Errorf("directory repository is required")
	}
	// MQTT and metrics are optional; the REST surface works without them.

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		pollCfg:    deps.Poll,
		logger:     deps.Logger,
		controller: deps.Controller,
		directory:  deps.Directory,
		db:         deps.DB,
		mqtt:       deps.MQTT,
		metrics:    deps.Metrics,
		version:    deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// It sets up the router, starts the WebSocket hub and state watcher, and
// launches the HTTP listener in a background goroutine. The server can be
// stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	// Fan device state changes out to WebSocket, MQTT, and metrics.
	go s.watchState(srvCtx)

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       s.cfg.GetReadTimeout(),
		ReadHeaderTimeout: s.cfg.GetReadTimeout(),
		WriteTimeout:      s.cfg.GetWriteTimeout(),
		IdleTimeout:       s.cfg.GetIdleTimeout(),
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete, then
// forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Cancel background goroutines (hub, state watcher)
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running and responsive.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
