package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"cors-gateway/internal/config"
	"cors-gateway/internal/handlers"
	"cors-gateway/internal/middleware"
	"cors-gateway/pkg/logger"
)

// Server represents the gateway server
type Server struct {
	config     *config.Config
	log        logger.Logger
	router     *Router
	metrics    *middleware.MetricsMiddleware
	tracing    *middleware.TracingMiddleware
	httpServer *http.Server
}

// NewServer builds the route table from routes and prepares the HTTP
// server. Any registration error, such as conflicting CORS options, is
// returned here so that the gateway never starts half configured.
func NewServer(cfg *config.Config, routes *config.RouteConfig, log logger.Logger) (*Server, error) {
	metrics := middleware.NewMetricsMiddleware(&cfg.Metrics, log)
	tracing := middleware.NewTracingMiddleware(&cfg.Tracing, log)

	router, err := NewRouter(cfg.Cors, log.With(logger.String("component", "router")), metrics)
	if err != nil {
		return nil, err
	}
	router.Use(tracing.Tracing, metrics.Metrics)

	if err := router.Handle(http.MethodGet, cfg.Server.HealthPath, http.HandlerFunc(handlers.HealthCheckHandler), config.CorsDisabled()); err != nil {
		return nil, fmt.Errorf("failed to register health check: %w", err)
	}
	if err := router.SetupRoutes(routes); err != nil {
		return nil, err
	}

	httpServer := &http.Server{
		Addr:           cfg.Server.Address,
		Handler:        metrics.RegisterMetricsEndpoint(router.Handler()),
		ReadTimeout:    time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout:   time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:    time.Duration(cfg.Server.IdleTimeout) * time.Second,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return &Server{
		config:     cfg,
		log:        log,
		router:     router,
		metrics:    metrics,
		tracing:    tracing,
		httpServer: httpServer,
	}, nil
}

// Router returns the route table builder
func (s *Server) Router() *Router {
	return s.router
}

// Handler returns the root handler, metrics endpoint included
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Start listens on the configured address and serves until Stop
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.config.Server.Address)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.config.Server.Address, err)
	}
	return s.Serve(ln)
}

// Serve serves on an existing listener until Stop
func (s *Server) Serve(ln net.Listener) error {
	s.log.Info("Starting server",
		logger.String("address", ln.Addr().String()),
		logger.Int("routes", len(s.router.Table())),
	)
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error("Server failed", logger.Error(err))
		return err
	}
	return nil
}

// Stop gracefully stops the server and flushes pending traces
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("Shutting down server...")
	err := s.httpServer.Shutdown(ctx)
	if terr := s.tracing.Shutdown(ctx); terr != nil {
		s.log.Warn("Failed to shut down tracing", logger.Error(terr))
	}
	return err
}
