// Package http provides the HTTP server hosting the audiarr API.
package http

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/jmylchreest/audiarr/internal/http/middleware"
)

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string        // bind address
	Port            int           // listen port
	ReadTimeout     time.Duration // full-request read deadline
	WriteTimeout    time.Duration // response write deadline
	IdleTimeout     time.Duration // keep-alive idle deadline
	ShutdownTimeout time.Duration // drain window for graceful shutdown
	CORSOrigins     []string      // origins allowed to call the API, "*" for all
}

// DefaultServerConfig returns the defaults the daemon starts with before the
// api section of the config is applied.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Host:            "0.0.0.0",
		Port:            9393,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		CORSOrigins:     []string{"*"},
	}
}

// Server hosts the REST API and webhook receivers.
type Server struct {
	config     ServerConfig
	router     *chi.Mux
	api        huma.API
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer assembles the middleware chain and an empty huma API; handlers
// register themselves via API(). version appears in the OpenAPI document.
func NewServer(config ServerConfig, logger *slog.Logger, version string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if version == "" {
		version = "dev"
	}

	router := newRouter(config, logger)

	humaConfig := huma.DefaultConfig("audiarr API", version)
	humaConfig.Info.Description = "Default audio track management for Sonarr/Radarr libraries"

	return &Server{
		config: config,
		router: router,
		api:    humachi.New(router, humaConfig),
		logger: logger,
	}
}

// newRouter builds the chi router with the standard middleware chain:
// request ids, request logging, panic recovery, CORS and compression.
func newRouter(config ServerConfig, logger *slog.Logger) *chi.Mux {
	router := chi.NewRouter()

	router.Use(chimiddleware.RealIP)
	router.Use(middleware.RequestID)
	router.Use(middleware.NewLoggingMiddleware(logger))
	router.Use(middleware.Recovery(logger))

	cors := middleware.DefaultCORSConfig()
	if len(config.CORSOrigins) > 0 {
		cors.AllowedOrigins = config.CORSOrigins
	}
	router.Use(middleware.CORSWithConfig(cors))

	router.Use(chimiddleware.Compress(5))

	return router
}

// API returns the huma API for registering operations.
func (s *Server) API() huma.API { return s.api }

// Router exposes the underlying chi router.
func (s *Server) Router() *chi.Mux { return s.router }

// ListenAndServe runs the server until ctx is cancelled, then drains
// connections for at most ShutdownTimeout. It blocks until shutdown
// completes or the listener fails.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errChan := make(chan error, 1)
	go func() {
		errChan <- s.Start()
	}()

	select {
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	case err := <-errChan:
		return err
	}
}

// Start begins serving and blocks until the listener closes.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	s.logger.Info("http server listening", slog.String("address", addr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serving http: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, bounded by ShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}

	s.logger.Info("http server draining", slog.Duration("timeout", s.config.ShutdownTimeout))

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down http server: %w", err)
	}

	s.logger.Info("http server stopped")
	return nil
}
