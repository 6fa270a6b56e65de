// Package server exposes the caselight HTTP API.
//
// The server wraps an Echo router with bearer-token auth, request
// logging, and context-aware graceful shutdown. Every document route is
// owner-scoped by the authenticated subject.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/caselight/caselight/internal/logging"
	"github.com/caselight/caselight/internal/services"
)

// Config holds HTTP server settings.
type Config struct {
	// Host is the listen address.
	Host string
	// Port is the HTTP listen port.
	Port int
	// AuthSecret verifies bearer tokens. Empty disables auth; every
	// request then runs as a single default owner (development only).
	AuthSecret string
	// UploadDir is where uploaded PDFs land before indexing.
	UploadDir string
	// MaxUploadBytes caps the accepted upload size.
	MaxUploadBytes int64
	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout time.Duration
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.UploadDir == "" {
		c.UploadDir = "./uploads"
	}
	if c.MaxUploadBytes == 0 {
		c.MaxUploadBytes = 50 * 1024 * 1024
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
}

// Server is the caselight HTTP server.
type Server struct {
	config   Config
	echo     *echo.Echo
	registry services.Registry
	logger   *logging.Logger
}

// New creates a Server over the given service registry.
func New(cfg Config, registry services.Registry, logger *logging.Logger) *Server {
	cfg.ApplyDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(requestContext(logger))
	e.Use(middleware.BodyLimit(fmt.Sprintf("%d", cfg.MaxUploadBytes)))

	s := &Server{
		config:   cfg,
		echo:     e,
		registry: registry,
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

// registerRoutes registers all HTTP routes.
func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)

	auth := newAuthMiddleware(s.config.AuthSecret)
	api := s.echo.Group("", auth)
	api.POST("/upload", s.handleUpload)
	api.POST("/search", s.handleSearch)
	api.GET("/documents", s.handleListDocuments)
	api.DELETE("/documents/:id", s.handleDeleteDocument)
	api.GET("/settings", s.handleGetSettings)
	api.PUT("/settings", s.handleSaveSettings)
}

// Start starts the HTTP server and blocks until the context is cancelled.
// Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := s.echo.Start(addr); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("server start: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.echo.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return http.ErrServerClosed
	}
}

// Echo returns the underlying Echo instance. For tests.
func (s *Server) Echo() *echo.Echo {
	return s.echo
}

// requestContext threads the request id into the request context so log
// lines carry it.
func requestContext(logger *logging.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			reqID := c.Response().Header().Get(echo.HeaderXRequestID)
			ctx := logging.ContextWithRequestID(c.Request().Context(), reqID)
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}
