package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"meshconsolidator/internal/config"
	"meshconsolidator/internal/transport/http/handlers"
	"meshconsolidator/internal/transport/http/middleware"
)

// Server wraps the gin engine serving the mesh telemetry consolidator's
// two-route HTTP surface (spec.md §6).
type Server struct {
	config   *config.Config
	logger   *logrus.Logger
	server   *http.Server
	handlers *handlers.Handlers
	engine   *gin.Engine
	serveErr chan error
}

// NewServer creates a new HTTP server instance.
func NewServer(cfg *config.Config, logger *logrus.Logger, handlers *handlers.Handlers) *Server {
	return &Server{
		config:   cfg,
		logger:   logger,
		handlers: handlers,
		serveErr: make(chan error, 1),
	}
}

// Start configures the engine, registers routes, and serves until the
// listener is closed by Shutdown. It blocks; unexpected failures are also
// reported on ServeErr() for a caller that started it in a goroutine.
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Server.Host, s.config.Server.Port),
		Handler:      s.engine,
		ReadTimeout:  s.config.Server.ReadTimeout,
		WriteTimeout: s.config.Server.WriteTimeout,
	}

	s.logger.WithField("port", s.config.Server.Port).Info("starting HTTP server")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.serveErr <- err
		return err
	}
	return nil
}

// ServeErr reports unexpected listener failures to a caller monitoring the
// server from a separate goroutine (internal/app's Start loop).
func (s *Server) ServeErr() <-chan error {
	return s.serveErr
}

// setupRoutes registers the middleware chain and the two routes spec.md §6
// names, directly on the engine root — mirroring the teacher's direct
// registration of /health before any route group.
func (s *Server) setupRoutes() {
	s.engine.Use(middleware.RequestID())
	s.engine.Use(middleware.Logger(s.logger))
	s.engine.Use(middleware.Recovery(s.logger))
	s.engine.Use(middleware.Metrics())

	s.engine.GET("/", s.handlers.Mesh.Check)
	s.engine.POST("/", s.handlers.Mesh.Collect)

	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
