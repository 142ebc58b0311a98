// Package app wires the mesh telemetry consolidator's components into a
// runnable server: configuration, outbound clients, the pipeline, and the
// HTTP transport.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"meshconsolidator/internal/clients/orchestrator"
	"meshconsolidator/internal/clients/zipkin"
	"meshconsolidator/internal/config"
	meshsvc "meshconsolidator/internal/core/services/mesh"
	"meshconsolidator/pkg/logging"

	httpTransport "meshconsolidator/internal/transport/http"
	"meshconsolidator/internal/transport/http/handlers"
)

// App wires and runs the HTTP server. Process-level (startup/shutdown)
// logging uses the teacher's slog-based pkg/logging; per-pipeline-stage
// logging (inside the pipeline components) uses logrus instead, matching
// the teacher's observability services.
type App struct {
	config       *config.Config
	logger       *slog.Logger
	httpServer   *httpTransport.Server
	shutdownOnce sync.Once
}

// NewServer constructs the application from configuration: outbound
// clients, the pipeline orchestrator, and the HTTP transport.
func NewServer(cfg *config.Config) (*App, error) {
	logger := logging.NewLoggerWithFormat(
		logging.ParseLevel(cfg.Logging.Level),
		cfg.Logging.Format,
	)

	tracingClient := zipkin.New(zipkin.Config{
		BaseURL: cfg.Zipkin.URL,
		Timeout: cfg.Zipkin.Timeout,
	})

	orchestratorClient, err := orchestrator.New(orchestrator.Config{
		BaseURL:     cfg.Orchestrator.Host,
		IsInCluster: cfg.Orchestrator.IsInCluster,
		Timeout:     cfg.Orchestrator.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize orchestrator client: %w", err)
	}

	dedup := meshsvc.NewDedupCache()
	stageLogger := newStageLogger(cfg)
	pipeline := meshsvc.NewPipelineOrchestrator(tracingClient, orchestratorClient, dedup, stageLogger)

	h := handlers.NewHandlers(pipeline, stageLogger)
	server := httpTransport.NewServer(cfg, stageLogger, h)

	return &App{
		config:     cfg,
		logger:     logger,
		httpServer: server,
	}, nil
}

// newStageLogger builds the logrus logger used by pipeline components,
// matching the level/format chosen for process logging.
func newStageLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()
	if strings.EqualFold(cfg.Logging.Format, "text") {
		logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	logger.SetLevel(parseLogrusLevel(cfg.Logging.Level))
	return logger
}

func parseLogrusLevel(level string) logrus.Level {
	parsed, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return logrus.InfoLevel
	}
	return parsed
}

// Start launches the HTTP server in a background goroutine and returns
// immediately; listener failures are logged rather than returned.
func (a *App) Start() error {
	a.logger.Info("starting mesh telemetry consolidator")

	go func() {
		if err := a.httpServer.Start(); err != nil {
			a.logger.Error("HTTP server failed unexpectedly", "error", err)
		}
	}()

	go func() {
		if err := <-a.httpServer.ServeErr(); err != nil {
			a.logger.Error("HTTP server reported a listener failure", "error", err)
		}
	}()

	a.logger.Info("mesh telemetry consolidator started")
	return nil
}

// Shutdown gracefully stops the HTTP server, running at most once.
func (a *App) Shutdown(ctx context.Context) error {
	var shutdownErr error
	a.shutdownOnce.Do(func() {
		shutdownErr = a.doShutdown(ctx)
	})
	return shutdownErr
}

func (a *App) doShutdown(ctx context.Context) error {
	a.logger.Info("shutting down mesh telemetry consolidator")

	done := make(chan error, 1)
	go func() {
		done <- a.httpServer.Shutdown(ctx)
	}()

	select {
	case err := <-done:
		if err != nil {
			a.logger.Error("failed to shut down HTTP server", "error", err)
			return err
		}
		a.logger.Info("shutdown completed")
		return nil
	case <-ctx.Done():
		a.logger.Warn("shutdown timeout exceeded, forcing shutdown")
		return ctx.Err()
	}
}

// GetConfig returns the application configuration.
func (a *App) GetConfig() *config.Config {
	return a.config
}

// GetLogger returns the process-level logger.
func (a *App) GetLogger() *slog.Logger {
	return a.logger
}
