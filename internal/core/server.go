// Package core provides the API chassis for the Earth insights backend. It
// builds a chi router that serves both a local HTTP listener and Lambda
// function URLs, and applies the cross-cutting concerns (recovery, request
// budget, correlation IDs, logging, CORS, metrics, compression) before a
// request reaches an endpoint handler.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/Beez1/bounceinsights/internal/config"
)

// MetricsCollector records API request telemetry.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// Flusher is implemented by collectors that buffer observations.
type Flusher interface {
	Flush(ctx context.Context) error
}

// RouteRegistrar mounts a group of endpoints. Handler packages provide
// registrars so core never imports them.
type RouteRegistrar func(r chi.Router)

// Server holds the dependencies of the API chassis.
type Server struct {
	Config    *config.Config
	Logger    *slog.Logger
	Validator *Validator
	Metrics   MetricsCollector

	// MetricsHandler is served at GET /metrics when set.
	MetricsHandler http.Handler
	HealthProbes   []HealthProbe
	Registrars     []RouteRegistrar

	router *chi.Mux
}

// NewServer validates the required dependencies and prepares an empty
// router. Routes are mounted by MountRoutes once registrars are attached.
func NewServer(cfg *config.Config, logger *slog.Logger) (*Server, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger must not be nil")
	}

	return &Server{
		Config:    cfg,
		Logger:    logger,
		Validator: NewValidator(logger),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the router as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Router returns the underlying chi.Mux.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// Shutdown flushes buffered metrics.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")

	if f, ok := s.Metrics.(Flusher); ok {
		if err := f.Flush(ctx); err != nil {
			s.Logger.Error("error flushing metrics", "error", err)
			return fmt.Errorf("flushing metrics: %w", err)
		}
	}

	s.Logger.Info("server shutdown complete")
	return nil
}
