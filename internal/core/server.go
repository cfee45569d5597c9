// Package core provides the HTTP chassis shared by the API: a chi router,
// the global middleware chain, health checks, and the JSON response and
// error envelopes.
package core

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/config"
)

// RouteRegistrar mounts a handler group under /v1.
type RouteRegistrar func(r chi.Router)

// Server holds the router and its cross-cutting dependencies.
type Server struct {
	Config            *config.Config
	Logger            *slog.Logger
	Validator         *Validator
	HealthProbes      []HealthProbe
	V1RouteRegistrars []RouteRegistrar

	// Closers run on Shutdown in registration order.
	Closers []func(ctx context.Context) error

	router *chi.Mux
}

// NewServer creates a Server. Routes are mounted separately by MountRoutes
// so tests can add registrars first.
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
		Validator: NewValidator(),
		router:    chi.NewRouter(),
	}, nil
}

// Handler returns the root http.Handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Shutdown runs the registered closers. The first error is returned after
// every closer has run.
func (s *Server) Shutdown(ctx context.Context) error {
	s.Logger.Info("server shutdown initiated")
	var first error
	for _, closeFn := range s.Closers {
		if err := closeFn(ctx); err != nil {
			s.Logger.Error("shutdown step failed", "error", err)
			if first == nil {
				first = err
			}
		}
	}
	s.Logger.Info("server shutdown complete")
	return first
}
