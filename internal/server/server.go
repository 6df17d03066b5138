// Package server exposes the operational HTTP endpoints: health,
// pipeline status, system metrics, manual run trigger and run reports.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/Hoangnph/vnstock-sub000/internal/database"
	"github.com/Hoangnph/vnstock-sub000/internal/domain"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/analysis"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/tracking"
	"github.com/Hoangnph/vnstock-sub000/internal/modules/universe"
	"github.com/Hoangnph/vnstock-sub000/internal/orchestrator"
)

// PipelineRunner is the orchestrator surface the server needs. Narrow
// so handler tests can substitute a fake.
type PipelineRunner interface {
	Run(ctx context.Context, targetEnd time.Time) (*orchestrator.Report, error)
	Running() bool
	LastReport() *orchestrator.Report
}

// Config holds server settings.
type Config struct {
	Port    int
	DevMode bool
}

// Deps carries the server's collaborators.
type Deps struct {
	Databases []*database.DB
	Tracking  *tracking.Repository
	Universe  *universe.Repository
	Runs      *analysis.RunRepository
	Analysis  *analysis.Repository
	Runner    PipelineRunner
	Clock     domain.Clock
	DataDir   string
}

// Server is the HTTP server.
type Server struct {
	router  *chi.Mux
	server  *http.Server
	deps    Deps
	log     zerolog.Logger
	started time.Time
}

// New creates the server and mounts all routes.
func New(cfg Config, deps Deps, log zerolog.Logger) *Server {
	s := &Server{
		router:  chi.NewRouter(),
		deps:    deps,
		log:     log.With().Str("component", "server").Logger(),
		started: time.Now(),
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(60 * time.Second))

	if cfg.DevMode {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
			MaxAge:         300,
		}))
	}

	s.router.Get("/health", s.handleHealth)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/system", s.handleSystem)
		r.Post("/run", s.handleRun)
		r.Get("/report", s.handleReport)
		r.Get("/reports", s.handleReports)
		r.Get("/symbols", s.handleSymbols)
		r.Get("/signals/{symbol}", s.handleSignals)
	})

	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Router returns the mounted router, for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.server.Addr).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests, bounded by ctx.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
