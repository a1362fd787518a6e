// Package server provides the HTTP server and routing for alphascan.
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

	"github.com/aristath/alphascan/internal/database"
	"github.com/aristath/alphascan/internal/metrics"
	"github.com/aristath/alphascan/internal/modules/calibration"
	calibrationhandlers "github.com/aristath/alphascan/internal/modules/calibration/api/handlers"
	"github.com/aristath/alphascan/internal/modules/risk"
	riskhandlers "github.com/aristath/alphascan/internal/modules/risk/api/handlers"
	"github.com/aristath/alphascan/internal/modules/scoring"
	scoringhandlers "github.com/aristath/alphascan/internal/modules/scoring/api/handlers"
	snapshothandlers "github.com/aristath/alphascan/internal/modules/snapshots/api/handlers"
	"github.com/aristath/alphascan/internal/modules/universe"
	universehandlers "github.com/aristath/alphascan/internal/modules/universe/api/handlers"
)

// Config holds the server's collaborators. Nil collaborators leave their
// routes unregistered.
type Config struct {
	Log     zerolog.Logger
	Port    int
	DevMode bool

	Databases  []*database.DB // reported by /health
	Scoring    scoring.Config
	KillSwitch risk.KillSwitchConfig
	Backtester *calibration.Backtester
	Calibrator *calibration.Calibrator
	Snapshots  snapshothandlers.Catalogue
	Prices     universehandlers.PriceStore
	Scans      ScanService
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	cfg    Config
	log    zerolog.Logger
}

// New creates a new HTTP server
func New(cfg Config) *Server {
	s := &Server{
		router: chi.NewRouter(),
		cfg:    cfg,
		log:    cfg.Log.With().Str("component", "server").Logger(),
	}

	s.setupMiddleware(cfg.DevMode)
	s.setupRoutes()

	s.server = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
		// Synchronous scans and calibrations run inside the request
		WriteTimeout: 15 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Router exposes the configured routes.
func (s *Server) Router() http.Handler {
	return s.router
}

// setupMiddleware configures middleware
func (s *Server) setupMiddleware(devMode bool) {
	// Recovery from panics
	s.router.Use(middleware.Recoverer)

	// Request ID
	s.router.Use(middleware.RequestID)

	// Real IP
	s.router.Use(middleware.RealIP)

	// Logging
	s.router.Use(s.loggingMiddleware)

	// CORS
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Compress responses
	if !devMode {
		s.router.Use(middleware.Compress(5))
	}
}

// setupRoutes configures all routes
func (s *Server) setupRoutes() {
	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/metrics", metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		scoringhandlers.NewHandlers(s.cfg.Scoring, s.cfg.Log).RegisterRoutes(r)
		riskhandlers.NewHandlers(s.cfg.KillSwitch, s.cfg.Log).RegisterRoutes(r)

		if s.cfg.Backtester != nil && s.cfg.Calibrator != nil {
			calibrationhandlers.NewHandlers(s.cfg.Backtester, s.cfg.Calibrator, s.cfg.Log).RegisterRoutes(r)
		}
		if s.cfg.Snapshots != nil {
			snapshothandlers.NewHandler(s.cfg.Snapshots, s.cfg.Log).RegisterRoutes(r)
		}
		if s.cfg.Prices != nil {
			universehandlers.NewHandlers(s.cfg.Prices, universe.NewPriceValidator(s.cfg.Log), s.cfg.Log).RegisterRoutes(r)
		}
		if s.cfg.Scans != nil {
			s.registerScanRoutes(r)
		}
	})
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.log.Info().Int("port", s.cfg.Port).Msg("Starting HTTP server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("Shutting down HTTP server")
	return s.server.Shutdown(ctx)
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		s.log.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Dur("duration_ms", time.Since(start)).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("HTTP request")
	})
}
