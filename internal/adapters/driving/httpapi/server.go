// Package httpapi exposes the ingestion and query services as a JSON REST API.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/custodia-labs/sercha-filings/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-filings/internal/logger"
)

var (
	// ErrMissingIngestionService is returned when the ingestion service is not provided.
	ErrMissingIngestionService = errors.New("httpapi: ingestion service is required")

	// ErrMissingQueryService is returned when the query service is not provided.
	ErrMissingQueryService = errors.New("httpapi: query service is required")
)

// Ports aggregates the driving ports served by the API.
type Ports struct {
	Ingestion driving.IngestionService
	Query     driving.QueryService

	// Company is optional; without it GET /api/v1/companies/{ticker} returns 404.
	Company driving.CompanyService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Ingestion == nil {
		return ErrMissingIngestionService
	}
	if p.Query == nil {
		return ErrMissingQueryService
	}
	return nil
}

// Check reports whether a dependency is usable. Used by the readiness probe.
type Check func(ctx context.Context) error

// Option configures a Server.
type Option func(*Server)

// WithReadinessCheck adds a named check to /health/readiness.
func WithReadinessCheck(name string, check Check) Option {
	return func(s *Server) {
		s.checks[name] = check
	}
}

// WithMCPHandler mounts a streamable MCP endpoint at /mcp.
func WithMCPHandler(h http.Handler) Option {
	return func(s *Server) {
		s.mcp = h
	}
}

// WithRequestTimeout bounds the handling time of API requests.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// Server is the HTTP server for the filings API.
type Server struct {
	ports   Ports
	log     *zap.Logger
	metrics *Metrics
	checks  map[string]Check
	mcp     http.Handler
	timeout time.Duration
	server  *http.Server
}

// NewServer creates a server with the given ports.
func NewServer(ports Ports, opts ...Option) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}
	s := &Server{
		ports:   ports,
		log:     logger.Named("http"),
		metrics: NewMetrics(),
		checks:  make(map[string]Check),
		timeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Metrics returns the server's collectors.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Router builds the chi router with all routes and middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.log))
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.Middleware)

	r.Get("/health", s.handleHealth)
	r.Get("/health/liveness", s.handleHealth)
	r.Get("/health/readiness", s.handleReadiness)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Timeout(s.timeout))

		r.Post("/companies/process", s.handleProcess)
		r.Get("/companies/{ticker}", s.handleCompany)
		r.Get("/companies/{ticker}/status", s.handleTickerStatus)
		r.Post("/companies/{ticker}/cancel", s.handleTickerCancel)

		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleJobStatus)
		r.Post("/jobs/{id}/cancel", s.handleJobCancel)

		r.Post("/query", s.handleQuery)
	})

	if s.mcp != nil {
		r.Handle("/mcp", s.mcp)
		r.Handle("/mcp/*", s.mcp)
	}
	return r
}

// Start listens on addr and blocks until the server stops.
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.Info("starting server", zap.String("addr", addr))
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
