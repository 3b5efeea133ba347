// Package web serves the browser UI, the JSON API and the operational
// endpoints of the order intake tool.
package web

import (
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/phuslu/log"

	"github.com/a3tai/order-intake/internal/auth"
	"github.com/a3tai/order-intake/internal/export"
	"github.com/a3tai/order-intake/internal/intake"
	"github.com/a3tai/order-intake/internal/metrics"
	"github.com/a3tai/order-intake/internal/rules"
)

//go:embed templates/*.html
var templateFS embed.FS

// Deps are the services the handlers call into.
type Deps struct {
	Intake        *intake.Service
	Editor        *rules.Editor
	Exporter      *export.Exporter
	Auth          *auth.Manager
	Metrics       *metrics.Metrics
	Logger        *log.Logger
	MaxUploadSize int64
	Version       string
}

// Server manages the HTTP server and routes
type Server struct {
	deps   Deps
	store  *rules.Store
	pages  *template.Template
	router *http.ServeMux
	server *http.Server
	logger *log.Logger
}

// New creates the server. It does not start listening.
func New(addr string, deps Deps) (*Server, error) {
	if deps.Logger == nil {
		deps.Logger = &log.DefaultLogger
	}

	pages, err := template.New("").Funcs(templateFuncs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
	}

	s := &Server{
		deps:   deps,
		store:  deps.Intake.Store(),
		pages:  pages,
		logger: deps.Logger,
	}
	s.router = s.setupRoutes()

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.withMiddleware(s.router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      5 * time.Minute, // OCR of long scans
		IdleTimeout:       60 * time.Second,
	}

	return s, nil
}

// Handler returns the fully wrapped handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start serves until Shutdown is called.
func (s *Server) Start() error {
	s.logger.Info().
		Str("address", s.server.Addr).
		Str("version", s.deps.Version).
		Bool("admin", s.deps.Auth.Enabled()).
		Msg("HTTP server starting")
	s.logger.Info().Str("url", "http://"+s.server.Addr).Msg("Web UI available")

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info().Msg("Shutting down HTTP server...")

	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	s.logger.Info().Msg("HTTP server stopped")
	return nil
}

func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()
	admin := s.deps.Auth.RequireAdmin

	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("POST /login", s.handleLogin)
	mux.HandleFunc("POST /extract", s.handleExtract)
	mux.HandleFunc("POST /export/{format}", s.handleExport)
	mux.HandleFunc("POST /submit", s.handleSubmit)

	mux.Handle("POST /admin/customers", admin(http.HandlerFunc(s.handleCreateCustomer)))
	mux.Handle("POST /admin/customers/delete", admin(http.HandlerFunc(s.handleDeleteCustomer)))
	mux.Handle("POST /admin/rules", admin(http.HandlerFunc(s.handleSaveRules)))
	mux.Handle("POST /admin/rules/check", admin(http.HandlerFunc(s.handleCheckRules)))

	mux.HandleFunc("GET /api/customers", s.handleAPICustomers)
	mux.Handle("GET /api/customers/{customer}/rules", admin(http.HandlerFunc(s.handleAPIRules)))
	mux.HandleFunc("POST /api/extract", s.handleAPIExtract)

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.Handle("GET /metrics", s.deps.Metrics.Handler())

	return mux
}
