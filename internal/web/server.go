// Package web provides the HTTP server and handlers for the resume matching UI.
package web

import (
	"context"
	"embed"
	"io/fs"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/ResumeMatch/internal/config"
	"github.com/JonMunkholm/ResumeMatch/internal/matchclient"
	"github.com/JonMunkholm/ResumeMatch/internal/metrics"
	"github.com/JonMunkholm/ResumeMatch/internal/resultstore"
	"github.com/JonMunkholm/ResumeMatch/internal/web/middleware"
	"github.com/JonMunkholm/ResumeMatch/internal/web/templates"
)

//go:embed static
var staticFiles embed.FS

// sweepInterval is how often idle rate limiter entries are dropped.
const sweepInterval = time.Minute

// Server is the HTTP server for the resume matching frontend.
type Server struct {
	cfg     *config.Config
	client  *matchclient.Client
	store   *resultstore.Store
	metrics *metrics.Metrics
	router  *chi.Mux
	server  *http.Server

	generalLimiter *middleware.RateLimiter
	submitLimiter  *middleware.RateLimiter
}

// NewServer wires the router. m may be nil, in which case /metrics is not served.
func NewServer(cfg *config.Config, client *matchclient.Client, store *resultstore.Store, m *metrics.Metrics) *Server {
	s := &Server{
		cfg:     cfg,
		client:  client,
		store:   store,
		metrics: m,
		router:  chi.NewRouter(),
	}
	if cfg.Rate.Enabled {
		s.generalLimiter = middleware.NewRateLimiter(cfg.Rate.RequestsPerMinute, time.Minute, s.rateLimited)
		s.submitLimiter = middleware.NewRateLimiter(cfg.Rate.SubmitLimit, time.Minute, s.rateLimited)
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(chimw.RequestID)
	s.router.Use(middleware.TrustedRealIP(s.cfg.Security.TrustedProxies))
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Compress(5))
	s.router.Use(middleware.SecurityHeaders(s.cfg.Security.EnableCSP))
	if s.metrics != nil {
		s.router.Use(middleware.Metrics(s.metrics))
	}
	if s.generalLimiter != nil {
		s.router.Use(s.generalLimiter.Handler)
	}
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	staticFS, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	s.router.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	s.router.Get("/", s.handleIndex)
	s.router.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler())
	}

	s.router.Post(templates.ExportPath, s.handleExport)
	s.router.Get("/download/{filename}", s.handleDownload)

	// Submissions reach the matching service, so they get a tighter limit.
	s.router.Group(func(r chi.Router) {
		if s.submitLimiter != nil {
			r.Use(s.submitLimiter.Handler)
		}
		r.Post("/submit", s.handleSubmit)
		r.Post("/api/match", s.handleAPIMatch)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	sc := s.cfg.Server
	s.server = &http.Server{
		Addr:         sc.Addr(),
		Handler:      s.router,
		ReadTimeout:  sc.ReadTimeout,
		WriteTimeout: sc.WriteTimeout,
		IdleTimeout:  sc.IdleTimeout,
	}

	slog.Info("starting server", "addr", sc.Addr(), "upstream", s.cfg.Upstream.URL)
	err := s.server.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// SweepLimiters drops idle rate limiter entries until ctx is done.
func (s *Server) SweepLimiters(ctx context.Context) {
	if s.generalLimiter == nil {
		return
	}
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.generalLimiter.Sweep()
			s.submitLimiter.Sweep()
		}
	}
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}
