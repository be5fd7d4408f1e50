// Package server exposes the search engine over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/koustreak/scout/internal/config"
	"github.com/koustreak/scout/internal/errs"
	"github.com/koustreak/scout/internal/export"
	"github.com/koustreak/scout/internal/logger"
	"github.com/koustreak/scout/internal/search"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Options configures a Server.
type Options struct {
	Version string

	// MaxSize caps the hits of one search. Zero means config.MaxSearchSize.
	MaxSize int

	// Exporter renders exports. Nil exports JSON manifests inline.
	Exporter *export.Exporter

	Logger *logger.Logger
}

// Server routes HTTP requests to a search engine.
type Server struct {
	engine   *search.Engine
	exporter *export.Exporter
	version  string
	maxSize  int
	log      *logger.Logger
	router   chi.Router
}

// New builds a Server for engine.
func New(engine *search.Engine, opts Options) *Server {
	base := opts.Logger
	if base == nil {
		base = logger.Nop()
	}
	log := base.Component("server")

	s := &Server{
		engine:   engine,
		exporter: opts.Exporter,
		version:  opts.Version,
		maxSize:  opts.MaxSize,
		log:      log,
	}
	if s.exporter == nil {
		s.exporter = export.New(engine, nil, export.WithLogger(base))
	}
	if s.maxSize <= 0 || s.maxSize > config.MaxSearchSize {
		s.maxSize = config.MaxSearchSize
	}
	if s.version == "" {
		s.version = "dev"
	}
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(requestID(s.log))
	r.Use(instrument)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health", s.handleHealth)
	r.Get("/stats", s.handleStats)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Get("/schema", s.handleSchema)
	r.Get("/tables", s.handleTables)
	r.Get("/tables/{table}", s.handleTable)
	r.Get("/tables/{table}/fields", s.handleFields)
	r.Post("/tables/{table}/fts", s.handleCreateIndex)

	r.Post("/search/{table}", s.handleSearch)
	r.Get("/search/{table}", s.handleSimpleSearch)
	r.Get("/export/{table}", s.handleExport)

	r.Post("/switch-database", s.handleSwitch)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, errs.Newf(errs.ErrKindNotFound, "no route for %s %s", r.Method, r.URL.Path))
	})
	return r
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string, cfg config.ServerConfig) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.InfoWith("listening", map[string]any{"addr": addr})
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errs.Wrap(errs.ErrKindConnectionFailed, "http server failed", err)
	case <-ctx.Done():
	}

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	s.log.Info("shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errs.Wrap(errs.ErrKindTimeout, "http server shutdown", err)
	}
	return nil
}
