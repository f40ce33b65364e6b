// Package web serves the publication reports: run history, per-country
// validation reports, on-demand publication and the web extracts read by the
// map front-end.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/JonMunkholm/facility-etl/internal/config"
	"github.com/JonMunkholm/facility-etl/internal/history"
	"github.com/JonMunkholm/facility-etl/internal/publish"
	"github.com/JonMunkholm/facility-etl/internal/schema"
	mw "github.com/JonMunkholm/facility-etl/internal/web/middleware"
)

// Server is the report HTTP server.
type Server struct {
	runner  *publish.Runner
	history history.Lister
	cfg     config.ServerConfig
	router  *chi.Mux
	server  *http.Server
}

// NewServer creates a new Server instance.
func NewServer(runner *publish.Runner, hist history.Lister, cfg config.ServerConfig) *Server {
	s := &Server{
		runner:  runner,
		history: hist,
		cfg:     cfg,
		router:  chi.NewRouter(),
	}
	s.setupMiddleware()
	s.setupRoutes()
	return s
}

// setupMiddleware configures middleware for all routes.
func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.Logger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Compress(5))

	origins := s.cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	s.router.Use(cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}).Handler)
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	// Pages
	s.router.Get("/", s.handleIndex)
	s.router.Get("/report/{service}/{cc}", s.handleReportPage)

	// Web extracts for the map front-end
	s.router.Get("/map/{service}", s.handleWebExtract)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/services", s.handleServices)
		r.Get("/runs", s.handleRuns)
		r.Get("/validate/{service}/{cc}", s.handleValidate)
		r.Post("/publish/{service}", s.handlePublish)
	})
}

// Start begins listening for HTTP requests.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         s.cfg.Addr(),
		Handler:      s.router,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout, // 0: publications run inside the request
		IdleTimeout:  s.cfg.IdleTimeout,
	}

	slog.Info("server starting", "addr", s.server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

// Router returns the underlying chi router for testing.
func (s *Server) Router() *chi.Mux {
	return s.router
}

// pipeline resolves the {service} URL parameter.
func (s *Server) pipeline(r *http.Request) (*publish.Pipeline, error) {
	svc, err := schema.ParseService(chi.URLParam(r, "service"))
	if err != nil {
		return nil, &notFoundError{what: "service", err: err}
	}
	p, ok := s.runner.Pipeline(svc)
	if !ok {
		return nil, &notFoundError{what: "service", err: errors.New(string(svc) + " is not published here")}
	}
	return p, nil
}

// writeJSON encodes v as JSON and writes it to w.
// Logs encoding errors since headers are already sent.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("json encode error", "error", err)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
