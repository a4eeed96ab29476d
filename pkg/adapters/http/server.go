// Package http exposes an engine's node catalogue, health and metrics over HTTP.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/registry"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server serves read-only views of a node registry.
type Server struct {
	Registry *registry.Registry
	gatherer prometheus.Gatherer
	logger   *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithGatherer sets the metrics source for /metrics.
// Defaults to prometheus.DefaultGatherer.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithLogger sets the logger for request failures.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewHandler creates the HTTP handler for reg.
func NewHandler(reg *registry.Registry, opts ...Option) http.Handler {
	server := &Server{
		Registry: reg,
		gatherer: prometheus.DefaultGatherer,
		logger:   slog.New(slog.NewJSONHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(server)
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/healthz", server.GetHealth)
	r.Get("/info", server.GetInfo)
	r.Get("/nodes", server.ListNodes)
	r.Get("/nodes/{type}", server.GetNode)
	r.Handle("/metrics", promhttp.HandlerFor(server.gatherer, promhttp.HandlerOpts{}))
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "err", err)
	}
}

// GetHealth handles GET /healthz.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"app":     "lattice-http",
		"version": strings.TrimSpace(lattice.Version),
		"nodes":   s.Registry.Len(),
	})
}

// ListNodes handles GET /nodes. An optional ?category= filters the result.
func (s *Server) ListNodes(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	manifests := []domain.Manifest{}
	for _, m := range s.Registry.Manifests() {
		if category != "" && m.Category != category {
			continue
		}
		manifests = append(manifests, m)
	}
	s.writeJSON(w, http.StatusOK, manifests)
}

// GetNode handles GET /nodes/{type}.
func (s *Server) GetNode(w http.ResponseWriter, r *http.Request) {
	nodeType := chi.URLParam(r, "type")
	m, err := s.Registry.Manifest(nodeType)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, domain.ErrNodeNotFound) {
			status = http.StatusNotFound
		}
		s.logger.Warn("manifest lookup failed", "type", nodeType, "err", err)
		s.writeJSON(w, status, map[string]string{"error": err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, m)
}
