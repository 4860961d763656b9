// Package apiserver exposes the judge over HTTP.
package apiserver

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/geox/judge/internal/api"
	"github.com/geox/judge/internal/logging"
)

// ReadinessChecker is an interface for checking component readiness
type ReadinessChecker interface {
	IsReady() bool
}

// ReadinessFunc adapts a function to ReadinessChecker.
type ReadinessFunc func() bool

// IsReady calls f.
func (f ReadinessFunc) IsReady() bool {
	return f()
}

// Server handles the judge HTTP API and implements lifecycle.Component
type Server struct {
	addr             string
	server           *http.Server
	logger           *logging.Logger
	judge            *api.JudgeHandler
	gatherer         prometheus.Gatherer
	router           *http.ServeMux
	readinessChecker ReadinessChecker

	mu       sync.Mutex
	listener net.Listener
}

// New creates the API server. gatherer backs /metrics and may be nil.
func New(addr string, judge *api.JudgeHandler, gatherer prometheus.Gatherer, readinessChecker ReadinessChecker) *Server {
	s := &Server{
		addr:             addr,
		logger:           logging.GetLogger("apiserver"),
		judge:            judge,
		gatherer:         gatherer,
		router:           http.NewServeMux(),
		readinessChecker: readinessChecker,
	}

	s.registerHandlers()

	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.corsMiddleware(s.router),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}
	return s
}

// Handler returns the routed handler, including middleware
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start implements the lifecycle.Component interface.
// It binds the listen address before returning so bind errors fail startup.
func (s *Server) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("HTTP server error: %v", err)
		}
	}()

	s.logger.Info("API server listening on %s", ln.Addr())
	return nil
}

// Stop implements the lifecycle.Component interface.
// In-flight requests finish until ctx expires.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping API server...")
	if err := s.server.Shutdown(ctx); err != nil {
		s.logger.Error("HTTP server shutdown error: %v", err)
		return err
	}
	s.logger.Info("API server stopped")
	return nil
}

// Addr returns the bound address, or the configured one before Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// Name implements the lifecycle.Component interface
func (s *Server) Name() string {
	return "API Server"
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = api.WriteJSON(w, map[string]interface{}{"status": "healthy"})
}

// handleReady handles readiness check requests
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	ready := s.readinessChecker == nil || s.readinessChecker.IsReady()
	if ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = api.WriteJSON(w, map[string]interface{}{"ready": ready})
}
