package apiserver

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerHandlers registers all HTTP handlers
func (s *Server) registerHandlers() {
	s.registerJudgeHandlers()
	s.registerHealthEndpoints()
	s.registerMetricsEndpoint()
}

// registerJudgeHandlers registers the /api/judge endpoints
func (s *Server) registerJudgeHandlers() {
	s.router.HandleFunc("/api/judge/run", s.withMethod(http.MethodPost, s.judge.HandleRun))
	s.router.HandleFunc("/api/judge/config", s.withMethod(http.MethodGet, s.judge.HandleConfig))
	s.router.HandleFunc("/api/judge/config/patch", s.withMethod(http.MethodPost, s.judge.HandleConfigPatch))
	s.router.HandleFunc("/api/judge/problem_states", s.withMethod(http.MethodGet, s.judge.HandleProblemStates))
	s.router.HandleFunc("/api/judge/problem_states/index", s.withMethod(http.MethodGet, s.judge.HandleProblemStateIndex))
	s.router.HandleFunc("/api/judge/reference_views", s.withMethod(http.MethodGet, s.judge.HandleReferenceViews))
	s.router.HandleFunc("/api/judge/ao_sense", s.withMethod(http.MethodGet, s.judge.HandleAoSense))
}

// registerHealthEndpoints registers liveness and readiness probes
func (s *Server) registerHealthEndpoints() {
	s.router.HandleFunc("/healthz", s.withMethod(http.MethodGet, s.handleHealth))
	s.router.HandleFunc("/ready", s.withMethod(http.MethodGet, s.handleReady))
}

// registerMetricsEndpoint exposes the Prometheus registry
func (s *Server) registerMetricsEndpoint() {
	if s.gatherer == nil {
		s.logger.Debug("No metrics registry configured, skipping /metrics")
		return
	}
	s.router.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
}
