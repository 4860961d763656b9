package apiserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/geox/judge/internal/api"
	"github.com/geox/judge/internal/evidence"
	"github.com/geox/judge/internal/governance"
	"github.com/geox/judge/internal/judge"
	"github.com/geox/judge/internal/logging"
	"github.com/geox/judge/internal/runcache"
)

const ssotJSON = `{
  "schema_version": "1.0.0",
  "name": "server_test",
  "required_metrics": ["soil_moisture_vwc"],
  "evidence": {"sample_types": ["raw_sample_v1"], "marker_types": ["marker_v1"]},
  "sufficiency": {"min_total_samples": 4, "min_samples_per_required_metric": 2},
  "time_coverage": {"max_allowed_gap_ms": 180000, "min_coverage_ratio": 0.8, "expected_interval_ms": 60000},
  "qc": {"bad_pct_threshold": 0.2, "suspect_pct_threshold": 0.3},
  "reference": {"enable": true, "kinds_enabled": ["WITHIN_UNIT_HISTORY"]},
  "conflict": {"min_overlap_ratio": 0.5, "delta_numeric_threshold": 5, "min_points_in_overlap": 3},
  "marker": {"exclusion_kinds": ["MAINTENANCE"]},
  "determinism": {"tie_breaker": "fact_id_asc"}
}`

func newTestServer(t *testing.T, ready bool) *Server {
	t.Helper()
	ssot, err := governance.ParseSSOT([]byte(ssotJSON), "server_test.json")
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	runs, err := runcache.New(8)
	require.NoError(t, err)
	gov := governance.NewGovernor(governance.StaticSource{SSOT: ssot}, governance.WithMetrics(governance.NewMetrics(reg)))
	pipeline := judge.NewPipeline(gov, evidence.NewMemoryReader(),
		judge.WithMetrics(judge.NewMetrics(reg)),
		judge.WithRecorder(runs))
	handler := api.NewJudgeHandler(pipeline, gov, runs, logging.GetLogger("apiserver_test"),
		noop.NewTracerProvider().Tracer("apiserver_test"))

	return New("127.0.0.1:0", handler, reg, ReadinessFunc(func() bool { return ready }))
}

func serve(s *Server, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestServer_Routes(t *testing.T) {
	s := newTestServer(t, true)

	tests := []struct {
		method string
		path   string
		body   string
		status int
	}{
		{http.MethodGet, "/healthz", "", http.StatusOK},
		{http.MethodGet, "/ready", "", http.StatusOK},
		{http.MethodGet, "/api/judge/config", "", http.StatusOK},
		{http.MethodGet, "/api/judge/problem_states", "", http.StatusOK},
		{http.MethodGet, "/api/judge/problem_states/index?as_of_ts=now", "", http.StatusOK},
		{http.MethodGet, "/api/judge/reference_views?limit=3", "", http.StatusOK},
		{http.MethodGet, "/api/judge/ao_sense", "", http.StatusOK},
		{http.MethodPost, "/api/judge/run", `{"scale": "group", "subjectRef": {"groupId": "g1"}, "window": {"startTs": 0, "endTs": 60000}}`, http.StatusOK},
		{http.MethodPost, "/api/judge/config/patch", `{}`, http.StatusBadRequest},
		{http.MethodGet, "/metrics", "", http.StatusOK},
		{http.MethodGet, "/api/judge/unknown", "", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := serve(s, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}
}

func TestServer_MethodEnforcement(t *testing.T) {
	s := newTestServer(t, true)

	rr := serve(s, http.MethodGet, "/api/judge/run", "")

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
	assert.Equal(t, http.MethodPost, rr.Header().Get("Allow"))
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "METHOD_NOT_ALLOWED", body["error"])
}

func TestServer_Preflight(t *testing.T) {
	s := newTestServer(t, true)

	rr := serve(s, http.MethodOptions, "/api/judge/run", "")

	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestServer_NotReady(t *testing.T) {
	s := newTestServer(t, false)

	rr := serve(s, http.MethodGet, "/ready", "")

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	assert.JSONEq(t, `{"ready": false}`, rr.Body.String())
}

func TestServer_MetricsAfterRun(t *testing.T) {
	s := newTestServer(t, true)
	rr := serve(s, http.MethodPost, "/api/judge/run",
		`{"scale": "group", "subjectRef": {"groupId": "g1"}, "window": {"startTs": 0, "endTs": 60000}}`)
	require.Equal(t, http.StatusOK, rr.Code)

	rr = serve(s, http.MethodGet, "/metrics", "")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `judge_runs_total{outcome="declared"} 1`)
	assert.Contains(t, rr.Body.String(), `judge_problem_states_total{problem_type="INSUFFICIENT_EVIDENCE"} 1`)
}

func TestServer_Lifecycle(t *testing.T) {
	s := newTestServer(t, true)
	require.NoError(t, s.Start(context.Background()))
	assert.NotEqual(t, "127.0.0.1:0", s.Addr())

	resp, err := http.Get("http://" + s.Addr() + "/healthz")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.JSONEq(t, `{"status": "healthy"}`, string(body))

	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, "API Server", s.Name())
}
