package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/testsets/internal/config"
	"github.com/JonMunkholm/testsets/internal/core"
	"github.com/JonMunkholm/testsets/internal/store/memory"
)

func testConfig() *config.Config {
	return &config.Config{
		Ingest:  config.IngestConfig{Timeout: time.Minute, MaxConcurrent: 1, MaxWaitTime: time.Second, MaxBodySize: 1 << 20},
		Metrics: config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

func newTestServer(t *testing.T, cfg *config.Config, connect core.Connector) (*Server, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	svc := core.NewService(connect, core.ServiceConfig{Timeout: time.Minute}, core.NewMetrics(reg))
	return NewServer(svc, cfg, reg), reg
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSaveTestSet_Success(t *testing.T) {
	fixture, err := os.ReadFile("../core/testdata/sample_test_set.json")
	require.NoError(t, err)

	st := memory.New()
	srv, _ := newTestServer(t, testConfig(), core.StaticConnector(st))

	req := httptest.NewRequest(http.MethodPost, "/api/test-sets", strings.NewReader(string(fixture)))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, float64(13), body["rows_upserted"])
	assert.NotEmpty(t, body["submission_id"])
	assert.Equal(t, 1, st.Count("test_forms"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestSaveTestSet_MissingRoot(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), core.StaticConnector(memory.New()))

	req := httptest.NewRequest(http.MethodPost, "/api/test-sets", strings.NewReader(`{"sections":[]}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "No test_forms data provided", body["message"])
	assert.Equal(t, "VAL001", body["code"])
	assert.Equal(t, float64(0), body["rows_upserted"])
}

func TestSaveTestSet_MalformedJSON(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), core.StaticConnector(memory.New()))

	req := httptest.NewRequest(http.MethodPost, "/api/test-sets", strings.NewReader(`{"test_forms": [`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "VAL002", decodeBody(t, rec)["code"])
}

func TestSaveTestSet_BodyTooLarge(t *testing.T) {
	cfg := testConfig()
	cfg.Ingest.MaxBodySize = 16
	srv, _ := newTestServer(t, cfg, core.StaticConnector(memory.New()))

	req := httptest.NewRequest(http.MethodPost, "/api/test-sets",
		strings.NewReader(`{"test_forms":[{"name":"a very long practice test name"}]}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestSaveTestSet_ConfigurationError(t *testing.T) {
	connect := func(context.Context) (core.Store, error) {
		return nil, errors.New("SUPABASE_URL and SUPABASE_API_KEY must be set")
	}
	srv, _ := newTestServer(t, testConfig(), connect)

	req := httptest.NewRequest(http.MethodPost, "/api/test-sets", strings.NewReader(`{"test_forms":[{"name":"x"}]}`))
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "CFG001", body["code"])
	assert.Contains(t, body["message"], "SUPABASE_URL")
}

func TestAPIKeyRequired(t *testing.T) {
	cfg := testConfig()
	cfg.Security = config.SecurityConfig{RequireAPIKey: true, APIKeys: []string{"k1"}}
	srv, _ := newTestServer(t, cfg, core.StaticConnector(memory.New()))

	tests := []struct {
		name string
		key  string
		want int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"wrong", "nope", http.StatusForbidden},
		{"valid", "k1", http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/test-sets", strings.NewReader(`{"test_forms":[{"name":"x"}]}`))
			if tt.key != "" {
				req.Header.Set("X-API-Key", tt.key)
			}
			rec := httptest.NewRecorder()
			srv.Router().ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code, rec.Body.String())
		})
	}
}

func TestHealthAndStatus(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), core.StaticConnector(memory.New()))

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	rec = httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/test-sets/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, float64(0), body["active"])
	assert.Equal(t, float64(1), body["max_concurrent"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, testConfig(), core.StaticConnector(memory.New()))

	req := httptest.NewRequest(http.MethodPost, "/api/test-sets", strings.NewReader(`{"test_forms":[{"name":"x"}]}`))
	srv.Router().ServeHTTP(httptest.NewRecorder(), req)

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `testset_submissions_total{status="success"} 1`)
}

func TestMetricsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.Metrics.Enabled = false
	srv, _ := newTestServer(t, cfg, core.StaticConnector(memory.New()))

	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestStatusFor(t *testing.T) {
	remote := &core.RemoteWriteError{Kind: core.KindQuestion, Attempts: 4, Err: errors.New("connection refused")}
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"success", nil, http.StatusOK},
		{"busy", core.ErrTooManySubmissions, http.StatusServiceUnavailable},
		{"config", &core.ConfigurationError{Err: errors.New("unset")}, http.StatusServiceUnavailable},
		{"validation", &core.ValidationError{Err: core.ErrMissingRoot}, http.StatusUnprocessableEntity},
		{"unresolved", &core.UnresolvedReferenceError{Kind: core.KindPart}, http.StatusUnprocessableEntity},
		{"remote", remote, http.StatusBadGateway},
		{"cancelled", &core.CancelledError{Err: context.Canceled}, http.StatusGatewayTimeout},
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := core.Result{Status: core.StatusSuccess}
			if tt.err != nil {
				res = core.Result{Status: core.StatusError, Err: tt.err}
			}
			assert.Equal(t, tt.want, statusFor(res))
		})
	}
}
