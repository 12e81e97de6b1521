package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveHealth(t *testing.T, h http.Handler) (int, DetailedHealthResponse, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var detailed DetailedHealthResponse
	var basic HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detailed))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &basic))
	return rec.Code, detailed, basic
}

func TestHealthChecker_Liveness(t *testing.T) {
	h := NewHealthChecker(nil)
	h.SetReady(false)

	code, _, resp := serveHealth(t, h.LivenessHandler())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, healthStatusOK, resp.Status)
}

func TestHealthChecker_Readiness(t *testing.T) {
	tests := []struct {
		name       string
		ready      bool
		shutdown   bool
		wantStatus int
		wantChecks map[string]string
	}{
		{
			name:       "ready",
			ready:      true,
			wantStatus: http.StatusOK,
			wantChecks: map[string]string{"ready": healthStatusOK, "shutdown": healthStatusOK},
		},
		{
			name:       "not ready",
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"ready": healthStatusNotReady, "shutdown": healthStatusOK},
		},
		{
			name:       "shutting down",
			ready:      true,
			shutdown:   true,
			wantStatus: http.StatusServiceUnavailable,
			wantChecks: map[string]string{"ready": healthStatusOK, "shutdown": healthStatusShuttingDown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sc := NewServerContext(context.Background(), nil, &fakePipeline{}, nil, true)
			if tt.shutdown {
				require.NoError(t, sc.Shutdown())
			}
			h := NewHealthChecker(sc)
			h.SetReady(tt.ready)

			code, _, resp := serveHealth(t, h.ReadinessHandler())
			assert.Equal(t, tt.wantStatus, code)
			assert.Equal(t, tt.wantChecks, resp.Checks)
		})
	}
}

func TestHealthChecker_Detailed(t *testing.T) {
	t.Run("all components configured", func(t *testing.T) {
		sc := NewServerContext(context.Background(), &fakeAuthorizer{configured: true}, &fakePipeline{}, nil, true)
		code, resp, _ := serveHealth(t, NewHealthChecker(sc).DetailedHealthHandler())

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, healthStatusOK, resp.Status)
		assert.Equal(t, map[string]string{"google_oauth": healthStatusOK, "ai_model": healthStatusOK}, resp.Components)
		assert.NotEmpty(t, resp.Uptime)
	})

	t.Run("missing ai model is degraded", func(t *testing.T) {
		sc := NewServerContext(context.Background(), &fakeAuthorizer{configured: true}, &fakePipeline{}, nil, false)
		code, resp, _ := serveHealth(t, NewHealthChecker(sc).DetailedHealthHandler())

		assert.Equal(t, http.StatusOK, code)
		assert.Equal(t, healthStatusDegraded, resp.Status)
		assert.Equal(t, healthStatusMissing, resp.Components["ai_model"])
	})

	t.Run("not ready", func(t *testing.T) {
		sc := NewServerContext(context.Background(), nil, &fakePipeline{}, nil, true)
		h := NewHealthChecker(sc)
		h.SetReady(false)
		code, resp, _ := serveHealth(t, h.DetailedHealthHandler())

		assert.Equal(t, http.StatusServiceUnavailable, code)
		assert.Equal(t, healthStatusNotReady, resp.Status)
		assert.Equal(t, healthStatusMissing, resp.Components["google_oauth"])
	})
}

func TestServerContext_Shutdown(t *testing.T) {
	sessions := NewSessionManager(SessionConfig{})
	sc := NewServerContext(context.Background(), nil, &fakePipeline{}, sessions, false)

	assert.False(t, sc.IsShutdown())
	require.NoError(t, sc.Shutdown())
	require.NoError(t, sc.Shutdown())
	assert.True(t, sc.IsShutdown())
	assert.ErrorIs(t, sc.Context().Err(), context.Canceled)
}

func TestServer_ShutdownMarksNotReady(t *testing.T) {
	srv, err := New(context.Background(), Config{Pipeline: &fakePipeline{}})
	require.NoError(t, err)

	require.NoError(t, srv.Shutdown(context.Background()))
	assert.False(t, srv.health.IsReady())
	assert.True(t, srv.sc.IsShutdown())

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
