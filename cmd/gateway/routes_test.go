package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syntra-settlement/internal/gateway/handlers"
	"syntra-settlement/internal/utils"
)

type stubWorker bool

func (s stubWorker) IsSettlementWorkerHealthy(context.Context) bool { return bool(s) }

func newTestRouter(t *testing.T, worker WorkerHealth) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	tokens, err := utils.NewTokenManager("test-secret")
	require.NoError(t, err)
	return newRouter(handlers.NewSettlementHTTPHandler(handlers.SettlementDeps{}), tokens, nil, worker)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(t, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"healthy"`)
}

func TestDetailedHealth(t *testing.T) {
	for name, tc := range map[string]struct {
		worker WorkerHealth
		want   string
	}{
		"serving":     {stubWorker(true), "healthy"},
		"not serving": {stubWorker(false), "degraded"},
		"no client":   {nil, "degraded"},
	} {
		t.Run(name, func(t *testing.T) {
			r := newTestRouter(t, tc.worker)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health/detailed", nil))
			require.Equal(t, http.StatusOK, w.Code)

			var body map[string]interface{}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.Equal(t, tc.want, body["overall_status"])
		})
	}
}

func TestPointsRoutesRequireToken(t *testing.T) {
	r := newTestRouter(t, nil)
	for _, route := range []struct{ method, path string }{
		{http.MethodPost, "/api/v1/points/spend"},
		{http.MethodGet, "/api/v1/points/balance"},
	} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(route.method, route.path, nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code, route.path)
	}
}
