package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MeKo-Tech/hudscan/internal/extract"
	"github.com/MeKo-Tech/hudscan/internal/region"
	"github.com/MeKo-Tech/hudscan/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServer_HealthHandler(t *testing.T) {
	server, _ := newTestServer(t, "")

	tests := []struct {
		name           string
		method         string
		expectedStatus int
		checkResponse  bool
	}{
		{name: "GET request success", method: "GET", expectedStatus: http.StatusOK, checkResponse: true},
		{name: "POST request not allowed", method: "POST", expectedStatus: http.StatusMethodNotAllowed},
		{name: "PUT request not allowed", method: "PUT", expectedStatus: http.StatusMethodNotAllowed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/health", nil)
			w := httptest.NewRecorder()

			server.healthHandler(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			if tt.checkResponse {
				var response HealthResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
				assert.Equal(t, "healthy", response.Status)
				assert.Equal(t, "dev", response.Version)
				assert.NotEmpty(t, response.Time)
			}
		})
	}
}

func TestServer_RegionsHandler(t *testing.T) {
	server, _ := newTestServer(t, "")

	w := httptest.NewRecorder()
	server.regionsHandler(w, httptest.NewRequest(http.MethodGet, "/regions", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var response RegionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, 5, response.Count)
	assert.Equal(t, region.FieldTime, response.Regions[0].Name)
	assert.Equal(t, []int{0, 0, 40, 10}, response.Regions[0].Rect)
	assert.True(t, response.Regions[0].Threshold)

	w = httptest.NewRecorder()
	server.regionsHandler(w, httptest.NewRequest(http.MethodDelete, "/regions", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestServer_RegionsDefaultCatalog(t *testing.T) {
	server, err := NewServer(Config{Extractor: extract.New(testutil.NewScriptedRecognizer())})
	require.NoError(t, err)

	w := httptest.NewRecorder()
	server.regionsHandler(w, httptest.NewRequest(http.MethodGet, "/regions", nil))

	var response RegionsResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, len(region.DefaultCatalog().All()), response.Count)
}

func TestNewServer(t *testing.T) {
	_, err := NewServer(Config{})
	require.Error(t, err)

	rec := testutil.NewScriptedRecognizer()
	server, err := NewServer(Config{Extractor: extract.New(rec), Closer: rec})
	require.NoError(t, err)
	assert.Equal(t, 1, server.workers)
	assert.Equal(t, "*", server.corsOrigin)
	require.NoError(t, server.Close())
	assert.True(t, rec.Closed())
}

func TestSetupRoutes(t *testing.T) {
	server, _ := newTestServer(t, "")
	mux := http.NewServeMux()
	server.SetupRoutes(mux)
	ts := httptest.NewServer(mux)
	defer ts.Close()

	for _, path := range []string{"/health", "/regions", "/metrics"} {
		resp, err := http.Get(ts.URL + path)
		require.NoError(t, err, path)
		_ = resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}
}
