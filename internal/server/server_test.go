package server

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gorilla/mux"

	"github.com/packetscope/packetscope/internal/config"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	s := New(&config.ServerConfig{
		Port:            0,
		ReadTimeout:     time.Second,
		WriteTimeout:    time.Second,
		ShutdownTimeout: time.Second,
	}, log)
	s.setupRoutes()
	return s
}

func TestServer_HealthEndpoints(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest("GET", "/live", nil)
	rec := httptest.NewRecorder()
	s.GetRouter().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	// No checks registered or run yet, health and readiness are down.
	for _, path := range []string{"/health", "/ready"} {
		req := httptest.NewRequest("GET", path, nil)
		rec := httptest.NewRecorder()
		s.GetRouter().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
	}
}

func TestServer_VersionEndpoint(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest("GET", "/version", nil)
	rec := httptest.NewRecorder()
	s.GetRouter().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Contains(t, body, "version")
}

func TestServer_NotFoundIsJSON(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest("GET", "/no/such/route", nil)
	rec := httptest.NewRecorder()
	s.GetRouter().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
}

func TestServer_RequestIDHeader(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest("GET", "/version", nil)
	rec := httptest.NewRecorder()
	s.GetRouter().ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	// Caller-provided IDs are echoed back.
	req = httptest.NewRequest("GET", "/version", nil)
	req.Header.Set("X-Request-ID", "my-request")
	rec = httptest.NewRecorder()
	s.GetRouter().ServeHTTP(rec, req)
	assert.Equal(t, "my-request", rec.Header().Get("X-Request-ID"))
}

func TestServer_CORSHeaders(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest("GET", "/version", nil)
	rec := httptest.NewRecorder()
	s.GetRouter().ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "GET")
}

func TestServer_AdditionalRoutes(t *testing.T) {
	log := logrus.New()
	log.SetOutput(io.Discard)

	s := New(&config.ServerConfig{ShutdownTimeout: time.Second}, log)
	s.RegisterRoutes(func(router *mux.Router) {
		router.HandleFunc("/api/v1/custom", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		}).Methods("GET")
	})
	s.setupRoutes()

	req := httptest.NewRequest("GET", "/api/v1/custom", nil)
	rec := httptest.NewRecorder()
	s.GetRouter().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
