package analysis

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/packetscope/packetscope/internal/analysis/source"
	"github.com/packetscope/packetscope/internal/logger"
)

func newTestRouter(t *testing.T, src func(path string) source.Source) (*mux.Router, *Manager) {
	t.Helper()
	m := newTestManager(t, src)
	h := NewHandlers(m, logger.NewNullLogger())
	router := mux.NewRouter()
	h.RegisterRoutes(router)
	return router, m
}

func createViaAPI(t *testing.T, router *mux.Router, path string) AnalysisDTO {
	t.Helper()
	body := fmt.Sprintf(`{"path":%q}`, path)
	req := httptest.NewRequest("POST", "/api/v1/analyses", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusAccepted, rec.Code)
	var dto AnalysisDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&dto))
	return dto
}

func TestHandlers_CreateAnalysis(t *testing.T) {
	router, _ := newTestRouter(t, finishedSource)

	dto := createViaAPI(t, router, "/media/sample.mp4")
	assert.NotEmpty(t, dto.ID)
	assert.Equal(t, "/media/sample.mp4", dto.Path)
	assert.False(t, dto.CreatedAt.IsZero())
}

func TestHandlers_CreateAnalysis_BadRequests(t *testing.T) {
	router, _ := newTestRouter(t, finishedSource)

	tests := []struct {
		name string
		body string
	}{
		{"not json", "not-json"},
		{"empty body", ""},
		{"missing path", `{}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/v1/analyses", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandlers_ListAnalyses(t *testing.T) {
	router, _ := newTestRouter(t, finishedSource)

	createViaAPI(t, router, "/media/a.mp4")
	createViaAPI(t, router, "/media/b.mp4")

	req := httptest.NewRequest("GET", "/api/v1/analyses", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp AnalysisListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.Analyses, 2)
}

func TestHandlers_GetAnalysis(t *testing.T) {
	router, m := newTestRouter(t, finishedSource)

	dto := createViaAPI(t, router, "/media/sample.mp4")
	an, ok := m.Get(dto.ID)
	require.True(t, ok)
	waitForAnalysisPhase(t, an, PhaseFinished)

	req := httptest.NewRequest("GET", "/api/v1/analyses/"+dto.ID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got AnalysisDTO
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&got))
	assert.Equal(t, dto.ID, got.ID)
	assert.Equal(t, "finished", got.Phase)
	assert.Equal(t, 1.0, got.Progress)
	assert.Equal(t, 3, got.PacketCount)
	require.NotNil(t, got.Metadata)
	assert.Equal(t, 10.0, got.Metadata.DurationSeconds)

	req = httptest.NewRequest("GET", "/api/v1/analyses/non-existent", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_Statistics(t *testing.T) {
	router, m := newTestRouter(t, finishedSource)

	dto := createViaAPI(t, router, "/media/sample.mp4")
	an, ok := m.Get(dto.ID)
	require.True(t, ok)
	waitForAnalysisPhase(t, an, PhaseFinished)

	req := httptest.NewRequest("GET", "/api/v1/analyses/"+dto.ID+"/statistics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp StatisticsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, dto.ID, resp.AnalysisID)
	assert.Equal(t, int64(50), resp.Statistics.MinSize)
	assert.Equal(t, int64(3000), resp.Statistics.MaxSize)
}

func TestHandlers_StatisticsBeforeFinished(t *testing.T) {
	router, _ := newTestRouter(t, func(path string) source.Source {
		return newBlockingSource()
	})

	dto := createViaAPI(t, router, "/media/sample.mp4")

	req := httptest.NewRequest("GET", "/api/v1/analyses/"+dto.ID+"/statistics", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlers_Viewport(t *testing.T) {
	router, m := newTestRouter(t, finishedSource)

	dto := createViaAPI(t, router, "/media/sample.mp4")
	an, ok := m.Get(dto.ID)
	require.True(t, ok)
	waitForAnalysisPhase(t, an, PhaseFinished)

	req := httptest.NewRequest("GET", "/api/v1/analyses/"+dto.ID+"/viewport?zoom=2&pan=0", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp ViewportResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 2.0, resp.Zoom)
	assert.Equal(t, 0.0, resp.Pan)
	assert.Equal(t, len(resp.Points), resp.PointCount)
}

func TestHandlers_ViewportDefaultsAndValidation(t *testing.T) {
	router, m := newTestRouter(t, finishedSource)

	dto := createViaAPI(t, router, "/media/sample.mp4")
	an, ok := m.Get(dto.ID)
	require.True(t, ok)
	waitForAnalysisPhase(t, an, PhaseFinished)

	// No params defaults to the full span.
	req := httptest.NewRequest("GET", "/api/v1/analyses/"+dto.ID+"/viewport", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ViewportResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, 1.0, resp.Zoom)
	assert.Equal(t, 3, resp.PointCount)

	req = httptest.NewRequest("GET", "/api/v1/analyses/"+dto.ID+"/viewport?zoom=abc", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlers_CancelAnalysis(t *testing.T) {
	router, m := newTestRouter(t, func(path string) source.Source {
		return newBlockingSource()
	})

	dto := createViaAPI(t, router, "/media/sample.mp4")

	req := httptest.NewRequest("POST", "/api/v1/analyses/"+dto.ID+"/cancel", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusAccepted, rec.Code)

	an, ok := m.Get(dto.ID)
	require.True(t, ok)
	waitForAnalysisPhase(t, an, PhaseFailed)

	req = httptest.NewRequest("POST", "/api/v1/analyses/non-existent/cancel", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandlers_DeleteAnalysis(t *testing.T) {
	router, m := newTestRouter(t, finishedSource)

	dto := createViaAPI(t, router, "/media/sample.mp4")

	req := httptest.NewRequest("DELETE", "/api/v1/analyses/"+dto.ID, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)

	_, ok := m.Get(dto.ID)
	assert.False(t, ok)

	req = httptest.NewRequest("DELETE", "/api/v1/analyses/"+dto.ID, nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
