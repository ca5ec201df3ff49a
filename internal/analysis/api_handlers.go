package analysis

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/packetscope/packetscope/internal/analysis/stats"
	"github.com/packetscope/packetscope/internal/analysis/types"
	apperrors "github.com/packetscope/packetscope/internal/errors"
	"github.com/packetscope/packetscope/internal/logger"
)

// Handlers wraps the analysis manager to provide HTTP handlers
type Handlers struct {
	manager *Manager
	logger  logger.Logger
}

// NewHandlers creates a new handlers wrapper
func NewHandlers(manager *Manager, log logger.Logger) *Handlers {
	return &Handlers{
		manager: manager,
		logger:  log.WithField("component", "analysis_handlers"),
	}
}

// RegisterRoutes registers all analysis API routes
func (h *Handlers) RegisterRoutes(router *mux.Router) {
	api := router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/analyses", h.HandleCreateAnalysis).Methods("POST")
	api.HandleFunc("/analyses", h.HandleListAnalyses).Methods("GET")
	api.HandleFunc("/analyses/{id}", h.HandleGetAnalysis).Methods("GET")
	api.HandleFunc("/analyses/{id}", h.HandleDeleteAnalysis).Methods("DELETE")
	api.HandleFunc("/analyses/{id}/cancel", h.HandleCancelAnalysis).Methods("POST")
	api.HandleFunc("/analyses/{id}/statistics", h.HandleStatistics).Methods("GET")
	api.HandleFunc("/analyses/{id}/viewport", h.HandleViewport).Methods("GET")

	h.logger.Info("Analysis routes registered")
}

// API Response DTOs

type AnalysisDTO struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Phase     string    `json:"phase"`
	Progress  float64   `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	Error     string    `json:"error,omitempty"`

	// Populated once finished.
	PacketCount int                  `json:"packet_count,omitempty"`
	Metadata    *types.VideoMetadata `json:"metadata,omitempty"`
}

type AnalysisListResponse struct {
	Analyses []AnalysisDTO `json:"analyses"`
	Count    int           `json:"count"`
	Time     time.Time     `json:"time"`
}

type ViewportResponse struct {
	Zoom       float64         `json:"zoom"`
	Pan        float64         `json:"pan"`
	PointCount int             `json:"point_count"`
	Points     []ViewportPoint `json:"points"`
}

// ViewportPoint is one chart point of the downsampled series.
type ViewportPoint struct {
	Index      int     `json:"index"`
	Seconds    float64 `json:"seconds"`
	SizeBytes  int64   `json:"size_bytes"`
	IsKeyframe bool    `json:"is_keyframe"`
}

type StatisticsResponse struct {
	AnalysisID string         `json:"analysis_id"`
	Statistics stats.Snapshot `json:"statistics"`
}

type CreateAnalysisRequest struct {
	Path string `json:"path"`
}

// HandleCreateAnalysis starts an analysis for the requested file.
func (h *Handlers) HandleCreateAnalysis(w http.ResponseWriter, r *http.Request) {
	var req CreateAnalysisRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAppError(r.Context(), w, apperrors.NewValidationError("request body must be JSON with a path field"))
		return
	}
	if req.Path == "" {
		writeAppError(r.Context(), w, apperrors.NewValidationError("path is required"))
		return
	}

	an, err := h.manager.Create(req.Path)
	if err != nil {
		writeAppError(r.Context(), w, err)
		return
	}

	writeJSON(r.Context(), w, http.StatusAccepted, convertAnalysisToDTO(an))
}

// HandleListAnalyses lists all known analyses.
func (h *Handlers) HandleListAnalyses(w http.ResponseWriter, r *http.Request) {
	analyses := h.manager.List()

	response := AnalysisListResponse{
		Analyses: make([]AnalysisDTO, 0, len(analyses)),
		Count:    len(analyses),
		Time:     time.Now(),
	}
	for _, an := range analyses {
		response.Analyses = append(response.Analyses, convertAnalysisToDTO(an))
	}

	writeJSON(r.Context(), w, http.StatusOK, response)
}

// HandleGetAnalysis returns the state of one analysis.
func (h *Handlers) HandleGetAnalysis(w http.ResponseWriter, r *http.Request) {
	an, ok := h.manager.Get(mux.Vars(r)["id"])
	if !ok {
		writeAppError(r.Context(), w, apperrors.NewNotFoundError("analysis"))
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, convertAnalysisToDTO(an))
}

// HandleDeleteAnalysis cancels and removes one analysis.
func (h *Handlers) HandleDeleteAnalysis(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(mux.Vars(r)["id"]); err != nil {
		writeAppError(r.Context(), w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleCancelAnalysis requests cancellation of one analysis.
func (h *Handlers) HandleCancelAnalysis(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.manager.Cancel(id); err != nil {
		writeAppError(r.Context(), w, err)
		return
	}

	an, _ := h.manager.Get(id)
	writeJSON(r.Context(), w, http.StatusAccepted, convertAnalysisToDTO(an))
}

// HandleStatistics returns the computed-once statistics snapshot.
func (h *Handlers) HandleStatistics(w http.ResponseWriter, r *http.Request) {
	an, ok := h.manager.Get(mux.Vars(r)["id"])
	if !ok {
		writeAppError(r.Context(), w, apperrors.NewNotFoundError("analysis"))
		return
	}

	snapshot, err := an.Statistics()
	if err != nil {
		writeAppError(r.Context(), w, err)
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, StatisticsResponse{
		AnalysisID: an.ID,
		Statistics: snapshot,
	})
}

// HandleViewport returns the downsampled series for a zoom/pan pair.
func (h *Handlers) HandleViewport(w http.ResponseWriter, r *http.Request) {
	an, ok := h.manager.Get(mux.Vars(r)["id"])
	if !ok {
		writeAppError(r.Context(), w, apperrors.NewNotFoundError("analysis"))
		return
	}

	zoom, err := parseFloatParam(r, "zoom", 1)
	if err != nil {
		writeAppError(r.Context(), w, apperrors.NewValidationError("zoom must be a number"))
		return
	}
	pan, err := parseFloatParam(r, "pan", 0)
	if err != nil {
		writeAppError(r.Context(), w, apperrors.NewValidationError("pan must be a number"))
		return
	}

	series, err := an.Viewport(zoom, pan)
	if err != nil {
		writeAppError(r.Context(), w, err)
		return
	}

	response := ViewportResponse{
		Zoom:       zoom,
		Pan:        pan,
		PointCount: len(series),
		Points:     make([]ViewportPoint, 0, len(series)),
	}
	for _, p := range series {
		response.Points = append(response.Points, ViewportPoint{
			Index:      p.Index,
			Seconds:    p.Seconds,
			SizeBytes:  p.SizeBytes,
			IsKeyframe: p.IsKeyframe,
		})
	}

	writeJSON(r.Context(), w, http.StatusOK, response)
}

func convertAnalysisToDTO(an *Analysis) AnalysisDTO {
	st := an.State()

	dto := AnalysisDTO{
		ID:        an.ID,
		Path:      an.Path,
		Phase:     st.Phase.String(),
		Progress:  st.Progress,
		CreatedAt: an.CreatedAt,
	}
	if st.Err != nil {
		dto.Error = st.Err.Error()
	}
	if st.Phase == PhaseFinished {
		dto.PacketCount = len(st.Packets)
		meta := st.Metadata
		dto.Metadata = &meta
	}
	return dto
}

func parseFloatParam(r *http.Request, name string, fallback float64) (float64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	return strconv.ParseFloat(raw, 64)
}

// Helper functions

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.FromContext(ctx).WithError(err).Error("Failed to encode JSON response")
	}
}

func writeAppError(ctx context.Context, w http.ResponseWriter, err error) {
	appErr, ok := apperrors.GetAppError(err)
	if !ok {
		appErr = apperrors.WrapInternalError(err, "An unexpected error occurred")
	}

	logger.FromContext(ctx).WithError(err).Warn("Request failed")

	writeJSON(ctx, w, appErr.HTTPStatus, apperrors.ErrorResponse{
		Error: apperrors.ErrorDetails{
			Type:    appErr.Type,
			Message: appErr.Message,
			Code:    appErr.Code,
			Details: appErr.Details,
		},
	})
}
