// Package handler holds the HTTP handlers for the dashboard API.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	mw "github.com/kiranshivaraju/medalyze/internal/api/middleware"
	"github.com/kiranshivaraju/medalyze/internal/api/response"
	"github.com/kiranshivaraju/medalyze/internal/dashboard"
	"github.com/kiranshivaraju/medalyze/internal/neuralseek"
	"github.com/kiranshivaraju/medalyze/pkg/models"
)

// Dashboard is the orchestration the handlers depend on.
type Dashboard interface {
	Upload(ctx context.Context, transcripts []models.Transcript) dashboard.UploadReport
	Visualize(ctx context.Context, results []models.AnalysisResult) (*dashboard.Visualization, error)
	Heatmap(ctx context.Context, results []models.AnalysisResult) ([]byte, *dashboard.Visualization, error)
	SendHeatmap(ctx context.Context, results []models.AnalysisResult) (*dashboard.Visualization, error)
}

// Sessions persists each session's uploaded results.
type Sessions interface {
	Results(ctx context.Context, id uuid.UUID) ([]models.AnalysisResult, error)
	Save(ctx context.Context, id uuid.UUID, results []models.AnalysisResult) error
	Clear(ctx context.Context, id uuid.UUID) error
}

// sessionResults loads the caller's results. It writes the error response
// itself and returns false when the handler should stop.
func sessionResults(w http.ResponseWriter, r *http.Request, sessions Sessions) (uuid.UUID, []models.AnalysisResult, bool) {
	id, ok := mw.SessionID(r)
	if !ok {
		response.Error(w, http.StatusBadRequest, "NO_SESSION", "Session cookie missing", nil)
		return uuid.Nil, nil, false
	}

	results, err := sessions.Results(r.Context(), id)
	if err != nil {
		slog.Error("failed to load session", "session_id", id, "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"Could not load session", nil)
		return uuid.Nil, nil, false
	}
	return id, results, true
}

// requireResults loads the caller's results and rejects an empty session.
func requireResults(w http.ResponseWriter, r *http.Request, sessions Sessions) ([]models.AnalysisResult, bool) {
	_, results, ok := sessionResults(w, r, sessions)
	if !ok {
		return nil, false
	}
	if len(results) == 0 {
		response.Error(w, http.StatusConflict, "NO_TRANSCRIPTS",
			"Upload and process transcripts first", nil)
		return nil, false
	}
	return results, true
}

// writeDashboardError maps orchestration failures onto the error envelope.
func writeDashboardError(w http.ResponseWriter, err error, viz *dashboard.Visualization) {
	var itemErrors []models.ItemError
	if viz != nil {
		itemErrors = viz.Errors
	}

	switch {
	case errors.Is(err, dashboard.ErrNoUsableData):
		response.Error(w, http.StatusUnprocessableEntity, "NO_VALID_ANALYSIS_DATA",
			"No valid analysis data to plot", itemErrors)
	case neuralseek.IsTransport(err):
		slog.Error("analysis service call failed", "error", err)
		response.Error(w, http.StatusBadGateway, "HEATMAP_SEND_FAILED",
			"Could not send heatmap", map[string]string{"reason": err.Error()})
	default:
		slog.Error("dashboard request failed", "error", err)
		response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
			"An unexpected error occurred", nil)
	}
}
