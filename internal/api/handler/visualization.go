package handler

import (
	"bytes"
	"encoding/csv"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/kiranshivaraju/medalyze/internal/api/response"
	"github.com/kiranshivaraju/medalyze/internal/neuralseek"
	"github.com/kiranshivaraju/medalyze/pkg/models"
)

const (
	scoresFileName   = "scores.csv"
	rowLabelHeader   = "Transcript"
	csvContentType   = "text/csv; charset=utf-8"
	imageContentType = "image/png"
)

// NewVisualizationHandler returns an http.HandlerFunc for GET /api/v1/visualization.
func NewVisualizationHandler(svc Dashboard, sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, ok := requireResults(w, r, sessions)
		if !ok {
			return
		}

		viz, err := svc.Visualize(r.Context(), results)
		if err != nil {
			writeDashboardError(w, err, viz)
			return
		}

		response.JSON(w, visualizationResponse{
			Columns:       viz.Table.Columns,
			OverallColumn: models.OverallColumn,
			Rows:          scoreRows(viz.Table),
			Errors:        viz.Errors,
		})
	}
}

// NewScoresCSVHandler returns an http.HandlerFunc for GET /api/v1/visualization/scores.csv.
func NewScoresCSVHandler(svc Dashboard, sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, ok := requireResults(w, r, sessions)
		if !ok {
			return
		}

		viz, err := svc.Visualize(r.Context(), results)
		if err != nil {
			writeDashboardError(w, err, viz)
			return
		}

		body, err := scoresCSV(viz.Table)
		if err != nil {
			slog.Error("failed to encode scores", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not encode scores", nil)
			return
		}
		response.File(w, csvContentType, scoresFileName, body)
	}
}

// NewHeatmapHandler returns an http.HandlerFunc for GET /api/v1/visualization/heatmap.png.
func NewHeatmapHandler(svc Dashboard, sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, ok := requireResults(w, r, sessions)
		if !ok {
			return
		}

		png, viz, err := svc.Heatmap(r.Context(), results)
		if err != nil {
			writeDashboardError(w, err, viz)
			return
		}
		response.File(w, imageContentType, "", png)
	}
}

// NewSendHeatmapHandler returns an http.HandlerFunc for POST /api/v1/visualization/heatmap/send.
func NewSendHeatmapHandler(svc Dashboard, sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results, ok := requireResults(w, r, sessions)
		if !ok {
			return
		}

		viz, err := svc.SendHeatmap(r.Context(), results)
		if err != nil {
			writeDashboardError(w, err, viz)
			return
		}

		response.JSON(w, sendHeatmapResponse{
			Sent:     true,
			FileName: neuralseek.HeatmapFileName,
			Rows:     len(viz.Table.RowLabels),
			Errors:   viz.Errors,
		})
	}
}

type visualizationResponse struct {
	Columns       []string           `json:"columns"`
	OverallColumn string             `json:"overall_column"`
	Rows          []scoreRow         `json:"rows"`
	Errors        []models.ItemError `json:"errors"`
}

// scoreRow carries NaN cells as null, which JSON cannot otherwise express.
type scoreRow struct {
	Label   string     `json:"label"`
	Scores  []*float64 `json:"scores"`
	Overall *float64   `json:"overall"`
}

type sendHeatmapResponse struct {
	Sent     bool               `json:"sent"`
	FileName string             `json:"file_name"`
	Rows     int                `json:"rows"`
	Errors   []models.ItemError `json:"errors"`
}

func scoreRows(t models.ScoreTable) []scoreRow {
	rows := make([]scoreRow, len(t.Scores))
	for i, scores := range t.Scores {
		cells := make([]*float64, len(scores))
		for j, v := range scores {
			cells[j] = nullable(v)
		}
		rows[i] = scoreRow{Label: t.RowLabels[i], Scores: cells}
		if i < len(t.Overall) {
			rows[i].Overall = nullable(t.Overall[i])
		}
	}
	return rows
}

func nullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

// scoresCSV writes the table with a leading label column and a trailing
// Overall Score column. NaN cells are empty.
func scoresCSV(t models.ScoreTable) ([]byte, error) {
	var buf bytes.Buffer
	cw := csv.NewWriter(&buf)

	header := append([]string{rowLabelHeader}, t.Columns...)
	header = append(header, models.OverallColumn)
	if err := cw.Write(header); err != nil {
		return nil, err
	}

	for i, scores := range t.Scores {
		record := make([]string, 0, len(scores)+2)
		record = append(record, t.RowLabels[i])
		for _, v := range scores {
			record = append(record, formatScore(v))
		}
		overall := math.NaN()
		if i < len(t.Overall) {
			overall = t.Overall[i]
		}
		record = append(record, formatScore(overall))
		if err := cw.Write(record); err != nil {
			return nil, err
		}
	}

	cw.Flush()
	return buf.Bytes(), cw.Error()
}

func formatScore(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}
