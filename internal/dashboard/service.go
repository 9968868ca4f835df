// Package dashboard orchestrates transcript uploads, analysis fetches and
// heatmap rendering around the analysis service.
package dashboard

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/medalyze/internal/cache"
	"github.com/kiranshivaraju/medalyze/internal/neuralseek"
	"github.com/kiranshivaraju/medalyze/internal/render"
	"github.com/kiranshivaraju/medalyze/internal/rubric"
	"github.com/kiranshivaraju/medalyze/pkg/lenientjson"
	"github.com/kiranshivaraju/medalyze/pkg/models"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"
)

// AnalysisIDField is the recovered upload answer member naming the analysis.
const AnalysisIDField = "analysis_id"

// UploadReport is the outcome of one upload batch. Results holds every
// transcript the service accepted, in upload order.
type UploadReport struct {
	Results []models.AnalysisResult `json:"results"`
	Errors  []models.ItemError      `json:"errors"`
}

// Visualization is the combined score table plus the per-file problems met
// while building it.
type Visualization struct {
	Table  models.ScoreTable  `json:"table"`
	Errors []models.ItemError `json:"errors"`
}

// Service orchestrates calls to the analysis service.
type Service struct {
	client      neuralseek.Client
	cache       cache.Cache
	answerTTL   time.Duration
	concurrency int
	now         func() time.Time
}

// NewService creates a Service. Fetched answers are cached for answerTTL.
// concurrency bounds in-flight requests per batch; 1 keeps the batch sequential.
func NewService(client neuralseek.Client, c cache.Cache, answerTTL time.Duration, concurrency int) *Service {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Service{
		client:      client,
		cache:       c,
		answerTTL:   answerTTL,
		concurrency: concurrency,
		now:         time.Now,
	}
}

type uploadOutcome struct {
	result  *models.AnalysisResult
	itemErr *models.ItemError
}

// Upload submits every transcript. A transport failure excludes that file; an
// unrecoverable answer keeps the file with an empty analysis id. Neither
// stops the batch.
func (s *Service) Upload(ctx context.Context, transcripts []models.Transcript) UploadReport {
	outcomes := make([]uploadOutcome, len(transcripts))

	s.each(ctx, len(transcripts), func(ctx context.Context, i int) {
		outcomes[i] = s.uploadOne(ctx, transcripts[i])
	})

	report := UploadReport{
		Results: make([]models.AnalysisResult, 0, len(transcripts)),
		Errors:  []models.ItemError{},
	}
	for _, o := range outcomes {
		if o.itemErr != nil {
			report.Errors = append(report.Errors, *o.itemErr)
		}
		if o.result != nil {
			report.Results = append(report.Results, *o.result)
		}
	}

	slog.Info("transcripts uploaded",
		"submitted", len(transcripts),
		"retained", len(report.Results),
		"errors", len(report.Errors),
	)
	return report
}

func (s *Service) uploadOne(ctx context.Context, t models.Transcript) uploadOutcome {
	resp, err := s.client.UploadTranscript(ctx, t.Name, t.Content)
	if err != nil {
		slog.Error("failed to upload transcript", "file_name", t.Name, "error", err)
		return uploadOutcome{itemErr: itemError(t.Name, models.ErrorKindTransport, err)}
	}

	result := &models.AnalysisResult{
		ID:         uuid.New(),
		FileName:   t.Name,
		Answer:     resp.Answer,
		UploadedAt: s.now().UTC(),
	}

	doc, err := lenientjson.Recover(resp.Answer)
	if err != nil {
		slog.Warn("could not parse upload answer", "file_name", t.Name, "error", err)
		return uploadOutcome{result: result, itemErr: itemError(t.Name, models.ErrorKindRecovery, err)}
	}

	result.AnalysisID = analysisID(doc)
	if result.AnalysisID == "" {
		slog.Warn("upload answer has no analysis id", "file_name", t.Name)
	}
	return uploadOutcome{result: result}
}

// analysisID reads the identifier as a string; a numeric id is kept verbatim.
// Answers that are not objects carry no id.
func analysisID(doc *lenientjson.Document) string {
	v := doc.Member(AnalysisIDField)
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Number:
		return v.Raw
	default:
		return ""
	}
}

type fetchOutcome struct {
	matrix  *models.RubricMatrix
	itemErr *models.ItemError
}

// Visualize fetches every result that has an analysis id and stacks the
// rubric matrices in upload order. When no matrix is usable it returns the
// partial Visualization together with ErrNoUsableData.
func (s *Service) Visualize(ctx context.Context, results []models.AnalysisResult) (*Visualization, error) {
	var pending []models.AnalysisResult
	for _, r := range results {
		if r.AnalysisID != "" {
			pending = append(pending, r)
		}
	}
	if len(pending) == 0 {
		return &Visualization{Errors: []models.ItemError{}}, ErrNoUsableData
	}

	outcomes := make([]fetchOutcome, len(pending))
	s.each(ctx, len(pending), func(ctx context.Context, i int) {
		outcomes[i] = s.fetchOne(ctx, pending[i])
	})

	viz := &Visualization{Errors: []models.ItemError{}}
	var table rubric.Table
	for i, o := range outcomes {
		if o.itemErr != nil {
			viz.Errors = append(viz.Errors, *o.itemErr)
			continue
		}
		if err := table.Add(*o.matrix); err != nil {
			slog.Debug("skipping analysis", "file_name", pending[i].FileName, "error", err)
			viz.Errors = append(viz.Errors, *itemError(pending[i].FileName, models.ErrorKindShape, err))
		}
	}

	st, ok := table.ScoreTable()
	if !ok {
		return viz, ErrNoUsableData
	}
	viz.Table = st
	return viz, nil
}

func (s *Service) fetchOne(ctx context.Context, r models.AnalysisResult) fetchOutcome {
	answer, cached, err := s.fetchAnswer(ctx, r.AnalysisID)
	if err != nil {
		slog.Error("failed to fetch analysis", "file_name", r.FileName, "analysis_id", r.AnalysisID, "error", err)
		return fetchOutcome{itemErr: itemError(r.FileName, models.ErrorKindTransport, err)}
	}

	doc, err := lenientjson.Recover(answer)
	if err != nil {
		slog.Warn("could not parse analysis answer", "file_name", r.FileName, "analysis_id", r.AnalysisID, "error", err)
		return fetchOutcome{itemErr: itemError(r.FileName, models.ErrorKindRecovery, err)}
	}

	m, err := rubric.Extract(doc, r.FileName)
	if err != nil {
		slog.Debug("analysis has no usable evaluations", "file_name", r.FileName, "error", err)
		return fetchOutcome{itemErr: itemError(r.FileName, models.ErrorKindShape, err)}
	}

	// Only usable answers are cached; a mangled reply is fetched again next time.
	if !cached {
		s.storeAnswer(ctx, r.AnalysisID, answer)
	}
	return fetchOutcome{matrix: &m}
}

// fetchAnswer returns the cached answer for analysisID or fetches it. The
// second return reports a cache hit. Cache failures only cost a refetch.
func (s *Service) fetchAnswer(ctx context.Context, analysisID string) (string, bool, error) {
	raw, found, err := s.cache.Get(ctx, cache.AnswerKey(analysisID))
	if err != nil {
		slog.Debug("answer cache read failed", "analysis_id", analysisID, "error", err)
	} else if found {
		return string(raw), true, nil
	}

	resp, err := s.client.FetchAnalysis(ctx, analysisID)
	if err != nil {
		return "", false, err
	}
	return resp.Answer, false, nil
}

func (s *Service) storeAnswer(ctx context.Context, analysisID, answer string) {
	if err := s.cache.Set(ctx, cache.AnswerKey(analysisID), []byte(answer), s.answerTTL); err != nil {
		slog.Debug("answer cache write failed", "analysis_id", analysisID, "error", err)
	}
}

// Heatmap builds the visualization and renders it as PNG.
func (s *Service) Heatmap(ctx context.Context, results []models.AnalysisResult) ([]byte, *Visualization, error) {
	viz, err := s.Visualize(ctx, results)
	if err != nil {
		return nil, viz, err
	}
	png, err := render.HeatmapPNG(viz.Table)
	if err != nil {
		return nil, viz, fmt.Errorf("rendering heatmap: %w", err)
	}
	return png, viz, nil
}

// SendHeatmap renders the heatmap and relays it to the image agent.
func (s *Service) SendHeatmap(ctx context.Context, results []models.AnalysisResult) (*Visualization, error) {
	png, viz, err := s.Heatmap(ctx, results)
	if err != nil {
		return viz, err
	}
	if _, err := s.client.UploadImage(ctx, neuralseek.HeatmapFileName, png); err != nil {
		slog.Error("could not send heatmap", "error", err)
		return viz, fmt.Errorf("sending heatmap: %w", err)
	}
	slog.Info("heatmap sent", "rows", len(viz.Table.RowLabels), "bytes", len(png))
	return viz, nil
}

// each runs fn for indexes [0, n) with at most s.concurrency in flight.
func (s *Service) each(ctx context.Context, n int, fn func(ctx context.Context, i int)) {
	if s.concurrency == 1 {
		for i := 0; i < n; i++ {
			fn(ctx, i)
		}
		return
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			fn(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
}

func itemError(fileName string, kind models.ErrorKind, err error) *models.ItemError {
	return &models.ItemError{FileName: fileName, Kind: kind, Message: err.Error()}
}
