package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	mw "github.com/kiranshivaraju/medalyze/internal/api/middleware"
	"github.com/kiranshivaraju/medalyze/internal/api/response"
	"github.com/kiranshivaraju/medalyze/pkg/models"
)

// UploadField is the multipart field carrying transcript files.
const UploadField = "files"

// multipartMemory is how much of a form is buffered before spilling to disk.
const multipartMemory = 32 << 20

// NewUploadTranscriptsHandler returns an http.HandlerFunc for POST /api/v1/transcripts.
// File contents are passed through unread. The batch replaces whatever the session held before.
func NewUploadTranscriptsHandler(svc Dashboard, sessions Sessions, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := mw.SessionID(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "NO_SESSION", "Session cookie missing", nil)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				response.Error(w, http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE",
					fmt.Sprintf("Upload exceeds %d bytes", maxBytes), nil)
				return
			}
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Expected a multipart form", nil)
			return
		}
		defer r.MultipartForm.RemoveAll()

		headers := r.MultipartForm.File[UploadField]
		if len(headers) == 0 {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				fmt.Sprintf("At least one file is required in field %q", UploadField), nil)
			return
		}

		transcripts := make([]models.Transcript, 0, len(headers))
		for _, fh := range headers {
			content, err := readPart(fh)
			if err != nil {
				slog.Warn("could not read uploaded file", "file_name", fh.Filename, "error", err)
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
					fmt.Sprintf("Could not read %s", fh.Filename), nil)
				return
			}
			transcripts = append(transcripts, models.Transcript{Name: fh.Filename, Content: content})
		}

		report := svc.Upload(r.Context(), transcripts)

		if err := sessions.Save(r.Context(), id, report.Results); err != nil {
			slog.Error("failed to save session", "session_id", id, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not store upload results", nil)
			return
		}

		response.JSON(w, uploadResponse{
			Processed: len(report.Results),
			Submitted: len(transcripts),
			Results:   report.Results,
			Errors:    report.Errors,
		})
	}
}

// NewListTranscriptsHandler returns an http.HandlerFunc for GET /api/v1/transcripts.
func NewListTranscriptsHandler(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, results, ok := sessionResults(w, r, sessions)
		if !ok {
			return
		}
		response.JSON(w, results)
	}
}

// NewClearTranscriptsHandler returns an http.HandlerFunc for DELETE /api/v1/transcripts.
func NewClearTranscriptsHandler(sessions Sessions) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := mw.SessionID(r)
		if !ok {
			response.Error(w, http.StatusBadRequest, "NO_SESSION", "Session cookie missing", nil)
			return
		}
		if err := sessions.Clear(r.Context(), id); err != nil {
			slog.Error("failed to clear session", "session_id", id, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Could not clear session", nil)
			return
		}
		response.NoContent(w)
	}
}

type uploadResponse struct {
	Processed int                     `json:"processed"`
	Submitted int                     `json:"submitted"`
	Results   []models.AnalysisResult `json:"results"`
	Errors    []models.ItemError      `json:"errors"`
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}
