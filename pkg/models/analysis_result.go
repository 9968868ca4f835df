package models

import (
	"time"

	"github.com/google/uuid"
)

// AnalysisResult is the record kept for one uploaded transcript.
// AnalysisID is empty when the service reply could not be recovered or did not
// carry an identifier; such results are kept but never fetched.
type AnalysisResult struct {
	ID         uuid.UUID `json:"id"`
	FileName   string    `json:"file_name"`
	AnalysisID string    `json:"analysis_id"`
	Answer     string    `json:"answer"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Transcript is an uploaded file passed through to the analysis service as opaque bytes.
type Transcript struct {
	Name    string
	Content []byte
}
