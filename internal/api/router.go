package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	mw "github.com/kiranshivaraju/medalyze/internal/api/middleware"
	"github.com/kiranshivaraju/medalyze/internal/api/response"
	"github.com/kiranshivaraju/medalyze/pkg/models"
)

// Dependencies holds all handler and middleware dependencies for the router.
// A nil Auth leaves the dashboard open and omits the admin routes.
type Dependencies struct {
	Auth      *mw.Auth
	RateLimit *mw.RateLimit
	Sessions  *mw.Sessions

	IndexHandler             http.HandlerFunc
	HealthHandler            http.HandlerFunc
	UploadTranscriptsHandler http.HandlerFunc
	ListTranscriptsHandler   http.HandlerFunc
	ClearTranscriptsHandler  http.HandlerFunc
	VisualizationHandler     http.HandlerFunc
	ScoresCSVHandler         http.HandlerFunc
	HeatmapHandler           http.HandlerFunc
	SendHeatmapHandler       http.HandlerFunc
	CreateKeyHandler         http.HandlerFunc
	ListKeysHandler          http.HandlerFunc
	RevokeKeyHandler         http.HandlerFunc
}

// NewRouter builds the Chi router with middleware stack and all routes.
func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(mw.Logger)
	r.Use(mw.Recovery)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusNotFound, "NOT_FOUND", "Route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		response.Error(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	// Public
	r.Get("/", orNotImplemented(deps.IndexHandler))
	r.Get("/api/v1/health", orNotImplemented(deps.HealthHandler))

	// Session-scoped dashboard routes
	r.Group(func(r chi.Router) {
		r.Use(deps.Sessions.Attach)
		if deps.Auth != nil {
			r.Use(deps.Auth.Authenticate)
		}

		scope := func(s string) func(http.Handler) http.Handler {
			if deps.Auth == nil {
				return passThrough
			}
			return deps.Auth.RequireScope(s)
		}

		r.With(scope(models.ScopeRead)).Get("/api/v1/transcripts", orNotImplemented(deps.ListTranscriptsHandler))

		// Routes that call the analysis service are rate limited.
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimit.Limit)

			r.With(scope(models.ScopeRead)).Get("/api/v1/visualization", orNotImplemented(deps.VisualizationHandler))
			r.With(scope(models.ScopeRead)).Get("/api/v1/visualization/scores.csv", orNotImplemented(deps.ScoresCSVHandler))
			r.With(scope(models.ScopeRead)).Get("/api/v1/visualization/heatmap.png", orNotImplemented(deps.HeatmapHandler))

			r.With(scope(models.ScopeUpload)).Post("/api/v1/transcripts", orNotImplemented(deps.UploadTranscriptsHandler))
			r.With(scope(models.ScopeUpload)).Post("/api/v1/visualization/heatmap/send", orNotImplemented(deps.SendHeatmapHandler))
		})

		r.With(scope(models.ScopeUpload)).Delete("/api/v1/transcripts", orNotImplemented(deps.ClearTranscriptsHandler))

		// Admin routes
		if deps.Auth != nil {
			r.Group(func(r chi.Router) {
				r.Use(deps.Auth.RequireScope(models.ScopeAdmin))

				r.Post("/api/v1/admin/keys", orNotImplemented(deps.CreateKeyHandler))
				r.Get("/api/v1/admin/keys", orNotImplemented(deps.ListKeysHandler))
				r.Delete("/api/v1/admin/keys/{keyID}", orNotImplemented(deps.RevokeKeyHandler))
			})
		}
	})

	return r
}

func passThrough(next http.Handler) http.Handler { return next }

// orNotImplemented returns the handler if non-nil, or a 501 placeholder.
func orNotImplemented(h http.HandlerFunc) http.HandlerFunc {
	if h != nil {
		return h
	}
	return func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, http.StatusNotImplemented, "NOT_IMPLEMENTED", "Endpoint not yet implemented", nil)
	}
}
