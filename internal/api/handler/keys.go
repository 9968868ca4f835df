package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/medalyze/internal/api/response"
	"github.com/kiranshivaraju/medalyze/internal/store"
	"github.com/kiranshivaraju/medalyze/pkg/models"
)

const maxKeyNameLen = 100

var validScopes = []string{models.ScopeRead, models.ScopeUpload, models.ScopeAdmin}

// KeyStore is the slice of store.Store the key handlers need.
type KeyStore interface {
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID) error
}

// NewCreateKeyHandler returns an http.HandlerFunc for POST /api/v1/admin/keys.
// The raw key appears in this response only.
func NewCreateKeyHandler(keys KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Name   string   `json:"name"`
			Scopes []string `json:"scopes"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		name := strings.TrimSpace(req.Name)
		if name == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name is required", nil)
			return
		}
		if len(name) > maxKeyNameLen {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "name must be at most 100 characters", nil)
			return
		}

		scopes := req.Scopes
		if len(scopes) == 0 {
			scopes = []string{models.ScopeRead}
		}
		for _, s := range scopes {
			if !slices.Contains(validScopes, s) {
				response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "unknown scope",
					map[string]any{"scope": s, "valid_scopes": validScopes})
				return
			}
		}
		slices.Sort(scopes)
		scopes = slices.Compact(scopes)

		rawKey, err := store.GenerateRawKey()
		if err != nil {
			slog.Error("failed to generate api key", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not create key", nil)
			return
		}
		key, err := store.NewAPIKey(name, rawKey, scopes)
		if err != nil {
			slog.Error("failed to hash api key", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not create key", nil)
			return
		}

		if err := keys.CreateAPIKey(r.Context(), key); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				response.Error(w, http.StatusConflict, "KEY_NAME_TAKEN", "An active key already has this name", nil)
				return
			}
			slog.Error("failed to store api key", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not create key", nil)
			return
		}

		slog.Info("api key created", "key_id", key.ID, "key_prefix", key.KeyPrefix, "scopes", key.Scopes)
		response.Created(w, createdKeyResponse{
			ID:        key.ID,
			Name:      key.Name,
			Key:       rawKey,
			KeyPrefix: key.KeyPrefix,
			Scopes:    key.Scopes,
			CreatedAt: key.CreatedAt,
		})
	}
}

// NewListKeysHandler returns an http.HandlerFunc for GET /api/v1/admin/keys.
func NewListKeysHandler(keys KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := keys.ListAPIKeys(r.Context())
		if err != nil {
			slog.Error("failed to list api keys", "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not list keys", nil)
			return
		}
		if list == nil {
			list = []*models.APIKey{}
		}
		response.JSON(w, list)
	}
}

// NewRevokeKeyHandler returns an http.HandlerFunc for DELETE /api/v1/admin/keys/{keyID}.
func NewRevokeKeyHandler(keys KeyStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "keyID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "keyID must be a UUID", nil)
			return
		}

		if err := keys.RevokeAPIKey(r.Context(), id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Key not found", nil)
				return
			}
			slog.Error("failed to revoke api key", "key_id", id, "error", err)
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Could not revoke key", nil)
			return
		}

		slog.Info("api key revoked", "key_id", id)
		response.NoContent(w)
	}
}

type createdKeyResponse struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Key       string    `json:"key"`
	KeyPrefix string    `json:"key_prefix"`
	Scopes    []string  `json:"scopes"`
	CreatedAt time.Time `json:"created_at"`
}
