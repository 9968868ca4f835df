package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/kiranshivaraju/medalyze/internal/store"
	"github.com/kiranshivaraju/medalyze/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type mockKeyStore struct {
	created   []*models.APIKey
	createErr error
	listed    []*models.APIKey
	revoked   []uuid.UUID
	revokeErr error
}

func (m *mockKeyStore) CreateAPIKey(_ context.Context, k *models.APIKey) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, k)
	return nil
}

func (m *mockKeyStore) ListAPIKeys(_ context.Context) ([]*models.APIKey, error) {
	return m.listed, nil
}

func (m *mockKeyStore) RevokeAPIKey(_ context.Context, id uuid.UUID) error {
	if m.revokeErr != nil {
		return m.revokeErr
	}
	m.revoked = append(m.revoked, id)
	return nil
}

func createKeyReq(body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/v1/admin/keys", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestCreateKey_Success(t *testing.T) {
	ks := &mockKeyStore{}
	rec := httptest.NewRecorder()
	NewCreateKeyHandler(ks).ServeHTTP(rec, createKeyReq(`{"name": " ci ", "scopes": ["upload", "read", "read"]}`))

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body createdKeyResponse
	decodeData(t, rec, &body)
	assert.Equal(t, "ci", body.Name)
	assert.True(t, strings.HasPrefix(body.Key, "mdz_"))
	assert.Equal(t, body.Key[:store.KeyPrefixLen], body.KeyPrefix)
	assert.Equal(t, []string{"read", "upload"}, body.Scopes)

	require.Len(t, ks.created, 1)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(ks.created[0].KeyHash), []byte(body.Key)))
}

func TestCreateKey_DefaultScope(t *testing.T) {
	ks := &mockKeyStore{}
	rec := httptest.NewRecorder()
	NewCreateKeyHandler(ks).ServeHTTP(rec, createKeyReq(`{"name": "viewer"}`))

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []string{"read"}, ks.created[0].Scopes)
}

func TestCreateKey_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `{`},
		{name: "missing name", body: `{"scopes": ["read"]}`},
		{name: "blank name", body: `{"name": "   "}`},
		{name: "long name", body: `{"name": "` + strings.Repeat("k", 101) + `"}`},
		{name: "unknown scope", body: `{"name": "x", "scopes": ["ingest"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ks := &mockKeyStore{}
			rec := httptest.NewRecorder()
			NewCreateKeyHandler(ks).ServeHTTP(rec, createKeyReq(tt.body))

			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Empty(t, ks.created)
		})
	}
}

func TestCreateKey_DuplicateName(t *testing.T) {
	ks := &mockKeyStore{createErr: store.ErrDuplicateKey}
	rec := httptest.NewRecorder()
	NewCreateKeyHandler(ks).ServeHTTP(rec, createKeyReq(`{"name": "ci"}`))

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "KEY_NAME_TAKEN", decodeError(t, rec)["code"])
}

func TestListKeys_HidesHashes(t *testing.T) {
	ks := &mockKeyStore{listed: []*models.APIKey{{ID: uuid.New(), Name: "ci", KeyHash: "secret-hash", KeyPrefix: "mdz_abcd"}}}
	rec := httptest.NewRecorder()
	NewListKeysHandler(ks).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/keys", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotContains(t, rec.Body.String(), "secret-hash")

	var keys []map[string]any
	decodeData(t, rec, &keys)
	require.Len(t, keys, 1)
	assert.Equal(t, "mdz_abcd", keys[0]["key_prefix"])
}

func TestListKeys_EmptyIsArray(t *testing.T) {
	rec := httptest.NewRecorder()
	NewListKeysHandler(&mockKeyStore{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/admin/keys", nil))

	var env map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Equal(t, "[]", string(env["data"]))
}

func revokeRouter(ks KeyStore) http.Handler {
	r := chi.NewRouter()
	r.Delete("/api/v1/admin/keys/{keyID}", NewRevokeKeyHandler(ks))
	return r
}

func TestRevokeKey(t *testing.T) {
	ks := &mockKeyStore{}
	id := uuid.New()

	rec := httptest.NewRecorder()
	revokeRouter(ks).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/admin/keys/"+id.String(), nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, []uuid.UUID{id}, ks.revoked)
}

func TestRevokeKey_Errors(t *testing.T) {
	rec := httptest.NewRecorder()
	revokeRouter(&mockKeyStore{}).ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/admin/keys/nope", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	revokeRouter(&mockKeyStore{revokeErr: store.ErrNotFound}).ServeHTTP(rec,
		httptest.NewRequest(http.MethodDelete, "/api/v1/admin/keys/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = httptest.NewRecorder()
	revokeRouter(&mockKeyStore{revokeErr: errors.New("db down")}).ServeHTTP(rec,
		httptest.NewRequest(http.MethodDelete, "/api/v1/admin/keys/"+uuid.NewString(), nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
