package session_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/medalyze/internal/cache"
	"github.com/kiranshivaraju/medalyze/internal/session"
	"github.com/kiranshivaraju/medalyze/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingCache struct {
	*cache.MemoryCache
	err error
}

func (f *failingCache) Get(_ context.Context, _ string) ([]byte, bool, error) {
	return nil, false, f.err
}

type recordingCache struct {
	*cache.MemoryCache
	ttls []time.Duration
}

func (r *recordingCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	r.ttls = append(r.ttls, ttl)
	return r.MemoryCache.Set(ctx, key, value, ttl)
}

func TestStore_EmptySession(t *testing.T) {
	s := session.NewStore(cache.NewMemoryCache(), time.Hour)

	results, err := s.Results(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestStore_SaveReplacesResults(t *testing.T) {
	s := session.NewStore(cache.NewMemoryCache(), time.Hour)
	ctx := context.Background()
	id := uuid.New()

	first := []models.AnalysisResult{{ID: uuid.New(), FileName: "a.txt", AnalysisID: "A"}}
	second := []models.AnalysisResult{
		{ID: uuid.New(), FileName: "b.txt", AnalysisID: "B"},
		{ID: uuid.New(), FileName: "c.txt"},
	}

	require.NoError(t, s.Save(ctx, id, first))
	require.NoError(t, s.Save(ctx, id, second))

	got, err := s.Results(ctx, id)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b.txt", got[0].FileName)
	assert.Equal(t, "", got[1].AnalysisID)
}

func TestStore_SessionsAreIsolated(t *testing.T) {
	s := session.NewStore(cache.NewMemoryCache(), time.Hour)
	ctx := context.Background()
	a, b := uuid.New(), uuid.New()

	require.NoError(t, s.Save(ctx, a, []models.AnalysisResult{{FileName: "a.txt"}}))

	got, err := s.Results(ctx, b)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_Clear(t *testing.T) {
	s := session.NewStore(cache.NewMemoryCache(), time.Hour)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, s.Save(ctx, id, []models.AnalysisResult{{FileName: "a.txt"}}))
	require.NoError(t, s.Clear(ctx, id))

	got, err := s.Results(ctx, id)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_CacheError(t *testing.T) {
	boom := errors.New("redis down")
	s := session.NewStore(&failingCache{MemoryCache: cache.NewMemoryCache(), err: boom}, time.Hour)

	_, err := s.Results(context.Background(), uuid.New())
	assert.ErrorIs(t, err, boom)
}

func TestStore_ResultsRefreshesTTL(t *testing.T) {
	rc := &recordingCache{MemoryCache: cache.NewMemoryCache()}
	s := session.NewStore(rc, 2*time.Hour)
	ctx := context.Background()
	id := uuid.New()

	require.NoError(t, s.Save(ctx, id, []models.AnalysisResult{{FileName: "a.txt"}}))
	for i := 0; i < 2; i++ {
		got, err := s.Results(ctx, id)
		require.NoError(t, err)
		require.Len(t, got, 1)
	}
	assert.Equal(t, []time.Duration{2 * time.Hour, 2 * time.Hour, 2 * time.Hour}, rc.ttls)

	_, err := s.Results(ctx, uuid.New())
	require.NoError(t, err)
	assert.Len(t, rc.ttls, 3, "an unknown session is not created by reading it")
}
