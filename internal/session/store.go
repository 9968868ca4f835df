// Package session keeps each browser session's uploaded analysis results.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/medalyze/internal/cache"
	"github.com/kiranshivaraju/medalyze/pkg/models"
)

// Store reads and writes result lists through the cache.
type Store struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewStore creates a Store whose entries expire after ttl of inactivity.
func NewStore(c cache.Cache, ttl time.Duration) *Store {
	return &Store{cache: c, ttl: ttl}
}

// Results returns the session's results, or an empty slice if there are none.
// Reading a session restarts its ttl.
func (s *Store) Results(ctx context.Context, id uuid.UUID) ([]models.AnalysisResult, error) {
	key := cache.SessionKey(id)
	raw, found, err := s.cache.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("reading session: %w", err)
	}
	if !found {
		return []models.AnalysisResult{}, nil
	}

	var results []models.AnalysisResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("decoding session: %w", err)
	}

	if err := s.cache.Set(ctx, key, raw, s.ttl); err != nil {
		slog.Debug("session ttl refresh failed", "session_id", id, "error", err)
	}
	return results, nil
}

// Save replaces the session's results.
func (s *Store) Save(ctx context.Context, id uuid.UUID, results []models.AnalysisResult) error {
	if results == nil {
		results = []models.AnalysisResult{}
	}
	raw, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}
	if err := s.cache.Set(ctx, cache.SessionKey(id), raw, s.ttl); err != nil {
		return fmt.Errorf("writing session: %w", err)
	}
	return nil
}

// Clear drops the session's results.
func (s *Store) Clear(ctx context.Context, id uuid.UUID) error {
	if err := s.cache.Delete(ctx, cache.SessionKey(id)); err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}
