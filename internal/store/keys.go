package store

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kiranshivaraju/medalyze/pkg/models"
	"golang.org/x/crypto/bcrypt"
)

const (
	// KeyPrefixLen is how many leading characters of a raw key are stored in
	// clear for lookup.
	KeyPrefixLen = 8
	rawKeyPrefix = "mdz_"
	rawKeyBytes  = 20

	// BootstrapKeyName names the key seeded from ADMIN_BOOTSTRAP_KEY.
	BootstrapKeyName = "bootstrap-admin"
)

// AllScopes is granted to the bootstrap key.
var AllScopes = []string{models.ScopeAdmin, models.ScopeUpload, models.ScopeRead}

// GenerateRawKey returns a new random key. It is never stored.
func GenerateRawKey() (string, error) {
	b := make([]byte, rawKeyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate api key: %w", err)
	}
	return rawKeyPrefix + hex.EncodeToString(b), nil
}

// NewAPIKey hashes rawKey into an APIKey ready to be created.
func NewAPIKey(name, rawKey string, scopes []string) (*models.APIKey, error) {
	if len(rawKey) < KeyPrefixLen {
		return nil, fmt.Errorf("api key must be at least %d characters", KeyPrefixLen)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(rawKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash api key: %w", err)
	}

	now := time.Now().UTC()
	return &models.APIKey{
		ID:        uuid.New(),
		Name:      name,
		KeyHash:   string(hash),
		KeyPrefix: rawKey[:KeyPrefixLen],
		Scopes:    scopes,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// MatchAPIKey returns the key among candidates whose hash matches rawKey.
func MatchAPIKey(candidates []*models.APIKey, rawKey string) (*models.APIKey, bool) {
	for _, k := range candidates {
		if bcrypt.CompareHashAndPassword([]byte(k.KeyHash), []byte(rawKey)) == nil {
			return k, true
		}
	}
	return nil, false
}

// EnsureBootstrapKey stores rawKey with every scope unless an active key
// already matches it.
func EnsureBootstrapKey(ctx context.Context, s Store, rawKey string) error {
	if len(rawKey) < KeyPrefixLen {
		return fmt.Errorf("bootstrap key must be at least %d characters", KeyPrefixLen)
	}

	existing, err := s.GetAPIKeyByPrefix(ctx, rawKey[:KeyPrefixLen])
	if err != nil {
		return err
	}
	if _, ok := MatchAPIKey(existing, rawKey); ok {
		return nil
	}

	key, err := NewAPIKey(BootstrapKeyName, rawKey, AllScopes)
	if err != nil {
		return err
	}
	if err := s.CreateAPIKey(ctx, key); err != nil {
		if errors.Is(err, ErrDuplicateKey) {
			return fmt.Errorf("a different active key is already named %q: %w", BootstrapKeyName, err)
		}
		return err
	}
	slog.Info("bootstrap api key created", "key_prefix", key.KeyPrefix)
	return nil
}
