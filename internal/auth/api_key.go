package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/agentgate/agentgate/internal/apperrors"
	"github.com/agentgate/agentgate/internal/db"
	"github.com/agentgate/agentgate/internal/store"
)

// KeySecretPrefix is the fixed literal that identifies an API-key credential
// on the shared header surface.
const KeySecretPrefix = "agk_"

// APIKeyManager manages API key issuance and validation
type APIKeyManager struct {
	keys store.KeyStore
}

// NewAPIKeyManager creates a new API key manager
func NewAPIKeyManager(keys store.KeyStore) *APIKeyManager {
	return &APIKeyManager{keys: keys}
}

// GenerateAPIKey creates a new API key and returns the plaintext secret
// alongside the stored record. The plaintext is shown exactly once.
func (m *APIKeyManager) GenerateAPIKey(ctx context.Context, name string, scopes []string, rateLimit *int, expiresAt *time.Time) (string, *db.APIKey, error) {
	keyBytes := make([]byte, 32)
	if _, err := rand.Read(keyBytes); err != nil {
		return "", nil, fmt.Errorf("failed to generate key: %w", err)
	}

	secret := KeySecretPrefix + base64.RawURLEncoding.EncodeToString(keyBytes)
	keyHash, err := HashAPIKey(secret)
	if err != nil {
		return "", nil, err
	}

	apiKey := &db.APIKey{
		Name:      name,
		KeyHash:   keyHash,
		KeyPrefix: GetKeyPrefix(secret),
		Scopes:    scopes,
		RateLimit: rateLimit,
		ExpiresAt: expiresAt,
	}
	if err := m.keys.CreateAPIKey(ctx, apiKey); err != nil {
		return "", nil, fmt.Errorf("failed to create API key: %w", err)
	}

	return secret, apiKey, nil
}

// ValidateAPIKey validates a presented secret and returns the key record.
// Failures are reported generically so callers cannot probe which check
// tripped.
func (m *APIKeyManager) ValidateAPIKey(ctx context.Context, secret string) (*db.APIKey, error) {
	if !strings.HasPrefix(secret, KeySecretPrefix) {
		return nil, apperrors.Unauthenticated("invalid API key")
	}

	apiKey, err := m.keys.GetAPIKeyByPrefix(ctx, GetKeyPrefix(secret))
	if err != nil {
		return nil, apperrors.Unauthenticated("invalid API key")
	}

	if !VerifyAPIKey(secret, apiKey.KeyHash) {
		return nil, apperrors.Unauthenticated("invalid API key")
	}
	if apiKey.RevokedAt != nil {
		return nil, apperrors.Unauthenticated("invalid API key")
	}
	if apiKey.ExpiresAt != nil && time.Now().After(*apiKey.ExpiresAt) {
		return nil, apperrors.Unauthenticated("invalid API key")
	}

	_ = m.keys.TouchAPIKey(ctx, apiKey.ID, time.Now().UTC())

	return apiKey, nil
}

// PrincipalForKey builds the principal an API key acts as
func PrincipalForKey(key *db.APIKey) *Principal {
	return &Principal{
		Type:        PrincipalAPIKey,
		ID:          key.ID,
		DisplayName: key.Name,
		Role:        RoleForScopes(key.Scopes),
		Permissions: PermissionsForScopes(key.Scopes),
		RateLimit:   key.RateLimit,
	}
}
