package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/agentgate/agentgate/internal/apperrors"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// API key operations

// CreateAPIKey creates a new API key record
func (q *Queries) CreateAPIKey(ctx context.Context, key *APIKey) error {
	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO api_keys (id, name, key_hash, key_prefix, scopes, rate_limit, expires_at, revoked_at, last_used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := q.db.ExecContext(ctx, query,
		key.ID, key.Name, key.KeyHash, key.KeyPrefix, pq.Array(key.Scopes),
		key.RateLimit, key.ExpiresAt, key.RevokedAt, key.LastUsedAt, key.CreatedAt)
	return err
}

// GetAPIKey gets an API key by ID
func (q *Queries) GetAPIKey(ctx context.Context, id string) (*APIKey, error) {
	query := `
		SELECT id, name, key_hash, key_prefix, scopes, rate_limit, expires_at, revoked_at, last_used_at, created_at
		FROM api_keys
		WHERE id = $1
	`
	key, err := scanAPIKey(q.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("api key %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

// GetAPIKeyByPrefix gets an API key by its public prefix
func (q *Queries) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*APIKey, error) {
	query := `
		SELECT id, name, key_hash, key_prefix, scopes, rate_limit, expires_at, revoked_at, last_used_at, created_at
		FROM api_keys
		WHERE key_prefix = $1
	`
	key, err := scanAPIKey(q.db.QueryRowContext(ctx, query, prefix))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("api key not found")
	}
	if err != nil {
		return nil, err
	}
	return key, nil
}

// ListAPIKeys lists all API keys, newest first
func (q *Queries) ListAPIKeys(ctx context.Context) ([]APIKey, error) {
	query := `
		SELECT id, name, key_hash, key_prefix, scopes, rate_limit, expires_at, revoked_at, last_used_at, created_at
		FROM api_keys
		ORDER BY created_at DESC
	`
	rows, err := q.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []APIKey
	for rows.Next() {
		key, err := scanAPIKey(rows)
		if err != nil {
			return nil, err
		}
		keys = append(keys, *key)
	}
	return keys, rows.Err()
}

// UpdateAPIKey updates a key's mutable fields
func (q *Queries) UpdateAPIKey(ctx context.Context, key *APIKey) error {
	query := `
		UPDATE api_keys
		SET name = $2, scopes = $3, rate_limit = $4, expires_at = $5
		WHERE id = $1
	`
	result, err := q.db.ExecContext(ctx, query,
		key.ID, key.Name, pq.Array(key.Scopes), key.RateLimit, key.ExpiresAt)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.NotFound("api key %s not found", key.ID)
	}
	return nil
}

// RevokeAPIKey soft-revokes a key. The row stays for audit purposes.
func (q *Queries) RevokeAPIKey(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE api_keys SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`
	result, err := q.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.NotFound("api key %s not found or already revoked", id)
	}
	return nil
}

// TouchAPIKey records key usage
func (q *Queries) TouchAPIKey(ctx context.Context, id string, at time.Time) error {
	_, err := q.db.ExecContext(ctx, `UPDATE api_keys SET last_used_at = $2 WHERE id = $1`, id, at)
	return err
}

func scanAPIKey(row rowScanner) (*APIKey, error) {
	var key APIKey
	var rateLimit sql.NullInt64
	var expiresAt, revokedAt, lastUsedAt sql.NullTime

	err := row.Scan(
		&key.ID, &key.Name, &key.KeyHash, &key.KeyPrefix, pq.Array(&key.Scopes),
		&rateLimit, &expiresAt, &revokedAt, &lastUsedAt, &key.CreatedAt)
	if err != nil {
		return nil, err
	}

	if rateLimit.Valid {
		limit := int(rateLimit.Int64)
		key.RateLimit = &limit
	}
	if expiresAt.Valid {
		key.ExpiresAt = &expiresAt.Time
	}
	if revokedAt.Valid {
		key.RevokedAt = &revokedAt.Time
	}
	if lastUsedAt.Valid {
		key.LastUsedAt = &lastUsedAt.Time
	}

	return &key, nil
}
