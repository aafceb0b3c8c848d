package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/agentgate/agentgate/internal/apperrors"
	"github.com/google/uuid"
)

// Refresh token operations

// CreateRefreshToken stores a refresh token hash
func (q *Queries) CreateRefreshToken(ctx context.Context, token *RefreshToken) error {
	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, revoked_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := q.db.ExecContext(ctx, query,
		token.ID, token.UserID, token.TokenHash, token.ExpiresAt,
		token.RevokedAt, token.CreatedAt)
	return err
}

// GetRefreshTokenByHash gets a refresh token by its hash
func (q *Queries) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*RefreshToken, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	var token RefreshToken
	var revokedAt sql.NullTime
	err := q.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.ID, &token.UserID, &token.TokenHash, &token.ExpiresAt,
		&revokedAt, &token.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("refresh token not found")
	}
	if err != nil {
		return nil, err
	}
	if revokedAt.Valid {
		token.RevokedAt = &revokedAt.Time
	}
	return &token, nil
}

// RevokeRefreshToken revokes a refresh token
func (q *Queries) RevokeRefreshToken(ctx context.Context, id string, at time.Time) error {
	query := `UPDATE refresh_tokens SET revoked_at = $2 WHERE id = $1 AND revoked_at IS NULL`
	result, err := q.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.NotFound("refresh token %s not found or already revoked", id)
	}
	return nil
}
