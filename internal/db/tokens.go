package db

import (
	"context"
	"database/sql"
	"time"

	"github.com/agentgate/agentgate/internal/apperrors"
	"github.com/google/uuid"
)

// Decision token operations

// CreateTokenPair inserts the approve and deny tokens for a request in one
// transaction so a request never ends up with half a pair.
func (q *Queries) CreateTokenPair(ctx context.Context, approve, deny *DecisionToken) error {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
		INSERT INTO decision_tokens (id, request_id, action, secret_hash, expires_at, used_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, token := range []*DecisionToken{approve, deny} {
		if token.ID == "" {
			token.ID = uuid.New().String()
		}
		if token.CreatedAt.IsZero() {
			token.CreatedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, query,
			token.ID, token.RequestID, token.Action, token.SecretHash,
			token.ExpiresAt, token.UsedAt, token.CreatedAt); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// GetTokenBySecretHash gets a decision token by the hash of its secret
func (q *Queries) GetTokenBySecretHash(ctx context.Context, secretHash string) (*DecisionToken, error) {
	query := `
		SELECT id, request_id, action, secret_hash, expires_at, used_at, created_at
		FROM decision_tokens
		WHERE secret_hash = $1
	`
	var token DecisionToken
	var usedAt sql.NullTime
	err := q.db.QueryRowContext(ctx, query, secretHash).Scan(
		&token.ID, &token.RequestID, &token.Action, &token.SecretHash,
		&token.ExpiresAt, &usedAt, &token.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("decision token not found")
	}
	if err != nil {
		return nil, err
	}
	if usedAt.Valid {
		token.UsedAt = &usedAt.Time
	}
	return &token, nil
}

// MarkRequestTokensUsed claims every unused token for a request in one
// conditional bulk update. The returned count is zero when another redeemer
// won the race.
func (q *Queries) MarkRequestTokensUsed(ctx context.Context, requestID string, at time.Time) (int, error) {
	query := `UPDATE decision_tokens SET used_at = $2 WHERE request_id = $1 AND used_at IS NULL`
	result, err := q.db.ExecContext(ctx, query, requestID, at)
	if err != nil {
		return 0, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(affected), nil
}
