package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/agentgate/agentgate/internal/apperrors"
	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
)

// Queries provides database operations over the relational store
type Queries struct {
	db *sql.DB
}

// NewQueries creates a new Queries instance
func NewQueries(db *sql.DB) *Queries {
	return &Queries{db: db}
}

// GetDB returns the underlying database connection
func (q *Queries) GetDB() *sql.DB {
	return q.db
}

// Approval request operations

// CreateRequest creates a new approval request
func (q *Queries) CreateRequest(ctx context.Context, req *ApprovalRequest) error {
	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.UpdatedAt = req.CreatedAt

	paramsJSON, _ := json.Marshal(req.Params)
	contextJSON, _ := json.Marshal(req.Context)

	query := `
		INSERT INTO approval_requests (id, action, params, context, status, urgency, decided_by, decided_at, decision_reason, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	_, err := q.db.ExecContext(ctx, query,
		req.ID, req.Action, paramsJSON, contextJSON, req.Status, req.Urgency,
		req.DecidedBy, req.DecidedAt, req.DecisionReason, req.ExpiresAt,
		req.CreatedAt, req.UpdatedAt)
	return err
}

// GetRequest gets an approval request by ID
func (q *Queries) GetRequest(ctx context.Context, id string) (*ApprovalRequest, error) {
	query := `
		SELECT id, action, params, context, status, urgency, decided_by, decided_at, decision_reason, expires_at, created_at, updated_at
		FROM approval_requests
		WHERE id = $1
	`
	req, err := scanRequest(q.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("request %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return req, nil
}

// ListRequests lists approval requests, newest first
func (q *Queries) ListRequests(ctx context.Context, filter RequestListFilter) ([]ApprovalRequest, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}

	query := `
		SELECT id, action, params, context, status, urgency, decided_by, decided_at, decision_reason, expires_at, created_at, updated_at
		FROM approval_requests
		WHERE ($1 = '' OR status = $1)
		  AND ($2 = '' OR action = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`
	rows, err := q.db.QueryContext(ctx, query, filter.Status, filter.Action, limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []ApprovalRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

// TransitionRequest moves a pending request to a terminal status. The WHERE
// status='pending' condition makes the write the race-resolution mechanism:
// exactly one concurrent caller observes RowsAffected=1.
func (q *Queries) TransitionRequest(ctx context.Context, id, status, decidedBy string, reason *string, at time.Time) error {
	query := `
		UPDATE approval_requests
		SET status = $2, decided_by = $3, decided_at = $4, decision_reason = $5, updated_at = $4
		WHERE id = $1 AND status = 'pending'
	`
	result, err := q.db.ExecContext(ctx, query, id, status, decidedBy, at, reason)
	if err != nil {
		return err
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		/* Either the request doesn't exist or it is no longer pending */
		existing, err := q.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		return apperrors.Conflict("request %s already %s", id, existing.Status)
	}
	return nil
}

// ListOverdueRequests returns pending requests whose expiry has passed
func (q *Queries) ListOverdueRequests(ctx context.Context, now time.Time, limit int) ([]ApprovalRequest, error) {
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT id, action, params, context, status, urgency, decided_by, decided_at, decision_reason, expires_at, created_at, updated_at
		FROM approval_requests
		WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at < $1
		ORDER BY expires_at ASC
		LIMIT $2
	`
	rows, err := q.db.QueryContext(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var requests []ApprovalRequest
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (*ApprovalRequest, error) {
	var req ApprovalRequest
	var paramsJSON, contextJSON []byte
	var decidedBy, decisionReason sql.NullString
	var decidedAt, expiresAt sql.NullTime

	err := row.Scan(
		&req.ID, &req.Action, &paramsJSON, &contextJSON, &req.Status, &req.Urgency,
		&decidedBy, &decidedAt, &decisionReason, &expiresAt,
		&req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if decidedBy.Valid {
		req.DecidedBy = &decidedBy.String
	}
	if decidedAt.Valid {
		req.DecidedAt = &decidedAt.Time
	}
	if decisionReason.Valid {
		req.DecisionReason = &decisionReason.String
	}
	if expiresAt.Valid {
		req.ExpiresAt = &expiresAt.Time
	}

	if len(paramsJSON) > 0 {
		json.Unmarshal(paramsJSON, &req.Params)
	}
	if len(contextJSON) > 0 {
		json.Unmarshal(contextJSON, &req.Context)
	}

	return &req, nil
}
