package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/agentgate/agentgate/internal/apperrors"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Webhook operations

// CreateWebhook creates a new webhook subscription
func (q *Queries) CreateWebhook(ctx context.Context, hook *Webhook) error {
	if hook.ID == "" {
		hook.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	hook.CreatedAt = now
	hook.UpdatedAt = now

	query := `
		INSERT INTO webhooks (id, url, secret, events, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := q.db.ExecContext(ctx, query,
		hook.ID, hook.URL, hook.Secret, pq.Array(hook.Events),
		hook.Enabled, hook.CreatedAt, hook.UpdatedAt)
	return err
}

// GetWebhook gets a webhook by ID
func (q *Queries) GetWebhook(ctx context.Context, id string) (*Webhook, error) {
	query := `
		SELECT id, url, secret, events, enabled, created_at, updated_at
		FROM webhooks
		WHERE id = $1
	`
	hook, err := scanWebhook(q.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, apperrors.NotFound("webhook %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return hook, nil
}

// ListWebhooks lists all webhooks
func (q *Queries) ListWebhooks(ctx context.Context) ([]Webhook, error) {
	query := `
		SELECT id, url, secret, events, enabled, created_at, updated_at
		FROM webhooks
		ORDER BY created_at ASC
	`
	return q.queryWebhooks(ctx, query)
}

// ListWebhooksForEvent lists enabled webhooks subscribed to an event,
// honoring the "*" wildcard subscription.
func (q *Queries) ListWebhooksForEvent(ctx context.Context, event string) ([]Webhook, error) {
	query := `
		SELECT id, url, secret, events, enabled, created_at, updated_at
		FROM webhooks
		WHERE enabled = true AND ($1 = ANY(events) OR '*' = ANY(events))
		ORDER BY created_at ASC
	`
	return q.queryWebhooks(ctx, query, event)
}

func (q *Queries) queryWebhooks(ctx context.Context, query string, args ...interface{}) ([]Webhook, error) {
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hooks []Webhook
	for rows.Next() {
		hook, err := scanWebhook(rows)
		if err != nil {
			return nil, err
		}
		hooks = append(hooks, *hook)
	}
	return hooks, rows.Err()
}

// UpdateWebhook updates a webhook
func (q *Queries) UpdateWebhook(ctx context.Context, hook *Webhook) error {
	hook.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE webhooks
		SET url = $2, secret = $3, events = $4, enabled = $5, updated_at = $6
		WHERE id = $1
	`
	result, err := q.db.ExecContext(ctx, query,
		hook.ID, hook.URL, hook.Secret, pq.Array(hook.Events), hook.Enabled, hook.UpdatedAt)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.NotFound("webhook %s not found", hook.ID)
	}
	return nil
}

// DisableWebhook disables a webhook without deleting its delivery history
func (q *Queries) DisableWebhook(ctx context.Context, id string) error {
	query := `UPDATE webhooks SET enabled = false, updated_at = $2 WHERE id = $1`
	result, err := q.db.ExecContext(ctx, query, id, time.Now().UTC())
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.NotFound("webhook %s not found", id)
	}
	return nil
}

func scanWebhook(row rowScanner) (*Webhook, error) {
	var hook Webhook
	err := row.Scan(
		&hook.ID, &hook.URL, &hook.Secret, pq.Array(&hook.Events),
		&hook.Enabled, &hook.CreatedAt, &hook.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &hook, nil
}

// Delivery operations

// CreateDelivery records a webhook delivery attempt
func (q *Queries) CreateDelivery(ctx context.Context, delivery *WebhookDelivery) error {
	if delivery.ID == "" {
		delivery.ID = uuid.New().String()
	}
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = time.Now().UTC()
	}

	payloadJSON, _ := json.Marshal(delivery.Payload)

	query := `
		INSERT INTO webhook_deliveries (id, webhook_id, event, payload, status, attempts, response_code, response_body, last_attempt_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := q.db.ExecContext(ctx, query,
		delivery.ID, delivery.WebhookID, delivery.Event, payloadJSON,
		delivery.Status, delivery.Attempts, delivery.ResponseCode,
		delivery.ResponseBody, delivery.LastAttemptAt, delivery.CreatedAt)
	return err
}

// UpdateDelivery updates a delivery record after an attempt
func (q *Queries) UpdateDelivery(ctx context.Context, delivery *WebhookDelivery) error {
	query := `
		UPDATE webhook_deliveries
		SET status = $2, attempts = $3, response_code = $4, response_body = $5, last_attempt_at = $6
		WHERE id = $1
	`
	result, err := q.db.ExecContext(ctx, query,
		delivery.ID, delivery.Status, delivery.Attempts, delivery.ResponseCode,
		delivery.ResponseBody, delivery.LastAttemptAt)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return apperrors.NotFound("delivery %s not found", delivery.ID)
	}
	return nil
}

// ListDeliveries lists delivery records for a webhook, newest first
func (q *Queries) ListDeliveries(ctx context.Context, webhookID string, limit int) ([]WebhookDelivery, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, webhook_id, event, payload, status, attempts, response_code, response_body, last_attempt_at, created_at
		FROM webhook_deliveries
		WHERE webhook_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := q.db.QueryContext(ctx, query, webhookID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []WebhookDelivery
	for rows.Next() {
		var d WebhookDelivery
		var payloadJSON []byte
		var responseCode sql.NullInt64
		var responseBody sql.NullString
		var lastAttemptAt sql.NullTime

		err := rows.Scan(
			&d.ID, &d.WebhookID, &d.Event, &payloadJSON, &d.Status, &d.Attempts,
			&responseCode, &responseBody, &lastAttemptAt, &d.CreatedAt)
		if err != nil {
			return nil, err
		}

		if len(payloadJSON) > 0 {
			json.Unmarshal(payloadJSON, &d.Payload)
		}
		if responseCode.Valid {
			code := int(responseCode.Int64)
			d.ResponseCode = &code
		}
		if responseBody.Valid {
			d.ResponseBody = &responseBody.String
		}
		if lastAttemptAt.Valid {
			d.LastAttemptAt = &lastAttemptAt.Time
		}

		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}
