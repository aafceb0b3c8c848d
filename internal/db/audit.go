package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Audit log operations. The table is append-only; there are no update or
// delete statements here on purpose.

// AppendAuditEntry appends an audit log entry
func (q *Queries) AppendAuditEntry(ctx context.Context, entry *AuditLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	detailsJSON, _ := json.Marshal(entry.Details)

	query := `
		INSERT INTO audit_log (id, request_id, event_type, actor, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := q.db.ExecContext(ctx, query,
		entry.ID, entry.RequestID, entry.EventType, entry.Actor,
		detailsJSON, entry.CreatedAt)
	return err
}

// ListAuditEntries lists audit entries for a request in insertion order
func (q *Queries) ListAuditEntries(ctx context.Context, requestID string) ([]AuditLogEntry, error) {
	query := `
		SELECT id, request_id, event_type, actor, details, created_at
		FROM audit_log
		WHERE request_id = $1
		ORDER BY created_at ASC, id ASC
	`
	rows, err := q.db.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []AuditLogEntry
	for rows.Next() {
		var entry AuditLogEntry
		var detailsJSON []byte
		err := rows.Scan(
			&entry.ID, &entry.RequestID, &entry.EventType, &entry.Actor,
			&detailsJSON, &entry.CreatedAt)
		if err != nil {
			return nil, err
		}
		if len(detailsJSON) > 0 {
			json.Unmarshal(detailsJSON, &entry.Details)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
