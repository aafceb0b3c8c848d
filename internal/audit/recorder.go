package audit

import (
	"context"

	"github.com/agentgate/agentgate/internal/db"
	"github.com/agentgate/agentgate/internal/logging"
	"github.com/agentgate/agentgate/internal/store"
)

// Recorder appends lifecycle events to the audit log. The log is the source
// of truth for what happened to a request; a failed append is logged and
// reported but entries are never mutated afterward.
type Recorder struct {
	store  store.AuditStore
	logger *logging.Logger
}

// NewRecorder creates a new audit recorder
func NewRecorder(st store.AuditStore, logger *logging.Logger) *Recorder {
	return &Recorder{store: st, logger: logger}
}

// Record appends one audit entry
func (r *Recorder) Record(ctx context.Context, requestID, eventType, actor string, details map[string]interface{}) error {
	entry := &db.AuditLogEntry{
		RequestID: requestID,
		EventType: eventType,
		Actor:     actor,
		Details:   details,
	}
	if err := r.store.AppendAuditEntry(ctx, entry); err != nil {
		r.logger.Error("failed to append audit entry", err, map[string]interface{}{
			"request_id": requestID,
			"event_type": eventType,
		})
		return err
	}
	return nil
}

// Trail returns the audit entries for a request in insertion order
func (r *Recorder) Trail(ctx context.Context, requestID string) ([]db.AuditLogEntry, error) {
	return r.store.ListAuditEntries(ctx, requestID)
}
