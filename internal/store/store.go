package store

import (
	"context"
	"time"

	"github.com/agentgate/agentgate/internal/db"
)

// The persistence collaborator behind the lifecycle engine. Implementations
// must return apperrors.NotFound for missing rows and apperrors.Conflict for
// conditional updates that matched no row; the conditional primitives are the
// race-resolution mechanism, so no caller-side locking is assumed.

/* RequestStore persists approval requests */
type RequestStore interface {
	CreateRequest(ctx context.Context, req *db.ApprovalRequest) error
	GetRequest(ctx context.Context, id string) (*db.ApprovalRequest, error)
	ListRequests(ctx context.Context, filter db.RequestListFilter) ([]db.ApprovalRequest, error)

	// TransitionRequest moves a pending request to a terminal status in one
	// conditional write. Exactly one concurrent caller succeeds; the rest
	// receive a Conflict error.
	TransitionRequest(ctx context.Context, id, status, decidedBy string, reason *string, at time.Time) error

	// ListOverdueRequests returns pending requests whose expiry passed.
	ListOverdueRequests(ctx context.Context, now time.Time, limit int) ([]db.ApprovalRequest, error)
}

/* PolicyStore persists policies */
type PolicyStore interface {
	CreatePolicy(ctx context.Context, policy *db.Policy) error
	GetPolicy(ctx context.Context, id string) (*db.Policy, error)
	ListPolicies(ctx context.Context, enabledOnly bool) ([]db.Policy, error)
	UpdatePolicy(ctx context.Context, policy *db.Policy) error
	DeletePolicy(ctx context.Context, id string) error

	// ReplacePolicies swaps the full policy set for the given one in a
	// single transaction. Import is a snapshot restore, not a merge; a
	// failed replace leaves the existing set untouched.
	ReplacePolicies(ctx context.Context, policies []db.Policy) error
}

/* KeyStore persists API keys. Keys are soft-revoked, never hard-deleted. */
type KeyStore interface {
	CreateAPIKey(ctx context.Context, key *db.APIKey) error
	GetAPIKey(ctx context.Context, id string) (*db.APIKey, error)
	GetAPIKeyByPrefix(ctx context.Context, prefix string) (*db.APIKey, error)
	ListAPIKeys(ctx context.Context) ([]db.APIKey, error)
	UpdateAPIKey(ctx context.Context, key *db.APIKey) error
	RevokeAPIKey(ctx context.Context, id string, at time.Time) error
	TouchAPIKey(ctx context.Context, id string, at time.Time) error
}

/* UserStore persists externally-authenticated users */
type UserStore interface {
	UpsertUserBySubject(ctx context.Context, user *db.User) error
	GetUserByID(ctx context.Context, id string) (*db.User, error)
	GetUserBySubject(ctx context.Context, subject string) (*db.User, error)
}

/* TokenStore persists decision token pairs */
type TokenStore interface {
	CreateTokenPair(ctx context.Context, approve, deny *db.DecisionToken) error
	GetTokenBySecretHash(ctx context.Context, secretHash string) (*db.DecisionToken, error)

	// MarkRequestTokensUsed marks every unused token for requestID as used in
	// one conditional bulk update and returns how many rows it claimed. Zero
	// means another redeemer already claimed the pair.
	MarkRequestTokensUsed(ctx context.Context, requestID string, at time.Time) (int, error)
}

/* WebhookStore persists webhooks and their delivery records */
type WebhookStore interface {
	CreateWebhook(ctx context.Context, hook *db.Webhook) error
	GetWebhook(ctx context.Context, id string) (*db.Webhook, error)
	ListWebhooks(ctx context.Context) ([]db.Webhook, error)
	ListWebhooksForEvent(ctx context.Context, event string) ([]db.Webhook, error)
	UpdateWebhook(ctx context.Context, hook *db.Webhook) error
	DisableWebhook(ctx context.Context, id string) error

	CreateDelivery(ctx context.Context, delivery *db.WebhookDelivery) error
	UpdateDelivery(ctx context.Context, delivery *db.WebhookDelivery) error
	ListDeliveries(ctx context.Context, webhookID string, limit int) ([]db.WebhookDelivery, error)
}

/* AuditStore is append-only; entries are never mutated or deleted */
type AuditStore interface {
	AppendAuditEntry(ctx context.Context, entry *db.AuditLogEntry) error
	ListAuditEntries(ctx context.Context, requestID string) ([]db.AuditLogEntry, error)
}

/* SessionStore persists refresh-token hashes for the session surface */
type SessionStore interface {
	CreateRefreshToken(ctx context.Context, token *db.RefreshToken) error
	GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*db.RefreshToken, error)
	RevokeRefreshToken(ctx context.Context, id string, at time.Time) error
}

/* Store aggregates every persistence concern the gateway needs */
type Store interface {
	RequestStore
	PolicyStore
	KeyStore
	UserStore
	TokenStore
	WebhookStore
	AuditStore
	SessionStore
}

var _ Store = (*db.Queries)(nil)
