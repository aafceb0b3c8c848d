package db

import (
	"time"
)

/* Request status values */
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
	StatusExpired  = "expired"
)

/* Urgency levels */
const (
	UrgencyLow      = "low"
	UrgencyNormal   = "normal"
	UrgencyHigh     = "high"
	UrgencyCritical = "critical"
)

/* ValidUrgency reports whether u is one of the four urgency levels */
func ValidUrgency(u string) bool {
	switch u {
	case UrgencyLow, UrgencyNormal, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

/* ApprovalRequest is the unit of work being authorized */
type ApprovalRequest struct {
	ID             string                 `json:"id"`
	Action         string                 `json:"action"`
	Params         map[string]interface{} `json:"params"`
	Context        map[string]interface{} `json:"context"`
	Status         string                 `json:"status"`
	Urgency        string                 `json:"urgency"`
	DecidedBy      *string                `json:"decidedBy,omitempty"`
	DecidedAt      *time.Time             `json:"decidedAt,omitempty"`
	DecisionReason *string                `json:"decisionReason,omitempty"`
	ExpiresAt      *time.Time             `json:"expiresAt,omitempty"`
	CreatedAt      time.Time              `json:"createdAt"`
	UpdatedAt      time.Time              `json:"updatedAt"`
}

/* Policy decision kinds */
const (
	DecisionAutoApprove  = "auto_approve"
	DecisionAutoDeny     = "auto_deny"
	DecisionRouteToHuman = "route_to_human"
	DecisionRouteToAgent = "route_to_agent"
)

/* ValidRuleDecision reports whether d is a recognized rule decision */
func ValidRuleDecision(d string) bool {
	switch d {
	case DecisionAutoApprove, DecisionAutoDeny, DecisionRouteToHuman, DecisionRouteToAgent:
		return true
	}
	return false
}

/* MatchPredicate is an optional-field predicate over a request. A nil field
 * does not participate in matching. Map fields match partially: every key in
 * the predicate must be present in the request's map with an equal value. */
type MatchPredicate struct {
	Action  *string                `json:"action,omitempty" yaml:"action,omitempty"`
	Urgency *string                `json:"urgency,omitempty" yaml:"urgency,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty" yaml:"params,omitempty"`
	Context map[string]interface{} `json:"context,omitempty" yaml:"context,omitempty"`
}

/* PolicyRule maps a match predicate to a decision */
type PolicyRule struct {
	Match    MatchPredicate `json:"match" yaml:"match"`
	Decision string         `json:"decision" yaml:"decision"`
}

/* Policy is an ordered, priority-ranked rule list. Lower priority evaluates
 * first; ties break on original order. */
type Policy struct {
	ID          string       `json:"id" yaml:"id,omitempty"`
	Name        string       `json:"name" yaml:"name"`
	Description *string      `json:"description,omitempty" yaml:"description,omitempty"`
	Rules       []PolicyRule `json:"rules" yaml:"rules"`
	Priority    int          `json:"priority" yaml:"priority"`
	Enabled     bool         `json:"enabled" yaml:"enabled"`
	CreatedAt   time.Time    `json:"createdAt" yaml:"-"`
	UpdatedAt   time.Time    `json:"updatedAt" yaml:"-"`
}

/* APIKey represents an API key credential. The plaintext secret is never
 * stored; KeyHash holds a bcrypt hash and KeyPrefix the lookup prefix. */
type APIKey struct {
	ID         string     `json:"id"`
	KeyHash    string     `json:"-"`
	KeyPrefix  string     `json:"keyPrefix"`
	Name       string     `json:"name"`
	Scopes     []string   `json:"scopes"`
	RateLimit  *int       `json:"rateLimit,omitempty"`
	ExpiresAt  *time.Time `json:"expiresAt,omitempty"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	RevokedAt  *time.Time `json:"revokedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

/* User represents an externally-authenticated user account */
type User struct {
	ID          string     `json:"id"`
	Subject     string     `json:"subject"`
	Email       string     `json:"email"`
	DisplayName string     `json:"displayName"`
	Role        string     `json:"role"`
	TenantID    string     `json:"tenantId"`
	DisabledAt  *time.Time `json:"disabledAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

/* Decision token actions */
const (
	TokenActionApprove = "approve"
	TokenActionDeny    = "deny"
)

/* DecidedBy sentinels for non-human decision paths */
const (
	DecidedByPolicy = "policy"
	DecidedByToken  = "token"
	ActorSystem     = "system"
)

/* DecisionToken is a single-use one-click decision credential. SecretHash is
 * the SHA-256 of the opaque secret; the secret itself only appears in the
 * issued URL. Tokens for one request are siblings: consuming either marks
 * both used. */
type DecisionToken struct {
	ID         string     `json:"id"`
	RequestID  string     `json:"requestId"`
	Action     string     `json:"action"`
	SecretHash string     `json:"-"`
	ExpiresAt  time.Time  `json:"expiresAt"`
	UsedAt     *time.Time `json:"usedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
}

/* Webhook is a subscription to decision events. Events may contain the
 * wildcard "*". */
type Webhook struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Secret    string    `json:"-"`
	Events    []string  `json:"events"`
	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

/* Webhook delivery status values */
const (
	DeliverySuccess = "success"
	DeliveryPending = "pending"
	DeliveryFailed  = "failed"
)

/* WebhookDelivery is one attempt-cycle of delivering an event to a webhook */
type WebhookDelivery struct {
	ID            string                 `json:"id"`
	WebhookID     string                 `json:"webhookId"`
	Event         string                 `json:"event"`
	Payload       map[string]interface{} `json:"payload"`
	Status        string                 `json:"status"`
	Attempts      int                    `json:"attempts"`
	ResponseCode  *int                   `json:"responseCode,omitempty"`
	ResponseBody  *string                `json:"responseBody,omitempty"`
	LastAttemptAt *time.Time             `json:"lastAttemptAt,omitempty"`
	CreatedAt     time.Time              `json:"createdAt"`
}

/* Audit event types */
const (
	AuditCreated  = "created"
	AuditApproved = "approved"
	AuditDenied   = "denied"
	AuditExpired  = "expired"
	AuditViewed   = "viewed"
)

/* AuditLogEntry is an immutable record of a lifecycle event. Append-only,
 * never mutated or deleted. */
type AuditLogEntry struct {
	ID        string                 `json:"id"`
	RequestID string                 `json:"requestId"`
	EventType string                 `json:"eventType"`
	Actor     string                 `json:"actor"`
	Details   map[string]interface{} `json:"details,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

/* RequestListFilter narrows request listings. Empty fields match
 * everything. */
type RequestListFilter struct {
	Status string
	Action string
	Limit  int
	Offset int
}

/* RefreshToken backs the collaborator-owned session surface. TokenHash is
 * the SHA-256 of the refresh secret; rotation replaces the row. */
type RefreshToken struct {
	ID        string     `json:"id"`
	UserID    string     `json:"userId"`
	TokenHash string     `json:"-"`
	ExpiresAt time.Time  `json:"expiresAt"`
	RevokedAt *time.Time `json:"revokedAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}
