package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/agentgate/agentgate/internal/apperrors"
	"github.com/agentgate/agentgate/internal/db"
)

/* Memory is an in-process Store used by tests and single-node development.
 * All conditional updates are serialized by one mutex, which gives the same
 * exactly-one-winner semantics as the SQL conditional writes. */
type Memory struct {
	mu            sync.Mutex
	requests      map[string]*db.ApprovalRequest
	requestOrder  []string
	policies      map[string]*db.Policy
	policyOrder   []string
	apiKeys       map[string]*db.APIKey
	users         map[string]*db.User
	tokens        map[string]*db.DecisionToken
	webhooks      map[string]*db.Webhook
	webhookOrder  []string
	deliveries    map[string]*db.WebhookDelivery
	deliveryOrder []string
	audit         []db.AuditLogEntry
	refreshTokens map[string]*db.RefreshToken
}

/* NewMemory creates an empty in-memory store */
func NewMemory() *Memory {
	return &Memory{
		requests:      make(map[string]*db.ApprovalRequest),
		policies:      make(map[string]*db.Policy),
		apiKeys:       make(map[string]*db.APIKey),
		users:         make(map[string]*db.User),
		tokens:        make(map[string]*db.DecisionToken),
		webhooks:      make(map[string]*db.Webhook),
		deliveries:    make(map[string]*db.WebhookDelivery),
		refreshTokens: make(map[string]*db.RefreshToken),
	}
}

var _ Store = (*Memory)(nil)

/* Request operations */

func (m *Memory) CreateRequest(ctx context.Context, req *db.ApprovalRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if req.ID == "" {
		req.ID = uuid.New().String()
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.UpdatedAt = req.CreatedAt
	cp := *req
	m.requests[req.ID] = &cp
	m.requestOrder = append(m.requestOrder, req.ID)
	return nil
}

func (m *Memory) GetRequest(ctx context.Context, id string) (*db.ApprovalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, apperrors.NotFound("request %s not found", id)
	}
	cp := *req
	return &cp, nil
}

func (m *Memory) ListRequests(ctx context.Context, filter db.RequestListFilter) ([]db.ApprovalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []db.ApprovalRequest
	/* Newest first, matching the SQL ORDER BY created_at DESC */
	for i := len(m.requestOrder) - 1; i >= 0; i-- {
		req := m.requests[m.requestOrder[i]]
		if filter.Status != "" && req.Status != filter.Status {
			continue
		}
		if filter.Action != "" && req.Action != filter.Action {
			continue
		}
		out = append(out, *req)
	}

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	/* Same default and cap as the SQL layer */
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	if limit > 1000 {
		limit = 1000
	}
	if limit < len(out) {
		out = out[:limit]
	}
	return out, nil
}

func (m *Memory) TransitionRequest(ctx context.Context, id, status, decidedBy string, reason *string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return apperrors.NotFound("request %s not found", id)
	}
	if req.Status != db.StatusPending {
		return apperrors.Conflict("request %s already %s", id, req.Status)
	}

	req.Status = status
	req.DecidedBy = &decidedBy
	decidedAt := at
	req.DecidedAt = &decidedAt
	req.DecisionReason = reason
	req.UpdatedAt = at
	return nil
}

func (m *Memory) ListOverdueRequests(ctx context.Context, now time.Time, limit int) ([]db.ApprovalRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []db.ApprovalRequest
	for _, id := range m.requestOrder {
		req := m.requests[id]
		if req.Status != db.StatusPending || req.ExpiresAt == nil || req.ExpiresAt.After(now) {
			continue
		}
		out = append(out, *req)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

/* Policy operations */

func (m *Memory) CreatePolicy(ctx context.Context, policy *db.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if policy.ID == "" {
		policy.ID = uuid.New().String()
	}
	if policy.CreatedAt.IsZero() {
		policy.CreatedAt = time.Now().UTC()
	}
	policy.UpdatedAt = policy.CreatedAt
	cp := *policy
	m.policies[policy.ID] = &cp
	m.policyOrder = append(m.policyOrder, policy.ID)
	return nil
}

func (m *Memory) ReplacePolicies(ctx context.Context, policies []db.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next := make(map[string]*db.Policy, len(policies))
	nextOrder := make([]string, 0, len(policies))
	now := time.Now().UTC()
	for i := range policies {
		policy := &policies[i]
		if policy.ID == "" {
			policy.ID = uuid.New().String()
		}
		policy.CreatedAt = now
		policy.UpdatedAt = now
		cp := *policy
		next[policy.ID] = &cp
		nextOrder = append(nextOrder, policy.ID)
	}
	m.policies = next
	m.policyOrder = nextOrder
	return nil
}

func (m *Memory) GetPolicy(ctx context.Context, id string) (*db.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	policy, ok := m.policies[id]
	if !ok {
		return nil, apperrors.NotFound("policy %s not found", id)
	}
	cp := *policy
	return &cp, nil
}

func (m *Memory) ListPolicies(ctx context.Context, enabledOnly bool) ([]db.Policy, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []db.Policy
	for _, id := range m.policyOrder {
		policy := m.policies[id]
		if enabledOnly && !policy.Enabled {
			continue
		}
		out = append(out, *policy)
	}
	/* Priority ascending, creation order breaking ties. The sort is stable
	 * and the slice is already in creation order. */
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out, nil
}

func (m *Memory) UpdatePolicy(ctx context.Context, policy *db.Policy) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.policies[policy.ID]
	if !ok {
		return apperrors.NotFound("policy %s not found", policy.ID)
	}
	cp := *policy
	cp.CreatedAt = existing.CreatedAt
	m.policies[policy.ID] = &cp
	return nil
}

func (m *Memory) DeletePolicy(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.policies[id]; !ok {
		return apperrors.NotFound("policy %s not found", id)
	}
	delete(m.policies, id)
	for i, pid := range m.policyOrder {
		if pid == id {
			m.policyOrder = append(m.policyOrder[:i], m.policyOrder[i+1:]...)
			break
		}
	}
	return nil
}

/* API key operations */

func (m *Memory) CreateAPIKey(ctx context.Context, key *db.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if key.ID == "" {
		key.ID = uuid.New().String()
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	cp := *key
	m.apiKeys[key.ID] = &cp
	return nil
}

func (m *Memory) GetAPIKey(ctx context.Context, id string) (*db.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key, ok := m.apiKeys[id]
	if !ok {
		return nil, apperrors.NotFound("api key %s not found", id)
	}
	cp := *key
	return &cp, nil
}

func (m *Memory) GetAPIKeyByPrefix(ctx context.Context, prefix string) (*db.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range m.apiKeys {
		if key.KeyPrefix == prefix {
			cp := *key
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("API key not found")
}

func (m *Memory) ListAPIKeys(ctx context.Context) ([]db.APIKey, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []db.APIKey
	for _, key := range m.apiKeys {
		out = append(out, *key)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) UpdateAPIKey(ctx context.Context, key *db.APIKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.apiKeys[key.ID]; !ok {
		return apperrors.NotFound("API key %s not found", key.ID)
	}
	cp := *key
	m.apiKeys[key.ID] = &cp
	return nil
}

func (m *Memory) RevokeAPIKey(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.apiKeys[id]
	if !ok {
		return apperrors.NotFound("API key %s not found", id)
	}
	revokedAt := at
	key.RevokedAt = &revokedAt
	return nil
}

func (m *Memory) TouchAPIKey(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key, ok := m.apiKeys[id]
	if !ok {
		return apperrors.NotFound("API key %s not found", id)
	}
	lastUsed := at
	key.LastUsedAt = &lastUsed
	return nil
}

/* User operations */

func (m *Memory) UpsertUserBySubject(ctx context.Context, user *db.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.users {
		if existing.Subject == user.Subject {
			user.ID = existing.ID
			user.Role = existing.Role
			user.TenantID = existing.TenantID
			user.DisabledAt = existing.DisabledAt
			user.CreatedAt = existing.CreatedAt
			cp := *user
			m.users[existing.ID] = &cp
			return nil
		}
	}
	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	cp := *user
	m.users[user.ID] = &cp
	return nil
}

func (m *Memory) GetUserByID(ctx context.Context, id string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	user, ok := m.users[id]
	if !ok {
		return nil, apperrors.NotFound("user %s not found", id)
	}
	cp := *user
	return &cp, nil
}

func (m *Memory) GetUserBySubject(ctx context.Context, subject string) (*db.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, user := range m.users {
		if user.Subject == subject {
			cp := *user
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("user not found")
}

/* Decision token operations */

func (m *Memory) CreateTokenPair(ctx context.Context, approve, deny *db.DecisionToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, token := range []*db.DecisionToken{approve, deny} {
		if token.ID == "" {
			token.ID = uuid.New().String()
		}
		if token.CreatedAt.IsZero() {
			token.CreatedAt = time.Now().UTC()
		}
	}
	a, d := *approve, *deny
	m.tokens[approve.ID] = &a
	m.tokens[deny.ID] = &d
	return nil
}

func (m *Memory) GetTokenBySecretHash(ctx context.Context, secretHash string) (*db.DecisionToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, token := range m.tokens {
		if token.SecretHash == secretHash {
			cp := *token
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("token not found")
}

func (m *Memory) MarkRequestTokensUsed(ctx context.Context, requestID string, at time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	claimed := 0
	for _, token := range m.tokens {
		if token.RequestID == requestID && token.UsedAt == nil {
			usedAt := at
			token.UsedAt = &usedAt
			claimed++
		}
	}
	return claimed, nil
}

/* Webhook operations */

func (m *Memory) CreateWebhook(ctx context.Context, hook *db.Webhook) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if hook.ID == "" {
		hook.ID = uuid.New().String()
	}
	if hook.CreatedAt.IsZero() {
		hook.CreatedAt = time.Now().UTC()
	}
	hook.UpdatedAt = hook.CreatedAt
	cp := *hook
	m.webhooks[hook.ID] = &cp
	m.webhookOrder = append(m.webhookOrder, hook.ID)
	return nil
}

func (m *Memory) GetWebhook(ctx context.Context, id string) (*db.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	hook, ok := m.webhooks[id]
	if !ok {
		return nil, apperrors.NotFound("webhook %s not found", id)
	}
	cp := *hook
	return &cp, nil
}

func (m *Memory) ListWebhooks(ctx context.Context) ([]db.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []db.Webhook
	for _, id := range m.webhookOrder {
		out = append(out, *m.webhooks[id])
	}
	return out, nil
}

func (m *Memory) ListWebhooksForEvent(ctx context.Context, event string) ([]db.Webhook, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []db.Webhook
	for _, id := range m.webhookOrder {
		hook := m.webhooks[id]
		if !hook.Enabled {
			continue
		}
		if subscribed(hook.Events, event) {
			out = append(out, *hook)
		}
	}
	return out, nil
}

func subscribed(events []string, event string) bool {
	for _, e := range events {
		if e == "*" || strings.EqualFold(e, event) {
			return true
		}
	}
	return false
}

func (m *Memory) UpdateWebhook(ctx context.Context, hook *db.Webhook) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.webhooks[hook.ID]
	if !ok {
		return apperrors.NotFound("webhook %s not found", hook.ID)
	}
	cp := *hook
	cp.CreatedAt = existing.CreatedAt
	m.webhooks[hook.ID] = &cp
	return nil
}

func (m *Memory) DisableWebhook(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	hook, ok := m.webhooks[id]
	if !ok {
		return apperrors.NotFound("webhook %s not found", id)
	}
	hook.Enabled = false
	return nil
}

func (m *Memory) CreateDelivery(ctx context.Context, delivery *db.WebhookDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if delivery.ID == "" {
		delivery.ID = uuid.New().String()
	}
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = time.Now().UTC()
	}
	cp := *delivery
	m.deliveries[delivery.ID] = &cp
	m.deliveryOrder = append(m.deliveryOrder, delivery.ID)
	return nil
}

func (m *Memory) UpdateDelivery(ctx context.Context, delivery *db.WebhookDelivery) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.deliveries[delivery.ID]; !ok {
		return apperrors.NotFound("delivery %s not found", delivery.ID)
	}
	cp := *delivery
	m.deliveries[delivery.ID] = &cp
	return nil
}

func (m *Memory) ListDeliveries(ctx context.Context, webhookID string, limit int) ([]db.WebhookDelivery, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []db.WebhookDelivery
	for i := len(m.deliveryOrder) - 1; i >= 0; i-- {
		delivery := m.deliveries[m.deliveryOrder[i]]
		if webhookID != "" && delivery.WebhookID != webhookID {
			continue
		}
		out = append(out, *delivery)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

/* Audit operations */

func (m *Memory) AppendAuditEntry(ctx context.Context, entry *db.AuditLogEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	m.audit = append(m.audit, *entry)
	return nil
}

func (m *Memory) ListAuditEntries(ctx context.Context, requestID string) ([]db.AuditLogEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []db.AuditLogEntry
	for _, entry := range m.audit {
		if entry.RequestID == requestID {
			out = append(out, entry)
		}
	}
	return out, nil
}

/* Refresh token operations */

func (m *Memory) CreateRefreshToken(ctx context.Context, token *db.RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if token.ID == "" {
		token.ID = uuid.New().String()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	cp := *token
	m.refreshTokens[token.ID] = &cp
	return nil
}

func (m *Memory) GetRefreshTokenByHash(ctx context.Context, tokenHash string) (*db.RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, token := range m.refreshTokens {
		if token.TokenHash == tokenHash {
			cp := *token
			return &cp, nil
		}
	}
	return nil, apperrors.NotFound("refresh token not found")
}

func (m *Memory) RevokeRefreshToken(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	token, ok := m.refreshTokens[id]
	if !ok {
		return apperrors.NotFound("refresh token %s not found", id)
	}
	revokedAt := at
	token.RevokedAt = &revokedAt
	return nil
}
