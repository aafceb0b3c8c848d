package store

import (
	"context"
	"testing"
	"time"

	"github.com/agentgate/agentgate/internal/apperrors"
	"github.com/agentgate/agentgate/internal/db"
)

func pendingRequest(t *testing.T, m *Memory) *db.ApprovalRequest {
	t.Helper()
	req := &db.ApprovalRequest{
		Action:  "deploy",
		Status:  db.StatusPending,
		Urgency: db.UrgencyNormal,
	}
	if err := m.CreateRequest(context.Background(), req); err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	return req
}

func TestTransitionRequest_OnlyFromPending(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	req := pendingRequest(t, m)

	if err := m.TransitionRequest(ctx, req.ID, db.StatusApproved, "alice", nil, time.Now().UTC()); err != nil {
		t.Fatalf("TransitionRequest() error = %v", err)
	}

	err := m.TransitionRequest(ctx, req.ID, db.StatusDenied, "bob", nil, time.Now().UTC())
	if !apperrors.Is(err, apperrors.KindConflict) {
		t.Errorf("second transition error = %v, want conflict", err)
	}

	got, _ := m.GetRequest(ctx, req.ID)
	if got.Status != db.StatusApproved {
		t.Errorf("status = %q, want approved", got.Status)
	}
}

func TestTransitionRequest_UnknownRequest(t *testing.T) {
	m := NewMemory()

	err := m.TransitionRequest(context.Background(), "missing", db.StatusApproved, "alice", nil, time.Now().UTC())
	if !apperrors.Is(err, apperrors.KindNotFound) {
		t.Errorf("error = %v, want not found", err)
	}
}

func TestMarkRequestTokensUsed_ClaimsOnce(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	req := pendingRequest(t, m)

	expires := time.Now().UTC().Add(time.Hour)
	approve := &db.DecisionToken{RequestID: req.ID, Action: db.TokenActionApprove, SecretHash: "h1", ExpiresAt: expires}
	deny := &db.DecisionToken{RequestID: req.ID, Action: db.TokenActionDeny, SecretHash: "h2", ExpiresAt: expires}
	if err := m.CreateTokenPair(ctx, approve, deny); err != nil {
		t.Fatalf("CreateTokenPair() error = %v", err)
	}

	claimed, err := m.MarkRequestTokensUsed(ctx, req.ID, time.Now().UTC())
	if err != nil {
		t.Fatalf("MarkRequestTokensUsed() error = %v", err)
	}
	if claimed != 2 {
		t.Errorf("claimed = %d, want 2", claimed)
	}

	claimed, _ = m.MarkRequestTokensUsed(ctx, req.ID, time.Now().UTC())
	if claimed != 0 {
		t.Errorf("second claim = %d, want 0", claimed)
	}
}

func TestListRequests_FiltersAndPaging(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		pendingRequest(t, m)
	}
	decided := pendingRequest(t, m)
	m.TransitionRequest(ctx, decided.ID, db.StatusApproved, "alice", nil, time.Now().UTC())

	pending, _ := m.ListRequests(ctx, db.RequestListFilter{Status: db.StatusPending})
	if len(pending) != 3 {
		t.Errorf("pending = %d, want 3", len(pending))
	}

	page, _ := m.ListRequests(ctx, db.RequestListFilter{Limit: 2, Offset: 1})
	if len(page) != 2 {
		t.Errorf("page = %d, want 2", len(page))
	}

	past, _ := m.ListRequests(ctx, db.RequestListFilter{Offset: 100})
	if len(past) != 0 {
		t.Errorf("past end = %d, want 0", len(past))
	}
}

func TestListPolicies_EvaluationOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, p := range []*db.Policy{
		{Name: "low priority", Priority: 20, Enabled: true, Rules: []db.PolicyRule{{Decision: db.DecisionAutoApprove}}},
		{Name: "high priority", Priority: 1, Enabled: true, Rules: []db.PolicyRule{{Decision: db.DecisionAutoDeny}}},
		{Name: "disabled", Priority: 0, Enabled: false, Rules: []db.PolicyRule{{Decision: db.DecisionAutoDeny}}},
	} {
		if err := m.CreatePolicy(ctx, p); err != nil {
			t.Fatalf("CreatePolicy() error = %v", err)
		}
	}

	all, _ := m.ListPolicies(ctx, false)
	if len(all) != 3 {
		t.Fatalf("all = %d, want 3", len(all))
	}
	if all[0].Name != "disabled" {
		t.Errorf("first = %q, want lowest priority first", all[0].Name)
	}

	enabled, _ := m.ListPolicies(ctx, true)
	if len(enabled) != 2 {
		t.Fatalf("enabled = %d, want 2", len(enabled))
	}
	if enabled[0].Name != "high priority" {
		t.Errorf("first enabled = %q", enabled[0].Name)
	}
}

func TestReplacePolicies_SwapsSetAndKeepsDocumentOrder(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	stale := &db.Policy{Name: "stale", Priority: 1, Enabled: true, Rules: []db.PolicyRule{{Decision: db.DecisionAutoDeny}}}
	if err := m.CreatePolicy(ctx, stale); err != nil {
		t.Fatalf("CreatePolicy() error = %v", err)
	}

	err := m.ReplacePolicies(ctx, []db.Policy{
		{Name: "first", Priority: 5, Enabled: true, Rules: []db.PolicyRule{{Decision: db.DecisionAutoApprove}}},
		{Name: "second", Priority: 5, Enabled: true, Rules: []db.PolicyRule{{Decision: db.DecisionAutoDeny}}},
	})
	if err != nil {
		t.Fatalf("ReplacePolicies() error = %v", err)
	}

	if _, err := m.GetPolicy(ctx, stale.ID); !apperrors.Is(err, apperrors.KindNotFound) {
		t.Errorf("stale policy error = %v, want not found", err)
	}

	all, _ := m.ListPolicies(ctx, false)
	if len(all) != 2 {
		t.Fatalf("policies = %d, want 2", len(all))
	}
	if all[0].Name != "first" || all[1].Name != "second" {
		t.Errorf("order = %q, %q, want document order on equal priority", all[0].Name, all[1].Name)
	}
}

func TestAuditEntriesAreAppendOnlyPerRequest(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	req := pendingRequest(t, m)

	for _, event := range []string{db.AuditCreated, db.AuditApproved} {
		entry := &db.AuditLogEntry{RequestID: req.ID, EventType: event, Actor: "alice"}
		if err := m.AppendAuditEntry(ctx, entry); err != nil {
			t.Fatalf("AppendAuditEntry() error = %v", err)
		}
	}
	m.AppendAuditEntry(ctx, &db.AuditLogEntry{RequestID: "other", EventType: db.AuditCreated, Actor: "bob"})

	entries, _ := m.ListAuditEntries(ctx, req.ID)
	if len(entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(entries))
	}
	if entries[0].EventType != db.AuditCreated || entries[1].EventType != db.AuditApproved {
		t.Errorf("order = %q, %q", entries[0].EventType, entries[1].EventType)
	}
}
