package token

import (
	"context"
	"testing"
	"time"

	"github.com/agentgate/agentgate/internal/apperrors"
	"github.com/agentgate/agentgate/internal/db"
	"github.com/agentgate/agentgate/internal/store"
)

func newPendingRequest(t *testing.T, st *store.Memory) *db.ApprovalRequest {
	t.Helper()
	req := &db.ApprovalRequest{
		Action:  "deploy",
		Params:  map[string]interface{}{},
		Context: map[string]interface{}{},
		Status:  db.StatusPending,
		Urgency: db.UrgencyNormal,
	}
	if err := st.CreateRequest(context.Background(), req); err != nil {
		t.Fatalf("CreateRequest() error = %v", err)
	}
	return req
}

func storeDecide(st *store.Memory) DecideFunc {
	return func(ctx context.Context, requestID, decision, decidedBy string, reason *string) error {
		return st.TransitionRequest(ctx, requestID, decision, decidedBy, reason, time.Now().UTC())
	}
}

func TestIssuePair(t *testing.T) {
	st := store.NewMemory()
	m := NewManager(st, time.Hour)
	ctx := context.Background()
	req := newPendingRequest(t, st)

	pair, err := m.IssuePair(ctx, req.ID)
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}
	if pair.ApproveSecret == "" || pair.DenySecret == "" {
		t.Fatal("expected non-empty secrets")
	}
	if pair.ApproveSecret == pair.DenySecret {
		t.Fatal("approve and deny secrets must differ")
	}

	// Stored tokens hold hashes, never the secrets
	tok, err := st.GetTokenBySecretHash(ctx, HashSecret(pair.ApproveSecret))
	if err != nil {
		t.Fatalf("GetTokenBySecretHash() error = %v", err)
	}
	if tok.Action != db.TokenActionApprove {
		t.Errorf("action = %q, want %q", tok.Action, db.TokenActionApprove)
	}
	if tok.RequestID != req.ID {
		t.Errorf("requestID = %q, want %q", tok.RequestID, req.ID)
	}
}

func TestIssuePair_DecidedRequestConflicts(t *testing.T) {
	st := store.NewMemory()
	m := NewManager(st, time.Hour)
	ctx := context.Background()
	req := newPendingRequest(t, st)

	if err := st.TransitionRequest(ctx, req.ID, db.StatusApproved, "alice", nil, time.Now().UTC()); err != nil {
		t.Fatalf("TransitionRequest() error = %v", err)
	}

	_, err := m.IssuePair(ctx, req.ID)
	if !apperrors.Is(err, apperrors.KindConflict) {
		t.Errorf("IssuePair() error = %v, want conflict", err)
	}
}

func TestRedeem_ApproveThenSiblingDeny(t *testing.T) {
	st := store.NewMemory()
	m := NewManager(st, time.Hour)
	ctx := context.Background()
	req := newPendingRequest(t, st)

	pair, err := m.IssuePair(ctx, req.ID)
	if err != nil {
		t.Fatalf("IssuePair() error = %v", err)
	}

	result, err := m.Redeem(ctx, pair.ApproveSecret, storeDecide(st))
	if err != nil {
		t.Fatalf("Redeem() error = %v", err)
	}
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %q, want %q", result.Outcome, OutcomeSuccess)
	}

	decided, err := st.GetRequest(ctx, req.ID)
	if err != nil {
		t.Fatalf("GetRequest() error = %v", err)
	}
	if decided.Status != db.StatusApproved {
		t.Errorf("status = %q, want %q", decided.Status, db.StatusApproved)
	}
	if decided.DecidedBy == nil || *decided.DecidedBy != db.DecidedByToken {
		t.Errorf("decidedBy = %v, want %q", decided.DecidedBy, db.DecidedByToken)
	}

	// The deny sibling was invalidated by the approve redemption
	sibling, err := m.Redeem(ctx, pair.DenySecret, storeDecide(st))
	if err != nil {
		t.Fatalf("Redeem() sibling error = %v", err)
	}
	if sibling.Outcome != OutcomeAlreadyUsed {
		t.Errorf("sibling outcome = %q, want %q", sibling.Outcome, OutcomeAlreadyUsed)
	}

	// The request keeps its original decision
	after, _ := st.GetRequest(ctx, req.ID)
	if after.Status != db.StatusApproved {
		t.Errorf("status after sibling = %q, want %q", after.Status, db.StatusApproved)
	}
}

func TestRedeem_DenyToken(t *testing.T) {
	st := store.NewMemory()
	m := NewManager(st, time.Hour)
	ctx := context.Background()
	req := newPendingRequest(t, st)

	pair, _ := m.IssuePair(ctx, req.ID)
	result, err := m.Redeem(ctx, pair.DenySecret, storeDecide(st))
	if err != nil {
		t.Fatalf("Redeem() error = %v", err)
	}
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("outcome = %q, want %q", result.Outcome, OutcomeSuccess)
	}

	decided, _ := st.GetRequest(ctx, req.ID)
	if decided.Status != db.StatusDenied {
		t.Errorf("status = %q, want %q", decided.Status, db.StatusDenied)
	}
}

func TestRedeem_UnknownSecret(t *testing.T) {
	st := store.NewMemory()
	m := NewManager(st, time.Hour)

	result, err := m.Redeem(context.Background(), "no-such-secret", storeDecide(st))
	if err != nil {
		t.Fatalf("Redeem() error = %v", err)
	}
	if result.Outcome != OutcomeInvalid {
		t.Errorf("outcome = %q, want %q", result.Outcome, OutcomeInvalid)
	}
}

func TestRedeem_ExpiredToken(t *testing.T) {
	st := store.NewMemory()
	m := NewManager(st, time.Hour)
	ctx := context.Background()
	req := newPendingRequest(t, st)

	secret := "expired-secret"
	expired := time.Now().UTC().Add(-time.Minute)
	approve := &db.DecisionToken{RequestID: req.ID, Action: db.TokenActionApprove, SecretHash: HashSecret(secret), ExpiresAt: expired}
	deny := &db.DecisionToken{RequestID: req.ID, Action: db.TokenActionDeny, SecretHash: HashSecret("other"), ExpiresAt: expired}
	if err := st.CreateTokenPair(ctx, approve, deny); err != nil {
		t.Fatalf("CreateTokenPair() error = %v", err)
	}

	result, err := m.Redeem(ctx, secret, storeDecide(st))
	if err != nil {
		t.Fatalf("Redeem() error = %v", err)
	}
	if result.Outcome != OutcomeExpired {
		t.Errorf("outcome = %q, want %q", result.Outcome, OutcomeExpired)
	}

	// An expired redemption never touches the request
	after, _ := st.GetRequest(ctx, req.ID)
	if after.Status != db.StatusPending {
		t.Errorf("status = %q, want %q", after.Status, db.StatusPending)
	}
}

func TestRedeem_AlreadyDecidedRequest(t *testing.T) {
	st := store.NewMemory()
	m := NewManager(st, time.Hour)
	ctx := context.Background()
	req := newPendingRequest(t, st)

	pair, _ := m.IssuePair(ctx, req.ID)
	if err := st.TransitionRequest(ctx, req.ID, db.StatusDenied, "alice", nil, time.Now().UTC()); err != nil {
		t.Fatalf("TransitionRequest() error = %v", err)
	}

	result, err := m.Redeem(ctx, pair.ApproveSecret, storeDecide(st))
	if err != nil {
		t.Fatalf("Redeem() error = %v", err)
	}
	if result.Outcome != OutcomeAlreadyDecided {
		t.Errorf("outcome = %q, want %q", result.Outcome, OutcomeAlreadyDecided)
	}
}

func TestRedeem_DecideConflictMapsToAlreadyDecided(t *testing.T) {
	st := store.NewMemory()
	m := NewManager(st, time.Hour)
	ctx := context.Background()
	req := newPendingRequest(t, st)

	pair, _ := m.IssuePair(ctx, req.ID)
	conflictDecide := func(ctx context.Context, requestID, decision, decidedBy string, reason *string) error {
		return apperrors.Conflict("request %s already decided", requestID)
	}

	result, err := m.Redeem(ctx, pair.ApproveSecret, conflictDecide)
	if err != nil {
		t.Fatalf("Redeem() error = %v", err)
	}
	if result.Outcome != OutcomeAlreadyDecided {
		t.Errorf("outcome = %q, want %q", result.Outcome, OutcomeAlreadyDecided)
	}
}
