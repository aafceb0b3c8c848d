package token

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/agentgate/agentgate/internal/apperrors"
	"github.com/agentgate/agentgate/internal/db"
	"github.com/agentgate/agentgate/internal/store"
)

// Outcome classifies the result of a redemption attempt
type Outcome string

const (
	OutcomeInvalid        Outcome = "invalid"
	OutcomeAlreadyUsed    Outcome = "already_used"
	OutcomeExpired        Outcome = "expired"
	OutcomeAlreadyDecided Outcome = "already_decided"
	OutcomeSuccess        Outcome = "success"
)

// DecideFunc applies a decision through the lifecycle coordinator's
// transition path. It returns a Conflict error when the request is no
// longer pending.
type DecideFunc func(ctx context.Context, requestID, decision, decidedBy string, reason *string) error

// Pair is an issued approve/deny token pair with plaintext secrets. The
// secrets exist only in this value; stores hold hashes.
type Pair struct {
	RequestID     string
	ApproveSecret string
	DenySecret    string
	ExpiresAt     time.Time
}

// Redemption is the result of redeeming a token
type Redemption struct {
	Outcome   Outcome
	RequestID string
	Action    string
}

// Manager issues and redeems single-use decision tokens
type Manager struct {
	store store.Store
	ttl   time.Duration
}

// NewManager creates a token manager. ttl bounds how long issued links stay
// redeemable.
func NewManager(st store.Store, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{store: st, ttl: ttl}
}

// IssuePair generates an approve/deny token pair for a pending request.
// Issuing against a decided request is a conflict.
func (m *Manager) IssuePair(ctx context.Context, requestID string) (*Pair, error) {
	req, err := m.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.Status != db.StatusPending {
		return nil, apperrors.Conflict("request %s already %s", requestID, req.Status)
	}

	approveSecret, err := newSecret()
	if err != nil {
		return nil, err
	}
	denySecret, err := newSecret()
	if err != nil {
		return nil, err
	}

	expiresAt := time.Now().UTC().Add(m.ttl)
	approve := &db.DecisionToken{
		RequestID:  requestID,
		Action:     db.TokenActionApprove,
		SecretHash: HashSecret(approveSecret),
		ExpiresAt:  expiresAt,
	}
	deny := &db.DecisionToken{
		RequestID:  requestID,
		Action:     db.TokenActionDeny,
		SecretHash: HashSecret(denySecret),
		ExpiresAt:  expiresAt,
	}
	if err := m.store.CreateTokenPair(ctx, approve, deny); err != nil {
		return nil, err
	}

	return &Pair{
		RequestID:     requestID,
		ApproveSecret: approveSecret,
		DenySecret:    denySecret,
		ExpiresAt:     expiresAt,
	}, nil
}

// Redeem consumes a decision token. The secret itself is the credential, so
// redemption is unauthenticated. Every unused sibling is claimed in one
// conditional bulk update before the decision is applied; a claim count of
// zero means another redeemer already consumed the pair.
func (m *Manager) Redeem(ctx context.Context, secret string, decide DecideFunc) (*Redemption, error) {
	tok, err := m.store.GetTokenBySecretHash(ctx, HashSecret(secret))
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return &Redemption{Outcome: OutcomeInvalid}, nil
		}
		return nil, err
	}

	result := &Redemption{RequestID: tok.RequestID, Action: tok.Action}

	if tok.UsedAt != nil {
		result.Outcome = OutcomeAlreadyUsed
		return result, nil
	}

	now := time.Now().UTC()
	if now.After(tok.ExpiresAt) {
		result.Outcome = OutcomeExpired
		return result, nil
	}

	req, err := m.store.GetRequest(ctx, tok.RequestID)
	if err != nil {
		return nil, err
	}
	if req.Status != db.StatusPending {
		result.Outcome = OutcomeAlreadyDecided
		return result, nil
	}

	claimed, err := m.store.MarkRequestTokensUsed(ctx, tok.RequestID, now)
	if err != nil {
		return nil, err
	}
	if claimed == 0 {
		result.Outcome = OutcomeAlreadyUsed
		return result, nil
	}

	decision := db.StatusDenied
	if tok.Action == db.TokenActionApprove {
		decision = db.StatusApproved
	}
	reason := fmt.Sprintf("%s via one-click link", decision)
	if err := decide(ctx, tok.RequestID, decision, db.DecidedByToken, &reason); err != nil {
		if apperrors.Is(err, apperrors.KindConflict) {
			result.Outcome = OutcomeAlreadyDecided
			return result, nil
		}
		return nil, err
	}

	result.Outcome = OutcomeSuccess
	return result, nil
}

// HashSecret derives the stored lookup hash for a token secret
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func newSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate token secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
