package session

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/agentgate/agentgate/internal/apperrors"
	"github.com/agentgate/agentgate/internal/auth"
	"github.com/agentgate/agentgate/internal/auth/oidc"
	"github.com/agentgate/agentgate/internal/db"
	"github.com/agentgate/agentgate/internal/store"
)

// Session is an established session: a short-lived access token plus the
// refresh secret that can mint the next one.
type Session struct {
	User          *db.User
	AccessToken   string
	RefreshSecret string
	ExpiresIn     time.Duration
}

// Manager owns the session surface: it turns verified identity claims into
// users and refresh tokens, and rotates the refresh secret on every use.
type Manager struct {
	store      store.Store
	signer     *auth.TokenSigner
	refreshTTL time.Duration
}

// NewManager creates a session manager
func NewManager(st store.Store, signer *auth.TokenSigner, refreshTTL time.Duration) *Manager {
	if refreshTTL <= 0 {
		refreshTTL = 30 * 24 * time.Hour
	}
	return &Manager{store: st, signer: signer, refreshTTL: refreshTTL}
}

// Establish creates a session from already-verified identity claims. The
// user row is upserted by subject so repeated logins refresh the profile.
func (m *Manager) Establish(ctx context.Context, claims *oidc.Claims) (*Session, error) {
	if claims.Subject == "" {
		return nil, apperrors.Unauthenticated("identity token carried no subject")
	}

	user := &db.User{
		Subject:     claims.Subject,
		Email:       claims.Email,
		DisplayName: claims.DisplayName(),
		Role:        auth.RoleViewer.String(),
	}
	if err := m.store.UpsertUserBySubject(ctx, user); err != nil {
		return nil, err
	}
	if user.DisabledAt != nil {
		return nil, apperrors.Unauthenticated("invalid or expired token")
	}

	return m.issue(ctx, user)
}

// Refresh rotates a refresh secret and mints a new access token. The old
// secret is revoked before the new one is issued; a replayed secret fails
// generically.
func (m *Manager) Refresh(ctx context.Context, refreshSecret string) (*Session, error) {
	record, err := m.store.GetRefreshTokenByHash(ctx, hashSecret(refreshSecret))
	if err != nil {
		return nil, apperrors.Unauthenticated("invalid or expired token")
	}
	now := time.Now().UTC()
	if record.RevokedAt != nil || now.After(record.ExpiresAt) {
		return nil, apperrors.Unauthenticated("invalid or expired token")
	}

	user, err := m.store.GetUserByID(ctx, record.UserID)
	if err != nil || user.DisabledAt != nil {
		return nil, apperrors.Unauthenticated("invalid or expired token")
	}

	if err := m.store.RevokeRefreshToken(ctx, record.ID, now); err != nil {
		return nil, apperrors.Unauthenticated("invalid or expired token")
	}

	return m.issue(ctx, user)
}

// Logout revokes a refresh secret. Unknown secrets are ignored so logout is
// idempotent.
func (m *Manager) Logout(ctx context.Context, refreshSecret string) error {
	record, err := m.store.GetRefreshTokenByHash(ctx, hashSecret(refreshSecret))
	if err != nil {
		if apperrors.Is(err, apperrors.KindNotFound) {
			return nil
		}
		return err
	}
	if record.RevokedAt != nil {
		return nil
	}
	err = m.store.RevokeRefreshToken(ctx, record.ID, time.Now().UTC())
	if err != nil && apperrors.Is(err, apperrors.KindNotFound) {
		return nil
	}
	return err
}

func (m *Manager) issue(ctx context.Context, user *db.User) (*Session, error) {
	accessToken, err := m.signer.Mint(user)
	if err != nil {
		return nil, err
	}

	refreshSecret, err := newRefreshSecret()
	if err != nil {
		return nil, err
	}
	record := &db.RefreshToken{
		UserID:    user.ID,
		TokenHash: hashSecret(refreshSecret),
		ExpiresAt: time.Now().UTC().Add(m.refreshTTL),
	}
	if err := m.store.CreateRefreshToken(ctx, record); err != nil {
		return nil, err
	}

	return &Session{
		User:          user,
		AccessToken:   accessToken,
		RefreshSecret: refreshSecret,
		ExpiresIn:     m.signer.TTL(),
	}, nil
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}

func newRefreshSecret() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate refresh secret: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
