package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/agentgate/agentgate/internal/apperrors"
	"github.com/agentgate/agentgate/internal/store"
)

// AuthMode restricts which credential types the resolver accepts
type AuthMode string

const (
	ModeAPIKeyOnly   AuthMode = "api-key-only"
	ModeOIDCRequired AuthMode = "oidc-required"
	ModeDual         AuthMode = "dual"
)

// ValidAuthMode reports whether m is a recognized mode
func ValidAuthMode(m AuthMode) bool {
	switch m {
	case ModeAPIKeyOnly, ModeOIDCRequired, ModeDual:
		return true
	}
	return false
}

// SessionCookieName carries the access token for browser callers
const SessionCookieName = "agentgate_session"

// Resolver turns a presented credential into a Principal
type Resolver struct {
	mode   AuthMode
	keys   *APIKeyManager
	signer *TokenSigner
	users  store.UserStore
}

// NewResolver creates a resolver for the configured auth mode
func NewResolver(mode AuthMode, keys *APIKeyManager, signer *TokenSigner, users store.UserStore) *Resolver {
	return &Resolver{mode: mode, keys: keys, signer: signer, users: users}
}

// Resolve extracts and verifies the credential on a request. The credential
// shape is classified first and checked against the auth mode before any
// verification work happens.
func (r *Resolver) Resolve(ctx context.Context, req *http.Request) (*Principal, error) {
	credential := extractCredential(req)
	if credential == "" {
		return nil, apperrors.Unauthenticated("missing credentials")
	}

	if strings.HasPrefix(credential, KeySecretPrefix) {
		if r.mode == ModeOIDCRequired {
			return nil, apperrors.Unauthenticated("API keys are not accepted")
		}
		return r.resolveAPIKey(ctx, credential)
	}

	if r.mode == ModeAPIKeyOnly {
		return nil, apperrors.Unauthenticated("session tokens are not accepted")
	}
	return r.resolveSessionToken(ctx, credential)
}

func (r *Resolver) resolveAPIKey(ctx context.Context, secret string) (*Principal, error) {
	key, err := r.keys.ValidateAPIKey(ctx, secret)
	if err != nil {
		return nil, err
	}
	return PrincipalForKey(key), nil
}

func (r *Resolver) resolveSessionToken(ctx context.Context, tokenString string) (*Principal, error) {
	claims, err := r.signer.Verify(tokenString)
	if err != nil {
		return nil, err
	}

	user, err := r.users.GetUserByID(ctx, claims.Subject)
	if err != nil {
		return nil, apperrors.Unauthenticated("invalid or expired token")
	}
	if user.DisabledAt != nil {
		return nil, apperrors.Unauthenticated("invalid or expired token")
	}

	role := ParseRole(user.Role)
	return &Principal{
		Type:        PrincipalUser,
		ID:          user.ID,
		DisplayName: user.DisplayName,
		Role:        role,
		TenantID:    user.TenantID,
		Permissions: PermissionsForRole(role),
	}, nil
}

// extractCredential pulls the credential from the Authorization header or,
// failing that, the session cookie. Both shapes arrive on the same surface.
func extractCredential(req *http.Request) string {
	header := req.Header.Get("Authorization")
	if header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "bearer") {
			return parts[1]
		}
		if len(parts) == 1 {
			return parts[0]
		}
		return ""
	}

	if cookie, err := req.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}
