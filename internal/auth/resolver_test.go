package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/agentgate/agentgate/internal/db"
	"github.com/agentgate/agentgate/internal/store"
)

func newTestResolver(t *testing.T, mode AuthMode) (*Resolver, *store.Memory, *TokenSigner) {
	t.Helper()
	st := store.NewMemory()
	signer := NewTokenSigner([]byte("test-secret"), 15*time.Minute)
	return NewResolver(mode, NewAPIKeyManager(st), signer, st), st, signer
}

func issueKey(t *testing.T, st *store.Memory, scopes []string, rateLimit *int) string {
	t.Helper()
	secret, _, err := NewAPIKeyManager(st).GenerateAPIKey(context.Background(), "test key", scopes, rateLimit, nil)
	if err != nil {
		t.Fatalf("GenerateAPIKey() error = %v", err)
	}
	return secret
}

func seedUser(t *testing.T, st *store.Memory, role string) *db.User {
	t.Helper()
	user := &db.User{Subject: "sub-1", Email: "alice@example.com", DisplayName: "Alice", Role: role}
	if err := st.UpsertUserBySubject(context.Background(), user); err != nil {
		t.Fatalf("UpsertUserBySubject() error = %v", err)
	}
	return user
}

func requestWithAuth(credential string) *http.Request {
	req := httptest.NewRequest("GET", "/api/requests", nil)
	if credential != "" {
		req.Header.Set("Authorization", "Bearer "+credential)
	}
	return req
}

func TestResolve_APIKey(t *testing.T) {
	r, st, _ := newTestResolver(t, ModeDual)
	secret := issueKey(t, st, []string{"request:read"}, nil)

	principal, err := r.Resolve(context.Background(), requestWithAuth(secret))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if principal.Type != PrincipalAPIKey {
		t.Errorf("type = %q, want %q", principal.Type, PrincipalAPIKey)
	}
	if !principal.Can(PermRequestRead) {
		t.Error("expected request:read permission")
	}
	if principal.Can(PermRequestDecide) {
		t.Error("unexpected request:decide permission")
	}
}

func TestResolve_SessionToken(t *testing.T) {
	r, st, signer := newTestResolver(t, ModeDual)
	user := seedUser(t, st, "editor")

	token, err := signer.Mint(user)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}

	principal, err := r.Resolve(context.Background(), requestWithAuth(token))
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if principal.Type != PrincipalUser {
		t.Errorf("type = %q, want %q", principal.Type, PrincipalUser)
	}
	if principal.ID != user.ID {
		t.Errorf("id = %q, want %q", principal.ID, user.ID)
	}
	if !principal.Can(PermRequestDecide) {
		t.Error("editor should hold request:decide")
	}
}

func TestResolve_SessionCookie(t *testing.T) {
	r, st, signer := newTestResolver(t, ModeDual)
	user := seedUser(t, st, "viewer")

	token, _ := signer.Mint(user)
	req := httptest.NewRequest("GET", "/api/requests", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})

	principal, err := r.Resolve(context.Background(), req)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if principal.ID != user.ID {
		t.Errorf("id = %q, want %q", principal.ID, user.ID)
	}
}

func TestResolve_ModeRestrictions(t *testing.T) {
	tests := []struct {
		name       string
		mode       AuthMode
		credential string
		wantErr    string
	}{
		{"api key rejected in oidc-required", ModeOIDCRequired, KeySecretPrefix + "whatever", "API keys are not accepted"},
		{"session token rejected in api-key-only", ModeAPIKeyOnly, "some.jwt.token", "session tokens are not accepted"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _, _ := newTestResolver(t, tt.mode)
			_, err := r.Resolve(context.Background(), requestWithAuth(tt.credential))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Resolve() error = %v, want %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolve_Failures(t *testing.T) {
	r, st, signer := newTestResolver(t, ModeDual)

	t.Run("missing credentials", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), requestWithAuth(""))
		if err == nil {
			t.Fatal("expected error")
		}
	})

	t.Run("unknown api key", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), requestWithAuth(KeySecretPrefix+"bogus"))
		if err == nil || err.Error() != "invalid API key" {
			t.Errorf("error = %v, want generic invalid API key", err)
		}
	})

	t.Run("revoked api key", func(t *testing.T) {
		secret := issueKey(t, st, []string{"request:read"}, nil)
		key, _ := st.GetAPIKeyByPrefix(context.Background(), GetKeyPrefix(secret))
		if err := st.RevokeAPIKey(context.Background(), key.ID, time.Now().UTC()); err != nil {
			t.Fatalf("RevokeAPIKey() error = %v", err)
		}
		_, err := r.Resolve(context.Background(), requestWithAuth(secret))
		if err == nil || err.Error() != "invalid API key" {
			t.Errorf("error = %v, want generic invalid API key", err)
		}
	})

	t.Run("garbage session token", func(t *testing.T) {
		_, err := r.Resolve(context.Background(), requestWithAuth("not.a.token"))
		if err == nil || err.Error() != "invalid or expired token" {
			t.Errorf("error = %v, want generic invalid token", err)
		}
	})

	t.Run("disabled user", func(t *testing.T) {
		disabledAt := time.Now().UTC()
		user := &db.User{Subject: "sub-disabled", Role: "editor", DisabledAt: &disabledAt}
		if err := st.UpsertUserBySubject(context.Background(), user); err != nil {
			t.Fatalf("UpsertUserBySubject() error = %v", err)
		}
		token, _ := signer.Mint(user)
		_, err := r.Resolve(context.Background(), requestWithAuth(token))
		if err == nil || err.Error() != "invalid or expired token" {
			t.Errorf("error = %v, want generic invalid token", err)
		}
	})
}

func TestVerify_WrongKeyAndExpiry(t *testing.T) {
	signer := NewTokenSigner([]byte("secret-a"), 15*time.Minute)
	other := NewTokenSigner([]byte("secret-b"), 15*time.Minute)

	user := &db.User{ID: "u1", Role: "viewer"}

	token, err := signer.Mint(user)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	claims, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	if claims.Subject != "u1" || claims.Role != "viewer" {
		t.Errorf("claims = %+v", claims)
	}

	if _, err := other.Verify(token); err == nil {
		t.Error("token verified with wrong key")
	}

	if _, err := signer.Verify(token + "tampered"); err == nil {
		t.Error("tampered token verified")
	}

	backdated := &TokenSigner{secret: []byte("secret-a"), ttl: -2 * time.Minute}
	expiredToken, err := backdated.Mint(user)
	if err != nil {
		t.Fatalf("Mint() error = %v", err)
	}
	if _, err := signer.Verify(expiredToken); err == nil {
		t.Error("expired token verified")
	}
}
