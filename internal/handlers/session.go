package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"golang.org/x/oauth2"

	"github.com/agentgate/agentgate/internal/auth"
	"github.com/agentgate/agentgate/internal/auth/oidc"
	"github.com/agentgate/agentgate/internal/config"
	"github.com/agentgate/agentgate/internal/session"
)

const refreshCookieName = "agentgate_refresh"

// IdentityProvider is the slice of the OIDC provider the session surface
// consumes. *oidc.Provider satisfies it.
type IdentityProvider interface {
	AuthCodeURL(state, nonce, codeVerifier string) string
	ExchangeCode(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error)
	VerifyIDToken(ctx context.Context, rawIDToken string) (*oidc.Claims, error)
}

// SessionHandlers handles the login/callback/refresh/logout surface. The
// identity provider verifies who the caller is; these handlers only turn an
// already-verified identity into a session.
type SessionHandlers struct {
	provider IdentityProvider
	sessions *session.Manager
	cfg      config.SessionConfig

	mu       sync.Mutex
	attempts map[string]*oidc.LoginAttempt
}

// NewSessionHandlers creates session handlers. provider may be nil when the
// gateway runs in api-key-only mode; the endpoints then report that logins
// are disabled.
func NewSessionHandlers(provider IdentityProvider, sessions *session.Manager, cfg config.SessionConfig) *SessionHandlers {
	return &SessionHandlers{
		provider: provider,
		sessions: sessions,
		cfg:      cfg,
		attempts: make(map[string]*oidc.LoginAttempt),
	}
}

// Login starts the authorization code flow
func (h *SessionHandlers) Login(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		WriteError(w, http.StatusNotFound, "interactive login is disabled")
		return
	}

	attempt, err := oidc.NewLoginAttempt(h.cfg.LoginTTL)
	if err != nil {
		WriteError(w, http.StatusInternalServerError, "failed to start login")
		return
	}

	h.mu.Lock()
	h.pruneLocked()
	h.attempts[attempt.State] = attempt
	h.mu.Unlock()

	http.Redirect(w, r, h.provider.AuthCodeURL(attempt.State, attempt.Nonce, attempt.CodeVerifier), http.StatusFound)
}

// Callback finishes the code flow and establishes a session
func (h *SessionHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		WriteError(w, http.StatusNotFound, "interactive login is disabled")
		return
	}

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		WriteError(w, http.StatusBadRequest, "missing state or code")
		return
	}

	h.mu.Lock()
	attempt, ok := h.attempts[state]
	delete(h.attempts, state)
	h.mu.Unlock()
	if !ok || time.Now().After(attempt.ExpiresAt) {
		WriteError(w, http.StatusBadRequest, "unknown or expired login attempt")
		return
	}

	oauthToken, err := h.provider.ExchangeCode(r.Context(), code, attempt.CodeVerifier)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "code exchange failed")
		return
	}
	rawIDToken, ok := oauthToken.Extra("id_token").(string)
	if !ok {
		WriteError(w, http.StatusUnauthorized, "identity provider returned no ID token")
		return
	}
	claims, err := h.provider.VerifyIDToken(r.Context(), rawIDToken)
	if err != nil {
		WriteError(w, http.StatusUnauthorized, "invalid ID token")
		return
	}
	if claims.Nonce != attempt.Nonce {
		WriteError(w, http.StatusUnauthorized, "nonce mismatch")
		return
	}

	sess, err := h.sessions.Establish(r.Context(), claims)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	h.writeSession(w, sess)
}

// Refresh rotates the refresh secret and mints a new access token
func (h *SessionHandlers) Refresh(w http.ResponseWriter, r *http.Request) {
	secret := h.refreshSecret(r)
	if secret == "" {
		WriteError(w, http.StatusUnauthorized, "missing refresh token")
		return
	}

	sess, err := h.sessions.Refresh(r.Context(), secret)
	if err != nil {
		WriteAppError(w, err)
		return
	}

	h.writeSession(w, sess)
}

// Logout revokes the refresh secret and clears cookies
func (h *SessionHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if secret := h.refreshSecret(r); secret != "" {
		if err := h.sessions.Logout(r.Context(), secret); err != nil {
			WriteAppError(w, err)
			return
		}
	}

	h.clearCookie(w, auth.SessionCookieName)
	h.clearCookie(w, refreshCookieName)
	w.WriteHeader(http.StatusNoContent)
}

// refreshSecret pulls the refresh secret from the cookie or the JSON body
func (h *SessionHandlers) refreshSecret(r *http.Request) string {
	if cookie, err := r.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
		return body.RefreshToken
	}
	return ""
}

func (h *SessionHandlers) writeSession(w http.ResponseWriter, sess *session.Session) {
	h.setCookie(w, auth.SessionCookieName, sess.AccessToken, int(sess.ExpiresIn.Seconds()))
	h.setCookie(w, refreshCookieName, sess.RefreshSecret, int(h.cfg.RefreshTTL.Seconds()))

	WriteSuccess(w, map[string]interface{}{
		"accessToken":  sess.AccessToken,
		"refreshToken": sess.RefreshSecret,
		"expiresIn":    int(sess.ExpiresIn.Seconds()),
		"user":         sess.User,
	}, http.StatusOK)
}

func (h *SessionHandlers) setCookie(w http.ResponseWriter, name, value string, maxAge int) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.cfg.CookieDomain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: sameSite(h.cfg.CookieSameSite),
	})
}

func (h *SessionHandlers) clearCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.cfg.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: sameSite(h.cfg.CookieSameSite),
	})
}

// pruneLocked drops expired login attempts. Caller holds the lock.
func (h *SessionHandlers) pruneLocked() {
	now := time.Now()
	for state, attempt := range h.attempts {
		if now.After(attempt.ExpiresAt) {
			delete(h.attempts, state)
		}
	}
}

func sameSite(mode string) http.SameSite {
	switch mode {
	case "Strict":
		return http.SameSiteStrictMode
	case "None":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
