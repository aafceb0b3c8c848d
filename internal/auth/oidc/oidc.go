package oidc

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

/* Provider wraps the identity provider and OAuth2 config */
type Provider struct {
	provider   *oidc.Provider
	oauth2Conf *oauth2.Config
	verifier   *oidc.IDTokenVerifier
}

/* NewProvider discovers the issuer and builds the PKCE-capable config */
func NewProvider(ctx context.Context, issuerURL, clientID, clientSecret, redirectURL string, scopes []string) (*Provider, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create OIDC provider: %w", err)
	}

	oauth2Conf := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       scopes,
		Endpoint:     provider.Endpoint(),
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: clientID,
	})

	return &Provider{
		provider:   provider,
		oauth2Conf: oauth2Conf,
		verifier:   verifier,
	}, nil
}

/* AuthCodeURL generates the authorization URL with PKCE */
func (p *Provider) AuthCodeURL(state, nonce, codeVerifier string) string {
	codeChallenge := base64.RawURLEncoding.EncodeToString(sha256Hash(codeVerifier))

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", codeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("nonce", nonce),
	}
	return p.oauth2Conf.AuthCodeURL(state, opts...)
}

/* ExchangeCode exchanges an authorization code for tokens */
func (p *Provider) ExchangeCode(ctx context.Context, code, codeVerifier string) (*oauth2.Token, error) {
	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_verifier", codeVerifier),
	}
	token, err := p.oauth2Conf.Exchange(ctx, code, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}
	return token, nil
}

/* VerifyIDToken verifies the ID token and extracts its claims. The caller
 * must compare Nonce against the login attempt's nonce. */
func (p *Provider) VerifyIDToken(ctx context.Context, rawIDToken string) (*Claims, error) {
	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("failed to verify ID token: %w", err)
	}

	var raw map[string]interface{}
	if err := idToken.Claims(&raw); err != nil {
		return nil, fmt.Errorf("failed to extract claims: %w", err)
	}
	claims := ExtractClaims(raw)
	claims.Nonce = idToken.Nonce
	return claims, nil
}

/* Claims holds the identity claims the gateway consumes */
type Claims struct {
	Subject           string `json:"sub"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	PreferredUsername string `json:"preferred_username"`
	Nonce             string `json:"-"`
}

/* ExtractClaims extracts structured claims from a raw claims map */
func ExtractClaims(rawClaims map[string]interface{}) *Claims {
	claims := &Claims{}
	if sub, ok := rawClaims["sub"].(string); ok {
		claims.Subject = sub
	}
	if email, ok := rawClaims["email"].(string); ok {
		claims.Email = email
	}
	if name, ok := rawClaims["name"].(string); ok {
		claims.Name = name
	}
	if preferredUsername, ok := rawClaims["preferred_username"].(string); ok {
		claims.PreferredUsername = preferredUsername
	}
	return claims
}

/* DisplayName picks the best available human-readable name */
func (c *Claims) DisplayName() string {
	if c.Name != "" {
		return c.Name
	}
	if c.PreferredUsername != "" {
		return c.PreferredUsername
	}
	return c.Email
}

/* LoginAttempt holds the state, nonce, and code verifier of an in-flight
 * login */
type LoginAttempt struct {
	ID           string
	State        string
	Nonce        string
	CodeVerifier string
	CreatedAt    time.Time
	ExpiresAt    time.Time
}

/* NewLoginAttempt creates a login attempt with fresh randomness */
func NewLoginAttempt(ttl time.Duration) (*LoginAttempt, error) {
	state, err := generateRandomString(32)
	if err != nil {
		return nil, err
	}
	nonce, err := generateRandomString(32)
	if err != nil {
		return nil, err
	}
	codeVerifier, err := generateRandomString(43)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	return &LoginAttempt{
		ID:           uuid.New().String(),
		State:        state,
		Nonce:        nonce,
		CodeVerifier: codeVerifier,
		CreatedAt:    now,
		ExpiresAt:    now.Add(ttl),
	}, nil
}

func generateRandomString(length int) (string, error) {
	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(bytes)[:length], nil
}

func sha256Hash(data string) []byte {
	h := sha256.Sum256([]byte(data))
	return h[:]
}
