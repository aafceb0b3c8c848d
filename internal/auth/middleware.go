package auth

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/agentgate/agentgate/internal/metrics"
	"github.com/agentgate/agentgate/internal/ratelimit"
)

// Middleware authenticates requests and enforces per-credential rate limits
type Middleware struct {
	resolver     *Resolver
	limiter      *ratelimit.Limiter
	defaultLimit int
}

// NewMiddleware creates the authentication middleware. defaultLimit applies
// to API keys without their own limit; zero disables the default.
func NewMiddleware(resolver *Resolver, limiter *ratelimit.Limiter, defaultLimit int) *Middleware {
	return &Middleware{resolver: resolver, limiter: limiter, defaultLimit: defaultLimit}
}

// Authenticate resolves the caller's credential and stores the principal in
// context. Only API-key principals pass through the rate limiter.
func (m *Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		principal, err := m.resolver.Resolve(r.Context(), r)
		if err != nil {
			writeAuthError(w, http.StatusUnauthorized, err.Error())
			return
		}

		if principal.Type == PrincipalAPIKey {
			limit := m.defaultLimit
			if principal.RateLimit != nil {
				limit = *principal.RateLimit
			}
			result := m.limiter.Check(principal.ID, limit)
			if result.Limited {
				w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", result.Remaining))
			}
			if !result.Allowed {
				metrics.RecordRateLimitDenial()
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(result.RetryAfter.Seconds())))
				writeAuthError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}
		}

		ctx := SetPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePermission gates a handler on one permission. Authentication
// failures and permission failures are distinct statuses.
func RequirePermission(permission string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		principal, ok := GetPrincipal(r.Context())
		if !ok {
			writeAuthError(w, http.StatusUnauthorized, "missing credentials")
			return
		}
		if !principal.Can(permission) {
			writeAuthError(w, http.StatusForbidden, fmt.Sprintf("missing permission %s", permission))
			return
		}
		handler(w, r)
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"error": message,
	})
}
