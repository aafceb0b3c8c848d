package auth

import "context"

/* Context key types for type-safe context values */
type contextKey string

const principalKey contextKey = "principal"

/* SetPrincipal sets the resolved principal in context */
func SetPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey, p)
}

/* GetPrincipal gets the resolved principal from context */
func GetPrincipal(ctx context.Context) (*Principal, bool) {
	p, ok := ctx.Value(principalKey).(*Principal)
	return p, ok
}
