package auth

// Principal type values
const (
	PrincipalUser   = "user"
	PrincipalAPIKey = "api_key"
)

// Principal is the resolved identity and permission set of an authenticated
// caller. It is derived per request, never persisted.
type Principal struct {
	Type        string
	ID          string
	DisplayName string
	Role        Role
	TenantID    string
	Permissions []string

	// RateLimit applies to API-key principals only; nil means unlimited.
	RateLimit *int
}

// Can reports whether the principal holds the required permission
func (p *Principal) Can(required string) bool {
	return HasPermission(p.Permissions, required)
}
