package auth

// Role is an ordered position in the viewer < editor < admin < owner
// hierarchy.
type Role int

const (
	RoleViewer Role = iota
	RoleEditor
	RoleAdmin
	RoleOwner
)

var roleNames = map[Role]string{
	RoleViewer: "viewer",
	RoleEditor: "editor",
	RoleAdmin:  "admin",
	RoleOwner:  "owner",
}

var rolesByName = map[string]Role{
	"viewer": RoleViewer,
	"editor": RoleEditor,
	"admin":  RoleAdmin,
	"owner":  RoleOwner,
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "viewer"
}

// ParseRole maps a role name to its Role. Unknown names degrade to viewer so
// a corrupted user row never gains privileges.
func ParseRole(name string) Role {
	if role, ok := rolesByName[name]; ok {
		return role
	}
	return RoleViewer
}

// AtLeast reports whether r sits at or above other in the hierarchy
func (r Role) AtLeast(other Role) bool {
	return r >= other
}

// PermissionWildcard grants every permission
const PermissionWildcard = "*"

// Permission names gating each operation
const (
	PermRequestRead   = "request:read"
	PermRequestCreate = "request:create"
	PermRequestDecide = "request:decide"
	PermPoliciesRead  = "policies:read"
	PermPoliciesWrite = "policies:write"
	PermWebhooksRead  = "webhooks:read"
	PermWebhooksWrite = "webhooks:write"
	PermKeysManage    = "keys:manage"
	PermAuditRead     = "audit:read"
	PermSystemRead    = "system:read"
)

/* Each role inherits everything below it */
var rolePermissions = map[Role][]string{
	RoleViewer: {PermRequestRead, PermPoliciesRead, PermWebhooksRead, PermAuditRead},
	RoleEditor: {PermRequestCreate, PermRequestDecide, PermPoliciesWrite},
	RoleAdmin:  {PermissionWildcard},
	RoleOwner:  {PermissionWildcard},
}

// PermissionsForRole returns the accumulated permission set for a role
func PermissionsForRole(role Role) []string {
	var perms []string
	for r := RoleViewer; r <= role; r++ {
		perms = append(perms, rolePermissions[r]...)
	}
	return perms
}

/* API-key scopes map onto the same permission space */
var scopePermissions = map[string][]string{
	"request:read":   {PermRequestRead, PermAuditRead},
	"request:create": {PermRequestCreate},
	"request:decide": {PermRequestDecide},
	"policies:read":  {PermPoliciesRead},
	"policies:write": {PermPoliciesRead, PermPoliciesWrite},
	"webhooks:read":  {PermWebhooksRead},
	"webhooks:write": {PermWebhooksRead, PermWebhooksWrite},
	"admin":          {PermissionWildcard},
}

// PermissionsForScopes maps API-key scopes to permissions. Unknown scopes
// grant nothing.
func PermissionsForScopes(scopes []string) []string {
	var perms []string
	for _, scope := range scopes {
		perms = append(perms, scopePermissions[scope]...)
	}
	return perms
}

// RoleForScopes derives the effective role of an API-key principal
func RoleForScopes(scopes []string) Role {
	for _, scope := range scopes {
		if scope == "admin" {
			return RoleAdmin
		}
	}
	return RoleEditor
}

// HasPermission reports whether the permission set grants required, either
// exactly or through the wildcard.
func HasPermission(permissions []string, required string) bool {
	for _, p := range permissions {
		if p == PermissionWildcard || p == required {
			return true
		}
	}
	return false
}
