package auth

import "testing"

func TestParseRole(t *testing.T) {
	tests := []struct {
		name string
		want Role
	}{
		{"viewer", RoleViewer},
		{"editor", RoleEditor},
		{"admin", RoleAdmin},
		{"owner", RoleOwner},
		{"superuser", RoleViewer},
		{"", RoleViewer},
	}
	for _, tt := range tests {
		if got := ParseRole(tt.name); got != tt.want {
			t.Errorf("ParseRole(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestPermissionsForRole(t *testing.T) {
	tests := []struct {
		role    Role
		granted []string
		denied  []string
	}{
		{
			role:    RoleViewer,
			granted: []string{PermRequestRead, PermPoliciesRead, PermAuditRead},
			denied:  []string{PermRequestCreate, PermRequestDecide, PermKeysManage, PermSystemRead},
		},
		{
			role:    RoleEditor,
			granted: []string{PermRequestRead, PermRequestCreate, PermRequestDecide, PermPoliciesWrite},
			denied:  []string{PermKeysManage, PermWebhooksWrite, PermSystemRead},
		},
		{
			role:    RoleAdmin,
			granted: []string{PermRequestRead, PermKeysManage, PermWebhooksWrite, PermSystemRead},
		},
		{
			role:    RoleOwner,
			granted: []string{PermKeysManage, PermSystemRead},
		},
	}

	for _, tt := range tests {
		t.Run(tt.role.String(), func(t *testing.T) {
			perms := PermissionsForRole(tt.role)
			for _, p := range tt.granted {
				if !HasPermission(perms, p) {
					t.Errorf("role %s missing %s", tt.role, p)
				}
			}
			for _, p := range tt.denied {
				if HasPermission(perms, p) {
					t.Errorf("role %s unexpectedly holds %s", tt.role, p)
				}
			}
		})
	}
}

func TestPermissionsForScopes(t *testing.T) {
	tests := []struct {
		name    string
		scopes  []string
		granted []string
		denied  []string
	}{
		{
			name:    "read scope carries audit read",
			scopes:  []string{"request:read"},
			granted: []string{PermRequestRead, PermAuditRead},
			denied:  []string{PermRequestCreate, PermRequestDecide, PermPoliciesWrite, PermKeysManage},
		},
		{
			name:    "write scope implies read",
			scopes:  []string{"policies:write"},
			granted: []string{PermPoliciesRead, PermPoliciesWrite},
			denied:  []string{PermRequestRead},
		},
		{
			name:    "admin scope grants everything",
			scopes:  []string{"admin"},
			granted: []string{PermRequestRead, PermKeysManage, PermSystemRead},
		},
		{
			name:   "unknown scope grants nothing",
			scopes: []string{"galactic:overlord"},
			denied: []string{PermRequestRead, PermKeysManage},
		},
		{
			name:    "scopes accumulate",
			scopes:  []string{"request:create", "request:decide"},
			granted: []string{PermRequestCreate, PermRequestDecide},
			denied:  []string{PermRequestRead},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			perms := PermissionsForScopes(tt.scopes)
			for _, p := range tt.granted {
				if !HasPermission(perms, p) {
					t.Errorf("scopes %v missing %s", tt.scopes, p)
				}
			}
			for _, p := range tt.denied {
				if HasPermission(perms, p) {
					t.Errorf("scopes %v unexpectedly hold %s", tt.scopes, p)
				}
			}
		})
	}
}

func TestRoleForScopes(t *testing.T) {
	if got := RoleForScopes([]string{"request:read"}); got != RoleEditor {
		t.Errorf("RoleForScopes(request:read) = %v, want editor", got)
	}
	if got := RoleForScopes([]string{"request:read", "admin"}); got != RoleAdmin {
		t.Errorf("RoleForScopes(admin) = %v, want admin", got)
	}
}

func TestRoleAtLeast(t *testing.T) {
	if !RoleAdmin.AtLeast(RoleEditor) {
		t.Error("admin should be at least editor")
	}
	if RoleViewer.AtLeast(RoleEditor) {
		t.Error("viewer should not be at least editor")
	}
	if !RoleEditor.AtLeast(RoleEditor) {
		t.Error("role should be at least itself")
	}
}
