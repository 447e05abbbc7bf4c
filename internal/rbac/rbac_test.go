package rbac

import "testing"

func TestCan(t *testing.T) {
	cases := []struct {
		name   string
		role   Role
		action Action
		allow  bool
	}{
		{name: "user read", role: RoleUser, action: ActionRead, allow: true},
		{name: "user write", role: RoleUser, action: ActionWrite, allow: true},
		{name: "user moderate", role: RoleUser, action: ActionModerate, allow: false},
		{name: "user admin", role: RoleUser, action: ActionAdmin, allow: false},
		{name: "moderator moderate", role: RoleModerator, action: ActionModerate, allow: true},
		{name: "moderator admin", role: RoleModerator, action: ActionAdmin, allow: false},
		{name: "admin admin", role: RoleAdmin, action: ActionAdmin, allow: true},
		{name: "superadmin admin", role: RoleSuperadmin, action: ActionAdmin, allow: true},
		{name: "unknown read", role: Role("ghost"), action: ActionRead, allow: false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Can(tc.role, tc.action); got != tc.allow {
				t.Fatalf("Can(%q, %q) = %v, want %v", tc.role, tc.action, got, tc.allow)
			}
		})
	}
}

func TestElevated(t *testing.T) {
	if Elevated(RoleUser) {
		t.Fatal("user should not be elevated")
	}
	for _, role := range []Role{RoleModerator, RoleAdmin, RoleSuperadmin} {
		if !Elevated(role) {
			t.Fatalf("%s should be elevated", role)
		}
	}
}

func TestNormalize(t *testing.T) {
	if got := Normalize("moderator"); got != RoleModerator {
		t.Fatalf("Normalize(moderator) = %q", got)
	}
	if got := Normalize("root"); got != RoleUser {
		t.Fatalf("Normalize(root) = %q, want user", got)
	}
}
