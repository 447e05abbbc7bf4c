package rbac

type Role string
type Action string

const (
	RoleUser       Role = "user"
	RoleModerator  Role = "moderator"
	RoleAdmin      Role = "admin"
	RoleSuperadmin Role = "superadmin"
)

const (
	ActionRead     Action = "read"
	ActionComment  Action = "comment"
	ActionWrite    Action = "write"
	ActionModerate Action = "moderate"
	ActionAdmin    Action = "admin"
)

func Can(role Role, action Action) bool {
	switch role {
	case RoleSuperadmin, RoleAdmin:
		return true
	case RoleModerator:
		return action == ActionRead || action == ActionComment || action == ActionWrite || action == ActionModerate
	case RoleUser:
		return action == ActionRead || action == ActionComment || action == ActionWrite
	default:
		return false
	}
}

// Elevated reports whether a role may act on content it does not own,
// such as removing another author's node.
func Elevated(role Role) bool {
	return role == RoleModerator || role == RoleAdmin || role == RoleSuperadmin
}

func Normalize(role string) Role {
	switch Role(role) {
	case RoleUser, RoleModerator, RoleAdmin, RoleSuperadmin:
		return Role(role)
	default:
		return RoleUser
	}
}
