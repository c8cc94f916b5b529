package auth

// Permission is a named API capability.
type Permission string

// Permission constants.
const (
	PermAutomationRead   Permission = "automation:read"
	PermAutomationManage Permission = "automation:manage"
	PermRunRetry         Permission = "run:retry"
	PermEventInject      Permission = "event:inject"
)

// rolePermissions is the whole authorisation model.
var rolePermissions = map[Role][]Permission{
	RoleViewer: {
		PermAutomationRead,
	},
	RoleOperator: {
		PermAutomationRead,
		PermRunRetry,
		PermEventInject,
	},
	RoleAdmin: {
		PermAutomationRead,
		PermAutomationManage,
		PermRunRetry,
		PermEventInject,
	},
}

// HasPermission reports whether role grants perm.
func HasPermission(role Role, perm Permission) bool {
	for _, p := range rolePermissions[role] {
		if p == perm {
			return true
		}
	}
	return false
}

// PermissionsForRole returns a copy of the role's permissions, or nil for
// an unknown role.
func PermissionsForRole(role Role) []Permission {
	perms := rolePermissions[role]
	if perms == nil {
		return nil
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}
