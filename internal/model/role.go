// Package model defines the core domain types shared across layers.
package model

// Role is an account role drawn from a closed set. Roles order loosely by
// privilege: guest < user < admin < super_admin, but authorization always
// goes through the explicit permission table rather than comparing roles.
type Role string

const (
	RoleGuest      Role = "guest"
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "super_admin"
)

// ParseRole maps a stored string onto the closed role set. Anything
// outside the set, including casing variants, collapses to guest so an
// unrecognized value can never grant privileges.
func ParseRole(s string) Role {
	switch Role(s) {
	case RoleUser, RoleAdmin, RoleSuperAdmin, RoleGuest:
		return Role(s)
	default:
		return RoleGuest
	}
}

// Permission names one guarded capability. The set is closed; new
// capabilities are added here and granted in the role table.
type Permission string

const (
	PermOrdersCreate Permission = "orders:create"
	PermOrdersRead   Permission = "orders:read"
	PermOrdersUpdate Permission = "orders:update"
	PermOrdersDelete Permission = "orders:delete"
	PermChatAccess   Permission = "chat:access"
)
