package auth

import "github.com/smstore/backend/internal/model"

// rolePermissions is the static role-to-permission table. It is total
// over the closed role set: every role, guest included, maps to a defined
// (possibly empty) set, so lookups never depend on request state and an
// unmapped role cannot occur.
var rolePermissions = map[model.Role]map[model.Permission]bool{
	model.RoleGuest: {},
	model.RoleUser: {
		model.PermOrdersCreate: true,
		model.PermOrdersRead:   true,
		model.PermChatAccess:   true,
	},
	model.RoleAdmin: {
		model.PermOrdersCreate: true,
		model.PermOrdersRead:   true,
		model.PermOrdersUpdate: true,
		model.PermChatAccess:   true,
	},
	model.RoleSuperAdmin: {
		model.PermOrdersCreate: true,
		model.PermOrdersRead:   true,
		model.PermOrdersUpdate: true,
		model.PermOrdersDelete: true,
		model.PermChatAccess:   true,
	},
}

// Allows reports whether the role's permission set contains the
// permission. Unknown roles fall back to the guest (empty) set.
func Allows(role model.Role, perm model.Permission) bool {
	set, ok := rolePermissions[role]
	if !ok {
		set = rolePermissions[model.RoleGuest]
	}
	return set[perm]
}

// Roles returns the closed role set. Used by tests asserting table
// totality and by admin tooling listing assignable roles.
func Roles() []model.Role {
	return []model.Role{model.RoleGuest, model.RoleUser, model.RoleAdmin, model.RoleSuperAdmin}
}

// Permissions returns the closed permission set.
func Permissions() []model.Permission {
	return []model.Permission{
		model.PermOrdersCreate,
		model.PermOrdersRead,
		model.PermOrdersUpdate,
		model.PermOrdersDelete,
		model.PermChatAccess,
	}
}
