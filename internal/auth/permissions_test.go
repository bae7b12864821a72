package auth_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/smstore/backend/internal/auth"
	"github.com/smstore/backend/internal/model"
)

func TestGuestHasNoPermissions(t *testing.T) {
	for _, p := range auth.Permissions() {
		assert.False(t, auth.Allows(model.RoleGuest, p), "guest should not hold %s", p)
	}
}

func TestPermissionMatrix(t *testing.T) {
	cases := []struct {
		role model.Role
		perm model.Permission
		want bool
	}{
		{model.RoleUser, model.PermOrdersCreate, true},
		{model.RoleUser, model.PermOrdersRead, true},
		{model.RoleUser, model.PermChatAccess, true},
		{model.RoleUser, model.PermOrdersUpdate, false},
		{model.RoleUser, model.PermOrdersDelete, false},

		{model.RoleAdmin, model.PermOrdersUpdate, true},
		{model.RoleAdmin, model.PermOrdersDelete, false},

		{model.RoleSuperAdmin, model.PermOrdersDelete, true},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, auth.Allows(tc.role, tc.perm),
			"%s / %s", tc.role, tc.perm)
	}
}

func TestSuperAdminHoldsEveryPermission(t *testing.T) {
	for _, p := range auth.Permissions() {
		assert.True(t, auth.Allows(model.RoleSuperAdmin, p), "super_admin should hold %s", p)
	}
}

func TestAllowsUnknownInputs(t *testing.T) {
	assert.False(t, auth.Allows(model.Role("root"), model.PermOrdersRead))
	assert.False(t, auth.Allows(model.RoleAdmin, model.Permission("orders:explode")))
}

func TestMatrixIsTotalOverRoles(t *testing.T) {
	// Every role the system knows must have an explicit entry, so a new
	// role cannot silently inherit permissions.
	for _, r := range auth.Roles() {
		for _, p := range auth.Permissions() {
			// Calling Allows must be well-defined for the full cross product.
			_ = auth.Allows(r, p)
		}
	}
	assert.Len(t, auth.Roles(), 4)
	assert.Len(t, auth.Permissions(), 5)
}
