package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoleValid(t *testing.T) {
	for _, role := range []Role{RoleSuperAdmin, RoleOperations, RoleTenantAdmin, RolePharmacist, RoleCashier} {
		assert.True(t, role.Valid(), "角色 %d 应为合法角色", role)
	}

	assert.False(t, Role(0).Valid())
	assert.False(t, Role(6).Valid())
	assert.False(t, Role(-1).Valid())
}

func TestRoleIsGlobal(t *testing.T) {
	assert.True(t, RoleSuperAdmin.IsGlobal())
	assert.True(t, RoleOperations.IsGlobal())

	assert.False(t, RoleTenantAdmin.IsGlobal())
	assert.False(t, RolePharmacist.IsGlobal())
	assert.False(t, RoleCashier.IsGlobal())
}

func TestRoleString(t *testing.T) {
	assert.Equal(t, "super_admin", RoleSuperAdmin.String())
	assert.Equal(t, "cashier", RoleCashier.String())
	assert.Equal(t, "unknown", Role(99).String())
}

func TestParseRole(t *testing.T) {
	assert.Equal(t, RolePharmacist, ParseRole("pharmacist"))
	assert.Equal(t, RoleSuperAdmin, ParseRole("super_admin"))

	assert.False(t, ParseRole("not_a_role").Valid())
}

// 只能管理严格低于自己的角色，任何角色都不能管理自己或同级
func TestCanManage(t *testing.T) {
	roles := []Role{RoleSuperAdmin, RoleOperations, RoleTenantAdmin, RolePharmacist, RoleCashier}

	for _, actor := range roles {
		for _, target := range roles {
			expected := target > actor
			assert.Equal(t, expected, actor.CanManage(target),
				"%s 管理 %s 的判定错误", actor, target)
		}
	}

	// 抽查几个关键组合
	assert.True(t, RoleSuperAdmin.CanManage(RoleOperations))
	assert.True(t, RoleTenantAdmin.CanManage(RoleCashier))
	assert.False(t, RoleTenantAdmin.CanManage(RoleTenantAdmin))
	assert.False(t, RoleCashier.CanManage(RoleSuperAdmin))
	assert.False(t, RoleSuperAdmin.CanManage(RoleSuperAdmin))
}
