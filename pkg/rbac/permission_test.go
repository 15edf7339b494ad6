package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 超级管理员的权限列表必须覆盖其他所有角色的权限，
// 静态表手工维护，靠这个测试防止改表时遗漏
func TestSuperAdminCoversAllRoles(t *testing.T) {
	superPerms := make(map[Permission]bool)
	for _, p := range PermissionsFor(RoleSuperAdmin) {
		superPerms[p] = true
	}

	for _, role := range []Role{RoleOperations, RoleTenantAdmin, RolePharmacist, RoleCashier} {
		for _, p := range PermissionsFor(role) {
			assert.True(t, superPerms[p], "超级管理员缺少 %s 持有的权限 %s", role, p)
		}
	}
}

func TestPermissionsForUnknownRole(t *testing.T) {
	perms := PermissionsFor(Role(99))
	require.NotNil(t, perms)
	assert.Empty(t, perms)
}

// 返回的是副本，调用方修改不能污染静态表
func TestPermissionsForReturnsCopy(t *testing.T) {
	perms := PermissionsFor(RoleCashier)
	require.NotEmpty(t, perms)

	original := perms[0]
	perms[0] = Permission("tampered")

	assert.Equal(t, original, PermissionsFor(RoleCashier)[0])
}

func TestRolePermissionBoundaries(t *testing.T) {
	// 收银员不能退货、不能发药
	cashier := &SecurityContext{Role: RoleCashier, Permissions: PermissionsFor(RoleCashier)}
	assert.True(t, cashier.HasPermission(PermSalesCreate))
	assert.False(t, cashier.HasPermission(PermSalesRefund))
	assert.False(t, cashier.HasPermission(PermPrescriptionDispense))
	assert.False(t, cashier.HasPermission(PermUserCreate))

	// 药师可以发药但不能管理用户
	pharmacist := &SecurityContext{Role: RolePharmacist, Permissions: PermissionsFor(RolePharmacist)}
	assert.True(t, pharmacist.HasPermission(PermPrescriptionDispense))
	assert.False(t, pharmacist.HasPermission(PermUserCreate))

	// 平台运营是只读角色，可以代理登录但不能动业务数据
	operations := &SecurityContext{Role: RoleOperations, Permissions: PermissionsFor(RoleOperations)}
	assert.True(t, operations.HasPermission(PermSystemImpersonate))
	assert.False(t, operations.HasPermission(PermSalesCreate))
}

func TestIsSuperPermission(t *testing.T) {
	assert.True(t, IsSuperPermission(PermSystemSettings))
	assert.False(t, IsSuperPermission(PermSystemImpersonate))
	assert.False(t, IsSuperPermission(PermUserCreate))
}

// 持有 system.settings 即隐含所有权限
func TestHasPermissionSuperEscape(t *testing.T) {
	sc := &SecurityContext{
		Role:        RoleSuperAdmin,
		Permissions: []Permission{PermSystemSettings},
	}

	assert.True(t, sc.HasPermission(PermSalesRefund))
	assert.True(t, sc.HasPermission(PermTenantDelete))
	assert.True(t, sc.HasPermission(Permission("anything.at_all")))
}

func TestHasPermissionEmptyContext(t *testing.T) {
	sc := &SecurityContext{Role: RoleCashier}
	assert.False(t, sc.HasPermission(PermSalesCreate))
}
