package rbac

// Role 角色等级，数值越小权限越高
type Role int

const (
	RoleSuperAdmin  Role = 1 // 平台超级管理员
	RoleOperations  Role = 2 // 平台运营（跨租户监控）
	RoleTenantAdmin Role = 3 // 租户管理员（药房老板）
	RolePharmacist  Role = 4 // 药师
	RoleCashier     Role = 5 // 收银员
)

// 角色代码常量
const (
	RoleCodeSuperAdmin  = "super_admin"
	RoleCodeOperations  = "operations"
	RoleCodeTenantAdmin = "tenant_admin"
	RoleCodePharmacist  = "pharmacist"
	RoleCodeCashier     = "cashier"
)

var roleNames = map[Role]string{
	RoleSuperAdmin:  RoleCodeSuperAdmin,
	RoleOperations:  RoleCodeOperations,
	RoleTenantAdmin: RoleCodeTenantAdmin,
	RolePharmacist:  RoleCodePharmacist,
	RoleCashier:     RoleCodeCashier,
}

// String 返回角色代码
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// Valid 检查角色是否合法
func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

// IsGlobal 是否为全局角色（跨租户可见，用于平台管理和监控）
func (r Role) IsGlobal() bool {
	return r == RoleSuperAdmin || r == RoleOperations
}

// CanManage 检查角色层级管理规则：只能管理比自己权限低的角色，
// 任何角色都不能管理同级角色（包括超级管理员之间）
func (r Role) CanManage(target Role) bool {
	if !r.Valid() || !target.Valid() {
		return false
	}
	return target > r
}

// ParseRole 根据角色代码解析角色，未知代码返回0（非法角色）
func ParseRole(code string) Role {
	for role, name := range roleNames {
		if name == code {
			return role
		}
	}
	return 0
}
