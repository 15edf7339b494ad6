package rbac

// Permission 权限代码，如 "inventory.create"
type Permission string

// 用户管理权限
const (
	PermUserCreate       Permission = "user.create"
	PermUserRead         Permission = "user.read"
	PermUserUpdate       Permission = "user.update"
	PermUserDelete       Permission = "user.delete"
	PermUserList         Permission = "user.list"
	PermUserAssignBranch Permission = "user.assign_branch"
)

// 租户管理权限
const (
	PermTenantCreate Permission = "tenant.create"
	PermTenantRead   Permission = "tenant.read"
	PermTenantUpdate Permission = "tenant.update"
	PermTenantDelete Permission = "tenant.delete"
	PermTenantList   Permission = "tenant.list"
)

// 系统权限
const (
	PermSystemSettings    Permission = "system.settings"
	PermSystemImpersonate Permission = "system.impersonate"
	PermSystemAudit       Permission = "system.audit"
)

// 库存管理权限
const (
	PermInventoryCreate Permission = "inventory.create"
	PermInventoryRead   Permission = "inventory.read"
	PermInventoryUpdate Permission = "inventory.update"
	PermInventoryDelete Permission = "inventory.delete"
	PermInventoryList   Permission = "inventory.list"
	PermInventoryAdjust Permission = "inventory.adjust"
)

// 销售权限
const (
	PermSalesCreate Permission = "sales.create"
	PermSalesRead   Permission = "sales.read"
	PermSalesList   Permission = "sales.list"
	PermSalesRefund Permission = "sales.refund"
)

// 处方权限
const (
	PermPrescriptionCreate   Permission = "prescription.create"
	PermPrescriptionRead     Permission = "prescription.read"
	PermPrescriptionList     Permission = "prescription.list"
	PermPrescriptionDispense Permission = "prescription.dispense"
	PermPatientCreate        Permission = "patient.create"
	PermPatientRead          Permission = "patient.read"
	PermPatientUpdate        Permission = "patient.update"
	PermPatientList          Permission = "patient.list"
)

// 报表权限
const (
	PermReportsView   Permission = "reports.view"
	PermReportsExport Permission = "reports.export"
)

// rolePermissions 静态角色权限表。各角色的权限列表手工维护，
// 超级管理员列表必须覆盖其他所有角色的权限（由测试断言）
var rolePermissions = map[Role][]Permission{
	RoleSuperAdmin: {
		PermUserCreate, PermUserRead, PermUserUpdate, PermUserDelete, PermUserList, PermUserAssignBranch,
		PermTenantCreate, PermTenantRead, PermTenantUpdate, PermTenantDelete, PermTenantList,
		PermSystemSettings, PermSystemImpersonate, PermSystemAudit,
		PermInventoryCreate, PermInventoryRead, PermInventoryUpdate, PermInventoryDelete, PermInventoryList, PermInventoryAdjust,
		PermSalesCreate, PermSalesRead, PermSalesList, PermSalesRefund,
		PermPrescriptionCreate, PermPrescriptionRead, PermPrescriptionList, PermPrescriptionDispense,
		PermPatientCreate, PermPatientRead, PermPatientUpdate, PermPatientList,
		PermReportsView, PermReportsExport,
	},
	RoleOperations: {
		PermTenantRead, PermTenantList,
		PermUserRead, PermUserList,
		PermSystemImpersonate, PermSystemAudit,
		PermReportsView,
	},
	RoleTenantAdmin: {
		PermUserCreate, PermUserRead, PermUserUpdate, PermUserDelete, PermUserList, PermUserAssignBranch,
		PermTenantRead, PermTenantUpdate,
		PermInventoryCreate, PermInventoryRead, PermInventoryUpdate, PermInventoryDelete, PermInventoryList, PermInventoryAdjust,
		PermSalesCreate, PermSalesRead, PermSalesList, PermSalesRefund,
		PermPrescriptionCreate, PermPrescriptionRead, PermPrescriptionList, PermPrescriptionDispense,
		PermPatientCreate, PermPatientRead, PermPatientUpdate, PermPatientList,
		PermReportsView, PermReportsExport,
	},
	RolePharmacist: {
		PermInventoryCreate, PermInventoryRead, PermInventoryUpdate, PermInventoryList, PermInventoryAdjust,
		PermSalesCreate, PermSalesRead, PermSalesList,
		PermPrescriptionCreate, PermPrescriptionRead, PermPrescriptionList, PermPrescriptionDispense,
		PermPatientCreate, PermPatientRead, PermPatientUpdate, PermPatientList,
		PermReportsView,
	},
	RoleCashier: {
		PermInventoryRead, PermInventoryList,
		PermSalesCreate, PermSalesRead, PermSalesList,
		PermPatientRead, PermPatientList,
	},
}

// PermissionsFor 返回角色的权限列表，未知角色返回空列表
func PermissionsFor(role Role) []Permission {
	perms, ok := rolePermissions[role]
	if !ok {
		return []Permission{}
	}
	result := make([]Permission, len(perms))
	copy(result, perms)
	return result
}

// IsSuperPermission 检查是否为全量权限。system.settings 是一个特殊的
// 兜底权限：持有它即隐含所有其他权限。该规则破坏了最小权限原则，
// 单独收口在这里，便于审计和后续移除
func IsSuperPermission(p Permission) bool {
	return p == PermSystemSettings
}
