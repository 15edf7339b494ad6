// Package scope 提供租户/网点行级过滤。所有受租户隔离的实体实现
// TenantOwned（受网点隔离的再实现 BranchOwned），过滤函数通过泛型
// 约束在编译期保证只能作用于受隔离的实体，避免运行时反射
package scope

import (
	"pharmos/pkg/rbac"

	"gorm.io/gorm"
)

// TenantOwned 受租户隔离的实体
type TenantOwned interface {
	OwnTenantID() uint
}

// BranchOwned 受网点隔离的实体
type BranchOwned interface {
	OwnBranchID() uint
}

// Tenant 返回租户行级过滤的查询作用域。
// 全局角色（超级管理员/平台运营）不过滤；其他角色限定到自己的租户；
// 上下文没有建立租户范围时返回恒假条件，绝不放行全量数据
func Tenant[T TenantOwned](sc *rbac.SecurityContext) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if sc == nil {
			return db.Where("1 = 0")
		}
		if sc.Role.IsGlobal() {
			return db
		}
		if sc.TenantID == 0 {
			return db.Where("1 = 0")
		}
		return db.Where("tenant_id = ?", sc.TenantID)
	}
}

// Branch 返回网点行级过滤的查询作用域。
// 全局角色和租户管理员只受租户过滤约束，可见本租户全部网点；
// 其他角色限定到自己的网点，没有网点范围时返回恒假条件
func Branch[T BranchOwned](sc *rbac.SecurityContext) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if sc == nil {
			return db.Where("1 = 0")
		}
		if sc.Role.IsGlobal() || sc.Role == rbac.RoleTenantAdmin {
			return db
		}
		if sc.BranchID == 0 {
			return db.Where("1 = 0")
		}
		return db.Where("branch_id = ?", sc.BranchID)
	}
}

// Branches 按指定网点集合过滤（网点隔离中间件解析出的可访问网点）。
// 集合为空时返回恒假条件
func Branches[T BranchOwned](branchIDs []uint) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(branchIDs) == 0 {
			return db.Where("1 = 0")
		}
		return db.Where("branch_id IN ?", branchIDs)
	}
}
