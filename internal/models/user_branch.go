package models

import "pharmos/pkg/rbac"

// UserBranch 用户-网点授权记录，定义非管理员用户可以访问哪些网点
// 以及在该网点的读写级别。解除授权使用软失效（IsActive=false），不删行
type UserBranch struct {
	BaseModel
	UserID     uint      `json:"user_id" gorm:"not null;uniqueIndex:idx_user_branch"`
	BranchID   uint      `json:"branch_id" gorm:"not null;uniqueIndex:idx_user_branch"`
	TenantID   uint      `json:"tenant_id" gorm:"not null;index"`
	Role       rbac.Role `json:"role" gorm:"not null"`
	Permission string    `json:"permission" gorm:"not null;size:20;default:'read'"` // read/write/admin
	IsActive   bool      `json:"is_active" gorm:"default:true;index"`
	AssignedBy *uint     `json:"assigned_by"`

	// 关联
	User   *User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Branch *Branch `gorm:"foreignKey:BranchID;constraint:OnDelete:CASCADE" json:"branch,omitempty"`
}

// TableName 表名
func (UserBranch) TableName() string {
	return "user_branches"
}

// OwnTenantID 租户隔离
func (ub *UserBranch) OwnTenantID() uint {
	return ub.TenantID
}

// 网点授权级别常量
const (
	BranchPermissionRead  = "read"
	BranchPermissionWrite = "write"
	BranchPermissionAdmin = "admin"
)
