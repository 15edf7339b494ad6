package models

import "gorm.io/datatypes"

// AuditLog 操作审计日志（合规留痕），只增不改
type AuditLog struct {
	BaseModel
	TenantID   uint           `json:"tenant_id" gorm:"not null;index"`
	BranchID   uint           `json:"branch_id" gorm:"index"`
	UserID     uint           `json:"user_id" gorm:"not null;index"`
	Action     string         `json:"action" gorm:"not null;size:50;index"`   // 如 sale.create
	Resource   string         `json:"resource" gorm:"not null;size:50;index"` // 资源类型
	ResourceID uint           `json:"resource_id" gorm:"index"`
	Detail     datatypes.JSON `json:"detail" gorm:"type:json"`
	ClientIP   string         `json:"client_ip" gorm:"size:45"`
}

// TableName 表名
func (AuditLog) TableName() string {
	return "audit_logs"
}

// OwnTenantID 租户隔离
func (a *AuditLog) OwnTenantID() uint {
	return a.TenantID
}

// 审计动作常量
const (
	AuditActionSaleCreate       = "sale.create"
	AuditActionSaleRefund       = "sale.refund"
	AuditActionStockAdjust      = "stock.adjust"
	AuditActionDispense         = "prescription.dispense"
	AuditActionImpersonate      = "session.impersonate"
	AuditActionStopImpersonate  = "session.stop_impersonate"
	AuditActionUserCreate       = "user.create"
	AuditActionUserDeactivate   = "user.deactivate"
	AuditActionBranchAssign     = "branch.assign"
	AuditActionBranchRevoke     = "branch.revoke"
	AuditActionSubscriptionPlan = "subscription.change_plan"
)
