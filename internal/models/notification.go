package models

import "time"

// Notification 站内通知
type Notification struct {
	BaseModel
	TenantID uint       `json:"tenant_id" gorm:"not null;index"`
	UserID   *uint      `json:"user_id" gorm:"index"` // 为空表示发给整个租户
	Type     string     `json:"type" gorm:"not null;size:50;index"`
	Title    string     `json:"title" gorm:"not null;size:200"`
	Message  string     `json:"message" gorm:"size:1000"`
	IsRead   bool       `json:"is_read" gorm:"default:false;index"`
	ReadAt   *time.Time `json:"read_at"`
}

// TableName 表名
func (Notification) TableName() string {
	return "notifications"
}

// OwnTenantID 租户隔离
func (n *Notification) OwnTenantID() uint {
	return n.TenantID
}

// 通知类型常量
const (
	NotificationTypeLowStock           = "low_stock"
	NotificationTypeBatchExpiring      = "batch_expiring"
	NotificationTypeSubscriptionExpiry = "subscription_expiring"
	NotificationTypeSystem             = "system"
)
