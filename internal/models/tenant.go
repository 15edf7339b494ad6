package models

// Tenant 租户模型（一个药房组织）- 贫血模型，只包含数据结构
type Tenant struct {
	BaseModel
	Name         string  `json:"name" gorm:"not null;size:100"`
	Code         string  `json:"code" gorm:"unique;not null;size:50;index"`
	Status       string  `json:"status" gorm:"default:'active';size:20"`
	ContactName  string  `json:"contact_name" gorm:"size:100"`
	ContactPhone *string `json:"contact_phone" gorm:"size:20"`
	ContactEmail *string `json:"contact_email" gorm:"size:100"`
	Address      *string `json:"address" gorm:"size:255"`
	LicenseNo    *string `json:"license_no" gorm:"size:100"` // 药品经营许可证号
}

// TableName 表名
func (t *Tenant) TableName() string {
	return "tenants"
}

// 租户状态常量
const (
	TenantStatusActive    = "active"
	TenantStatusInactive  = "inactive"
	TenantStatusSuspended = "suspended"
)
