package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// SubscriptionPlan 订阅套餐。套餐一经发布不可变更，
// 升降级通过让订阅指向新套餐实现，而不是修改套餐限额
type SubscriptionPlan struct {
	BaseModel
	Name            string         `json:"name" gorm:"unique;not null;size:100"`
	Code            string         `json:"code" gorm:"unique;not null;size:50;index"`
	Tier            int            `json:"tier" gorm:"not null"` // 套餐档位，数值越大档位越高
	Price           float64        `json:"price" gorm:"not null"`
	MaxUsers        int            `json:"max_users" gorm:"not null"`
	MaxBranches     int            `json:"max_branches" gorm:"not null"`
	MaxProducts     int            `json:"max_products" gorm:"not null"`
	MaxTransactions int            `json:"max_transactions" gorm:"not null"`
	MaxStorageGB    int            `json:"max_storage_gb" gorm:"not null"`
	Features        datatypes.JSON `json:"features" gorm:"type:json"` // 功能名称列表
}

// TableName 表名
func (SubscriptionPlan) TableName() string {
	return "subscription_plans"
}

// UnlimitedLimit 限额为-1表示不限制
const UnlimitedLimit = -1

// FeatureAll 套餐功能列表中的通配项，包含它即解锁全部功能
const FeatureAll = "All Features"

// FeatureList 解析套餐的功能名称列表
func (p *SubscriptionPlan) FeatureList() ([]string, error) {
	var features []string
	if len(p.Features) == 0 {
		return features, nil
	}
	if err := json.Unmarshal(p.Features, &features); err != nil {
		return nil, err
	}
	return features, nil
}

// Subscription 租户订阅记录
type Subscription struct {
	BaseModel
	TenantID  uint      `json:"tenant_id" gorm:"not null;index"`
	PlanID    uint      `json:"plan_id" gorm:"not null;index"`
	Status    string    `json:"status" gorm:"not null;size:20;index"`
	StartDate time.Time `json:"start_date" gorm:"not null"`
	EndDate   time.Time `json:"end_date" gorm:"not null"`

	// 关联
	Tenant *Tenant           `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
	Plan   *SubscriptionPlan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

// TableName 表名
func (Subscription) TableName() string {
	return "subscriptions"
}

// OwnTenantID 租户隔离
func (s *Subscription) OwnTenantID() uint {
	return s.TenantID
}

// 订阅状态常量
const (
	SubscriptionStatusActive      = "active"
	SubscriptionStatusGracePeriod = "grace_period"
	SubscriptionStatusCancelled   = "cancelled"
	SubscriptionStatusExpired     = "expired"
)
