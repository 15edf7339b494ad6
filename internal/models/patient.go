package models

import "time"

// Patient 患者档案，按租户隔离（同租户各网点共享患者档案）
type Patient struct {
	BaseModel
	TenantID    uint       `json:"tenant_id" gorm:"not null;index"`
	Code        string     `json:"code" gorm:"not null;size:50;index"` // 患者编号
	Name        string     `json:"name" gorm:"not null;size:100;index"`
	Phone       *string    `json:"phone" gorm:"size:20;index"`
	Email       *string    `json:"email" gorm:"size:100"`
	Gender      string     `json:"gender" gorm:"size:10"`
	DateOfBirth *time.Time `json:"date_of_birth"`
	Allergies   *string    `json:"allergies" gorm:"size:500"` // 过敏史
	Notes       *string    `json:"notes" gorm:"size:1000"`
	Status      string     `json:"status" gorm:"default:'active';size:20"`
}

// TableName 表名
func (p *Patient) TableName() string {
	return "patients"
}

// OwnTenantID 租户隔离
func (p *Patient) OwnTenantID() uint {
	return p.TenantID
}

// 患者状态常量
const (
	PatientStatusActive   = "active"
	PatientStatusArchived = "archived"
)
