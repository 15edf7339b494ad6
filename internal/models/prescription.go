package models

import "time"

// Prescription 处方记录
type Prescription struct {
	BaseModel
	TenantID       uint       `json:"tenant_id" gorm:"not null;index"`
	BranchID       uint       `json:"branch_id" gorm:"not null;index"`
	PatientID      uint       `json:"patient_id" gorm:"not null;index"`
	PrescriptionNo string     `json:"prescription_no" gorm:"not null;size:50;index"`
	PrescriberName string     `json:"prescriber_name" gorm:"not null;size:100"` // 开方医师
	Status         string     `json:"status" gorm:"default:'pending';size:20;index"`
	DispensedBy    *uint      `json:"dispensed_by"` // 调剂药师
	DispensedAt    *time.Time `json:"dispensed_at"`
	Notes          *string    `json:"notes" gorm:"size:500"`

	// 关联
	Patient *Patient           `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
	Items   []PrescriptionItem `gorm:"foreignKey:PrescriptionID" json:"items,omitempty"`
}

// TableName 表名
func (Prescription) TableName() string {
	return "prescriptions"
}

// OwnTenantID 租户隔离
func (p *Prescription) OwnTenantID() uint {
	return p.TenantID
}

// OwnBranchID 网点隔离
func (p *Prescription) OwnBranchID() uint {
	return p.BranchID
}

// 处方状态常量
const (
	PrescriptionStatusPending   = "pending"
	PrescriptionStatusDispensed = "dispensed"
	PrescriptionStatusCancelled = "cancelled"
)

// PrescriptionItem 处方明细
type PrescriptionItem struct {
	BaseModel
	PrescriptionID uint   `json:"prescription_id" gorm:"not null;index"`
	ProductID      uint   `json:"product_id" gorm:"not null;index"`
	Dosage         string `json:"dosage" gorm:"size:100"` // 用法用量
	Quantity       int    `json:"quantity" gorm:"not null"`

	// 关联
	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// TableName 表名
func (PrescriptionItem) TableName() string {
	return "prescription_items"
}
