package models

// Sale 销售单
type Sale struct {
	BaseModel
	TenantID       uint    `json:"tenant_id" gorm:"not null;index"`
	BranchID       uint    `json:"branch_id" gorm:"not null;index"`
	InvoiceNo      string  `json:"invoice_no" gorm:"unique;not null;size:50;index"`
	CashierID      uint    `json:"cashier_id" gorm:"not null;index"`
	PatientID      *uint   `json:"patient_id" gorm:"index"`
	PrescriptionID *uint   `json:"prescription_id" gorm:"index"`
	Subtotal       float64 `json:"subtotal" gorm:"not null"`
	Discount       float64 `json:"discount" gorm:"default:0"`
	Tax            float64 `json:"tax" gorm:"default:0"`
	Total          float64 `json:"total" gorm:"not null"`
	PaymentMethod  string  `json:"payment_method" gorm:"size:20"`
	Status         string  `json:"status" gorm:"default:'completed';size:20;index"`

	// 关联
	Items   []SaleItem `gorm:"foreignKey:SaleID" json:"items,omitempty"`
	Cashier *User      `gorm:"foreignKey:CashierID" json:"cashier,omitempty"`
	Patient *Patient   `gorm:"foreignKey:PatientID" json:"patient,omitempty"`
}

// TableName 表名
func (Sale) TableName() string {
	return "sales"
}

// OwnTenantID 租户隔离
func (s *Sale) OwnTenantID() uint {
	return s.TenantID
}

// OwnBranchID 网点隔离
func (s *Sale) OwnBranchID() uint {
	return s.BranchID
}

// 销售单状态常量
const (
	SaleStatusCompleted = "completed"
	SaleStatusRefunded  = "refunded"
	SaleStatusVoided    = "voided"
)

// 支付方式常量
const (
	PaymentMethodCash     = "cash"
	PaymentMethodCard     = "card"
	PaymentMethodMobile   = "mobile"
	PaymentMethodInsurance = "insurance"
)

// SaleItem 销售明细
type SaleItem struct {
	BaseModel
	SaleID    uint    `json:"sale_id" gorm:"not null;index"`
	ProductID uint    `json:"product_id" gorm:"not null;index"`
	BatchID   *uint   `json:"batch_id" gorm:"index"` // 出库批次
	Quantity  int     `json:"quantity" gorm:"not null"`
	UnitPrice float64 `json:"unit_price" gorm:"not null"`
	Total     float64 `json:"total" gorm:"not null"`

	// 关联
	Product *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
}

// TableName 表名
func (SaleItem) TableName() string {
	return "sale_items"
}
