package models

import "time"

// Product 药品/商品模型
type Product struct {
	BaseModel
	TenantID             uint    `json:"tenant_id" gorm:"not null;index"`
	BranchID             uint    `json:"branch_id" gorm:"not null;index"`
	SKU                  string  `json:"sku" gorm:"not null;size:50;index"`
	Barcode              *string `json:"barcode" gorm:"size:50;index"`
	Name                 string  `json:"name" gorm:"not null;size:200;index"`
	GenericName          *string `json:"generic_name" gorm:"size:200"` // 通用名
	Category             string  `json:"category" gorm:"size:100;index"`
	Unit                 string  `json:"unit" gorm:"size:20"` // 盒/瓶/片
	Price                float64 `json:"price" gorm:"not null"`
	Cost                 float64 `json:"cost"`
	StockQuantity        int     `json:"stock_quantity" gorm:"default:0"`
	ReorderLevel         int     `json:"reorder_level" gorm:"default:0"` // 低库存告警阈值
	RequiresPrescription bool    `json:"requires_prescription" gorm:"default:false"`
	Status               string  `json:"status" gorm:"default:'active';size:20"`
}

// TableName 表名
func (p *Product) TableName() string {
	return "products"
}

// OwnTenantID 租户隔离
func (p *Product) OwnTenantID() uint {
	return p.TenantID
}

// OwnBranchID 网点隔离
func (p *Product) OwnBranchID() uint {
	return p.BranchID
}

// 商品状态常量
const (
	ProductStatusActive       = "active"
	ProductStatusDiscontinued = "discontinued"
)

// StockBatch 库存批次，按批次跟踪效期（合规要求）
type StockBatch struct {
	BaseModel
	TenantID   uint      `json:"tenant_id" gorm:"not null;index"`
	BranchID   uint      `json:"branch_id" gorm:"not null;index"`
	ProductID  uint      `json:"product_id" gorm:"not null;index"`
	BatchNo    string    `json:"batch_no" gorm:"not null;size:50"`
	Quantity   int       `json:"quantity" gorm:"not null"`
	ExpiryDate time.Time `json:"expiry_date" gorm:"not null;index"`
	ReceivedAt time.Time `json:"received_at"`

	// 关联
	Product *Product `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"product,omitempty"`
}

// TableName 表名
func (StockBatch) TableName() string {
	return "stock_batches"
}

// OwnTenantID 租户隔离
func (b *StockBatch) OwnTenantID() uint {
	return b.TenantID
}

// OwnBranchID 网点隔离
func (b *StockBatch) OwnBranchID() uint {
	return b.BranchID
}
