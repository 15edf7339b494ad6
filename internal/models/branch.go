package models

// Branch 网点模型（租户下的一个实体门店）
type Branch struct {
	BaseModel
	TenantID uint    `json:"tenant_id" gorm:"not null;index"`
	Name     string  `json:"name" gorm:"not null;size:100"`
	Code     string  `json:"code" gorm:"not null;size:50;index"`
	Address  *string `json:"address" gorm:"size:255"`
	Phone    *string `json:"phone" gorm:"size:20"`
	IsMain   bool    `json:"is_main" gorm:"default:false"` // 是否为主门店
	Status   string  `json:"status" gorm:"default:'active';size:20"`

	// 关联
	Tenant *Tenant `gorm:"foreignKey:TenantID" json:"tenant,omitempty"`
}

// TableName 表名
func (b *Branch) TableName() string {
	return "branches"
}

// OwnTenantID 租户隔离
func (b *Branch) OwnTenantID() uint {
	return b.TenantID
}

// 网点状态常量
const (
	BranchStatusActive   = "active"
	BranchStatusInactive = "inactive"
)
