package services

import (
	"fmt"
	"unicode/utf8"

	"pharmos/internal/models"

	"gorm.io/gorm"
)

// TenantService 租户管理
type TenantService struct {
	db *gorm.DB
}

// TenantStats 租户统计信息
type TenantStats struct {
	Total     int64 `json:"total"`
	Active    int64 `json:"active"`
	Inactive  int64 `json:"inactive"`
	Suspended int64 `json:"suspended"`
}

func NewTenantService(db *gorm.DB) *TenantService {
	return &TenantService{db: db}
}

// GetWithFiltersAndPage 组合查询（分页版本）
func (s *TenantService) GetWithFiltersAndPage(status, keyword string, page, pageSize int) ([]*models.Tenant, int64, error) {
	var tenants []*models.Tenant
	var total int64

	query := s.db.Model(&models.Tenant{})

	// 添加过滤条件
	if status != "" {
		query = query.Where("status = ?", status)
	}
	if keyword != "" {
		searchPattern := fmt.Sprintf("%%%s%%", keyword)
		query = query.Where("name LIKE ? OR code LIKE ?", searchPattern, searchPattern)
	}

	// 计算总数
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// 分页查询
	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Find(&tenants).Error
	if err != nil {
		return nil, 0, err
	}

	return tenants, total, nil
}

// GetByID 根据ID获取租户
func (s *TenantService) GetByID(id uint) (*models.Tenant, error) {
	var tenant models.Tenant
	err := s.db.First(&tenant, id).Error
	return &tenant, err
}

// Create 创建租户，同时创建主门店
func (s *TenantService) Create(name, code, contactName string) (*models.Tenant, error) {
	if err := s.validateParams(name, code); err != nil {
		return nil, err
	}

	// 检查代码是否重复
	var count int64
	s.db.Model(&models.Tenant{}).Where("code = ?", code).Count(&count)
	if count > 0 {
		return nil, gorm.ErrDuplicatedKey
	}

	tenant := &models.Tenant{
		Name:        name,
		Code:        code,
		ContactName: contactName,
		Status:      models.TenantStatusActive,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(tenant).Error; err != nil {
			return err
		}
		// 每个租户默认拥有一个主门店
		branch := &models.Branch{
			TenantID: tenant.ID,
			Name:     name,
			Code:     code + "-main",
			IsMain:   true,
			Status:   models.BranchStatusActive,
		}
		return tx.Create(branch).Error
	})
	if err != nil {
		return nil, err
	}

	return tenant, nil
}

// Update 更新租户
func (s *TenantService) Update(id uint, name, status string) (*models.Tenant, error) {
	var tenant models.Tenant
	if err := s.db.First(&tenant, id).Error; err != nil {
		return nil, err
	}

	if name != "" {
		tenant.Name = name
	}
	if status != "" {
		if status != models.TenantStatusActive && status != models.TenantStatusInactive && status != models.TenantStatusSuspended {
			return nil, fmt.Errorf("租户状态非法")
		}
		tenant.Status = status
	}

	err := s.db.Save(&tenant).Error
	return &tenant, err
}

// Delete 删除租户
func (s *TenantService) Delete(id uint) error {
	result := s.db.Delete(&models.Tenant{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetStats 租户统计
func (s *TenantService) GetStats() (*TenantStats, error) {
	stats := &TenantStats{}

	if err := s.db.Model(&models.Tenant{}).Count(&stats.Total).Error; err != nil {
		return nil, err
	}
	s.db.Model(&models.Tenant{}).Where("status = ?", models.TenantStatusActive).Count(&stats.Active)
	s.db.Model(&models.Tenant{}).Where("status = ?", models.TenantStatusInactive).Count(&stats.Inactive)
	s.db.Model(&models.Tenant{}).Where("status = ?", models.TenantStatusSuspended).Count(&stats.Suspended)

	return stats, nil
}

func (s *TenantService) validateParams(name, code string) error {
	nameLen := utf8.RuneCountInString(name)
	if nameLen < 2 || nameLen > 100 {
		return fmt.Errorf("租户名称长度需要在2-100之间")
	}
	codeLen := utf8.RuneCountInString(code)
	if codeLen < 2 || codeLen > 50 {
		return fmt.Errorf("租户代码长度需要在2-50之间")
	}
	return nil
}
