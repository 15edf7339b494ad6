package services

import (
	"fmt"

	"pharmos/internal/models"
	"pharmos/pkg/rbac"
	"pharmos/pkg/scope"

	"gorm.io/gorm"
)

// BranchService 网点管理
type BranchService struct {
	db *gorm.DB
}

func NewBranchService(db *gorm.DB) *BranchService {
	return &BranchService{db: db}
}

// GetWithPage 分页获取网点，按调用者的租户范围过滤
func (s *BranchService) GetWithPage(sc *rbac.SecurityContext, status string, page, pageSize int) ([]*models.Branch, int64, error) {
	var branches []*models.Branch
	var total int64

	query := s.db.Model(&models.Branch{}).Scopes(scope.Tenant[*models.Branch](sc))
	if status != "" {
		query = query.Where("status = ?", status)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Find(&branches).Error
	if err != nil {
		return nil, 0, err
	}

	return branches, total, nil
}

// GetByID 按ID获取网点（租户范围内）
func (s *BranchService) GetByID(sc *rbac.SecurityContext, id uint) (*models.Branch, error) {
	var branch models.Branch
	err := s.db.Scopes(scope.Tenant[*models.Branch](sc)).First(&branch, id).Error
	return &branch, err
}

// Create 创建网点
func (s *BranchService) Create(sc *rbac.SecurityContext, name, code string, address, phone *string) (*models.Branch, error) {
	if name == "" || code == "" {
		return nil, fmt.Errorf("网点名称和代码不能为空")
	}

	// 同租户内代码唯一
	var count int64
	s.db.Model(&models.Branch{}).Where("tenant_id = ? AND code = ?", sc.TenantID, code).Count(&count)
	if count > 0 {
		return nil, gorm.ErrDuplicatedKey
	}

	branch := &models.Branch{
		TenantID: sc.TenantID,
		Name:     name,
		Code:     code,
		Address:  address,
		Phone:    phone,
		Status:   models.BranchStatusActive,
	}

	err := s.db.Create(branch).Error
	return branch, err
}

// Update 更新网点
func (s *BranchService) Update(sc *rbac.SecurityContext, id uint, name, status string) (*models.Branch, error) {
	var branch models.Branch
	if err := s.db.Scopes(scope.Tenant[*models.Branch](sc)).First(&branch, id).Error; err != nil {
		return nil, err
	}

	if name != "" {
		branch.Name = name
	}
	if status != "" {
		branch.Status = status
	}

	err := s.db.Save(&branch).Error
	return &branch, err
}

// Deactivate 停用网点（主门店不可停用）
func (s *BranchService) Deactivate(sc *rbac.SecurityContext, id uint) error {
	var branch models.Branch
	if err := s.db.Scopes(scope.Tenant[*models.Branch](sc)).First(&branch, id).Error; err != nil {
		return err
	}
	if branch.IsMain {
		return fmt.Errorf("主门店不可停用")
	}
	return s.db.Model(&branch).Update("status", models.BranchStatusInactive).Error
}

// GetUserBranches 获取用户的有效网点授权
func (s *BranchService) GetUserBranches(userID uint) ([]models.UserBranch, error) {
	var assignments []models.UserBranch
	err := s.db.Where("user_id = ? AND is_active = ?", userID, true).
		Preload("Branch").
		Find(&assignments).Error
	return assignments, err
}

// AssignUser 给用户授权网点访问。重复授权时重新激活并更新级别
func (s *BranchService) AssignUser(sc *rbac.SecurityContext, userID, branchID uint, permission string, role rbac.Role) (*models.UserBranch, error) {
	switch permission {
	case models.BranchPermissionRead, models.BranchPermissionWrite, models.BranchPermissionAdmin:
	default:
		return nil, fmt.Errorf("网点授权级别非法: %s", permission)
	}

	var branch models.Branch
	if err := s.db.Scopes(scope.Tenant[*models.Branch](sc)).First(&branch, branchID).Error; err != nil {
		return nil, fmt.Errorf("网点不存在")
	}

	var assignment models.UserBranch
	err := s.db.Where("user_id = ? AND branch_id = ?", userID, branchID).First(&assignment).Error
	if err == nil {
		assignment.Permission = permission
		assignment.Role = role
		assignment.IsActive = true
		assignment.AssignedBy = &sc.UserID
		if err := s.db.Save(&assignment).Error; err != nil {
			return nil, err
		}
		return &assignment, nil
	}

	assignment = models.UserBranch{
		UserID:     userID,
		BranchID:   branchID,
		TenantID:   branch.TenantID,
		Role:       role,
		Permission: permission,
		IsActive:   true,
		AssignedBy: &sc.UserID,
	}
	if err := s.db.Create(&assignment).Error; err != nil {
		return nil, err
	}
	return &assignment, nil
}

// RevokeUser 解除用户的网点授权（软失效，不删行）
func (s *BranchService) RevokeUser(userID, branchID uint) error {
	result := s.db.Model(&models.UserBranch{}).
		Where("user_id = ? AND branch_id = ? AND is_active = ?", userID, branchID, true).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
