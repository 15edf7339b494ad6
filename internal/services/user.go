package services

import (
	"fmt"
	"time"
	"unicode/utf8"

	"pharmos/internal/models"
	"pharmos/pkg/rbac"
	"pharmos/pkg/scope"

	"gorm.io/gorm"
)

// UserService 用户管理
type UserService struct {
	db *gorm.DB
}

func NewUserService(db *gorm.DB) *UserService {
	return &UserService{db: db}
}

// GetByID 根据ID获取用户
func (s *UserService) GetByID(id uint) (*models.User, error) {
	var user models.User
	err := s.db.First(&user, id).Error
	return &user, err
}

// GetByUsername 根据用户名获取用户
func (s *UserService) GetByUsername(username string) (*models.User, error) {
	var user models.User
	err := s.db.Where("username = ?", username).First(&user).Error
	return &user, err
}

// GetWithPage 分页获取用户，按调用者可见范围过滤
func (s *UserService) GetWithPage(sc *rbac.SecurityContext, status, keyword string, page, pageSize int) ([]*models.User, int64, error) {
	var users []*models.User
	var total int64

	query := s.db.Model(&models.User{}).Scopes(scope.Tenant[*models.User](sc))

	if status != "" {
		query = query.Where("status = ?", status)
	}
	if keyword != "" {
		searchPattern := fmt.Sprintf("%%%s%%", keyword)
		query = query.Where("username LIKE ? OR name LIKE ? OR email LIKE ?",
			searchPattern, searchPattern, searchPattern)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Find(&users).Error
	if err != nil {
		return nil, 0, err
	}

	return users, total, nil
}

// Create 创建用户。调用者只能创建层级低于自己的角色，
// 非全局调用者创建的用户固定落在调用者所在租户
func (s *UserService) Create(sc *rbac.SecurityContext, tenantID, branchID uint, username, email, password, name string, role rbac.Role, phone *string) (*models.User, error) {
	if err := s.validateCreateParams(username, email, password, name); err != nil {
		return nil, err
	}

	if !sc.Role.CanManage(role) {
		return nil, fmt.Errorf("不能创建同级或更高级别的角色")
	}

	// 非全局调用者只能在自己的租户内创建
	if !sc.Role.IsGlobal() {
		tenantID = sc.TenantID
	}

	if !role.IsGlobal() {
		var tenantCount int64
		s.db.Model(&models.Tenant{}).Where("id = ?", tenantID).Count(&tenantCount)
		if tenantCount == 0 {
			return nil, fmt.Errorf("租户不存在")
		}
	}

	// 检查用户名是否重复
	var usernameCount int64
	s.db.Model(&models.User{}).Where("username = ?", username).Count(&usernameCount)
	if usernameCount > 0 {
		return nil, fmt.Errorf("用户名已存在")
	}

	// 检查邮箱是否重复
	var emailCount int64
	s.db.Model(&models.User{}).Where("email = ?", email).Count(&emailCount)
	if emailCount > 0 {
		return nil, fmt.Errorf("邮箱已存在")
	}

	user := &models.User{
		TenantID: tenantID,
		BranchID: branchID,
		Username: username,
		Email:    email,
		Name:     name,
		Phone:    phone,
		Role:     role,
		Status:   models.UserStatusActive,
	}

	// 设置密码
	if err := user.SetPassword(password); err != nil {
		return nil, fmt.Errorf("密码加密失败: %v", err)
	}

	err := s.db.Create(user).Error
	return user, err
}

// Update 更新用户基本信息
func (s *UserService) Update(id uint, name string, phone *string) (*models.User, error) {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return nil, err
	}

	if name != "" {
		user.Name = name
	}
	if phone != nil {
		user.Phone = phone
	}

	err := s.db.Save(&user).Error
	return &user, err
}

// UpdateStatus 更新用户状态（启用/停用/锁定）
func (s *UserService) UpdateStatus(sc *rbac.SecurityContext, id uint, status string) error {
	switch status {
	case models.UserStatusActive, models.UserStatusInactive, models.UserStatusLocked:
	default:
		return fmt.Errorf("用户状态非法")
	}

	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return err
	}
	if !sc.Role.CanManage(user.Role) {
		return fmt.Errorf("不能管理同级或更高级别的角色")
	}

	return s.db.Model(&user).Update("status", status).Error
}

// ResetPassword 重置密码
func (s *UserService) ResetPassword(id uint, newPassword string) error {
	if utf8.RuneCountInString(newPassword) < 8 {
		return fmt.Errorf("密码长度至少8位")
	}

	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return err
	}

	if err := user.SetPassword(newPassword); err != nil {
		return fmt.Errorf("密码加密失败: %v", err)
	}
	return s.db.Model(&user).Update("password_hash", user.PasswordHash).Error
}

// TouchLogin 记录登录时间
func (s *UserService) TouchLogin(id uint) error {
	now := time.Now()
	return s.db.Model(&models.User{}).Where("id = ?", id).Update("last_login_at", now).Error
}

// Delete 删除用户
func (s *UserService) Delete(sc *rbac.SecurityContext, id uint) error {
	var user models.User
	if err := s.db.First(&user, id).Error; err != nil {
		return err
	}
	if !sc.Role.CanManage(user.Role) {
		return fmt.Errorf("不能管理同级或更高级别的角色")
	}

	return s.db.Delete(&user).Error
}

func (s *UserService) validateCreateParams(username, email, password, name string) error {
	usernameLen := utf8.RuneCountInString(username)
	if usernameLen < 3 || usernameLen > 50 {
		return fmt.Errorf("用户名长度需要在3-50之间")
	}
	if utf8.RuneCountInString(password) < 8 {
		return fmt.Errorf("密码长度至少8位")
	}
	if email == "" {
		return fmt.Errorf("邮箱不能为空")
	}
	nameLen := utf8.RuneCountInString(name)
	if nameLen < 1 || nameLen > 100 {
		return fmt.Errorf("姓名长度需要在1-100之间")
	}
	return nil
}
