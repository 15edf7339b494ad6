package services

import (
	"errors"
	"time"

	"pharmos/internal/models"
	"pharmos/pkg/rbac"

	"gorm.io/gorm"
)

// ErrUnauthorized 用户不存在或不可用
var ErrUnauthorized = errors.New("用户不存在或已被禁用")

// SecurityService 安全上下文解析器。每个请求调用一次Resolve，
// 从用户和会话记录构建当次请求的安全快照，纯读操作
type SecurityService struct {
	db *gorm.DB
}

func NewSecurityService(db *gorm.DB) *SecurityService {
	return &SecurityService{db: db}
}

// Resolve 构建用户的安全上下文。
// 代理登录时上下文保留被代理用户的租户/网点/角色（即实际生效身份），
// 只额外携带代理状态供退出代理等操作使用
func (s *SecurityService) Resolve(userID uint) (*rbac.SecurityContext, error) {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return nil, ErrUnauthorized
	}
	if !user.IsActive() {
		return nil, ErrUnauthorized
	}

	sc := &rbac.SecurityContext{
		UserID:      user.ID,
		Role:        user.Role,
		TenantID:    user.TenantID,
		BranchID:    user.BranchID,
		Permissions: rbac.PermissionsFor(user.Role),
	}

	// 查找最近的有效会话，确定代理登录状态
	var session models.Session
	err := s.db.Where("user_id = ? AND is_active = ? AND expires_at > ?", userID, true, time.Now()).
		Order("created_at DESC").
		First(&session).Error
	if err == nil && session.IsImpersonated {
		sc.IsImpersonated = true
		sc.ImpersonatedBy = session.ImpersonatedBy
	}

	return sc, nil
}

// ResolveBySession 按会话标识构建安全上下文，
// 会话无效或过期时同样返回未授权
func (s *SecurityService) ResolveBySession(token string) (*rbac.SecurityContext, error) {
	var session models.Session
	err := s.db.Where("token = ? AND is_active = ?", token, true).First(&session).Error
	if err != nil || session.IsExpired() {
		return nil, ErrUnauthorized
	}

	sc, err := s.Resolve(session.UserID)
	if err != nil {
		return nil, err
	}

	sc.IsImpersonated = session.IsImpersonated
	sc.ImpersonatedBy = session.ImpersonatedBy
	return sc, nil
}
