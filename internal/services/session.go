package services

import (
	"fmt"
	"time"

	"pharmos/internal/models"
	"pharmos/pkg/rbac"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SessionService 会话管理，承载登录与代理登录的会话生命周期
type SessionService struct {
	db *gorm.DB
}

func NewSessionService(db *gorm.DB) *SessionService {
	return &SessionService{db: db}
}

// Create 创建登录会话
func (s *SessionService) Create(userID uint, clientIP string, duration time.Duration) (*models.Session, error) {
	session := &models.Session{
		UserID:    userID,
		Token:     uuid.NewString(),
		ClientIP:  clientIP,
		ExpiresAt: time.Now().Add(duration),
		IsActive:  true,
	}
	if err := s.db.Create(session).Error; err != nil {
		return nil, err
	}
	return session, nil
}

// Invalidate 注销会话
func (s *SessionService) Invalidate(token string) error {
	return s.db.Model(&models.Session{}).
		Where("token = ?", token).
		Update("is_active", false).Error
}

// InvalidateAllForUser 注销用户的全部会话
func (s *SessionService) InvalidateAllForUser(userID uint) error {
	return s.db.Model(&models.Session{}).
		Where("user_id = ? AND is_active = ?", userID, true).
		Update("is_active", false).Error
}

// Impersonate 以目标用户身份创建代理会话。
// 只有持有代理权限的全局角色可以发起，且只能代理层级更低的角色
func (s *SessionService) Impersonate(actor *rbac.SecurityContext, targetUserID uint, clientIP string, duration time.Duration) (*models.Session, *models.User, error) {
	if !actor.HasPermission(rbac.PermSystemImpersonate) {
		return nil, nil, fmt.Errorf("没有代理登录权限")
	}
	if actor.UserID == targetUserID {
		return nil, nil, fmt.Errorf("不能代理自己")
	}

	var target models.User
	if err := s.db.First(&target, targetUserID).Error; err != nil {
		return nil, nil, fmt.Errorf("目标用户不存在")
	}
	if !target.IsActive() {
		return nil, nil, fmt.Errorf("目标用户已被禁用")
	}
	if !actor.Role.CanManage(target.Role) {
		return nil, nil, fmt.Errorf("不能代理同级或更高级别的角色")
	}

	actorID := actor.UserID
	session := &models.Session{
		UserID:         target.ID,
		Token:          uuid.NewString(),
		IsImpersonated: true,
		ImpersonatedBy: &actorID,
		ClientIP:       clientIP,
		ExpiresAt:      time.Now().Add(duration),
		IsActive:       true,
	}
	if err := s.db.Create(session).Error; err != nil {
		return nil, nil, err
	}

	return session, &target, nil
}

// CleanupExpired 清理过期会话（定时任务调用）
func (s *SessionService) CleanupExpired() (int64, error) {
	result := s.db.Model(&models.Session{}).
		Where("is_active = ? AND expires_at < ?", true, time.Now()).
		Update("is_active", false)
	return result.RowsAffected, result.Error
}
