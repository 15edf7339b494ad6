package services

import (
	"fmt"
	"time"

	"pharmos/internal/models"
	"pharmos/pkg/logger"
	"pharmos/pkg/queue"
	"pharmos/pkg/rbac"
	"pharmos/pkg/scope"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// NotificationService 通知管理：落库 + 推送到Redis实时频道
type NotificationService struct {
	db    *gorm.DB
	queue *queue.RedisQueue
}

func NewNotificationService(db *gorm.DB, q *queue.RedisQueue) *NotificationService {
	return &NotificationService{db: db, queue: q}
}

// Create 创建通知并推送。推送失败不影响落库，只记日志
func (s *NotificationService) Create(tenantID uint, userID *uint, notifyType, title, message string) (*models.Notification, error) {
	notification := &models.Notification{
		TenantID: tenantID,
		UserID:   userID,
		Type:     notifyType,
		Title:    title,
		Message:  message,
	}
	if err := s.db.Create(notification).Error; err != nil {
		return nil, err
	}

	if s.queue != nil {
		msg := &queue.NotificationMessage{
			ID:       uuid.NewString(),
			TenantID: tenantID,
			UserID:   userID,
			Type:     notifyType,
			Title:    title,
			Message:  message,
			Created:  time.Now().Unix(),
		}
		if err := s.queue.Publish(msg); err != nil {
			logger.GetLogger().Warnf("通知推送失败: tenant=%d type=%s err=%v", tenantID, notifyType, err)
		}
	}

	return notification, nil
}

// NotifyLowStock 低库存告警
func (s *NotificationService) NotifyLowStock(product *models.Product) error {
	title := "低库存告警"
	message := fmt.Sprintf("商品 %s (SKU: %s) 当前库存 %d，已低于告警阈值 %d",
		product.Name, product.SKU, product.StockQuantity, product.ReorderLevel)
	_, err := s.Create(product.TenantID, nil, models.NotificationTypeLowStock, title, message)
	return err
}

// NotifyBatchExpiring 批次临期告警
func (s *NotificationService) NotifyBatchExpiring(batch *models.StockBatch, productName string) error {
	title := "药品临期告警"
	message := fmt.Sprintf("商品 %s 批次 %s 将于 %s 到期，剩余数量 %d",
		productName, batch.BatchNo, batch.ExpiryDate.Format("2006-01-02"), batch.Quantity)
	_, err := s.Create(batch.TenantID, nil, models.NotificationTypeBatchExpiring, title, message)
	return err
}

// NotifySubscriptionExpiring 订阅到期提醒
func (s *NotificationService) NotifySubscriptionExpiring(subscription *models.Subscription, planName string) error {
	title := "订阅即将到期"
	message := fmt.Sprintf("您的套餐 %s 将于 %s 到期，请及时续订",
		planName, subscription.EndDate.Format("2006-01-02"))
	_, err := s.Create(subscription.TenantID, nil, models.NotificationTypeSubscriptionExpiry, title, message)
	return err
}

// GetWithPage 分页获取通知（发给自己的和发给全租户的）
func (s *NotificationService) GetWithPage(sc *rbac.SecurityContext, unreadOnly bool, page, pageSize int) ([]*models.Notification, int64, error) {
	var notifications []*models.Notification
	var total int64

	query := s.db.Model(&models.Notification{}).
		Scopes(scope.Tenant[*models.Notification](sc)).
		Where("user_id IS NULL OR user_id = ?", sc.UserID)

	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&notifications).Error
	if err != nil {
		return nil, 0, err
	}

	return notifications, total, nil
}

// MarkRead 标记已读
func (s *NotificationService) MarkRead(sc *rbac.SecurityContext, id uint) error {
	now := time.Now()
	result := s.db.Model(&models.Notification{}).
		Scopes(scope.Tenant[*models.Notification](sc)).
		Where("id = ? AND (user_id IS NULL OR user_id = ?)", id, sc.UserID).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
