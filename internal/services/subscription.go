package services

import (
	"errors"
	"fmt"
	"time"

	"pharmos/internal/models"

	"gorm.io/gorm"
)

// ErrNoActiveSubscription 租户没有生效中的订阅
var ErrNoActiveSubscription = errors.New("租户没有生效的订阅")

// SubscriptionService 订阅管理
type SubscriptionService struct {
	db *gorm.DB
}

func NewSubscriptionService(db *gorm.DB) *SubscriptionService {
	return &SubscriptionService{db: db}
}

// GetActive 获取租户当前生效的订阅（active或grace_period），预加载套餐。
// 数据上不强制唯一，若存在多条生效记录，取最近开始的一条
func (s *SubscriptionService) GetActive(tenantID uint) (*models.Subscription, error) {
	var subscription models.Subscription
	err := s.db.Where("tenant_id = ? AND status IN ?", tenantID,
		[]string{models.SubscriptionStatusActive, models.SubscriptionStatusGracePeriod}).
		Order("start_date DESC").
		Preload("Plan").
		First(&subscription).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNoActiveSubscription
		}
		return nil, err
	}
	return &subscription, nil
}

// GetPlans 获取套餐目录，按档位排序
func (s *SubscriptionService) GetPlans() ([]*models.SubscriptionPlan, error) {
	var plans []*models.SubscriptionPlan
	err := s.db.Order("tier ASC").Find(&plans).Error
	return plans, err
}

// GetPlanByID 根据ID获取套餐
func (s *SubscriptionService) GetPlanByID(id uint) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	err := s.db.First(&plan, id).Error
	return &plan, err
}

// ChangePlan 变更租户套餐：作废现有生效订阅，创建指向新套餐的订阅。
// 整个操作在一个事务内完成，保证同一租户最多一条生效订阅
func (s *SubscriptionService) ChangePlan(tenantID, planID uint, months int) (*models.Subscription, error) {
	if months <= 0 {
		months = 1
	}

	var plan models.SubscriptionPlan
	if err := s.db.First(&plan, planID).Error; err != nil {
		return nil, fmt.Errorf("套餐不存在")
	}

	var subscription *models.Subscription
	err := s.db.Transaction(func(tx *gorm.DB) error {
		// 作废现有生效订阅
		if err := tx.Model(&models.Subscription{}).
			Where("tenant_id = ? AND status IN ?", tenantID,
				[]string{models.SubscriptionStatusActive, models.SubscriptionStatusGracePeriod}).
			Update("status", models.SubscriptionStatusCancelled).Error; err != nil {
			return err
		}

		now := time.Now()
		subscription = &models.Subscription{
			TenantID:  tenantID,
			PlanID:    plan.ID,
			Status:    models.SubscriptionStatusActive,
			StartDate: now,
			EndDate:   now.AddDate(0, months, 0),
		}
		return tx.Create(subscription).Error
	})
	if err != nil {
		return nil, err
	}

	subscription.Plan = &plan
	return subscription, nil
}

// GetHistory 获取租户的订阅历史（分页）
func (s *SubscriptionService) GetHistory(tenantID uint, page, pageSize int) ([]*models.Subscription, int64, error) {
	var subscriptions []*models.Subscription
	var total int64

	query := s.db.Model(&models.Subscription{}).Where("tenant_id = ?", tenantID)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("start_date DESC").
		Offset(offset).Limit(pageSize).
		Preload("Plan").
		Find(&subscriptions).Error
	if err != nil {
		return nil, 0, err
	}

	return subscriptions, total, nil
}
