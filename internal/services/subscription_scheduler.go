package services

import (
	"fmt"
	"time"

	"pharmos/internal/models"
	"pharmos/pkg/logger"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// SubscriptionScheduler 订阅生命周期调度器：
// 每天凌晨把过期的active订阅转入宽限期、把宽限期结束的订阅标记过期，
// 并发送到期提醒和临期批次合规巡检
type SubscriptionScheduler struct {
	db            *gorm.DB
	notifications *NotificationService
	cron          *cron.Cron
	graceDays     int
	notifyDays    int
	running       bool
}

func NewSubscriptionScheduler(db *gorm.DB, notifications *NotificationService, graceDays, notifyDays int) *SubscriptionScheduler {
	return &SubscriptionScheduler{
		db:            db,
		notifications: notifications,
		cron:          cron.New(),
		graceDays:     graceDays,
		notifyDays:    notifyDays,
	}
}

// Start 启动调度器
func (s *SubscriptionScheduler) Start() error {
	if s.running {
		return fmt.Errorf("调度器已经在运行")
	}

	log := logger.GetLogger()
	log.Info("启动订阅生命周期调度器")

	// 每天凌晨2点执行订阅状态流转
	if _, err := s.cron.AddFunc("0 2 * * *", s.RunLifecycleSweep); err != nil {
		return fmt.Errorf("注册订阅巡检任务失败: %v", err)
	}

	// 每天凌晨3点执行临期批次合规巡检
	if _, err := s.cron.AddFunc("0 3 * * *", s.RunComplianceSweep); err != nil {
		return fmt.Errorf("注册合规巡检任务失败: %v", err)
	}

	s.cron.Start()
	s.running = true
	return nil
}

// Stop 停止调度器
func (s *SubscriptionScheduler) Stop() {
	if !s.running {
		return
	}
	s.cron.Stop()
	s.running = false
	logger.GetLogger().Info("订阅生命周期调度器已停止")
}

// RunLifecycleSweep 执行一轮订阅状态流转
func (s *SubscriptionScheduler) RunLifecycleSweep() {
	log := logger.GetLogger()
	now := time.Now()

	// active 且已过期 -> grace_period
	var expiring []models.Subscription
	if err := s.db.Where("status = ? AND end_date < ?", models.SubscriptionStatusActive, now).
		Preload("Plan").
		Find(&expiring).Error; err != nil {
		log.Errorf("订阅巡检查询失败: %v", err)
		return
	}
	for i := range expiring {
		sub := &expiring[i]
		if err := s.db.Model(sub).Update("status", models.SubscriptionStatusGracePeriod).Error; err != nil {
			log.Errorf("订阅转入宽限期失败: subscription=%d err=%v", sub.ID, err)
			continue
		}
		log.Warnf("订阅转入宽限期: tenant=%d subscription=%d", sub.TenantID, sub.ID)
		planName := ""
		if sub.Plan != nil {
			planName = sub.Plan.Name
		}
		if err := s.notifications.NotifySubscriptionExpiring(sub, planName); err != nil {
			log.Errorf("订阅到期通知发送失败: tenant=%d err=%v", sub.TenantID, err)
		}
	}

	// grace_period 且宽限期结束 -> expired
	graceDeadline := now.AddDate(0, 0, -s.graceDays)
	result := s.db.Model(&models.Subscription{}).
		Where("status = ? AND end_date < ?", models.SubscriptionStatusGracePeriod, graceDeadline).
		Update("status", models.SubscriptionStatusExpired)
	if result.Error != nil {
		log.Errorf("订阅过期标记失败: %v", result.Error)
	} else if result.RowsAffected > 0 {
		log.Warnf("已标记 %d 条订阅为过期", result.RowsAffected)
	}

	// 即将到期的订阅发提醒
	notifyDeadline := now.AddDate(0, 0, s.notifyDays)
	var upcoming []models.Subscription
	if err := s.db.Where("status = ? AND end_date BETWEEN ? AND ?",
		models.SubscriptionStatusActive, now, notifyDeadline).
		Preload("Plan").
		Find(&upcoming).Error; err != nil {
		log.Errorf("到期提醒查询失败: %v", err)
		return
	}
	for i := range upcoming {
		sub := &upcoming[i]
		planName := ""
		if sub.Plan != nil {
			planName = sub.Plan.Name
		}
		if err := s.notifications.NotifySubscriptionExpiring(sub, planName); err != nil {
			log.Errorf("到期提醒发送失败: tenant=%d err=%v", sub.TenantID, err)
		}
	}
}

// RunComplianceSweep 巡检90天内到期且仍有库存的批次并发告警
func (s *SubscriptionScheduler) RunComplianceSweep() {
	log := logger.GetLogger()
	deadline := time.Now().AddDate(0, 0, 90)

	var batches []models.StockBatch
	if err := s.db.Where("quantity > 0 AND expiry_date <= ?", deadline).
		Preload("Product").
		Find(&batches).Error; err != nil {
		log.Errorf("临期批次巡检查询失败: %v", err)
		return
	}

	for i := range batches {
		batch := &batches[i]
		productName := ""
		if batch.Product != nil {
			productName = batch.Product.Name
		}
		if err := s.notifications.NotifyBatchExpiring(batch, productName); err != nil {
			log.Errorf("临期批次告警发送失败: batch=%d err=%v", batch.ID, err)
		}
	}

	if len(batches) > 0 {
		log.Infof("临期批次巡检完成，发出 %d 条告警", len(batches))
	}
}
