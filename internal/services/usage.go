package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"pharmos/internal/models"
	"pharmos/pkg/logger"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// UsageMetric 单项用量计数
type UsageMetric struct {
	Current int64 `json:"current"`
}

// UsageMetrics 租户当前用量快照，每次检查时实时计算，不落库
type UsageMetrics struct {
	Users        UsageMetric `json:"users"`
	Products     UsageMetric `json:"products"`
	Transactions UsageMetric `json:"transactions"`
	Branches     UsageMetric `json:"branches"`
}

// UsageService 用量统计。实时查库计数，短TTL的Redis缓存削峰，
// 缓存不可用时降级为直接查库
type UsageService struct {
	db    *gorm.DB
	cache *redis.Client
	ttl   time.Duration
}

func NewUsageService(db *gorm.DB, cache *redis.Client, ttl time.Duration) *UsageService {
	return &UsageService{db: db, cache: cache, ttl: ttl}
}

// GetUsage 获取租户当前用量
func (s *UsageService) GetUsage(tenantID uint) (*UsageMetrics, error) {
	if cached := s.fromCache(tenantID); cached != nil {
		return cached, nil
	}

	metrics := &UsageMetrics{}

	if err := s.db.Model(&models.User{}).
		Where("tenant_id = ? AND status != ?", tenantID, models.UserStatusInactive).
		Count(&metrics.Users.Current).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&models.Product{}).
		Where("tenant_id = ? AND status = ?", tenantID, models.ProductStatusActive).
		Count(&metrics.Products.Current).Error; err != nil {
		return nil, err
	}

	// 交易量按自然月统计
	monthStart := monthStartOf(time.Now())
	if err := s.db.Model(&models.Sale{}).
		Where("tenant_id = ? AND created_at >= ?", tenantID, monthStart).
		Count(&metrics.Transactions.Current).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&models.Branch{}).
		Where("tenant_id = ? AND status = ?", tenantID, models.BranchStatusActive).
		Count(&metrics.Branches.Current).Error; err != nil {
		return nil, err
	}

	s.toCache(tenantID, metrics)
	return metrics, nil
}

// Invalidate 资源创建后使缓存失效，下次检查重新计数
func (s *UsageService) Invalidate(tenantID uint) {
	if s.cache == nil {
		return
	}
	ctx := context.Background()
	if err := s.cache.Del(ctx, s.cacheKey(tenantID)).Err(); err != nil {
		logger.GetLogger().Warnf("用量缓存失效操作失败: tenant=%d err=%v", tenantID, err)
	}
}

func (s *UsageService) fromCache(tenantID uint) *UsageMetrics {
	if s.cache == nil {
		return nil
	}
	ctx := context.Background()
	data, err := s.cache.Get(ctx, s.cacheKey(tenantID)).Bytes()
	if err != nil {
		return nil
	}
	var metrics UsageMetrics
	if err := json.Unmarshal(data, &metrics); err != nil {
		return nil
	}
	return &metrics
}

func (s *UsageService) toCache(tenantID uint, metrics *UsageMetrics) {
	if s.cache == nil {
		return
	}
	ctx := context.Background()
	data, err := json.Marshal(metrics)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(tenantID), data, s.ttl).Err(); err != nil {
		logger.GetLogger().Warnf("用量缓存写入失败: tenant=%d err=%v", tenantID, err)
	}
}

func (s *UsageService) cacheKey(tenantID uint) string {
	return fmt.Sprintf("pharmos:usage:%d", tenantID)
}

// monthStartOf 返回所在自然月的起点
func monthStartOf(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}
