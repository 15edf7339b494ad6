package services

import (
	"encoding/json"
	"time"

	"pharmos/internal/models"
	"pharmos/pkg/logger"
	"pharmos/pkg/rbac"
	"pharmos/pkg/scope"

	"gorm.io/gorm"
)

// AuditService 操作审计（合规留痕）
type AuditService struct {
	db *gorm.DB
}

func NewAuditService(db *gorm.DB) *AuditService {
	return &AuditService{db: db}
}

// Record 写一条审计日志。审计失败只记日志，不阻断业务
func (s *AuditService) Record(sc *rbac.SecurityContext, action, resource string, resourceID uint, detail map[string]interface{}, clientIP string) {
	if err := s.RecordTx(s.db, sc, action, resource, resourceID, detail, clientIP); err != nil {
		logger.GetLogger().Errorf("审计日志写入失败: action=%s err=%v", action, err)
	}
}

// RecordTx 在指定事务内写审计日志，供业务事务一并提交
func (s *AuditService) RecordTx(tx *gorm.DB, sc *rbac.SecurityContext, action, resource string, resourceID uint, detail map[string]interface{}, clientIP string) error {
	var detailJSON []byte
	if detail != nil {
		var err error
		detailJSON, err = json.Marshal(detail)
		if err != nil {
			detailJSON = nil
		}
	}

	entry := &models.AuditLog{
		TenantID:   sc.TenantID,
		BranchID:   sc.BranchID,
		UserID:     sc.UserID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Detail:     detailJSON,
		ClientIP:   clientIP,
	}
	return tx.Create(entry).Error
}

// GetWithPage 分页查询审计日志
func (s *AuditService) GetWithPage(sc *rbac.SecurityContext, action string, from, to *time.Time, page, pageSize int) ([]*models.AuditLog, int64, error) {
	var logs []*models.AuditLog
	var total int64

	query := s.db.Model(&models.AuditLog{}).Scopes(scope.Tenant[*models.AuditLog](sc))

	if action != "" {
		query = query.Where("action = ?", action)
	}
	if from != nil {
		query = query.Where("created_at >= ?", *from)
	}
	if to != nil {
		query = query.Where("created_at <= ?", *to)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&logs).Error
	if err != nil {
		return nil, 0, err
	}

	return logs, total, nil
}
