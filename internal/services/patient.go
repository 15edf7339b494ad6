package services

import (
	"fmt"
	"strings"
	"time"

	"pharmos/internal/models"
	"pharmos/pkg/rbac"
	"pharmos/pkg/scope"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PatientService 患者档案管理
type PatientService struct {
	db *gorm.DB
}

func NewPatientService(db *gorm.DB) *PatientService {
	return &PatientService{db: db}
}

// GetWithPage 分页获取患者，按调用者的租户范围过滤
func (s *PatientService) GetWithPage(sc *rbac.SecurityContext, keyword string, page, pageSize int) ([]*models.Patient, int64, error) {
	var patients []*models.Patient
	var total int64

	query := s.db.Model(&models.Patient{}).Scopes(scope.Tenant[*models.Patient](sc))

	if keyword != "" {
		searchPattern := fmt.Sprintf("%%%s%%", keyword)
		query = query.Where("name LIKE ? OR phone LIKE ? OR code = ?", searchPattern, searchPattern, keyword)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Find(&patients).Error
	if err != nil {
		return nil, 0, err
	}

	return patients, total, nil
}

// GetByID 按ID获取患者（租户范围内）
func (s *PatientService) GetByID(sc *rbac.SecurityContext, id uint) (*models.Patient, error) {
	var patient models.Patient
	err := s.db.Scopes(scope.Tenant[*models.Patient](sc)).First(&patient, id).Error
	return &patient, err
}

// Create 建档
func (s *PatientService) Create(sc *rbac.SecurityContext, name, gender string, phone, email, allergies *string, dateOfBirth *time.Time) (*models.Patient, error) {
	if name == "" {
		return nil, fmt.Errorf("患者姓名不能为空")
	}

	patient := &models.Patient{
		TenantID:    sc.TenantID,
		Code:        newPatientCode(),
		Name:        name,
		Gender:      gender,
		Phone:       phone,
		Email:       email,
		Allergies:   allergies,
		DateOfBirth: dateOfBirth,
		Status:      models.PatientStatusActive,
	}

	err := s.db.Create(patient).Error
	return patient, err
}

// Update 更新患者档案
func (s *PatientService) Update(sc *rbac.SecurityContext, id uint, updates map[string]interface{}) (*models.Patient, error) {
	var patient models.Patient
	if err := s.db.Scopes(scope.Tenant[*models.Patient](sc)).First(&patient, id).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&patient).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &patient, nil
}

// Archive 归档患者
func (s *PatientService) Archive(sc *rbac.SecurityContext, id uint) error {
	result := s.db.Model(&models.Patient{}).
		Scopes(scope.Tenant[*models.Patient](sc)).
		Where("id = ?", id).
		Update("status", models.PatientStatusArchived)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// newPatientCode 生成患者编号
func newPatientCode() string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return "PT-" + strings.ToUpper(suffix)
}
