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

// PrescriptionItemInput 处方明细入参
type PrescriptionItemInput struct {
	ProductID uint   `json:"product_id" binding:"required"`
	Dosage    string `json:"dosage"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

// PrescriptionService 处方管理
type PrescriptionService struct {
	db    *gorm.DB
	sales *SaleService
	audit *AuditService
}

func NewPrescriptionService(db *gorm.DB, sales *SaleService, audit *AuditService) *PrescriptionService {
	return &PrescriptionService{db: db, sales: sales, audit: audit}
}

// Create 登记处方
func (s *PrescriptionService) Create(sc *rbac.SecurityContext, patientID uint, prescriberName string, items []PrescriptionItemInput, notes *string) (*models.Prescription, error) {
	if prescriberName == "" {
		return nil, fmt.Errorf("开方医师不能为空")
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("处方明细不能为空")
	}

	var patient models.Patient
	if err := s.db.Scopes(scope.Tenant[*models.Patient](sc)).First(&patient, patientID).Error; err != nil {
		return nil, fmt.Errorf("患者不存在")
	}

	prescription := &models.Prescription{
		TenantID:       sc.TenantID,
		BranchID:       sc.BranchID,
		PatientID:      patient.ID,
		PrescriptionNo: newPrescriptionNo(),
		PrescriberName: prescriberName,
		Status:         models.PrescriptionStatusPending,
		Notes:          notes,
	}
	for _, item := range items {
		prescription.Items = append(prescription.Items, models.PrescriptionItem{
			ProductID: item.ProductID,
			Dosage:    item.Dosage,
			Quantity:  item.Quantity,
		})
	}

	if err := s.db.Create(prescription).Error; err != nil {
		return nil, err
	}
	return prescription, nil
}

// Dispense 调剂发药：生成对应销售单并标记处方已调剂
func (s *PrescriptionService) Dispense(sc *rbac.SecurityContext, prescriptionID uint, paymentMethod, clientIP string) (*models.Prescription, *models.Sale, error) {
	var prescription models.Prescription
	if err := s.db.Scopes(scope.Tenant[*models.Prescription](sc), scope.Branch[*models.Prescription](sc)).
		Preload("Items").
		First(&prescription, prescriptionID).Error; err != nil {
		return nil, nil, err
	}
	if prescription.Status != models.PrescriptionStatusPending {
		return nil, nil, fmt.Errorf("处方状态为 %s，不能调剂", prescription.Status)
	}

	saleItems := make([]SaleItemInput, 0, len(prescription.Items))
	for _, item := range prescription.Items {
		saleItems = append(saleItems, SaleItemInput{ProductID: item.ProductID, Quantity: item.Quantity})
	}

	pid := prescription.ID
	sale, err := s.sales.Create(sc, saleItems, &prescription.PatientID, &pid, 0, paymentMethod, clientIP)
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":       models.PrescriptionStatusDispensed,
		"dispensed_by": sc.UserID,
		"dispensed_at": now,
	}
	if err := s.db.Model(&prescription).Updates(updates).Error; err != nil {
		return nil, nil, err
	}
	prescription.Status = models.PrescriptionStatusDispensed
	prescription.DispensedBy = &sc.UserID
	prescription.DispensedAt = &now

	s.audit.Record(sc, models.AuditActionDispense, "prescription", prescription.ID, map[string]interface{}{
		"prescription_no": prescription.PrescriptionNo,
		"invoice_no":      sale.InvoiceNo,
	}, clientIP)

	return &prescription, sale, nil
}

// Cancel 作废处方
func (s *PrescriptionService) Cancel(sc *rbac.SecurityContext, prescriptionID uint) error {
	var prescription models.Prescription
	if err := s.db.Scopes(scope.Tenant[*models.Prescription](sc), scope.Branch[*models.Prescription](sc)).
		First(&prescription, prescriptionID).Error; err != nil {
		return err
	}
	if prescription.Status != models.PrescriptionStatusPending {
		return fmt.Errorf("只有待调剂的处方可以作废")
	}
	return s.db.Model(&prescription).Update("status", models.PrescriptionStatusCancelled).Error
}

// GetByID 按ID获取处方（可见范围内）
func (s *PrescriptionService) GetByID(sc *rbac.SecurityContext, id uint) (*models.Prescription, error) {
	var prescription models.Prescription
	err := s.db.Scopes(scope.Tenant[*models.Prescription](sc), scope.Branch[*models.Prescription](sc)).
		Preload("Items").Preload("Items.Product").Preload("Patient").
		First(&prescription, id).Error
	return &prescription, err
}

// GetWithPage 分页获取处方
func (s *PrescriptionService) GetWithPage(sc *rbac.SecurityContext, status string, patientID uint, page, pageSize int) ([]*models.Prescription, int64, error) {
	var prescriptions []*models.Prescription
	var total int64

	query := s.db.Model(&models.Prescription{}).
		Scopes(scope.Tenant[*models.Prescription](sc), scope.Branch[*models.Prescription](sc))

	if status != "" {
		query = query.Where("status = ?", status)
	}
	if patientID != 0 {
		query = query.Where("patient_id = ?", patientID)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).
		Preload("Patient").
		Find(&prescriptions).Error
	if err != nil {
		return nil, 0, err
	}

	return prescriptions, total, nil
}

// newPrescriptionNo 生成处方编号
func newPrescriptionNo() string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("RX-%s-%s", time.Now().Format("20060102"), strings.ToUpper(suffix))
}
