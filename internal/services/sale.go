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

// SaleItemInput 销售明细入参
type SaleItemInput struct {
	ProductID uint `json:"product_id" binding:"required"`
	Quantity  int  `json:"quantity" binding:"required,gt=0"`
}

// DailySummary 单日销售汇总
type DailySummary struct {
	Date       string  `json:"date"`
	SaleCount  int64   `json:"sale_count"`
	TotalSales float64 `json:"total_sales"`
}

// SaleService 销售管理
type SaleService struct {
	db    *gorm.DB
	audit *AuditService
	usage *UsageService
}

func NewSaleService(db *gorm.DB, audit *AuditService, usage *UsageService) *SaleService {
	return &SaleService{db: db, audit: audit, usage: usage}
}

// Create 开单。扣减商品库存并按先到期先出消耗批次，整单一个事务。
// 处方药明细要求关联处方
func (s *SaleService) Create(sc *rbac.SecurityContext, items []SaleItemInput, patientID, prescriptionID *uint, discount float64, paymentMethod, clientIP string) (*models.Sale, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("销售明细不能为空")
	}

	sale := &models.Sale{
		TenantID:       sc.TenantID,
		BranchID:       sc.BranchID,
		InvoiceNo:      newInvoiceNo(),
		CashierID:      sc.UserID,
		PatientID:      patientID,
		PrescriptionID: prescriptionID,
		Discount:       discount,
		PaymentMethod:  paymentMethod,
		Status:         models.SaleStatusCompleted,
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var subtotal float64
		saleItems := make([]models.SaleItem, 0, len(items))

		for _, item := range items {
			var product models.Product
			if err := tx.Scopes(scope.Tenant[*models.Product](sc), scope.Branch[*models.Product](sc)).
				First(&product, item.ProductID).Error; err != nil {
				return fmt.Errorf("商品不存在: %d", item.ProductID)
			}

			if product.RequiresPrescription && prescriptionID == nil {
				return fmt.Errorf("商品 %s 为处方药，必须关联处方", product.Name)
			}
			if product.StockQuantity < item.Quantity {
				return fmt.Errorf("商品 %s 库存不足", product.Name)
			}

			// 扣减库存
			if err := tx.Model(&product).
				Update("stock_quantity", gorm.Expr("stock_quantity - ?", item.Quantity)).Error; err != nil {
				return err
			}

			// 按先到期先出消耗批次
			batchID, err := consumeBatches(tx, product.ID, item.Quantity)
			if err != nil {
				return err
			}

			lineTotal := product.Price * float64(item.Quantity)
			subtotal += lineTotal
			saleItems = append(saleItems, models.SaleItem{
				ProductID: product.ID,
				BatchID:   batchID,
				Quantity:  item.Quantity,
				UnitPrice: product.Price,
				Total:     lineTotal,
			})
		}

		sale.Subtotal = subtotal
		sale.Total = subtotal - discount
		if sale.Total < 0 {
			return fmt.Errorf("折扣金额超过合计金额")
		}
		sale.Items = saleItems

		if err := tx.Create(sale).Error; err != nil {
			return err
		}

		return s.audit.RecordTx(tx, sc, models.AuditActionSaleCreate, "sale", sale.ID, map[string]interface{}{
			"invoice_no": sale.InvoiceNo,
			"total":      sale.Total,
			"items":      len(saleItems),
		}, clientIP)
	})
	if err != nil {
		return nil, err
	}

	// 交易量计数已变化
	s.usage.Invalidate(sc.TenantID)
	return sale, nil
}

// Refund 整单退款，回补库存
func (s *SaleService) Refund(sc *rbac.SecurityContext, saleID uint, clientIP string) (*models.Sale, error) {
	var sale models.Sale

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(scope.Tenant[*models.Sale](sc), scope.Branch[*models.Sale](sc)).
			Preload("Items").
			First(&sale, saleID).Error; err != nil {
			return err
		}
		if sale.Status != models.SaleStatusCompleted {
			return fmt.Errorf("只有已完成的销售单可以退款")
		}

		for _, item := range sale.Items {
			if err := tx.Model(&models.Product{}).Where("id = ?", item.ProductID).
				Update("stock_quantity", gorm.Expr("stock_quantity + ?", item.Quantity)).Error; err != nil {
				return err
			}
		}

		if err := tx.Model(&sale).Update("status", models.SaleStatusRefunded).Error; err != nil {
			return err
		}
		sale.Status = models.SaleStatusRefunded

		return s.audit.RecordTx(tx, sc, models.AuditActionSaleRefund, "sale", sale.ID, map[string]interface{}{
			"invoice_no": sale.InvoiceNo,
			"total":      sale.Total,
		}, clientIP)
	})
	if err != nil {
		return nil, err
	}

	return &sale, nil
}

// GetByID 按ID获取销售单（可见范围内）
func (s *SaleService) GetByID(sc *rbac.SecurityContext, id uint) (*models.Sale, error) {
	var sale models.Sale
	err := s.db.Scopes(scope.Tenant[*models.Sale](sc), scope.Branch[*models.Sale](sc)).
		Preload("Items").Preload("Items.Product").
		First(&sale, id).Error
	return &sale, err
}

// GetWithPage 分页获取销售单
func (s *SaleService) GetWithPage(sc *rbac.SecurityContext, status string, from, to *time.Time, page, pageSize int) ([]*models.Sale, int64, error) {
	var sales []*models.Sale
	var total int64

	query := s.db.Model(&models.Sale{}).
		Scopes(scope.Tenant[*models.Sale](sc), scope.Branch[*models.Sale](sc))

	if status != "" {
		query = query.Where("status = ?", status)
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
	err := query.Order("created_at DESC").Offset(offset).Limit(pageSize).Find(&sales).Error
	if err != nil {
		return nil, 0, err
	}

	return sales, total, nil
}

// GetDailySummary 单日销售汇总（报表）
func (s *SaleService) GetDailySummary(sc *rbac.SecurityContext, date time.Time) (*DailySummary, error) {
	dayStart := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	summary := &DailySummary{Date: dayStart.Format("2006-01-02")}

	query := s.db.Model(&models.Sale{}).
		Scopes(scope.Tenant[*models.Sale](sc), scope.Branch[*models.Sale](sc)).
		Where("status = ? AND created_at >= ? AND created_at < ?",
			models.SaleStatusCompleted, dayStart, dayEnd)

	if err := query.Count(&summary.SaleCount).Error; err != nil {
		return nil, err
	}

	var totalSales *float64
	if err := query.Select("SUM(total)").Scan(&totalSales).Error; err != nil {
		return nil, err
	}
	if totalSales != nil {
		summary.TotalSales = *totalSales
	}

	return summary, nil
}

// consumeBatches 按到期日升序消耗批次库存，返回最后消耗的批次ID
func consumeBatches(tx *gorm.DB, productID uint, quantity int) (*uint, error) {
	var batches []models.StockBatch
	if err := tx.Where("product_id = ? AND quantity > 0", productID).
		Order("expiry_date ASC").
		Find(&batches).Error; err != nil {
		return nil, err
	}

	remaining := quantity
	var lastBatchID *uint
	for i := range batches {
		if remaining <= 0 {
			break
		}
		take := remaining
		if take > batches[i].Quantity {
			take = batches[i].Quantity
		}
		if err := tx.Model(&batches[i]).
			Update("quantity", gorm.Expr("quantity - ?", take)).Error; err != nil {
			return nil, err
		}
		remaining -= take
		id := batches[i].ID
		lastBatchID = &id
	}

	// 批次数量与商品库存可能存在历史偏差，批次不够时不阻断开单
	return lastBatchID, nil
}

// newInvoiceNo 生成销售单号
func newInvoiceNo() string {
	suffix := strings.Split(uuid.NewString(), "-")[0]
	return fmt.Sprintf("INV-%s-%s", time.Now().Format("20060102"), strings.ToUpper(suffix))
}
