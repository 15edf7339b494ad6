package services

import (
	"fmt"
	"time"

	"pharmos/internal/models"
	"pharmos/pkg/rbac"
	"pharmos/pkg/scope"

	"gorm.io/gorm"
)

// ProductService 库存管理
type ProductService struct {
	db    *gorm.DB
	audit *AuditService
}

func NewProductService(db *gorm.DB, audit *AuditService) *ProductService {
	return &ProductService{db: db, audit: audit}
}

// GetWithPage 分页获取商品，按调用者可见范围过滤
func (s *ProductService) GetWithPage(sc *rbac.SecurityContext, category, keyword string, page, pageSize int) ([]*models.Product, int64, error) {
	var products []*models.Product
	var total int64

	query := s.db.Model(&models.Product{}).
		Scopes(scope.Tenant[*models.Product](sc), scope.Branch[*models.Product](sc))

	if category != "" {
		query = query.Where("category = ?", category)
	}
	if keyword != "" {
		searchPattern := fmt.Sprintf("%%%s%%", keyword)
		query = query.Where("name LIKE ? OR generic_name LIKE ? OR sku LIKE ? OR barcode = ?",
			searchPattern, searchPattern, searchPattern, keyword)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.Offset(offset).Limit(pageSize).Find(&products).Error
	if err != nil {
		return nil, 0, err
	}

	return products, total, nil
}

// GetByID 按ID获取商品（可见范围内）
func (s *ProductService) GetByID(sc *rbac.SecurityContext, id uint) (*models.Product, error) {
	var product models.Product
	err := s.db.Scopes(scope.Tenant[*models.Product](sc), scope.Branch[*models.Product](sc)).
		First(&product, id).Error
	return &product, err
}

// Create 创建商品
func (s *ProductService) Create(sc *rbac.SecurityContext, product *models.Product) (*models.Product, error) {
	if product.Name == "" || product.SKU == "" {
		return nil, fmt.Errorf("商品名称和SKU不能为空")
	}
	if product.Price < 0 {
		return nil, fmt.Errorf("价格不能为负")
	}

	product.TenantID = sc.TenantID
	if product.BranchID == 0 {
		product.BranchID = sc.BranchID
	}
	product.Status = models.ProductStatusActive

	// 同租户内SKU唯一
	var count int64
	s.db.Model(&models.Product{}).
		Where("tenant_id = ? AND sku = ?", product.TenantID, product.SKU).
		Count(&count)
	if count > 0 {
		return nil, gorm.ErrDuplicatedKey
	}

	err := s.db.Create(product).Error
	return product, err
}

// Update 更新商品
func (s *ProductService) Update(sc *rbac.SecurityContext, id uint, updates map[string]interface{}) (*models.Product, error) {
	var product models.Product
	if err := s.db.Scopes(scope.Tenant[*models.Product](sc), scope.Branch[*models.Product](sc)).
		First(&product, id).Error; err != nil {
		return nil, err
	}

	if err := s.db.Model(&product).Updates(updates).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

// AdjustStock 库存调整（盘点/报损），写审计日志
func (s *ProductService) AdjustStock(sc *rbac.SecurityContext, id uint, delta int, reason, clientIP string) (*models.Product, error) {
	var product models.Product

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Scopes(scope.Tenant[*models.Product](sc), scope.Branch[*models.Product](sc)).
			First(&product, id).Error; err != nil {
			return err
		}

		newQuantity := product.StockQuantity + delta
		if newQuantity < 0 {
			return fmt.Errorf("库存不足，当前 %d，调整 %d", product.StockQuantity, delta)
		}

		if err := tx.Model(&product).Update("stock_quantity", newQuantity).Error; err != nil {
			return err
		}
		product.StockQuantity = newQuantity

		return s.audit.RecordTx(tx, sc, models.AuditActionStockAdjust, "product", product.ID, map[string]interface{}{
			"delta":  delta,
			"reason": reason,
			"after":  newQuantity,
		}, clientIP)
	})
	if err != nil {
		return nil, err
	}

	return &product, nil
}

// AddBatch 入库一个批次，同步累加商品库存
func (s *ProductService) AddBatch(sc *rbac.SecurityContext, productID uint, batchNo string, quantity int, expiryDate time.Time) (*models.StockBatch, error) {
	if quantity <= 0 {
		return nil, fmt.Errorf("批次数量必须大于0")
	}

	var batch *models.StockBatch
	err := s.db.Transaction(func(tx *gorm.DB) error {
		var product models.Product
		if err := tx.Scopes(scope.Tenant[*models.Product](sc), scope.Branch[*models.Product](sc)).
			First(&product, productID).Error; err != nil {
			return err
		}

		batch = &models.StockBatch{
			TenantID:   product.TenantID,
			BranchID:   product.BranchID,
			ProductID:  product.ID,
			BatchNo:    batchNo,
			Quantity:   quantity,
			ExpiryDate: expiryDate,
			ReceivedAt: time.Now(),
		}
		if err := tx.Create(batch).Error; err != nil {
			return err
		}

		return tx.Model(&product).
			Update("stock_quantity", gorm.Expr("stock_quantity + ?", quantity)).Error
	})
	if err != nil {
		return nil, err
	}

	return batch, nil
}

// GetBatches 获取商品的批次列表（先到期先出）
func (s *ProductService) GetBatches(sc *rbac.SecurityContext, productID uint) ([]*models.StockBatch, error) {
	var batches []*models.StockBatch
	err := s.db.Scopes(scope.Tenant[*models.StockBatch](sc), scope.Branch[*models.StockBatch](sc)).
		Where("product_id = ? AND quantity > 0", productID).
		Order("expiry_date ASC").
		Find(&batches).Error
	return batches, err
}

// GetLowStock 低库存商品列表
func (s *ProductService) GetLowStock(sc *rbac.SecurityContext) ([]*models.Product, error) {
	var products []*models.Product
	err := s.db.Scopes(scope.Tenant[*models.Product](sc), scope.Branch[*models.Product](sc)).
		Where("status = ? AND reorder_level > 0 AND stock_quantity <= reorder_level", models.ProductStatusActive).
		Find(&products).Error
	return products, err
}

// GetExpiringBatches 指定天数内到期的批次（合规检查）
func (s *ProductService) GetExpiringBatches(sc *rbac.SecurityContext, withinDays int) ([]*models.StockBatch, error) {
	deadline := time.Now().AddDate(0, 0, withinDays)
	var batches []*models.StockBatch
	err := s.db.Scopes(scope.Tenant[*models.StockBatch](sc), scope.Branch[*models.StockBatch](sc)).
		Where("quantity > 0 AND expiry_date <= ?", deadline).
		Order("expiry_date ASC").
		Preload("Product").
		Find(&batches).Error
	return batches, err
}
