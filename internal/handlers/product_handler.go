package handlers

import (
	"errors"
	"strconv"
	"time"

	"pharmos/internal/middleware"
	"pharmos/internal/models"
	"pharmos/internal/services"
	"pharmos/pkg/pagination"
	"pharmos/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreateProductRequest 创建药品请求
type CreateProductRequest struct {
	Name                 string  `json:"name" binding:"required"`
	SKU                  string  `json:"sku" binding:"required"`
	Barcode              *string `json:"barcode"`
	GenericName          *string `json:"generic_name"`
	Category             string  `json:"category"`
	Unit                 string  `json:"unit"`
	Price                float64 `json:"price" binding:"required"`
	Cost                 float64 `json:"cost"`
	ReorderLevel         int     `json:"reorder_level"`
	RequiresPrescription bool    `json:"requires_prescription"`
}

// AdjustStockRequest 库存调整请求
type AdjustStockRequest struct {
	Delta  int    `json:"delta" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// AddBatchRequest 入库批次请求
type AddBatchRequest struct {
	BatchNo    string    `json:"batch_no" binding:"required"`
	Quantity   int       `json:"quantity" binding:"required,gt=0"`
	ExpiryDate time.Time `json:"expiry_date" binding:"required"`
}

// ProductHandler 药品处理器
type ProductHandler struct {
	products *services.ProductService
	usage    *services.UsageService
}

func NewProductHandler(products *services.ProductService, usage *services.UsageService) *ProductHandler {
	return &ProductHandler{products: products, usage: usage}
}

// Create 创建药品
func (h *ProductHandler) Create(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	product := &models.Product{
		Name:                 req.Name,
		SKU:                  req.SKU,
		Barcode:              req.Barcode,
		GenericName:          req.GenericName,
		Category:             req.Category,
		Unit:                 req.Unit,
		Price:                req.Price,
		Cost:                 req.Cost,
		ReorderLevel:         req.ReorderLevel,
		RequiresPrescription: req.RequiresPrescription,
	}

	created, err := h.products.Create(sc, product)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	h.usage.Invalidate(created.TenantID)
	response.Success(c, created)
}

// GetAll 分页获取药品列表
func (h *ProductHandler) GetAll(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)
	pageParams := pagination.ParsePageParams(c)

	category := c.Query("category")
	keyword := c.Query("keyword")

	products, total, err := h.products.GetWithPage(sc, category, keyword, pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, products, pageInfo)
}

// GetByID 获取药品
func (h *ProductHandler) GetByID(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	product, err := h.products.GetByID(sc, uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "药品不存在")
			return
		}
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, product)
}

// Update 更新药品
func (h *ProductHandler) Update(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}
	// 租户与库存字段不允许直接改
	delete(updates, "tenant_id")
	delete(updates, "branch_id")
	delete(updates, "stock_quantity")

	product, err := h.products.Update(sc, uint(id), updates)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "药品不存在")
			return
		}
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, product)
}

// AdjustStock 调整库存
func (h *ProductHandler) AdjustStock(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req AdjustStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	product, err := h.products.AdjustStock(sc, uint(id), req.Delta, req.Reason, c.ClientIP())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "药品不存在")
			return
		}
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, product)
}

// AddBatch 新增入库批次
func (h *ProductHandler) AddBatch(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req AddBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	batch, err := h.products.AddBatch(sc, uint(id), req.BatchNo, req.Quantity, req.ExpiryDate)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "药品不存在")
			return
		}
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, batch)
}

// GetBatches 获取药品批次（按效期先出排序）
func (h *ProductHandler) GetBatches(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	batches, err := h.products.GetBatches(sc, uint(id))
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, batches)
}

// GetLowStock 低库存药品列表
func (h *ProductHandler) GetLowStock(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	products, err := h.products.GetLowStock(sc)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, products)
}

// GetExpiring 临期批次列表
func (h *ProductHandler) GetExpiring(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	withinDays := 90
	if v := c.Query("within_days"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			withinDays = n
		}
	}

	batches, err := h.products.GetExpiringBatches(sc, withinDays)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, batches)
}
