package handlers

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"pharmos/internal/middleware"
	"pharmos/internal/services"
	"pharmos/pkg/pagination"
	"pharmos/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"gorm.io/gorm"
)

// CreateSaleRequest 销售单创建请求
type CreateSaleRequest struct {
	Items          []services.SaleItemInput `json:"items" binding:"required,min=1,dive"`
	PatientID      *uint                    `json:"patient_id"`
	PrescriptionID *uint                    `json:"prescription_id"`
	Discount       float64                  `json:"discount"`
	PaymentMethod  string                   `json:"payment_method" binding:"required"`
}

// SaleHandler 销售处理器
type SaleHandler struct {
	sales *services.SaleService
}

func NewSaleHandler(sales *services.SaleService) *SaleHandler {
	return &SaleHandler{sales: sales}
}

// Create 开单
func (h *SaleHandler) Create(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	var req CreateSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// 解析验证错误，提供更友好的提示
		if validationErr, ok := err.(validator.ValidationErrors); ok {
			errorMsg := "参数验证失败"
			for _, fieldErr := range validationErr {
				switch fieldErr.Field() {
				case "Items":
					errorMsg = "销售明细不能为空"
				case "Quantity":
					errorMsg = "商品数量必须大于0"
				case "PaymentMethod":
					errorMsg = "支付方式不能为空"
				default:
					errorMsg = fmt.Sprintf("字段 %s 验证失败", fieldErr.Field())
				}
				break // 只返回第一个错误
			}
			response.BadRequest(c, errorMsg)
			return
		}
		response.BadRequest(c, "参数错误")
		return
	}

	sale, err := h.sales.Create(sc, req.Items, req.PatientID, req.PrescriptionID, req.Discount, req.PaymentMethod, c.ClientIP())
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, sale)
}

// GetAll 分页获取销售列表
func (h *SaleHandler) GetAll(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)
	pageParams := pagination.ParsePageParams(c)

	status := c.Query("status")
	from := parseTimeQuery(c, "from")
	to := parseTimeQuery(c, "to")

	sales, total, err := h.sales.GetWithPage(sc, status, from, to, pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, sales, pageInfo)
}

// GetByID 获取销售单
func (h *SaleHandler) GetByID(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	sale, err := h.sales.GetByID(sc, uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "销售单不存在")
			return
		}
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, sale)
}

// Refund 退货
func (h *SaleHandler) Refund(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	sale, err := h.sales.Refund(sc, uint(id), c.ClientIP())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "销售单不存在")
			return
		}
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, sale)
}

// GetDailySummary 当日销售汇总
func (h *SaleHandler) GetDailySummary(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	date := time.Now()
	if v := c.Query("date"); v != "" {
		parsed, err := time.Parse("2006-01-02", v)
		if err != nil {
			response.BadRequest(c, "日期格式错误，应为 YYYY-MM-DD")
			return
		}
		date = parsed
	}

	summary, err := h.sales.GetDailySummary(sc, date)
	if err != nil {
		response.ServerError(c, "统计失败")
		return
	}

	response.Success(c, summary)
}

// parseTimeQuery 解析时间查询参数，格式错误按未提供处理
func parseTimeQuery(c *gin.Context, key string) *time.Time {
	v := c.Query(key)
	if v == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return nil
	}
	return &t
}
