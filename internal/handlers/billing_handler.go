package handlers

import (
	"errors"
	"strconv"

	"pharmos/internal/middleware"
	"pharmos/internal/models"
	"pharmos/internal/services"
	"pharmos/pkg/pagination"
	"pharmos/pkg/response"

	"github.com/gin-gonic/gin"
)

// ChangePlanRequest 变更套餐请求
type ChangePlanRequest struct {
	PlanID uint `json:"plan_id" binding:"required"`
	Months int  `json:"months" binding:"required,gt=0"`
}

// BillingHandler 订阅计费处理器
type BillingHandler struct {
	subscriptions *services.SubscriptionService
	usage         *services.UsageService
	audit         *services.AuditService
}

func NewBillingHandler(subscriptions *services.SubscriptionService, usage *services.UsageService, audit *services.AuditService) *BillingHandler {
	return &BillingHandler{subscriptions: subscriptions, usage: usage, audit: audit}
}

// GetPlans 获取可订阅的套餐列表
func (h *BillingHandler) GetPlans(c *gin.Context) {
	plans, err := h.subscriptions.GetPlans()
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, plans)
}

// GetCurrent 获取当前订阅
func (h *BillingHandler) GetCurrent(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	tenantID := sc.TenantID
	if sc.Role.IsGlobal() {
		if v := c.Query("tenant_id"); v != "" {
			if n, err := strconv.ParseUint(v, 10, 32); err == nil {
				tenantID = uint(n)
			}
		}
	}

	subscription, err := h.subscriptions.GetActive(tenantID)
	if err != nil {
		if errors.Is(err, services.ErrNoActiveSubscription) {
			response.NotFound(c, "没有有效订阅")
			return
		}
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, subscription)
}

// ChangePlan 变更套餐
func (h *BillingHandler) ChangePlan(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	var req ChangePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	subscription, err := h.subscriptions.ChangePlan(sc.TenantID, req.PlanID, req.Months)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	h.audit.Record(sc, models.AuditActionSubscriptionPlan, "subscription", subscription.ID, map[string]interface{}{
		"plan_id": req.PlanID,
		"months":  req.Months,
	}, c.ClientIP())

	response.Success(c, subscription)
}

// GetUsage 获取当前租户的使用量
func (h *BillingHandler) GetUsage(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	tenantID := sc.TenantID
	if sc.Role.IsGlobal() {
		if v := c.Query("tenant_id"); v != "" {
			if n, err := strconv.ParseUint(v, 10, 32); err == nil {
				tenantID = uint(n)
			}
		}
	}

	metrics, err := h.usage.GetUsage(tenantID)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, metrics)
}

// GetHistory 订阅历史
func (h *BillingHandler) GetHistory(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)
	pageParams := pagination.ParsePageParams(c)

	history, total, err := h.subscriptions.GetHistory(sc.TenantID, pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, history, pageInfo)
}
