package handlers

import (
	"errors"
	"strconv"

	"pharmos/internal/middleware"
	"pharmos/internal/services"
	"pharmos/pkg/pagination"
	"pharmos/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreateBranchRequest 创建网点请求
type CreateBranchRequest struct {
	Name    string  `json:"name" binding:"required"`
	Code    string  `json:"code" binding:"required"`
	Address *string `json:"address"`
	Phone   *string `json:"phone"`
}

// UpdateBranchRequest 更新网点请求
type UpdateBranchRequest struct {
	Name   string `json:"name"`
	Status string `json:"status"`
}

// BranchHandler 网点处理器
type BranchHandler struct {
	branches *services.BranchService
	usage    *services.UsageService
}

func NewBranchHandler(branches *services.BranchService, usage *services.UsageService) *BranchHandler {
	return &BranchHandler{branches: branches, usage: usage}
}

// Create 创建网点
func (h *BranchHandler) Create(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	var req CreateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	branch, err := h.branches.Create(sc, req.Name, req.Code, req.Address, req.Phone)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	h.usage.Invalidate(branch.TenantID)
	response.Success(c, branch)
}

// GetAll 分页获取网点列表
func (h *BranchHandler) GetAll(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)
	pageParams := pagination.ParsePageParams(c)

	status := c.Query("status")

	branches, total, err := h.branches.GetWithPage(sc, status, pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, branches, pageInfo)
}

// GetByID 获取网点
func (h *BranchHandler) GetByID(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	branch, err := h.branches.GetByID(sc, uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "网点不存在")
			return
		}
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, branch)
}

// Update 更新网点
func (h *BranchHandler) Update(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req UpdateBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	branch, err := h.branches.Update(sc, uint(id), req.Name, req.Status)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "网点不存在")
			return
		}
		response.BadRequest(c, err.Error())
		return
	}

	response.Success(c, branch)
}

// Deactivate 停用网点
func (h *BranchHandler) Deactivate(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	if err := h.branches.Deactivate(sc, uint(id)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "网点不存在")
			return
		}
		response.BadRequest(c, err.Error())
		return
	}

	h.usage.Invalidate(sc.TenantID)
	response.SuccessWithMessage(c, "网点已停用", nil)
}
