package handlers

import (
	"errors"
	"strconv"

	"pharmos/internal/middleware"
	"pharmos/internal/models"
	"pharmos/internal/services"
	"pharmos/pkg/pagination"
	"pharmos/pkg/rbac"
	"pharmos/pkg/response"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// CreateUserRequest 创建用户请求
type CreateUserRequest struct {
	TenantID uint    `json:"tenant_id"`
	BranchID uint    `json:"branch_id"`
	Username string  `json:"username" binding:"required"`
	Email    string  `json:"email" binding:"required,email"`
	Password string  `json:"password" binding:"required"`
	Name     string  `json:"name" binding:"required"`
	Role     int     `json:"role" binding:"required"`
	Phone    *string `json:"phone"`
}

// UpdateUserRequest 更新用户请求
type UpdateUserRequest struct {
	Name  string  `json:"name"`
	Phone *string `json:"phone"`
}

// AssignBranchRequest 网点授权请求
type AssignBranchRequest struct {
	BranchID   uint   `json:"branch_id" binding:"required"`
	Permission string `json:"permission" binding:"required"`
}

// UserHandler 用户处理器
type UserHandler struct {
	users    *services.UserService
	branches *services.BranchService
	usage    *services.UsageService
	audit    *services.AuditService
}

func NewUserHandler(users *services.UserService, branches *services.BranchService, usage *services.UsageService, audit *services.AuditService) *UserHandler {
	return &UserHandler{users: users, branches: branches, usage: usage, audit: audit}
}

// Create 创建用户
func (h *UserHandler) Create(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	role := rbac.Role(req.Role)
	if !role.Valid() {
		response.BadRequest(c, "角色非法")
		return
	}

	user, err := h.users.Create(sc, req.TenantID, req.BranchID, req.Username, req.Email, req.Password, req.Name, role, req.Phone)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	// 用户数发生变化，使用量缓存失效
	h.usage.Invalidate(user.TenantID)
	h.audit.Record(sc, models.AuditActionUserCreate, "user", user.ID, map[string]interface{}{
		"username": user.Username,
		"role":     user.Role.String(),
	}, c.ClientIP())

	response.Success(c, user)
}

// GetAll 分页获取用户列表
func (h *UserHandler) GetAll(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)
	pageParams := pagination.ParsePageParams(c)

	status := c.Query("status")
	keyword := c.Query("keyword")

	users, total, err := h.users.GetWithPage(sc, status, keyword, pageParams.Page, pageParams.PageSize)
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	pageInfo := pagination.NewPageInfo(pageParams.Page, pageParams.PageSize, total)
	response.SuccessWithPage(c, users, pageInfo)
}

// GetByID 获取用户
func (h *UserHandler) GetByID(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	user, err := h.users.GetByID(uint(id))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "用户不存在")
			return
		}
		response.ServerError(c, "查询失败")
		return
	}

	// 非全局角色只能查看本租户用户
	if !sc.Role.IsGlobal() && user.TenantID != sc.TenantID {
		response.Forbidden(c, "无权访问其他租户的数据")
		return
	}

	response.Success(c, user)
}

// Update 更新用户
func (h *UserHandler) Update(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	user, err := h.users.Update(uint(id), req.Name, req.Phone)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "用户不存在")
			return
		}
		response.ServerError(c, "更新失败")
		return
	}

	response.Success(c, user)
}

// Deactivate 停用用户
func (h *UserHandler) Deactivate(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	if err := h.users.UpdateStatus(sc, uint(id), models.UserStatusInactive); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "用户不存在")
			return
		}
		response.Forbidden(c, err.Error())
		return
	}

	h.usage.Invalidate(sc.TenantID)
	h.audit.Record(sc, models.AuditActionUserDeactivate, "user", uint(id), nil, c.ClientIP())
	response.SuccessWithMessage(c, "用户已停用", nil)
}

// Activate 启用用户
func (h *UserHandler) Activate(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	if err := h.users.UpdateStatus(sc, uint(id), models.UserStatusActive); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "用户不存在")
			return
		}
		response.Forbidden(c, err.Error())
		return
	}

	h.usage.Invalidate(sc.TenantID)
	response.SuccessWithMessage(c, "用户已启用", nil)
}

// ResetPassword 重置密码
func (h *UserHandler) ResetPassword(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	// 只能重置自己的密码，或由可管理该用户的角色重置
	if sc.UserID != uint(id) {
		target, err := h.users.GetByID(uint(id))
		if err != nil {
			response.NotFound(c, "用户不存在")
			return
		}
		if !sc.Role.CanManage(target.Role) {
			response.Forbidden(c, "不能管理同级或更高级别的角色")
			return
		}
	}

	var req struct {
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	if err := h.users.ResetPassword(uint(id), req.Password); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	response.SuccessWithMessage(c, "密码已重置", nil)
}

// AssignBranch 给用户授权网点访问
func (h *UserHandler) AssignBranch(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	var req AssignBranchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	target, err := h.users.GetByID(uint(id))
	if err != nil {
		response.NotFound(c, "用户不存在")
		return
	}
	if !sc.Role.CanManage(target.Role) {
		response.Forbidden(c, "不能管理同级或更高级别的角色")
		return
	}

	assignment, err := h.branches.AssignUser(sc, target.ID, req.BranchID, req.Permission, target.Role)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	h.audit.Record(sc, models.AuditActionBranchAssign, "user_branch", assignment.ID, map[string]interface{}{
		"user_id":    target.ID,
		"branch_id":  req.BranchID,
		"permission": req.Permission,
	}, c.ClientIP())

	response.Success(c, assignment)
}

// RevokeBranch 解除用户的网点授权
func (h *UserHandler) RevokeBranch(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)

	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}
	branchID, err := strconv.ParseUint(c.Param("branch_id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "网点ID格式错误")
		return
	}

	if err := h.branches.RevokeUser(uint(id), uint(branchID)); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			response.NotFound(c, "授权记录不存在")
			return
		}
		response.ServerError(c, "解除授权失败")
		return
	}

	h.audit.Record(sc, models.AuditActionBranchRevoke, "user_branch", uint(id), map[string]interface{}{
		"branch_id": branchID,
	}, c.ClientIP())

	response.SuccessWithMessage(c, "授权已解除", nil)
}

// GetBranches 获取用户的网点授权列表
func (h *UserHandler) GetBranches(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "ID格式错误")
		return
	}

	assignments, err := h.branches.GetUserBranches(uint(id))
	if err != nil {
		response.ServerError(c, "查询失败")
		return
	}

	response.Success(c, assignments)
}
