package handlers

import (
	"strconv"

	"pharmos/internal/middleware"
	"pharmos/internal/models"
	"pharmos/internal/services"
	"pharmos/pkg/jwt"
	"pharmos/pkg/response"

	"github.com/gin-gonic/gin"
)

// LoginRequest 登录请求
type LoginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// AuthHandler 认证处理器
type AuthHandler struct {
	users      *services.UserService
	sessions   *services.SessionService
	security   *services.SecurityService
	audit      *services.AuditService
	jwtManager *jwt.JWTManager
}

func NewAuthHandler(users *services.UserService, sessions *services.SessionService, security *services.SecurityService, audit *services.AuditService, jwtManager *jwt.JWTManager) *AuthHandler {
	return &AuthHandler{
		users:      users,
		sessions:   sessions,
		security:   security,
		audit:      audit,
		jwtManager: jwtManager,
	}
}

// Login 用户登录
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误")
		return
	}

	user, err := h.users.GetByUsername(req.Username)
	if err != nil || !user.CheckPassword(req.Password) {
		response.Unauthorized(c, "用户名或密码错误")
		return
	}
	if !user.IsActive() {
		response.Unauthorized(c, "用户已被禁用")
		return
	}

	session, err := h.sessions.Create(user.ID, c.ClientIP(), h.jwtManager.GetTokenDuration())
	if err != nil {
		response.ServerError(c, "会话创建失败")
		return
	}

	token, err := h.jwtManager.GenerateToken(user.ID, user.TenantID, user.BranchID, user.Username, user.Role, session.Token)
	if err != nil {
		response.ServerError(c, "Token生成失败")
		return
	}

	// 登录时间记录失败不影响登录
	h.users.TouchLogin(user.ID)

	response.Success(c, gin.H{
		"token": token,
		"user":  user,
	})
}

// Logout 用户登出
func (h *AuthHandler) Logout(c *gin.Context) {
	sessionID, exists := c.Get(middleware.ContextKeySessionID)
	if exists {
		if err := h.sessions.Invalidate(sessionID.(string)); err != nil {
			response.ServerError(c, "登出失败")
			return
		}
	}
	response.SuccessWithMessage(c, "登出成功", nil)
}

// RefreshToken 刷新Token
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	authHeader := c.GetHeader("Authorization")
	if len(authHeader) <= 7 {
		response.Unauthorized(c, "请先登录")
		return
	}

	newToken, err := h.jwtManager.RefreshToken(authHeader[7:])
	if err != nil {
		response.Unauthorized(c, "Token无效或已过期")
		return
	}

	response.Success(c, gin.H{"token": newToken})
}

// Me 获取当前用户信息与安全上下文
func (h *AuthHandler) Me(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)
	if sc == nil {
		response.Unauthorized(c, "请先登录")
		return
	}

	user, err := h.users.GetByID(sc.UserID)
	if err != nil {
		response.NotFound(c, "用户不存在")
		return
	}

	response.Success(c, gin.H{
		"user":             user,
		"security_context": sc,
	})
}

// Impersonate 代理登录：以目标用户身份签发新Token
func (h *AuthHandler) Impersonate(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)
	if sc == nil {
		response.Unauthorized(c, "请先登录")
		return
	}

	targetID, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		response.BadRequest(c, "用户ID格式错误")
		return
	}

	session, target, err := h.sessions.Impersonate(sc, uint(targetID), c.ClientIP(), h.jwtManager.GetTokenDuration())
	if err != nil {
		response.Forbidden(c, err.Error())
		return
	}

	token, err := h.jwtManager.GenerateToken(target.ID, target.TenantID, target.BranchID, target.Username, target.Role, session.Token)
	if err != nil {
		response.ServerError(c, "Token生成失败")
		return
	}

	h.audit.Record(sc, models.AuditActionImpersonate, "user", target.ID, map[string]interface{}{
		"target_username": target.Username,
	}, c.ClientIP())

	response.Success(c, gin.H{
		"token": token,
		"user":  target,
	})
}

// StopImpersonation 退出代理登录，注销代理会话
func (h *AuthHandler) StopImpersonation(c *gin.Context) {
	sc := middleware.GetSecurityContext(c)
	if sc == nil {
		response.Unauthorized(c, "请先登录")
		return
	}
	if !sc.IsImpersonated {
		response.BadRequest(c, "当前不是代理会话")
		return
	}

	sessionID, exists := c.Get(middleware.ContextKeySessionID)
	if exists {
		if err := h.sessions.Invalidate(sessionID.(string)); err != nil {
			response.ServerError(c, "退出代理失败")
			return
		}
	}

	h.audit.Record(sc, models.AuditActionStopImpersonate, "user", sc.UserID, nil, c.ClientIP())
	response.SuccessWithMessage(c, "已退出代理会话", nil)
}
