package middleware

import (
	"strings"

	"pharmos/internal/services"
	"pharmos/pkg/jwt"
	"pharmos/pkg/rbac"
	"pharmos/pkg/response"

	"github.com/gin-gonic/gin"
)

// 请求上下文中的键
const (
	ContextKeySecurityContext = "security_context"
	ContextKeyUserID          = "user_id"
	ContextKeySessionID       = "session_id"
	ContextKeyBranchIDs       = "branch_ids"
	ContextKeyBranchPerms     = "branch_permissions"
)

// AuthMiddleware 认证中间件
type AuthMiddleware struct {
	security   *services.SecurityService
	jwtManager *jwt.JWTManager
}

func NewAuthMiddleware(security *services.SecurityService, jwtManager *jwt.JWTManager) *AuthMiddleware {
	return &AuthMiddleware{
		security:   security,
		jwtManager: jwtManager,
	}
}

// RequireLogin 验证JWT并构建安全上下文
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		// 从Authorization头获取JWT token
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		// 检查Bearer格式
		if !strings.HasPrefix(authHeader, "Bearer ") {
			response.Unauthorized(c, "认证头格式错误")
			c.Abort()
			return
		}

		// 提取token
		tokenString := authHeader[7:] // 去掉 "Bearer "

		// 验证token
		claims, err := m.jwtManager.VerifyToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "Token无效或已过期")
			c.Abort()
			return
		}

		// 按会话构建安全上下文（会话失效即下线，包括被代理用户）
		sc, err := m.security.ResolveBySession(claims.SessionID)
		if err != nil {
			response.Unauthorized(c, "会话已失效，请重新登录")
			c.Abort()
			return
		}

		// 将安全上下文保存到请求上下文
		c.Set(ContextKeySecurityContext, sc)
		c.Set(ContextKeyUserID, sc.UserID)
		c.Set(ContextKeySessionID, claims.SessionID)

		c.Next()
	}
}

// RequirePermission 要求特定权限
func (m *AuthMiddleware) RequirePermission(permission rbac.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		sc := GetSecurityContext(c)
		if sc == nil {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if !sc.HasPermission(permission) {
			response.Forbidden(c, "权限不足：需要 "+string(permission)+" 权限")
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireRole 要求指定角色或更高层级
func (m *AuthMiddleware) RequireRole(role rbac.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sc := GetSecurityContext(c)
		if sc == nil {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if sc.Role > role {
			response.Forbidden(c, "权限不足：需要 "+role.String()+" 或更高角色")
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireGlobalRole 要求全局角色（平台管理/运营）
func (m *AuthMiddleware) RequireGlobalRole() gin.HandlerFunc {
	return func(c *gin.Context) {
		sc := GetSecurityContext(c)
		if sc == nil {
			response.Unauthorized(c, "请先登录")
			c.Abort()
			return
		}

		if !sc.Role.IsGlobal() {
			response.Forbidden(c, "需要平台管理权限")
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetSecurityContext 从请求上下文取出安全上下文
func GetSecurityContext(c *gin.Context) *rbac.SecurityContext {
	value, exists := c.Get(ContextKeySecurityContext)
	if !exists {
		return nil
	}
	sc, ok := value.(*rbac.SecurityContext)
	if !ok {
		return nil
	}
	return sc
}
