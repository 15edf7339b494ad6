package middleware

import (
	"net/http"
	"strings"

	"pharmos/internal/models"
	"pharmos/pkg/rbac"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// branchSkipPrefixes 不参与网点隔离检查的路径前缀
var branchSkipPrefixes = []string{
	"/api/v1/auth",
	"/api/auth",
	"/api/v1/health",
	"/api/v1/ping",
	"/health",
	"/static",
	"/ws",
}

// BranchIsolationMiddleware 网点隔离中间件。在订阅网关之前运行（更轻）：
// 非管理员用户必须持有至少一条有效网点授权，否则整个请求直接拒绝——
// 绝不能让后续的行级过滤在没有网点范围的情况下放行全量数据
type BranchIsolationMiddleware struct {
	db *gorm.DB
}

func NewBranchIsolationMiddleware(db *gorm.DB) *BranchIsolationMiddleware {
	return &BranchIsolationMiddleware{db: db}
}

// Handler 网点隔离检查
func (m *BranchIsolationMiddleware) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path

		// 非API路径和免检路径跳过
		if !strings.HasPrefix(path, "/api/") || m.shouldSkip(path) {
			c.Next()
			return
		}

		sc := GetSecurityContext(c)
		if sc == nil {
			// 未认证的请求由认证中间件处理
			c.Next()
			return
		}

		// 全局角色和租户管理员不受网点隔离约束
		if sc.Role.IsGlobal() || sc.Role == rbac.RoleTenantAdmin {
			c.Next()
			return
		}

		// 加载有效的网点授权
		var assignments []models.UserBranch
		if err := m.db.Where("user_id = ? AND is_active = ?", sc.UserID, true).
			Find(&assignments).Error; err != nil {
			c.String(http.StatusForbidden, "网点授权查询失败")
			c.Abort()
			return
		}

		if len(assignments) == 0 {
			c.String(http.StatusForbidden, "没有可访问的网点")
			c.Abort()
			return
		}

		branchIDs := make([]uint, 0, len(assignments))
		branchPerms := make(map[uint]string, len(assignments))
		for _, assignment := range assignments {
			branchIDs = append(branchIDs, assignment.BranchID)
			branchPerms[assignment.BranchID] = assignment.Permission
		}

		c.Set(ContextKeyBranchIDs, branchIDs)
		c.Set(ContextKeyBranchPerms, branchPerms)

		c.Next()
	}
}

func (m *BranchIsolationMiddleware) shouldSkip(path string) bool {
	for _, prefix := range branchSkipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// GetBranchIDs 从请求上下文取出可访问网点列表
func GetBranchIDs(c *gin.Context) []uint {
	value, exists := c.Get(ContextKeyBranchIDs)
	if !exists {
		return nil
	}
	ids, ok := value.([]uint)
	if !ok {
		return nil
	}
	return ids
}
