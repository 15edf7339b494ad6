package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pharmos/pkg/rbac"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func userBranchColumns() []string {
	return []string{"id", "created_at", "updated_at", "user_id", "branch_id",
		"tenant_id", "role", "permission", "is_active", "assigned_by"}
}

// newBranchRouter 构建挂好网点隔离中间件的测试路由
func newBranchRouter(db *gorm.DB, sc *rbac.SecurityContext) (*gin.Engine, *[]uint) {
	m := NewBranchIsolationMiddleware(db)

	var captured []uint
	router := gin.New()
	router.Use(func(c *gin.Context) {
		if sc != nil {
			c.Set(ContextKeySecurityContext, sc)
		}
		c.Next()
	})
	router.Use(m.Handler())
	router.Any("/*path", func(c *gin.Context) {
		captured = GetBranchIDs(c)
		c.String(http.StatusOK, "ok")
	})
	return router, &captured
}

func doBranchRequest(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

// 没有任何有效网点授权的非管理员用户整个请求直接拒绝，
// 返回纯文本403而不是JSON信封
func TestBranchIsolationDeniesUserWithoutBranches(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "user_branches"`).
		WillReturnRows(sqlmock.NewRows(userBranchColumns()))

	sc := &rbac.SecurityContext{UserID: 5, Role: rbac.RoleCashier, TenantID: 1, BranchID: 2}
	router, _ := newBranchRouter(db, sc)

	w := doBranchRequest(router, "/api/v1/sales")

	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "没有可访问的网点", w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")
}

func TestBranchIsolationLoadsAssignments(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "user_branches"`).
		WillReturnRows(sqlmock.NewRows(userBranchColumns()).
			AddRow(1, now, now, 5, 2, 1, int(rbac.RoleCashier), "read", true, nil).
			AddRow(2, now, now, 5, 3, 1, int(rbac.RoleCashier), "write", true, nil))

	sc := &rbac.SecurityContext{UserID: 5, Role: rbac.RoleCashier, TenantID: 1, BranchID: 2}
	router, captured := newBranchRouter(db, sc)

	w := doBranchRequest(router, "/api/v1/sales")

	require.Equal(t, http.StatusOK, w.Code)
	assert.ElementsMatch(t, []uint{2, 3}, *captured)
}

// 全局角色和租户管理员不受网点隔离约束，也不产生查询
func TestBranchIsolationBypassesAdmins(t *testing.T) {
	for _, role := range []rbac.Role{rbac.RoleSuperAdmin, rbac.RoleOperations, rbac.RoleTenantAdmin} {
		db, mock := newMockDB(t)

		sc := &rbac.SecurityContext{UserID: 5, Role: role, TenantID: 1}
		router, _ := newBranchRouter(db, sc)

		w := doBranchRequest(router, "/api/v1/sales")

		assert.Equal(t, http.StatusOK, w.Code, "角色 %s 应绕过网点隔离", role)
		assert.NoError(t, mock.ExpectationsWereMet())
	}
}

func TestBranchIsolationSkipsExemptPaths(t *testing.T) {
	db, mock := newMockDB(t)

	sc := &rbac.SecurityContext{UserID: 5, Role: rbac.RoleCashier, TenantID: 1, BranchID: 2}
	router, _ := newBranchRouter(db, sc)

	for _, path := range []string{"/api/v1/auth/me", "/api/v1/health", "/metrics"} {
		w := doBranchRequest(router, path)
		assert.Equal(t, http.StatusOK, w.Code, "免检路径 %s 不应被拦截", path)
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 未认证的请求交给认证中间件处理，这里不拦截
func TestBranchIsolationPassesWithoutContext(t *testing.T) {
	db, mock := newMockDB(t)

	router, _ := newBranchRouter(db, nil)
	w := doBranchRequest(router, "/api/v1/sales")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}
