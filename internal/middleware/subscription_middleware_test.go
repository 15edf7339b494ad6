package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"pharmos/internal/models"
	"pharmos/internal/services"
	apperrors "pharmos/pkg/errors"
	"pharmos/pkg/rbac"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return db, mock
}

// expectSubscription 预置订阅及套餐查询结果
func expectSubscription(mock sqlmock.Sqlmock, status, planName, features string) {
	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "subscriptions"`).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "created_at", "updated_at", "tenant_id", "plan_id", "status", "start_date", "end_date"}).
			AddRow(1, now, now, 1, 10, status, now.AddDate(0, -1, 0), now.AddDate(0, 1, 0)))
	mock.ExpectQuery(`SELECT \* FROM "subscription_plans"`).
		WillReturnRows(sqlmock.NewRows(
			[]string{"id", "created_at", "updated_at", "name", "code", "tier", "price",
				"max_users", "max_branches", "max_products", "max_transactions", "max_storage_gb", "features"}).
			AddRow(10, now, now, planName, "plan", 1, 99.0, 5, 5, 500, 1000, 5, []byte(features)))
}

// newGateRouter 构建挂好订阅中间件的测试路由，用固定的安全上下文
func newGateRouter(db *gorm.DB, sc *rbac.SecurityContext, usage *services.UsageService) *gin.Engine {
	if usage == nil {
		usage = services.NewUsageService(db, nil, 0)
	}
	gate := services.NewGateService(services.NewSubscriptionService(db), usage)
	m := NewSubscriptionMiddleware(gate, "/billing/upgrade")

	router := gin.New()
	router.Use(func(c *gin.Context) {
		if sc != nil {
			c.Set(ContextKeySecurityContext, sc)
		}
		c.Next()
	})
	router.Use(m.Handler())
	router.Any("/*path", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})
	return router
}

func doRequest(router *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestSubscriptionMiddlewareAuthRequired(t *testing.T) {
	db, _ := newMockDB(t)
	router := newGateRouter(db, nil, nil)

	w := doRequest(router, "/api/v1/products")

	assert.Equal(t, http.StatusUnauthorized, w.Code)

	var body GateErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Error)
	assert.Equal(t, apperrors.GateCodeAuthRequired, body.ErrorCode)
	assert.Equal(t, "/billing/upgrade", body.UpgradeURL)
	assert.NotEmpty(t, body.Timestamp)
}

func TestSubscriptionMiddlewareFeatureDenied(t *testing.T) {
	db, mock := newMockDB(t)
	expectSubscription(mock, models.SubscriptionStatusActive, "Basic",
		`["Inventory Management","User Management"]`)

	sc := &rbac.SecurityContext{UserID: 2, Role: rbac.RoleTenantAdmin, TenantID: 1}
	router := newGateRouter(db, sc, nil)

	w := doRequest(router, "/api/v1/branches")

	assert.Equal(t, http.StatusForbidden, w.Code)

	var body GateErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperrors.GateCodeFeatureNotAvailable, body.ErrorCode)
	assert.Equal(t, "Professional", body.RequiredPlan)
	// 功能拒绝不带用量字段
	assert.Nil(t, body.CurrentUsage)
	assert.Nil(t, body.Limit)
}

func TestSubscriptionMiddlewareLimitDenied(t *testing.T) {
	db, mock := newMockDB(t)
	expectSubscription(mock, models.SubscriptionStatusActive, "Basic",
		`["Inventory Management","User Management"]`)
	// 用量计数（无缓存，直接查库）
	mock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "products"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "sales"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "branches"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	sc := &rbac.SecurityContext{UserID: 2, Role: rbac.RoleTenantAdmin, TenantID: 1}
	router := newGateRouter(db, sc, nil)

	w := doRequest(router, "/api/v1/users")

	assert.Equal(t, http.StatusTooManyRequests, w.Code)

	var body GateErrorBody
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, apperrors.GateCodeLimitExceeded, body.ErrorCode)
	assert.Equal(t, "users", body.LimitType)
	require.NotNil(t, body.CurrentUsage)
	require.NotNil(t, body.Limit)
	assert.Equal(t, int64(5), *body.CurrentUsage)
	assert.Equal(t, 5, *body.Limit)
}

// 放行时附带订阅信息响应头
func TestSubscriptionMiddlewareSuccessHeaders(t *testing.T) {
	db, mock := newMockDB(t)
	expectSubscription(mock, models.SubscriptionStatusActive, "Basic",
		`["Inventory Management","User Management","Patient Records"]`)

	sc := &rbac.SecurityContext{UserID: 2, Role: rbac.RoleTenantAdmin, TenantID: 1}
	router := newGateRouter(db, sc, nil)

	w := doRequest(router, "/api/v1/patients")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Basic", w.Header().Get(HeaderSubscriptionPlan))
	assert.Equal(t, models.SubscriptionStatusActive, w.Header().Get(HeaderSubscriptionStatus))
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}$`, w.Header().Get(HeaderSubscriptionExpires))
}

// 免检路径不查订阅、不带订阅响应头
func TestSubscriptionMiddlewareSkipsExemptPaths(t *testing.T) {
	db, mock := newMockDB(t)

	sc := &rbac.SecurityContext{UserID: 2, Role: rbac.RoleTenantAdmin, TenantID: 1}
	router := newGateRouter(db, sc, nil)

	w := doRequest(router, "/api/v1/billing/plans")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Header().Get(HeaderSubscriptionPlan))
	assert.NoError(t, mock.ExpectationsWereMet())
}
