package services

import (
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"pharmos/internal/models"
	apperrors "pharmos/pkg/errors"
	"pharmos/pkg/logger"
	"pharmos/pkg/rbac"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
	logrustest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newMockDB 构建挂在sqlmock上的gorm连接
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

// newCachedUsage 构建带miniredis缓存的用量服务，并预写入一份用量快照，
// 让网关检查不再触发计数查询
func newCachedUsage(t *testing.T, db *gorm.DB, tenantID uint, metrics *UsageMetrics) *UsageService {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	usage := NewUsageService(db, client, time.Minute)
	data, err := json.Marshal(metrics)
	require.NoError(t, err)
	require.NoError(t, mr.Set(usage.cacheKey(tenantID), string(data)))

	return usage
}

func subscriptionColumns() []string {
	return []string{"id", "created_at", "updated_at", "tenant_id", "plan_id", "status", "start_date", "end_date"}
}

func planColumns() []string {
	return []string{"id", "created_at", "updated_at", "name", "code", "tier", "price",
		"max_users", "max_branches", "max_products", "max_transactions", "max_storage_gb", "features"}
}

// expectActiveSubscription 预置订阅及其套餐的查询结果
func expectActiveSubscription(mock sqlmock.Sqlmock, status, planName string, maxUsers int, features string) {
	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "subscriptions"`).
		WillReturnRows(sqlmock.NewRows(subscriptionColumns()).
			AddRow(1, now, now, 1, 10, status, now.AddDate(0, -1, 0), now.AddDate(0, 1, 0)))
	mock.ExpectQuery(`SELECT \* FROM "subscription_plans"`).
		WillReturnRows(sqlmock.NewRows(planColumns()).
			AddRow(10, now, now, planName, "plan", 1, 99.0,
				maxUsers, 5, 500, 1000, 5, []byte(features)))
}

func basicFeatures() string {
	return `["Inventory Management","Sales & POS","Patient Records","User Management"]`
}

func TestGateSkipsExemptPaths(t *testing.T) {
	db, _ := newMockDB(t)
	gate := NewGateService(NewSubscriptionService(db), NewUsageService(db, nil, 0))

	paths := []string{
		"/api/v1/auth/login",
		"/api/v1/billing/plans",
		"/api/v1/health",
		"/health",
		"/static/logo.png",
		"/ws/notifications",
	}
	for _, path := range paths {
		result := gate.CheckAccess(path, nil)
		assert.Equal(t, DecisionAllowed, result.Decision, "免检路径 %s 不应被拦截", path)
	}
}

func TestGateRequiresAuth(t *testing.T) {
	db, _ := newMockDB(t)
	gate := NewGateService(NewSubscriptionService(db), NewUsageService(db, nil, 0))

	result := gate.CheckAccess("/api/v1/products", nil)

	assert.Equal(t, DecisionDenied, result.Decision)
	assert.Equal(t, http.StatusUnauthorized, result.StatusCode)
	assert.Equal(t, apperrors.GateCodeAuthRequired, result.ErrorCode)
}

// 全局角色不属于任何租户，永远不做订阅检查
func TestGateGlobalRoleBypass(t *testing.T) {
	db, _ := newMockDB(t)
	gate := NewGateService(NewSubscriptionService(db), NewUsageService(db, nil, 0))

	for _, role := range []rbac.Role{rbac.RoleSuperAdmin, rbac.RoleOperations} {
		sc := &rbac.SecurityContext{UserID: 1, Role: role}
		result := gate.CheckAccess("/api/v1/products", sc)
		assert.Equal(t, DecisionAllowed, result.Decision)
	}
}

func TestGateNoSubscription(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "subscriptions"`).
		WillReturnRows(sqlmock.NewRows(subscriptionColumns()))

	gate := NewGateService(NewSubscriptionService(db), NewUsageService(db, nil, 0))
	sc := &rbac.SecurityContext{UserID: 2, Role: rbac.RoleTenantAdmin, TenantID: 1}

	result := gate.CheckAccess("/api/v1/products", sc)

	assert.Equal(t, DecisionDenied, result.Decision)
	assert.Equal(t, http.StatusPaymentRequired, result.StatusCode)
	assert.Equal(t, apperrors.GateCodeNoSubscription, result.ErrorCode)
}

func TestGateFeatureNotAvailable(t *testing.T) {
	db, mock := newMockDB(t)
	expectActiveSubscription(mock, models.SubscriptionStatusActive, "Basic", 5, basicFeatures())

	gate := NewGateService(NewSubscriptionService(db), NewUsageService(db, nil, 0))
	sc := &rbac.SecurityContext{UserID: 2, Role: rbac.RoleTenantAdmin, TenantID: 1}

	result := gate.CheckAccess("/api/v1/branches", sc)

	assert.Equal(t, DecisionDenied, result.Decision)
	assert.Equal(t, http.StatusForbidden, result.StatusCode)
	assert.Equal(t, apperrors.GateCodeFeatureNotAvailable, result.ErrorCode)
	assert.Equal(t, "Professional", result.RequiredPlan)
}

func TestGateLimitExceeded(t *testing.T) {
	db, mock := newMockDB(t)
	expectActiveSubscription(mock, models.SubscriptionStatusActive, "Basic", 5, basicFeatures())

	usage := newCachedUsage(t, db, 1, &UsageMetrics{Users: UsageMetric{Current: 5}})
	gate := NewGateService(NewSubscriptionService(db), usage)
	sc := &rbac.SecurityContext{UserID: 2, Role: rbac.RoleTenantAdmin, TenantID: 1}

	result := gate.CheckAccess("/api/v1/users", sc)

	assert.Equal(t, DecisionDenied, result.Decision)
	assert.Equal(t, http.StatusTooManyRequests, result.StatusCode)
	assert.Equal(t, apperrors.GateCodeLimitExceeded, result.ErrorCode)
	assert.Equal(t, "users", result.LimitType)
	assert.Equal(t, int64(5), result.CurrentUsage)
	assert.Equal(t, 5, result.Limit)
}

func TestGateUnderLimitAllowed(t *testing.T) {
	db, mock := newMockDB(t)
	expectActiveSubscription(mock, models.SubscriptionStatusActive, "Basic", 5, basicFeatures())

	usage := newCachedUsage(t, db, 1, &UsageMetrics{Users: UsageMetric{Current: 4}})
	gate := NewGateService(NewSubscriptionService(db), usage)
	sc := &rbac.SecurityContext{UserID: 2, Role: rbac.RoleTenantAdmin, TenantID: 1}

	result := gate.CheckAccess("/api/v1/users", sc)

	assert.Equal(t, DecisionAllowed, result.Decision)
	assert.NotNil(t, result.Subscription)
}

// 限额为-1时不限制
func TestGateUnlimitedLimit(t *testing.T) {
	db, mock := newMockDB(t)
	expectActiveSubscription(mock, models.SubscriptionStatusActive, "Enterprise",
		models.UnlimitedLimit, `["All Features"]`)

	usage := newCachedUsage(t, db, 1, &UsageMetrics{Users: UsageMetric{Current: 99999}})
	gate := NewGateService(NewSubscriptionService(db), usage)
	sc := &rbac.SecurityContext{UserID: 2, Role: rbac.RoleTenantAdmin, TenantID: 1}

	result := gate.CheckAccess("/api/v1/users", sc)

	assert.Equal(t, DecisionAllowed, result.Decision)
}

// "All Features" 通配项解锁所有功能
func TestGateAllFeaturesWildcard(t *testing.T) {
	db, mock := newMockDB(t)
	expectActiveSubscription(mock, models.SubscriptionStatusActive, "Enterprise",
		models.UnlimitedLimit, `["All Features"]`)

	gate := NewGateService(NewSubscriptionService(db), NewUsageService(db, nil, 0))
	sc := &rbac.SecurityContext{UserID: 2, Role: rbac.RoleTenantAdmin, TenantID: 1}

	result := gate.CheckAccess("/api/v1/audit-logs", sc)

	assert.Equal(t, DecisionAllowed, result.Decision)
}

// 宽限期内放行但记录告警
func TestGateGracePeriodAllowsWithWarning(t *testing.T) {
	db, mock := newMockDB(t)
	expectActiveSubscription(mock, models.SubscriptionStatusGracePeriod, "Basic", 5, basicFeatures())

	hook := logrustest.NewLocal(logger.GetLogger())
	defer hook.Reset()

	gate := NewGateService(NewSubscriptionService(db), NewUsageService(db, nil, 0))
	sc := &rbac.SecurityContext{UserID: 2, Role: rbac.RoleTenantAdmin, TenantID: 1}

	result := gate.CheckAccess("/api/v1/patients", sc)

	assert.Equal(t, DecisionAllowedGrace, result.Decision)

	var warned bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.WarnLevel {
			warned = true
		}
	}
	assert.True(t, warned, "宽限期放行时应有告警日志")
}

// 套餐功能配置损坏时放行（可用性优先）
func TestGateMalformedFeaturesFailsOpen(t *testing.T) {
	db, mock := newMockDB(t)
	expectActiveSubscription(mock, models.SubscriptionStatusActive, "Basic", 5, `{not json`)

	gate := NewGateService(NewSubscriptionService(db), NewUsageService(db, nil, 0))
	sc := &rbac.SecurityContext{UserID: 2, Role: rbac.RoleTenantAdmin, TenantID: 1}

	result := gate.CheckAccess("/api/v1/prescriptions", sc)

	assert.Equal(t, DecisionAllowedDueToError, result.Decision)
	assert.True(t, result.Allowed())
}

// 订阅查询失败时放行
func TestGateQueryErrorFailsOpen(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "subscriptions"`).
		WillReturnError(errors.New("connection refused"))

	gate := NewGateService(NewSubscriptionService(db), NewUsageService(db, nil, 0))
	sc := &rbac.SecurityContext{UserID: 2, Role: rbac.RoleTenantAdmin, TenantID: 1}

	result := gate.CheckAccess("/api/v1/products", sc)

	assert.Equal(t, DecisionAllowedDueToError, result.Decision)
}

// 用量统计失败时放行
func TestGateUsageErrorFailsOpen(t *testing.T) {
	db, mock := newMockDB(t)
	expectActiveSubscription(mock, models.SubscriptionStatusActive, "Basic", 5, basicFeatures())
	mock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).
		WillReturnError(errors.New("connection refused"))

	gate := NewGateService(NewSubscriptionService(db), NewUsageService(db, nil, 0))
	sc := &rbac.SecurityContext{UserID: 2, Role: rbac.RoleTenantAdmin, TenantID: 1}

	result := gate.CheckAccess("/api/v1/users", sc)

	assert.Equal(t, DecisionAllowedDueToError, result.Decision)
}

func TestFeatureFromPath(t *testing.T) {
	cases := map[string]string{
		"/api/v1/users/3":       "users",
		"/api/v1/products":      "products",
		"/api/users":            "users",
		"/api/v2/sales":         "sales",
		"/api/v1":               "",
		"/api/":                 "",
		"/metrics":              "",
		"/api/v1/audit-logs/":   "audit-logs",
		"/api/version/settings": "version",
	}

	for path, expected := range cases {
		assert.Equal(t, expected, FeatureFromPath(path), "路径 %s 的功能段解析错误", path)
	}
}
