package scope

import (
	"testing"

	"pharmos/pkg/rbac"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// record 测试用的受隔离实体
type record struct {
	ID       uint
	TenantID uint
	BranchID uint
}

func (r *record) OwnTenantID() uint { return r.TenantID }
func (r *record) OwnBranchID() uint { return r.BranchID }

// newDryRunDB 构建不执行SQL的gorm会话，只用于断言生成的WHERE条件
func newDryRunDB(t *testing.T) *gorm.DB {
	t.Helper()

	sqlDB, _, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return db.Session(&gorm.Session{DryRun: true})
}

func buildSQL(t *testing.T, db *gorm.DB, scopeFn func(*gorm.DB) *gorm.DB) string {
	t.Helper()
	var rows []record
	stmt := db.Scopes(scopeFn).Find(&rows).Statement
	return stmt.SQL.String()
}

func TestTenantScopeGlobalRoleBypassesFilter(t *testing.T) {
	db := newDryRunDB(t)

	for _, role := range []rbac.Role{rbac.RoleSuperAdmin, rbac.RoleOperations} {
		sc := &rbac.SecurityContext{UserID: 1, Role: role}
		sql := buildSQL(t, db, Tenant[*record](sc))
		assert.NotContains(t, sql, "tenant_id", "全局角色 %s 不应有租户过滤", role)
		assert.NotContains(t, sql, "1 = 0")
	}
}

func TestTenantScopeFiltersToOwnTenant(t *testing.T) {
	db := newDryRunDB(t)

	sc := &rbac.SecurityContext{UserID: 1, Role: rbac.RolePharmacist, TenantID: 42}
	sql := buildSQL(t, db, Tenant[*record](sc))

	assert.Contains(t, sql, "tenant_id")
}

// 上下文缺失或租户范围未建立时必须产生恒假条件，不能放行全量数据
func TestTenantScopeFailsClosed(t *testing.T) {
	db := newDryRunDB(t)

	sql := buildSQL(t, db, Tenant[*record](nil))
	assert.Contains(t, sql, "1 = 0")

	sc := &rbac.SecurityContext{UserID: 1, Role: rbac.RoleCashier, TenantID: 0}
	sql = buildSQL(t, db, Tenant[*record](sc))
	assert.Contains(t, sql, "1 = 0")
}

func TestBranchScopeTenantAdminSeesAllBranches(t *testing.T) {
	db := newDryRunDB(t)

	sc := &rbac.SecurityContext{UserID: 1, Role: rbac.RoleTenantAdmin, TenantID: 42}
	sql := buildSQL(t, db, Branch[*record](sc))

	assert.NotContains(t, sql, "branch_id")
	assert.NotContains(t, sql, "1 = 0")
}

func TestBranchScopeFiltersToOwnBranch(t *testing.T) {
	db := newDryRunDB(t)

	sc := &rbac.SecurityContext{UserID: 1, Role: rbac.RoleCashier, TenantID: 42, BranchID: 7}
	sql := buildSQL(t, db, Branch[*record](sc))

	assert.Contains(t, sql, "branch_id")
}

func TestBranchScopeFailsClosed(t *testing.T) {
	db := newDryRunDB(t)

	sql := buildSQL(t, db, Branch[*record](nil))
	assert.Contains(t, sql, "1 = 0")

	sc := &rbac.SecurityContext{UserID: 1, Role: rbac.RolePharmacist, TenantID: 42, BranchID: 0}
	sql = buildSQL(t, db, Branch[*record](sc))
	assert.Contains(t, sql, "1 = 0")
}

func TestBranchesScope(t *testing.T) {
	db := newDryRunDB(t)

	sql := buildSQL(t, db, Branches[*record]([]uint{1, 2, 3}))
	assert.Contains(t, sql, "branch_id IN")

	sql = buildSQL(t, db, Branches[*record](nil))
	assert.Contains(t, sql, "1 = 0")
}
