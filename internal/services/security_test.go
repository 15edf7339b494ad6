package services

import (
	"testing"
	"time"

	"pharmos/pkg/rbac"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userColumns() []string {
	return []string{"id", "created_at", "updated_at", "tenant_id", "branch_id",
		"username", "email", "password_hash", "name", "phone", "role", "status", "last_login_at"}
}

func sessionColumns() []string {
	return []string{"id", "created_at", "updated_at", "user_id", "token",
		"is_impersonated", "impersonated_by", "client_ip", "expires_at", "is_active"}
}

func expectUser(mock sqlmock.Sqlmock, id, tenantID, branchID uint, role rbac.Role, status string) {
	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows(userColumns()).
			AddRow(id, now, now, tenantID, branchID, "zhang", "zhang@test.local",
				"$2a$10$hash", "张三", nil, int(role), status, nil))
}

func TestResolveBuildsContext(t *testing.T) {
	db, mock := newMockDB(t)
	expectUser(mock, 3, 42, 7, rbac.RolePharmacist, "active")
	// 无有效会话
	mock.ExpectQuery(`SELECT \* FROM "sessions"`).
		WillReturnRows(sqlmock.NewRows(sessionColumns()))

	security := NewSecurityService(db)
	sc, err := security.Resolve(3)

	require.NoError(t, err)
	assert.Equal(t, uint(3), sc.UserID)
	assert.Equal(t, rbac.RolePharmacist, sc.Role)
	assert.Equal(t, uint(42), sc.TenantID)
	assert.Equal(t, uint(7), sc.BranchID)
	assert.False(t, sc.IsImpersonated)
	assert.ElementsMatch(t, rbac.PermissionsFor(rbac.RolePharmacist), sc.Permissions)
}

func TestResolveInactiveUser(t *testing.T) {
	db, mock := newMockDB(t)
	expectUser(mock, 3, 42, 7, rbac.RolePharmacist, "inactive")

	security := NewSecurityService(db)
	_, err := security.Resolve(3)

	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestResolveUnknownUser(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "users"`).
		WillReturnRows(sqlmock.NewRows(userColumns()))

	security := NewSecurityService(db)
	_, err := security.Resolve(99)

	assert.ErrorIs(t, err, ErrUnauthorized)
}

// 代理登录时上下文保留被代理用户的身份，只额外携带代理状态
func TestResolveImpersonatedSession(t *testing.T) {
	db, mock := newMockDB(t)
	expectUser(mock, 3, 42, 7, rbac.RoleTenantAdmin, "active")

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "sessions"`).
		WillReturnRows(sqlmock.NewRows(sessionColumns()).
			AddRow(11, now, now, 3, "tok-1", true, 1, "127.0.0.1", now.Add(time.Hour), true))

	security := NewSecurityService(db)
	sc, err := security.Resolve(3)

	require.NoError(t, err)
	assert.Equal(t, uint(3), sc.UserID)
	assert.Equal(t, uint(42), sc.TenantID)
	assert.True(t, sc.IsImpersonated)
	require.NotNil(t, sc.ImpersonatedBy)
	assert.Equal(t, uint(1), *sc.ImpersonatedBy)
}

func TestResolveBySessionExpired(t *testing.T) {
	db, mock := newMockDB(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "sessions"`).
		WillReturnRows(sqlmock.NewRows(sessionColumns()).
			AddRow(11, now, now, 3, "tok-1", false, nil, "127.0.0.1", now.Add(-time.Hour), true))

	security := NewSecurityService(db)
	_, err := security.ResolveBySession("tok-1")

	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestResolveBySessionValid(t *testing.T) {
	db, mock := newMockDB(t)

	now := time.Now()
	mock.ExpectQuery(`SELECT \* FROM "sessions"`).
		WillReturnRows(sqlmock.NewRows(sessionColumns()).
			AddRow(11, now, now, 3, "tok-1", false, nil, "127.0.0.1", now.Add(time.Hour), true))
	expectUser(mock, 3, 42, 7, rbac.RoleCashier, "active")
	// Resolve内部还会查一次最近会话
	mock.ExpectQuery(`SELECT \* FROM "sessions"`).
		WillReturnRows(sqlmock.NewRows(sessionColumns()))

	security := NewSecurityService(db)
	sc, err := security.ResolveBySession("tok-1")

	require.NoError(t, err)
	assert.Equal(t, rbac.RoleCashier, sc.Role)
}
