package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func expectUsageCounts(mock sqlmock.Sqlmock, users, products, transactions, branches int64) {
	mock.ExpectQuery(`SELECT count\(\*\) FROM "users"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(users))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "products"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(products))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "sales"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(transactions))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "branches"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(branches))
}

func TestGetUsageCountsFromDB(t *testing.T) {
	db, mock := newMockDB(t)
	expectUsageCounts(mock, 3, 120, 45, 2)

	usage := NewUsageService(db, nil, 0)
	metrics, err := usage.GetUsage(1)

	require.NoError(t, err)
	assert.Equal(t, int64(3), metrics.Users.Current)
	assert.Equal(t, int64(120), metrics.Products.Current)
	assert.Equal(t, int64(45), metrics.Transactions.Current)
	assert.Equal(t, int64(2), metrics.Branches.Current)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// 缓存命中时不再查库
func TestGetUsageServesFromCache(t *testing.T) {
	db, mock := newMockDB(t)

	usage := newCachedUsage(t, db, 1, &UsageMetrics{
		Users:    UsageMetric{Current: 7},
		Branches: UsageMetric{Current: 3},
	})

	metrics, err := usage.GetUsage(1)

	require.NoError(t, err)
	assert.Equal(t, int64(7), metrics.Users.Current)
	assert.Equal(t, int64(3), metrics.Branches.Current)
	assert.NoError(t, mock.ExpectationsWereMet(), "缓存命中时不应有数据库查询")
}

func TestGetUsageWritesCache(t *testing.T) {
	db, mock := newMockDB(t)
	expectUsageCounts(mock, 2, 10, 5, 1)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	usage := NewUsageService(db, client, time.Minute)

	_, err := usage.GetUsage(1)
	require.NoError(t, err)

	assert.True(t, mr.Exists(usage.cacheKey(1)), "计数结果应写入缓存")
}

func TestInvalidateDropsCache(t *testing.T) {
	db, _ := newMockDB(t)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	usage := NewUsageService(db, client, time.Minute)
	require.NoError(t, mr.Set(usage.cacheKey(1), `{"users":{"current":1}}`))

	usage.Invalidate(1)

	assert.False(t, mr.Exists(usage.cacheKey(1)))
}

// 缓存不可用时降级为直接查库
func TestGetUsageCacheDownFallsBackToDB(t *testing.T) {
	db, mock := newMockDB(t)
	expectUsageCounts(mock, 1, 2, 3, 4)

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	mr.Close()

	usage := NewUsageService(db, client, time.Minute)
	metrics, err := usage.GetUsage(1)

	require.NoError(t, err)
	assert.Equal(t, int64(1), metrics.Users.Current)
}
