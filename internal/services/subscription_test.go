package services

import (
	"testing"
	"time"

	"pharmos/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetActiveNoSubscription(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "subscriptions"`).
		WillReturnRows(sqlmock.NewRows(subscriptionColumns()))

	subscriptions := NewSubscriptionService(db)
	_, err := subscriptions.GetActive(1)

	assert.ErrorIs(t, err, ErrNoActiveSubscription)
}

func TestGetActivePreloadsPlan(t *testing.T) {
	db, mock := newMockDB(t)
	expectActiveSubscription(mock, models.SubscriptionStatusActive, "Professional", 20, `["All Features"]`)

	subscriptions := NewSubscriptionService(db)
	subscription, err := subscriptions.GetActive(1)

	require.NoError(t, err)
	require.NotNil(t, subscription.Plan)
	assert.Equal(t, "Professional", subscription.Plan.Name)
	assert.Equal(t, models.SubscriptionStatusActive, subscription.Status)
}

// 变更套餐在一个事务内作废旧订阅并创建新订阅
func TestChangePlan(t *testing.T) {
	db, mock := newMockDB(t)
	now := time.Now()

	mock.ExpectQuery(`SELECT \* FROM "subscription_plans"`).
		WillReturnRows(sqlmock.NewRows(planColumns()).
			AddRow(10, now, now, "Professional", "professional", 2, 299.0,
				20, 5, 5000, 20000, 50, []byte(`["All Features"]`)))

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE "subscriptions"`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO "subscriptions"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(2))
	mock.ExpectCommit()

	subscriptions := NewSubscriptionService(db)
	subscription, err := subscriptions.ChangePlan(1, 10, 3)

	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionStatusActive, subscription.Status)
	assert.Equal(t, uint(10), subscription.PlanID)
	require.NotNil(t, subscription.Plan)
	assert.Equal(t, "Professional", subscription.Plan.Name)
	// 订阅期按月数顺延
	assert.WithinDuration(t, time.Now().AddDate(0, 3, 0), subscription.EndDate, time.Minute)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestChangePlanUnknownPlan(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(`SELECT \* FROM "subscription_plans"`).
		WillReturnRows(sqlmock.NewRows(planColumns()))

	subscriptions := NewSubscriptionService(db)
	_, err := subscriptions.ChangePlan(1, 99, 1)

	assert.Error(t, err)
}
