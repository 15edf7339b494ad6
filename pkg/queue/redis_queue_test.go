package queue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestQueue(t *testing.T) (*RedisQueue, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisQueueWithClient(client, "pharmos"), mr
}

func TestEnqueueDequeue(t *testing.T) {
	q, _ := newTestQueue(t)

	userID := uint(5)
	msg := &NotificationMessage{
		ID:       "n-1",
		TenantID: 1,
		UserID:   &userID,
		Type:     "low_stock",
		Title:    "库存告警",
		Message:  "阿莫西林库存低于阈值",
	}

	require.NoError(t, q.Enqueue(msg))

	length, err := q.QueueLength()
	require.NoError(t, err)
	assert.Equal(t, int64(1), length)

	got, err := q.Dequeue(time.Second)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "n-1", got.ID)
	assert.Equal(t, uint(1), got.TenantID)
	require.NotNil(t, got.UserID)
	assert.Equal(t, uint(5), *got.UserID)
	assert.NotZero(t, got.Created, "入队时应补写时间戳")
}

// 队列先进先出
func TestDequeueOrder(t *testing.T) {
	q, _ := newTestQueue(t)

	require.NoError(t, q.Enqueue(&NotificationMessage{ID: "first", TenantID: 1, Type: "system"}))
	require.NoError(t, q.Enqueue(&NotificationMessage{ID: "second", TenantID: 1, Type: "system"}))

	got, err := q.Dequeue(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "first", got.ID)

	got, err = q.Dequeue(time.Second)
	require.NoError(t, err)
	assert.Equal(t, "second", got.ID)
}

func TestPublishToTenantChannel(t *testing.T) {
	q, _ := newTestQueue(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pubsub := q.Subscribe(ctx, 42)
	defer pubsub.Close()
	_, err := pubsub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, q.Publish(&NotificationMessage{
		ID:       "n-2",
		TenantID: 42,
		Type:     "subscription_expiring",
		Title:    "订阅即将到期",
	}))

	select {
	case msg := <-pubsub.Channel():
		var got NotificationMessage
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &got))
		assert.Equal(t, "n-2", got.ID)
		assert.Equal(t, q.ChannelKey(42), msg.Channel)
	case <-time.After(2 * time.Second):
		t.Fatal("未收到发布的通知")
	}
}

func TestChannelKeyIsolatedByTenant(t *testing.T) {
	q, _ := newTestQueue(t)

	assert.Equal(t, "pharmos:notify:1", q.ChannelKey(1))
	assert.NotEqual(t, q.ChannelKey(1), q.ChannelKey(2))
}
