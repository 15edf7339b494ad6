package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisQueue Redis通知队列实现，同时承担实时推送的发布通道
type RedisQueue struct {
	client *redis.Client
	prefix string
}

// NotificationMessage 队列中的通知消息
type NotificationMessage struct {
	ID       string `json:"id"`
	TenantID uint   `json:"tenant_id"`
	UserID   *uint  `json:"user_id,omitempty"` // 为空表示推送给整个租户
	Type     string `json:"type"`
	Title    string `json:"title"`
	Message  string `json:"message"`
	Created  int64  `json:"created"`
}

// Config Redis配置
type Config struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string
}

// NewRedisQueue 创建Redis队列实例
func NewRedisQueue(config *Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", config.Host, config.Port),
		Password: config.Password,
		DB:       config.DB,
	})

	prefix := config.Prefix
	if prefix == "" {
		prefix = "pharmos"
	}

	return &RedisQueue{
		client: client,
		prefix: prefix,
	}
}

// NewRedisQueueWithClient 使用已有客户端创建队列（测试用）
func NewRedisQueueWithClient(client *redis.Client, prefix string) *RedisQueue {
	if prefix == "" {
		prefix = "pharmos"
	}
	return &RedisQueue{client: client, prefix: prefix}
}

// Close 关闭Redis连接
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Ping 测试Redis连接
func (q *RedisQueue) Ping() error {
	ctx := context.Background()
	return q.client.Ping(ctx).Err()
}

// GetClient 获取底层Redis客户端
func (q *RedisQueue) GetClient() *redis.Client {
	return q.client
}

// Enqueue 将通知消息加入队列
func (q *RedisQueue) Enqueue(message *NotificationMessage) error {
	ctx := context.Background()

	if message.Created == 0 {
		message.Created = time.Now().Unix()
	}

	// 序列化消息
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化通知消息失败: %v", err)
	}

	// 加入队列（左侧入队）
	if err := q.client.LPush(ctx, q.queueKey(), data).Err(); err != nil {
		return fmt.Errorf("通知入队失败: %v", err)
	}

	return nil
}

// Dequeue 从队列取出一条通知消息，timeout为0时不阻塞
func (q *RedisQueue) Dequeue(timeout time.Duration) (*NotificationMessage, error) {
	ctx := context.Background()

	result, err := q.client.BRPop(ctx, timeout, q.queueKey()).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("通知出队失败: %v", err)
	}

	// BRPop返回 [key, value]
	if len(result) < 2 {
		return nil, fmt.Errorf("通知出队返回格式错误")
	}

	var message NotificationMessage
	if err := json.Unmarshal([]byte(result[1]), &message); err != nil {
		return nil, fmt.Errorf("反序列化通知消息失败: %v", err)
	}

	return &message, nil
}

// Publish 将通知发布到租户的实时推送频道
func (q *RedisQueue) Publish(message *NotificationMessage) error {
	ctx := context.Background()

	if message.Created == 0 {
		message.Created = time.Now().Unix()
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("序列化通知消息失败: %v", err)
	}

	channel := q.ChannelKey(message.TenantID)
	if err := q.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("通知发布失败: %v", err)
	}

	return nil
}

// Subscribe 订阅指定租户的实时推送频道
func (q *RedisQueue) Subscribe(ctx context.Context, tenantID uint) *redis.PubSub {
	return q.client.Subscribe(ctx, q.ChannelKey(tenantID))
}

// ChannelKey 租户推送频道的键
func (q *RedisQueue) ChannelKey(tenantID uint) string {
	return fmt.Sprintf("%s:notify:%d", q.prefix, tenantID)
}

// queueKey 通知持久化队列的键
func (q *RedisQueue) queueKey() string {
	return fmt.Sprintf("%s:queue:notifications", q.prefix)
}

// QueueLength 获取队列长度
func (q *RedisQueue) QueueLength() (int64, error) {
	ctx := context.Background()
	return q.client.LLen(ctx, q.queueKey()).Result()
}
