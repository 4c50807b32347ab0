package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// NotifyChannel 返回用户通知频道名，API 的 WebSocket 订阅同一频道。
func NotifyChannel(userID uint) string {
	return fmt.Sprintf("user_notify:%d", userID)
}

// PDFExportNotifyMessage 是通过 Redis Pub/Sub 转发给前端的导出结果。
type PDFExportNotifyMessage struct {
	Status        string `json:"status"`
	CVID          uint   `json:"cv_id"`
	CorrelationID string `json:"correlation_id"`
	ErrorCode     int    `json:"error_code"`
	ErrorMessage  string `json:"error_message"`
}

// Notifier 向用户推送导出结果。
type Notifier interface {
	Notify(ctx context.Context, userID uint, msg PDFExportNotifyMessage) error
}

// RedisNotifier 把消息发布到 user_notify:<id> 频道。
type RedisNotifier struct {
	client redis.UniversalClient
}

func NewRedisNotifier(client redis.UniversalClient) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Notify(ctx context.Context, userID uint, msg PDFExportNotifyMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal notification payload: %w", err)
	}
	channel := NotifyChannel(userID)
	if err := n.client.Publish(ctx, channel, data).Err(); err != nil {
		return fmt.Errorf("publish redis notification to %q: %w", channel, err)
	}
	return nil
}
