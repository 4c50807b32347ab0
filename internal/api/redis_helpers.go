package api

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisRateCounter interface {
	Incr(ctx context.Context, key string) *redis.IntCmd
	Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd
}

// fixedWindow 是基于 INCR + EXPIRE 的固定窗口计数器，limit <= 0 表示不限流。
type fixedWindow struct {
	client redisRateCounter
	prefix string
	limit  int
	window time.Duration
}

func newFixedWindow(client redisRateCounter, prefix string, limit int, window time.Duration) fixedWindow {
	return fixedWindow{client: client, prefix: prefix, limit: limit, window: window}
}

// Allow 计数一次并返回是否仍在限额内。Redis 出错时放行并返回错误。
func (w fixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	if w.limit <= 0 || w.client == nil {
		return true, nil
	}
	count, err := incrWithTTL(ctx, w.client, w.prefix+key, w.window)
	if err != nil {
		return true, err
	}
	return count <= int64(w.limit), nil
}

func incrWithTTL(ctx context.Context, client redisRateCounter, key string, ttl time.Duration) (int64, error) {
	count, err := client.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}
	if count == 1 {
		_ = client.Expire(ctx, key, ttl).Err()
	}
	return count, nil
}
