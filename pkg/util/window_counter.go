package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// WindowCounter 固定窗口计数器，用于公开接口限流
type WindowCounter struct {
	rdb    *redis.Client
	window time.Duration
}

func NewWindowCounter(rdb *redis.Client, window time.Duration) *WindowCounter {
	return &WindowCounter{rdb: rdb, window: window}
}

// IncrementAndGet increments the counter for key in the current window and returns the new count.
func (c *WindowCounter) IncrementAndGet(ctx context.Context, key string) (int64, error) {
	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, err
	}

	// 第一次计数时设置过期时间
	if count == 1 {
		c.rdb.Expire(ctx, key, c.window)
	}

	return count, nil
}

// Allow 返回该 key 在当前窗口内是否仍低于 limit。Redis 出错时放行。
func (c *WindowCounter) Allow(ctx context.Context, key string, limit int64) bool {
	if c == nil || c.rdb == nil {
		return true
	}
	count, err := c.IncrementAndGet(ctx, key)
	if err != nil {
		return true
	}
	return count <= limit
}

// FormatRateKey formats a rate-limit key for a scope and client identity.
func FormatRateKey(scope, client string) string {
	return fmt.Sprintf("rate:%s:%s", scope, client)
}
