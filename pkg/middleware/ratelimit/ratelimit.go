package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	appErrors "github.com/noah-isme/supervisi-api/pkg/errors"
	"github.com/noah-isme/supervisi-api/pkg/response"
)

// Counter increments a fixed-window counter and reports the current hit count.
type Counter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, error)
}

// RedisCounter implements Counter with INCR + EXPIRE.
type RedisCounter struct {
	client *redis.Client
}

// NewRedisCounter wraps a go-redis client. A nil client yields a nil Counter.
func NewRedisCounter(client *redis.Client) Counter {
	if client == nil {
		return nil
	}
	return &RedisCounter{client: client}
}

// Hit increments key and starts its window on the first hit.
func (r *RedisCounter) Hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	count, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis incr %s: %w", key, err)
	}
	if count == 1 {
		if err := r.client.Expire(ctx, key, window).Err(); err != nil {
			return count, fmt.Errorf("redis expire %s: %w", key, err)
		}
	}
	return count, nil
}

// Middleware limits each client IP to limit requests per window on the route.
// Without a counter, or when the counter fails, requests pass through.
func Middleware(counter Counter, limit int, window time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if counter == nil || limit <= 0 {
			c.Next()
			return
		}

		key := fmt.Sprintf("rate_limit:%s:%s", c.FullPath(), c.ClientIP())
		count, err := counter.Hit(c.Request.Context(), key, window)
		if err != nil {
			c.Next()
			return
		}

		remaining := int64(limit) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(limit))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(limit) {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			response.Error(c, appErrors.Clone(appErrors.ErrTooManyRequests, "too many attempts, please try again later"))
			c.Abort()
			return
		}
		c.Next()
	}
}
