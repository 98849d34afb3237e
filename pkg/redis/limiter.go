package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const limiterKeyPrefix = "ratelimit:"

// FixedWindow is a per-key counter limiter. A key may be hit limit times per
// window; the window starts at the first hit.
type FixedWindow struct {
	rdb    redis.Cmdable
	limit  int64
	window time.Duration
}

// NewFixedWindow creates a limiter. A non-positive limit disables limiting.
func NewFixedWindow(rdb redis.Cmdable, limit int, window time.Duration) *FixedWindow {
	return &FixedWindow{rdb: rdb, limit: int64(limit), window: window}
}

// Allow counts one hit for key and reports whether it is within the limit.
func (l *FixedWindow) Allow(ctx context.Context, key string) (bool, error) {
	if l.limit <= 0 {
		return true, nil
	}
	k := limiterKeyPrefix + key
	n, err := l.rdb.Incr(ctx, k).Result()
	if err != nil {
		return false, fmt.Errorf("incr %s: %w", k, err)
	}
	if n == 1 {
		if err := l.rdb.Expire(ctx, k, l.window).Err(); err != nil {
			return false, fmt.Errorf("expire %s: %w", k, err)
		}
	}
	return n <= l.limit, nil
}
