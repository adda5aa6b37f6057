package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter keeps fixed-window hit counts in Redis.
type Counter struct {
	client *redis.Client
	prefix string
}

func NewCounter(client *redis.Client, prefix string) *Counter {
	return &Counter{client: client, prefix: prefix}
}

// Hit increments the counter for key in the window containing now and returns
// the new count. The key expires with its window.
func (c *Counter) Hit(ctx context.Context, key string, window time.Duration, now time.Time) (int64, error) {
	slot := now.UnixNano() / int64(window)
	k := fmt.Sprintf("%s:%s:%d", c.prefix, key, slot)

	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.Expire(ctx, k, 2*window)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("counter hit %s: %w", k, err)
	}
	return incr.Val(), nil
}

func (c *Counter) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
