package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

var fixedWindowScript = redis.NewScript(`
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return current
`)

// RedisLimiter counts attempts per key in fixed windows shared by every
// server instance using the same Redis.
type RedisLimiter struct {
	client redis.UniversalClient
	prefix string
	limit  int
	window time.Duration
}

func NewRedisLimiter(client redis.UniversalClient, prefix string, perMinute int) *RedisLimiter {
	prefix = strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if prefix == "" {
		prefix = "secledger:verify"
	}
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  perMinute,
		window: time.Minute,
	}
}

func (r *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	if r == nil || r.client == nil || r.limit <= 0 {
		return true, nil
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return true, nil
	}

	n, err := fixedWindowScript.Run(ctx, r.client, []string{r.prefix + ":" + key}, r.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("redis limiter: %w", err)
	}
	return n <= int64(r.limit), nil
}
