package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisPrefix = "greed:auth:rl:"

// The counter and its expiry move together inside the script, so two
// concurrent first requests cannot leave an immortal key. The script answers
// -1 when the request fits the window and the remaining window in
// milliseconds when it does not.
var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
if count <= tonumber(ARGV[1]) then
  return -1
end
local remaining = redis.call("PTTL", KEYS[1])
if remaining < 1 then
  remaining = tonumber(ARGV[2])
end
return remaining
`)

// RedisLimiter is the shared-counter backend for multi-instance deployments;
// every instance sees the same per-IP window.
type RedisLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, prefix string) *RedisLimiter {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: prefix,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, _ time.Time) (bool, time.Duration, error) {
	windowMS := l.window.Milliseconds()
	if windowMS <= 0 {
		return false, 0, fmt.Errorf("invalid rate limit window %v", l.window)
	}

	remainingMS, err := fixedWindowScript.Run(ctx, l.client, []string{l.prefix + key}, l.limit, windowMS).Int64()
	if err != nil {
		return false, 0, err
	}

	if remainingMS < 0 {
		return true, 0, nil
	}
	return false, time.Duration(remainingMS) * time.Millisecond, nil
}
