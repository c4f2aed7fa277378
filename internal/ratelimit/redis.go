package ratelimit

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// Redis is a fixed-window counter shared by every process pointing at the same server.
type Redis struct {
	rdb    *goredis.Client
	prefix string
}

// NewRedis connects to redisURL and pings it.
func NewRedis(ctx context.Context, redisURL string) (*Redis, error) {
	opts, err := goredis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	if opts.DialTimeout == 0 {
		opts.DialTimeout = 5 * time.Second
	}
	rdb := goredis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Redis{rdb: rdb, prefix: "ratelimit:"}, nil
}

// allowScript counts one event and makes sure the window key expires. A key found without a
// TTL gets one, so a counter can never outlive its window.
var allowScript = goredis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 or redis.call('PTTL', KEYS[1]) < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
return n
`)

// Allow increments key's counter and starts its expiry in one atomic step.
func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	ms := max(window.Milliseconds(), 1)
	current, err := allowScript.Run(ctx, r.rdb, []string{r.prefix + key}, ms).Int64()
	if err != nil {
		return false, fmt.Errorf("redis allow %s: %w", key, err)
	}
	return current <= int64(limit), nil
}

// Close releases the connection pool.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
