package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// redisIncrScript increments the window counter, arming the expiry only on
// the first hit, and returns the count plus the remaining window in ms.
const redisIncrScript = `
local current = redis.call("INCR", KEYS[1])
if current == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {current, ttl}
`

// RedisStore shares windows across processes through Redis. Expiry is
// handled server-side, so "strictly after reset" semantics come from the
// key TTL.
type RedisStore struct {
	client redis.Scripter
	prefix string
}

// NewRedisStore creates a Redis-backed window store.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "convobridge:rl:"}
}

// Incr implements Store.
func (s *RedisStore) Incr(ctx context.Context, key string, window time.Duration, now time.Time) (Window, error) {
	ctx, cancel := context.WithTimeout(ctx, 500*time.Millisecond)
	defer cancel()

	res, err := s.client.Eval(ctx, redisIncrScript, []string{s.prefix + key}, window.Milliseconds()).Slice()
	if err != nil {
		return Window{}, err
	}
	if len(res) != 2 {
		return Window{}, redis.Nil
	}

	count, _ := res[0].(int64)
	ttlMs, _ := res[1].(int64)
	if ttlMs < 0 {
		ttlMs = window.Milliseconds()
	}

	return Window{
		Count:   int(count),
		ResetAt: now.Add(time.Duration(ttlMs) * time.Millisecond),
	}, nil
}
