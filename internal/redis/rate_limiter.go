package redis

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	goredis "github.com/redis/go-redis/v9"
)

// rateLimitScript implements a token bucket per key. It refills
// fractional tokens based on elapsed time, consumes one token when
// available, and expires idle buckets after two full refill windows.
// ARGV: [1]=now_ms, [2]=capacity, [3]=rate (tokens per minute)
var rateLimitScript = goredis.NewScript(`
local tokens = tonumber(redis.call('HGET', KEYS[1], 'tokens'))
local last_refill = tonumber(redis.call('HGET', KEYS[1], 'last_refill'))
local now = tonumber(ARGV[1])
local capacity = tonumber(ARGV[2])
local rate = tonumber(ARGV[3])
if tokens == nil then
  tokens = capacity
  last_refill = now
end
local elapsed_min = (now - last_refill) / 60000.0
tokens = math.min(capacity, tokens + elapsed_min * rate)
local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end
redis.call('HSET', KEYS[1], 'tokens', tostring(tokens), 'last_refill', tostring(now))
redis.call('PEXPIRE', KEYS[1], math.ceil(2 * capacity / rate * 60000))
return allowed
`)

// RateLimiter applies a token bucket per session token to write traffic.
type RateLimiter struct {
	rdb      *goredis.Client
	clock    clockwork.Clock
	capacity int
	rate     int // tokens per minute
}

// NewRateLimiter creates a rate limiter.
// capacity: maximum burst size (tokens)
// rate: sustained rate (tokens per minute)
func NewRateLimiter(client *Client, clock clockwork.Clock, capacity, rate int) *RateLimiter {
	return &RateLimiter{
		rdb:      client.rdb,
		clock:    clock,
		capacity: capacity,
		rate:     rate,
	}
}

// Allow reports whether a write is allowed for the session token,
// consuming a token when it is. Callers fail open on error: Redis being
// down degrades rate limiting, it never blocks writes.
func (l *RateLimiter) Allow(ctx context.Context, sessionToken string) (bool, error) {
	key := "rate_limit:writes:" + sessionToken

	result, err := rateLimitScript.Run(ctx, l.rdb, []string{key},
		l.clock.Now().UnixMilli(),
		l.capacity,
		l.rate,
	).Int()
	if err != nil {
		return false, fmt.Errorf("rate limit check failed: %w", err)
	}

	return result == 1, nil
}
