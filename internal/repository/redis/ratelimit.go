package redisrepo

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	redisx "github.com/kirinyoku/cinehold/internal/redis"
	"github.com/redis/go-redis/v9"
)

// Every hit is a member of a sorted set scored by its timestamp. Hits older
// than the window are trimmed before counting; a rejected hit is removed
// again so that retries do not extend the penalty.
//
// KEYS[1] window set; ARGV: now_ms, window_ms, limit, member.
// Returns {allowed, count, retry_ms}.
var slidingWindow = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local limit = tonumber(ARGV[3])

redis.call('ZREMRANGEBYSCORE', KEYS[1], '-inf', now - window)
local count = redis.call('ZCARD', KEYS[1])

if count >= limit then
  local oldest = redis.call('ZRANGE', KEYS[1], 0, 0, 'WITHSCORES')
  local retry = window
  if oldest[2] then
    retry = tonumber(oldest[2]) + window - now
  end
  if retry < 1 then retry = 1 end
  return {0, count, retry}
end

redis.call('ZADD', KEYS[1], now, ARGV[4])
redis.call('PEXPIRE', KEYS[1], window)
return {1, count + 1, 0}
`)

// SlidingWindowLimiter caps the number of calls per key within a rolling window.
type SlidingWindowLimiter struct {
	rdb    *redis.Client
	scope  string
	limit  int64
	window time.Duration
	now    func() time.Time
}

func NewSlidingWindowLimiter(
	rdb *redis.Client,
	scope string,
	limit int64,
	window time.Duration,
) *SlidingWindowLimiter {
	return &SlidingWindowLimiter{
		rdb:    rdb,
		scope:  scope,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

// Allow records a hit for key and reports whether it fits in the window.
// When it does not, retryAfter is how long until the oldest hit leaves it.
func (l *SlidingWindowLimiter) Allow(
	ctx context.Context,
	key string,
) (allowed bool, current int64, retryAfter time.Duration, err error) {
	const op = "redisrepo.SlidingWindowLimiter.Allow"

	vals, err := slidingWindow.Run(ctx, l.rdb,
		[]string{redisx.KeyRateLimit(l.scope + ":" + key)},
		l.now().UnixMilli(), l.window.Milliseconds(), l.limit, uuid.NewString(),
	).Int64Slice()
	if err != nil {
		return false, 0, 0, fmt.Errorf("%s:%w", op, err)
	}

	if len(vals) != 3 {
		return false, 0, 0, fmt.Errorf("%s: unexpected script result %v", op, vals)
	}

	return vals[0] == 1, vals[1], time.Duration(vals[2]) * time.Millisecond, nil
}
