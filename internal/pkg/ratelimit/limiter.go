// internal/pkg/ratelimit/limiter.go
package ratelimit

import (
	"context"
	"strconv"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/redis"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const slidingWindowScriptName = "sliding_window_limit"

// Admitter 判断一次调用能否在窗口内被放行。
type Admitter interface {
	Allow(ctx context.Context, key string, window time.Duration, limit int) (bool, error)
}

// Limiter 是基于 Redis ZSET 的滑动窗口限流器，每次判断只有一次 Lua 往返。
type Limiter struct {
	redisClient *redis.Client
	now         func() time.Time
}

func NewLimiter(redisClient *redis.Client) (*Limiter, error) {
	if err := redisClient.LoadScriptFromContent(slidingWindowScriptName, slidingWindowScript); err != nil {
		return nil, errors.Wrap(err, "failed to load rate limit script")
	}
	return &Limiter{redisClient: redisClient, now: time.Now}, nil
}

// WithClock 替换时钟，测试用。
func (l *Limiter) WithClock(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// Allow 在窗口内的放行次数未达到 limit 时返回 true。
// 被拒绝的请求不会占用窗口名额。
func (l *Limiter) Allow(ctx context.Context, key string, window time.Duration, limit int) (bool, error) {
	if limit <= 0 {
		return false, nil
	}
	nowMs := l.now().UnixMilli()
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	res, err := l.redisClient.RunScript(ctx, slidingWindowScriptName, []string{key},
		window.Milliseconds(), limit, nowMs, member)
	if err != nil {
		return false, errors.Wrapf(err, "rate limit script failed for key %s", key)
	}
	count, ok := res.(int64)
	if !ok {
		return false, errors.Errorf("unexpected result type from rate limit script: %T", res)
	}
	return count > 0, nil
}

var slidingWindowScript = `
-- KEYS[1]: 限流 key
-- ARGV[1]: 窗口大小 (ms)
-- ARGV[2]: 窗口内允许的次数
-- ARGV[3]: 当前时间 (ms)
-- ARGV[4]: 本次请求的成员名

local window = tonumber(ARGV[1])
local limit = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

-- 1. 移除窗口外的记录
redis.call('zremrangebyscore', KEYS[1], 0, now - window)

-- 2. 记录本次请求并统计
redis.call('zadd', KEYS[1], now, ARGV[4])
local count = redis.call('zcard', KEYS[1])
redis.call('pexpire', KEYS[1], window)

-- 3. 超出限制时撤销本次记录
if count > limit then
    redis.call('zrem', KEYS[1], ARGV[4])
    return 0
end
return count
`
