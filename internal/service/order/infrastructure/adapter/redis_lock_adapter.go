package adapter

import (
	"context"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/metrics"
	"github.com/JackieRio/dianpingPlus/internal/pkg/redis"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain/port"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const (
	unlockScriptName = "compare_and_delete"
	lockPollInterval = 50 * time.Millisecond
)

var unlockScript = `
if redis.call('get', KEYS[1]) == ARGV[1] then
    return redis.call('del', KEYS[1])
end
return 0
`

// RedisLockAdapter 基于 SET NX PX 的分布式锁，值为持有者的随机 token
type RedisLockAdapter struct {
	redisClient *redis.Client
	metrics     *metrics.Metrics
}

func NewRedisLockAdapter(redisClient *redis.Client, m *metrics.Metrics) (*RedisLockAdapter, error) {
	if err := redisClient.LoadScriptFromContent(unlockScriptName, unlockScript); err != nil {
		return nil, errors.Wrap(err, "failed to load unlock script")
	}
	return &RedisLockAdapter{redisClient: redisClient, metrics: m}, nil
}

func (a *RedisLockAdapter) TryLock(ctx context.Context, key string, wait, lease time.Duration) (port.Lock, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(wait)
	ticker := time.NewTicker(lockPollInterval)
	defer ticker.Stop()

	for {
		ok, err := a.redisClient.GetClient().SetNX(ctx, key, token, lease).Result()
		if err != nil {
			a.record("error")
			return nil, errors.Wrapf(err, "failed to acquire lock %s", key)
		}
		if ok {
			a.record("success")
			return &redisLock{client: a.redisClient, key: key, token: token}, nil
		}
		if !time.Now().Before(deadline) {
			a.record("timeout")
			return nil, port.ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			a.record("timeout")
			return nil, errors.Wrap(ctx.Err(), port.ErrLockNotAcquired.Error())
		case <-ticker.C:
		}
	}
}

func (a *RedisLockAdapter) record(result string) {
	if a.metrics != nil {
		a.metrics.LockAcquireTotal.WithLabelValues("redis", result).Inc()
	}
}

type redisLock struct {
	client *redis.Client
	key    string
	token  string
}

func (l *redisLock) Held(ctx context.Context) (bool, error) {
	v, err := l.client.GetClient().Get(ctx, l.key).Result()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "failed to check lock %s", l.key)
	}
	return v == l.token, nil
}

func (l *redisLock) Unlock(ctx context.Context) error {
	res, err := l.client.RunScript(ctx, unlockScriptName, []string{l.key}, l.token)
	if err != nil {
		return errors.Wrapf(err, "failed to release lock %s", l.key)
	}
	if n, _ := res.(int64); n == 0 {
		return port.ErrLockNotHeld
	}
	return nil
}
