package adapter

import (
	"context"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/metrics"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain/port"
	"github.com/JackieRio/dianpingPlus/internal/zookeeper"
	"github.com/pkg/errors"
)

// ZookeeperLockAdapter 用临时顺序节点实现 port.Locker，
// 租约即会话超时，会话断开时节点随之消失。
type ZookeeperLockAdapter struct {
	conn    *zookeeper.Conn
	metrics *metrics.Metrics
}

func NewZookeeperLockAdapter(conn *zookeeper.Conn, m *metrics.Metrics) *ZookeeperLockAdapter {
	return &ZookeeperLockAdapter{conn: conn, metrics: m}
}

func (a *ZookeeperLockAdapter) TryLock(ctx context.Context, key string, wait, _ time.Duration) (port.Lock, error) {
	l, err := zookeeper.NewDistributedLock(a.conn, key)
	if err != nil {
		a.record("error")
		return nil, err
	}
	if err := l.Lock(ctx, wait); err != nil {
		if errors.Is(err, zookeeper.ErrLockTimeout) || ctx.Err() != nil {
			a.record("timeout")
			return nil, port.ErrLockNotAcquired
		}
		a.record("error")
		return nil, errors.Wrapf(err, "failed to acquire zookeeper lock %s", key)
	}
	a.record("success")
	return &zkLock{lock: l}, nil
}

func (a *ZookeeperLockAdapter) record(result string) {
	if a.metrics != nil {
		a.metrics.LockAcquireTotal.WithLabelValues("zookeeper", result).Inc()
	}
}

type zkLock struct {
	lock *zookeeper.DistributedLock
}

func (l *zkLock) Held(context.Context) (bool, error) {
	return l.lock.Held()
}

func (l *zkLock) Unlock(context.Context) error {
	if err := l.lock.Unlock(); err != nil {
		if errors.Is(err, zookeeper.ErrNotLocked) {
			return port.ErrLockNotHeld
		}
		return err
	}
	return nil
}
