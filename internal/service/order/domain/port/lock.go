package port

import (
	"context"
	"errors"
	"time"
)

var (
	ErrLockNotAcquired = errors.New("lock not acquired within wait time")
	ErrLockNotHeld     = errors.New("lock is no longer held")
)

// Locker 是分布式互斥锁的出站端口
type Locker interface {
	// TryLock 最多等待 wait 获取锁，持有时间不超过 lease；超时返回 ErrLockNotAcquired。
	TryLock(ctx context.Context, key string, wait, lease time.Duration) (Lock, error)
}

// Lock 是一次成功的加锁，只有持有者能释放
type Lock interface {
	Held(ctx context.Context) (bool, error)
	// Unlock 释放锁；锁已过期或被他人持有时返回 ErrLockNotHeld，不会删除他人的锁。
	Unlock(ctx context.Context) error
}
