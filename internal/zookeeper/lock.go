// internal/zookeeper/lock.go
package zookeeper

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
)

const (
	lockRoot = "/distributed_locks" // 所有分布式锁的根节点
	// 顺序节点名末尾固定是 10 位序号
	seqLen = 10
)

var (
	ErrLockTimeout = errors.New("zookeeper: timeout waiting for lock")
	ErrNotLocked   = errors.New("zookeeper: no lock to unlock")
)

// DistributedLock 定义了一个分布式锁对象
type DistributedLock struct {
	conn     *Conn  // ZooKeeper连接
	path     string // 锁的路径，例如 /distributed_locks/lock:order:123
	lockNode string // 成功获取锁后，自己创建的节点路径
}

// NewDistributedLock 创建一个新的分布式锁实例，确保锁路径存在
func NewDistributedLock(conn *Conn, resourceID string) (*DistributedLock, error) {
	lockPath := lockRoot + "/" + strings.ReplaceAll(resourceID, "/", "_")
	for _, p := range []string{lockRoot, lockPath} {
		if _, err := conn.Create(p, []byte(""), 0, zk.WorldACL(zk.PermAll)); err != nil && err != zk.ErrNodeExists {
			return nil, errors.Wrapf(err, "zookeeper: create lock path %s", p)
		}
	}
	return &DistributedLock{conn: conn, path: lockPath}, nil
}

// Lock 尝试获取锁，最多等待 wait；超时或 ctx 取消时删除自己的节点。
func (l *DistributedLock) Lock(ctx context.Context, wait time.Duration) error {
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	// 1. 在锁路径下创建一个临时顺序节点
	nodePath, err := l.conn.CreateProtectedEphemeralSequential(l.path+"/lock-", []byte(""), zk.WorldACL(zk.PermAll))
	if err != nil {
		return errors.Wrap(err, "zookeeper: create sequential node")
	}
	l.lockNode = nodePath
	myNodeName := strings.TrimPrefix(nodePath, l.path+"/")

	for {
		// 2. 获取锁路径下的所有子节点，按序号排序
		children, _, err := l.conn.Children(l.path)
		if err != nil {
			l.abandon()
			return errors.Wrap(err, "zookeeper: list children")
		}
		sortBySequence(children)

		idx := -1
		for i, child := range children {
			if child == myNodeName {
				idx = i
				break
			}
		}
		switch {
		case idx < 0:
			// 自己的节点不见了，通常是会话过期
			l.lockNode = ""
			return errors.New("zookeeper: own lock node vanished")
		case idx == 0:
			return nil
		}

		// 3. 不是最小节点，监听前一个节点
		exists, _, eventChan, err := l.conn.ExistsW(l.path + "/" + children[idx-1])
		if err != nil {
			l.abandon()
			return errors.Wrap(err, "zookeeper: watch previous node")
		}
		if !exists {
			continue
		}

		select {
		case <-eventChan:
		case <-deadline.C:
			l.abandon()
			return ErrLockTimeout
		case <-ctx.Done():
			l.abandon()
			return ctx.Err()
		}
	}
}

// Held 判断自己的节点是否还在，会话过期后返回 false。
func (l *DistributedLock) Held() (bool, error) {
	if l.lockNode == "" {
		return false, nil
	}
	exists, _, err := l.conn.Exists(l.lockNode)
	if err != nil {
		return false, errors.Wrap(err, "zookeeper: check lock node")
	}
	return exists, nil
}

// Unlock 释放锁，并尝试清理已经没有等待者的锁路径
func (l *DistributedLock) Unlock() error {
	if l.lockNode == "" {
		return ErrNotLocked
	}
	if err := l.conn.Delete(l.lockNode, -1); err != nil && err != zk.ErrNoNode {
		return errors.Wrap(err, "zookeeper: delete lock node")
	}
	l.lockNode = ""
	return l.prunePath()
}

func (l *DistributedLock) abandon() {
	if l.lockNode != "" {
		_ = l.conn.Delete(l.lockNode, -1)
		l.lockNode = ""
		_ = l.prunePath()
	}
}

// prunePath 删除没有子节点的锁路径，还有等待者时保留
func (l *DistributedLock) prunePath() error {
	if err := l.conn.Delete(l.path, -1); err != nil && !isBenignPruneErr(err) {
		return errors.Wrap(err, "zookeeper: delete lock path")
	}
	return nil
}

func isBenignPruneErr(err error) bool {
	return err == zk.ErrNotEmpty || err == zk.ErrNoNode
}

// sortBySequence 按顺序节点的序号排序，受保护节点名的 GUID 前缀不参与比较
func sortBySequence(children []string) {
	sort.Slice(children, func(i, j int) bool {
		return sequenceOf(children[i]) < sequenceOf(children[j])
	})
}

func sequenceOf(name string) string {
	if len(name) < seqLen {
		return name
	}
	return name[len(name)-seqLen:]
}
