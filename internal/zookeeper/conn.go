// internal/zookeeper/conn.go
package zookeeper

import (
	"time"

	"github.com/go-zookeeper/zk"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// Conn 是带会话状态检查的 ZooKeeper 连接。
type Conn struct {
	*zk.Conn
	sessionTimeout time.Duration
}

type zkLogger struct{}

func (zkLogger) Printf(format string, args ...interface{}) {
	log.Debug().Str("component", "zookeeper").Msgf(format, args...)
}

// Connect 建立连接并等待会话建立，超过一个会话超时仍未建立则返回错误。
func Connect(servers []string, sessionTimeout time.Duration) (*Conn, error) {
	c, events, err := zk.Connect(servers, sessionTimeout, zk.WithLogger(zkLogger{}))
	if err != nil {
		return nil, errors.Wrap(err, "zookeeper: connect")
	}

	timeout := time.NewTimer(sessionTimeout)
	defer timeout.Stop()
	for {
		select {
		case ev := <-events:
			if ev.State == zk.StateHasSession {
				log.Info().Strs("servers", servers).Msg("✅ Connected to ZooKeeper")
				return &Conn{Conn: c, sessionTimeout: sessionTimeout}, nil
			}
			if ev.State == zk.StateAuthFailed || ev.State == zk.StateExpired {
				c.Close()
				return nil, errors.Errorf("zookeeper: session state %s", ev.State)
			}
		case <-timeout.C:
			c.Close()
			return nil, errors.New("zookeeper: timed out waiting for session")
		}
	}
}

// SessionTimeout 返回协商前请求的会话超时，也是临时节点锁的最长持有时间。
func (c *Conn) SessionTimeout() time.Duration {
	return c.sessionTimeout
}
