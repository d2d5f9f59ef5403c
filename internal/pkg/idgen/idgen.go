// internal/pkg/idgen/idgen.go
package idgen

import (
	"context"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/redis"
	"github.com/bwmarrin/snowflake"
	"github.com/pkg/errors"
)

// Generator 生成全局唯一且大致递增的 64 位 ID。
type Generator interface {
	NextID(ctx context.Context, namespace string) (int64, error)
}

const (
	// beginTimestamp 是 2022-01-01T00:00:00Z 的秒级时间戳
	beginTimestamp = 1640995200
	countBits      = 32
)

// RedisIDWorker 高 32 位是相对起始时间的秒数，低 32 位是当天的 Redis 自增序号。
type RedisIDWorker struct {
	redisClient *redis.Client
	now         func() time.Time
}

func NewRedisIDWorker(redisClient *redis.Client) *RedisIDWorker {
	return &RedisIDWorker{redisClient: redisClient, now: time.Now}
}

func (w *RedisIDWorker) NextID(ctx context.Context, namespace string) (int64, error) {
	now := w.now().UTC()
	timestamp := now.Unix() - beginTimestamp

	key := "icr:" + namespace + ":" + now.Format("2006:01:02")
	count, err := w.redisClient.GetClient().Incr(ctx, key).Result()
	if err != nil {
		return 0, errors.Wrapf(err, "incr id counter %s", key)
	}
	return timestamp<<countBits | count, nil
}

// SnowflakeGenerator 是不依赖 Redis 的本地实现，节点号需要在集群内唯一。
type SnowflakeGenerator struct {
	node *snowflake.Node
}

func NewSnowflakeGenerator(nodeID int64) (*SnowflakeGenerator, error) {
	node, err := snowflake.NewNode(nodeID)
	if err != nil {
		return nil, errors.Wrapf(err, "create snowflake node %d", nodeID)
	}
	return &SnowflakeGenerator{node: node}, nil
}

func (g *SnowflakeGenerator) NextID(_ context.Context, _ string) (int64, error) {
	return g.node.Generate().Int64(), nil
}
