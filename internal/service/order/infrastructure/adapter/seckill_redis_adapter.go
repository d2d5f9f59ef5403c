package adapter

import (
	"context"
	"strconv"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/redis"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain/port"
	"github.com/pkg/errors"
)

const (
	seckillScriptName       = "seckill"
	cancelSeckillScriptName = "cancel_seckill"

	DefaultReservationRetention = 24 * time.Hour
)

// SeckillStockKey 是秒杀预占库存的 hash，字段 stock/begin/end，时间为毫秒
func SeckillStockKey(voucherID int64) string {
	return "seckill:stock:{" + strconv.FormatInt(voucherID, 10) + "}"
}

// SeckillOrderKey 记录已预占用户，字段 userId，值为 orderId
func SeckillOrderKey(voucherID int64) string {
	return "seckill:order:{" + strconv.FormatInt(voucherID, 10) + "}"
}

// SeckillRedisAdapter 是 port.SeckillService 接口的 Redis 实现。
type SeckillRedisAdapter struct {
	redisClient *redis.Client
	retention   time.Duration
	now         func() time.Time
}

// NewSeckillRedisAdapter 创建一个新的秒杀服务适配器实例。
// 它在创建时会加载所有需要的 Lua 脚本。
func NewSeckillRedisAdapter(redisClient *redis.Client, retention time.Duration) (*SeckillRedisAdapter, error) {
	if err := redisClient.LoadScriptFromContent(seckillScriptName, seckillScript); err != nil {
		return nil, errors.Wrap(err, "failed to load critical seckill script")
	}
	if err := redisClient.LoadScriptFromContent(cancelSeckillScriptName, cancelSeckillScript); err != nil {
		return nil, errors.Wrap(err, "failed to load cancel seckill script")
	}
	if retention <= 0 {
		retention = DefaultReservationRetention
	}
	return &SeckillRedisAdapter{
		redisClient: redisClient,
		retention:   retention,
		now:         time.Now,
	}, nil
}

// WithClock 替换时钟，测试用
func (a *SeckillRedisAdapter) WithClock(now func() time.Time) *SeckillRedisAdapter {
	a.now = now
	return a
}

// AttemptSeckill 实现了秒杀逻辑
func (a *SeckillRedisAdapter) AttemptSeckill(ctx context.Context, voucherID, userID, orderID int64) (port.SeckillResult, error) {
	keys := []string{SeckillStockKey(voucherID), SeckillOrderKey(voucherID)}
	args := []interface{}{userID, orderID, a.now().UnixMilli()}

	result, err := a.redisClient.RunScript(ctx, seckillScriptName, keys, args...)
	if err != nil {
		return 0, errors.Wrap(err, "seckill adapter failed to run script")
	}

	code, ok := result.(int64)
	if !ok {
		return 0, errors.Errorf("unexpected result type from Lua script: %T", result)
	}

	switch code {
	case 0:
		return port.SeckillResultSuccess, nil
	case 1:
		return port.SeckillResultSoldOut, nil
	case 2:
		return port.SeckillResultAlreadyPurchased, nil
	case 3:
		return port.SeckillResultNotFound, nil
	case 4:
		return port.SeckillResultNotStarted, nil
	case 5:
		return port.SeckillResultEnded, nil
	default:
		return 0, errors.Errorf("unknown result code from seckill script: %d", code)
	}
}

// CancelSeckill 实现了秒杀的补偿逻辑，名额已不属于该订单时什么也不做
func (a *SeckillRedisAdapter) CancelSeckill(ctx context.Context, voucherID, userID, orderID int64) error {
	keys := []string{SeckillStockKey(voucherID), SeckillOrderKey(voucherID)}
	if _, err := a.redisClient.RunScript(ctx, cancelSeckillScriptName, keys, userID, orderID); err != nil {
		return errors.Wrap(err, "seckill adapter failed to run cancel script")
	}
	return nil
}

// PrepareSeckillVoucher 初始化秒杀券的预占库存，在秒杀券创建成功后调用
func (a *SeckillRedisAdapter) PrepareSeckillVoucher(ctx context.Context, voucherID int64, stock int, begin, end time.Time) error {
	stockKey := SeckillStockKey(voucherID)

	pipe := a.redisClient.GetClient().TxPipeline()
	pipe.Del(ctx, SeckillOrderKey(voucherID))
	pipe.HSet(ctx, stockKey,
		"stock", stock,
		"begin", begin.UnixMilli(),
		"end", end.UnixMilli(),
	)
	pipe.PExpireAt(ctx, stockKey, end.Add(a.retention))
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrapf(err, "failed to prepare seckill voucher %d", voucherID)
	}
	return nil
}

// KEYS[1]: 预占库存 hash   KEYS[2]: 已预占用户 hash
// ARGV[1]: userId  ARGV[2]: orderId  ARGV[3]: 当前毫秒时间
// 返回 0 成功, 1 库存不足, 2 重复下单, 3 不存在, 4 未开始, 5 已结束
var seckillScript = `
if redis.call('exists', KEYS[1]) == 0 then
    return 3
end

local now = tonumber(ARGV[3])
local window = redis.call('hmget', KEYS[1], 'stock', 'begin', 'end')
local stock = tonumber(window[1])
local begin = tonumber(window[2])
local finish = tonumber(window[3])

if begin and now < begin then
    return 4
end
if finish and now > finish then
    return 5
end

if redis.call('hexists', KEYS[2], ARGV[1]) == 1 then
    return 2
end

if not stock or stock <= 0 then
    return 1
end

redis.call('hincrby', KEYS[1], 'stock', -1)
redis.call('hset', KEYS[2], ARGV[1], ARGV[2])
local ttl = redis.call('pttl', KEYS[1])
if ttl > 0 then
    redis.call('pexpire', KEYS[2], ttl)
end
return 0
`

// KEYS 同上, ARGV[1]: userId  ARGV[2]: orderId
var cancelSeckillScript = `
if redis.call('hget', KEYS[2], ARGV[1]) ~= ARGV[2] then
    return 0
end
redis.call('hdel', KEYS[2], ARGV[1])
if redis.call('exists', KEYS[1]) == 1 then
    redis.call('hincrby', KEYS[1], 'stock', 1)
end
return 1
`
