// internal/service/order/domain/cache.go
package domain

import (
	"encoding/json"
	"strconv"
	"time"
)

const (
	SeckillStockCacheKeyPrefix = "cache:seckill:stock:"
	VoucherCacheKeyPrefix      = "cache:voucher:"

	DefaultCacheMaxRetries = 3
)

func SeckillStockCacheKey(voucherID int64) string {
	return SeckillStockCacheKeyPrefix + strconv.FormatInt(voucherID, 10)
}

func VoucherCacheKey(voucherID int64) string {
	return VoucherCacheKeyPrefix + strconv.FormatInt(voucherID, 10)
}

// CacheOperation 是缓存变更的类型
type CacheOperation string

const (
	CacheOperationUpdate CacheOperation = "UPDATE"
	CacheOperationDelete CacheOperation = "DELETE"
)

// CacheUpdateMessage 是在缓存更新/清理通道上传递的缓存变更
type CacheUpdateMessage struct {
	Type          CacheOperation  `json:"type"`
	CacheKey      string          `json:"cacheKey"`
	CacheValue    json.RawMessage `json:"cacheValue,omitempty"`
	ExpireSeconds int64           `json:"expireSeconds,omitempty"`
	RetryCount    int             `json:"retryCount"`
	MaxRetries    int             `json:"maxRetries"`
	Timestamp     int64           `json:"timestamp"`
}

func NewCacheUpdate(key string, value json.RawMessage, ttl time.Duration, maxRetries int, now time.Time) *CacheUpdateMessage {
	return &CacheUpdateMessage{
		Type:          CacheOperationUpdate,
		CacheKey:      key,
		CacheValue:    value,
		ExpireSeconds: int64(ttl / time.Second),
		MaxRetries:    maxRetries,
		Timestamp:     now.UnixMilli(),
	}
}

func NewCacheDelete(key string, maxRetries int, now time.Time) *CacheUpdateMessage {
	return &CacheUpdateMessage{
		Type:       CacheOperationDelete,
		CacheKey:   key,
		MaxRetries: maxRetries,
		Timestamp:  now.UnixMilli(),
	}
}

// TTL 返回缓存过期时间，0 表示不过期
func (m *CacheUpdateMessage) TTL() time.Duration {
	return time.Duration(m.ExpireSeconds) * time.Second
}

// CanRetry 在重试次数未达到上限时返回 true
func (m *CacheUpdateMessage) CanRetry() bool {
	max := m.MaxRetries
	if max <= 0 {
		max = DefaultCacheMaxRetries
	}
	return m.RetryCount < max
}

func (m *CacheUpdateMessage) IncrementRetry() {
	m.RetryCount++
}

// RetryDelay 按已重试次数返回下一次投递前的等待时间：1s、5s、10s，之后都是 30s
func (m *CacheUpdateMessage) RetryDelay() time.Duration {
	switch m.RetryCount {
	case 0, 1:
		return time.Second
	case 2:
		return 5 * time.Second
	case 3:
		return 10 * time.Second
	default:
		return 30 * time.Second
	}
}
