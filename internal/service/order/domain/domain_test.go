package domain

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheUpdateMessage_RetrySchedule(t *testing.T) {
	m := NewCacheUpdate("cache:voucher:1", []byte(`{}`), time.Hour, 3, time.Now())
	var delays []time.Duration
	for m.CanRetry() {
		m.IncrementRetry()
		delays = append(delays, m.RetryDelay())
	}
	assert.Equal(t, []time.Duration{time.Second, 5 * time.Second, 10 * time.Second}, delays)
	assert.Equal(t, 3, m.RetryCount)

	m.RetryCount = 4
	assert.Equal(t, 30*time.Second, m.RetryDelay())
}

func TestCacheUpdateMessage_DefaultMaxRetries(t *testing.T) {
	m := &CacheUpdateMessage{RetryCount: 2}
	assert.True(t, m.CanRetry())
	m.RetryCount = DefaultCacheMaxRetries
	assert.False(t, m.CanRetry())
}

func TestNewVoucherOrder(t *testing.T) {
	now := time.Now()
	o, err := NewVoucherOrder(&SeckillMessage{UserID: 1, VoucherID: 2, OrderID: 3}, now)
	assert.NoError(t, err)
	assert.Equal(t, StatusUnpaid, o.Status)
	assert.EqualValues(t, 3, o.ID)

	_, err = NewVoucherOrder(&SeckillMessage{UserID: 1, VoucherID: 2}, now)
	assert.ErrorIs(t, err, ErrInvalidMessage)
	assert.True(t, IsFatal(err))
}

func TestIsFatal(t *testing.T) {
	assert.True(t, IsFatal(fmt.Errorf("voucher 7: %w", ErrStockInvariantViolated)))
	assert.False(t, IsFatal(ErrStockNotEnough))
	assert.False(t, IsFatal(fmt.Errorf("db: %w", ErrSystemBusy)))
}
