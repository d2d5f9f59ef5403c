package adapter

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/redis"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain/port"
	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
)

type SeckillRedisAdapterSuite struct {
	suite.Suite
	mr      *miniredis.Miniredis
	client  *redis.Client
	adapter *SeckillRedisAdapter
	now     time.Time
	begin   time.Time
	end     time.Time
}

func TestSeckillRedisAdapter(t *testing.T) {
	suite.Run(t, new(SeckillRedisAdapterSuite))
}

func (s *SeckillRedisAdapterSuite) SetupTest() {
	s.mr = miniredis.RunT(s.T())
	s.client = redis.NewClientFrom(goredis.NewClient(&goredis.Options{Addr: s.mr.Addr()}))
	a, err := NewSeckillRedisAdapter(s.client, time.Hour)
	s.Require().NoError(err)

	s.now = time.Now().Truncate(time.Millisecond)
	s.begin = s.now.Add(-time.Minute)
	s.end = s.now.Add(time.Hour)
	s.adapter = a.WithClock(func() time.Time { return s.now })
}

func (s *SeckillRedisAdapterSuite) stock(voucherID int64) string {
	v, err := s.client.GetClient().HGet(context.Background(), SeckillStockKey(voucherID), "stock").Result()
	s.Require().NoError(err)
	return v
}

func (s *SeckillRedisAdapterSuite) TestAcceptThenDuplicate() {
	ctx := context.Background()
	s.Require().NoError(s.adapter.PrepareSeckillVoucher(ctx, 7, 5, s.begin, s.end))

	res, err := s.adapter.AttemptSeckill(ctx, 7, 1010, 1)
	s.Require().NoError(err)
	s.Equal(port.SeckillResultSuccess, res)

	res, err = s.adapter.AttemptSeckill(ctx, 7, 1010, 2)
	s.Require().NoError(err)
	s.Equal(port.SeckillResultAlreadyPurchased, res)
	s.Equal("4", s.stock(7))

	orderID, err := s.client.GetClient().HGet(ctx, SeckillOrderKey(7), "1010").Result()
	s.Require().NoError(err)
	s.Equal("1", orderID)
}

func (s *SeckillRedisAdapterSuite) TestMarkerInheritsStockTTL() {
	ctx := context.Background()
	s.Require().NoError(s.adapter.PrepareSeckillVoucher(ctx, 7, 5, s.begin, s.end))
	_, err := s.adapter.AttemptSeckill(ctx, 7, 1010, 1)
	s.Require().NoError(err)

	s.Greater(s.mr.TTL(SeckillStockKey(7)), time.Hour)
	s.Greater(s.mr.TTL(SeckillOrderKey(7)), time.Hour)
}

func (s *SeckillRedisAdapterSuite) TestNotFound() {
	res, err := s.adapter.AttemptSeckill(context.Background(), 404, 1010, 1)
	s.Require().NoError(err)
	s.Equal(port.SeckillResultNotFound, res)
}

func (s *SeckillRedisAdapterSuite) TestTimeWindow() {
	ctx := context.Background()
	s.Require().NoError(s.adapter.PrepareSeckillVoucher(ctx, 8, 5, s.now.Add(time.Minute), s.end))
	res, err := s.adapter.AttemptSeckill(ctx, 8, 1010, 1)
	s.Require().NoError(err)
	s.Equal(port.SeckillResultNotStarted, res)

	s.Require().NoError(s.adapter.PrepareSeckillVoucher(ctx, 9, 5, s.now.Add(-2*time.Hour), s.now.Add(-time.Millisecond)))
	res, err = s.adapter.AttemptSeckill(ctx, 9, 1010, 1)
	s.Require().NoError(err)
	s.Equal(port.SeckillResultEnded, res)

	// 边界时刻仍可抢购
	s.Require().NoError(s.adapter.PrepareSeckillVoucher(ctx, 10, 5, s.now, s.now))
	res, err = s.adapter.AttemptSeckill(ctx, 10, 1010, 1)
	s.Require().NoError(err)
	s.Equal(port.SeckillResultSuccess, res)
}

func (s *SeckillRedisAdapterSuite) TestZeroStock() {
	ctx := context.Background()
	s.Require().NoError(s.adapter.PrepareSeckillVoucher(ctx, 7, 0, s.begin, s.end))
	res, err := s.adapter.AttemptSeckill(ctx, 7, 1010, 1)
	s.Require().NoError(err)
	s.Equal(port.SeckillResultSoldOut, res)
	s.Equal("0", s.stock(7))
}

func (s *SeckillRedisAdapterSuite) TestTwoUnitsFourUsers() {
	ctx := context.Background()
	s.Require().NoError(s.adapter.PrepareSeckillVoucher(ctx, 7, 2, s.begin, s.end))

	var accepted, soldOut int
	for i, user := range []int64{1, 2, 3, 4} {
		res, err := s.adapter.AttemptSeckill(ctx, 7, user, int64(100+i))
		s.Require().NoError(err)
		switch res {
		case port.SeckillResultSuccess:
			accepted++
		case port.SeckillResultSoldOut:
			soldOut++
		}
	}
	s.Equal(2, accepted)
	s.Equal(2, soldOut)
	s.Equal("0", s.stock(7))
}

func (s *SeckillRedisAdapterSuite) TestConcurrentAttemptsNeverOversell() {
	ctx := context.Background()
	const stock, users = 10, 100
	s.Require().NoError(s.adapter.PrepareSeckillVoucher(ctx, 7, stock, s.begin, s.end))

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < users; i++ {
		wg.Add(1)
		go func(user int64) {
			defer wg.Done()
			// 同一用户并发两次
			for j := 0; j < 2; j++ {
				res, err := s.adapter.AttemptSeckill(ctx, 7, user, user*10+int64(j))
				if err == nil && res == port.SeckillResultSuccess {
					mu.Lock()
					accepted++
					mu.Unlock()
				}
			}
		}(int64(i + 1))
	}
	wg.Wait()

	s.Equal(stock, accepted)
	s.Equal("0", s.stock(7))
	n, err := s.client.GetClient().HLen(ctx, SeckillOrderKey(7)).Result()
	s.Require().NoError(err)
	s.EqualValues(stock, n)
}

func (s *SeckillRedisAdapterSuite) TestCancelReturnsUnitOnlyForOwner() {
	ctx := context.Background()
	s.Require().NoError(s.adapter.PrepareSeckillVoucher(ctx, 7, 1, s.begin, s.end))
	_, err := s.adapter.AttemptSeckill(ctx, 7, 1010, 55)
	s.Require().NoError(err)

	s.Require().NoError(s.adapter.CancelSeckill(ctx, 7, 1010, 56))
	s.Equal("0", s.stock(7))

	s.Require().NoError(s.adapter.CancelSeckill(ctx, 7, 1010, 55))
	s.Equal("1", s.stock(7))

	// 重复补偿不会多还库存
	s.Require().NoError(s.adapter.CancelSeckill(ctx, 7, 1010, 55))
	s.Equal("1", s.stock(7))

	res, err := s.adapter.AttemptSeckill(ctx, 7, 1010, 57)
	s.Require().NoError(err)
	s.Equal(port.SeckillResultSuccess, res)
}

func (s *SeckillRedisAdapterSuite) TestPrepareClearsMarkers() {
	ctx := context.Background()
	s.Require().NoError(s.adapter.PrepareSeckillVoucher(ctx, 7, 1, s.begin, s.end))
	_, err := s.adapter.AttemptSeckill(ctx, 7, 1010, 1)
	s.Require().NoError(err)

	s.Require().NoError(s.adapter.PrepareSeckillVoucher(ctx, 7, 3, s.begin, s.end))
	s.False(s.mr.Exists(SeckillOrderKey(7)))
	s.Equal("3", s.stock(7))
}
