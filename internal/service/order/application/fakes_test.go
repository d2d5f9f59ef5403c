package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain/port"
	voucher "github.com/JackieRio/dianpingPlus/internal/service/voucher/domain"
)

// memRepo 模拟 tb_voucher_order 与 tb_seckill_voucher
type memRepo struct {
	mu        sync.Mutex
	orders    map[int64]*domain.VoucherOrder
	stock     map[int64]int
	createErr error
	creates   int
}

func newMemRepo(voucherID int64, stock int) *memRepo {
	return &memRepo{
		orders: map[int64]*domain.VoucherOrder{},
		stock:  map[int64]int{voucherID: stock},
	}
}

func (r *memRepo) ExistsByID(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.orders[id]
	return ok, nil
}

func (r *memRepo) ExistsByUserAndVoucher(_ context.Context, userID, voucherID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.UserID == userID && o.VoucherID == voucherID {
			return true, nil
		}
	}
	return false, nil
}

func (r *memRepo) CreateOrderWithStockDeduction(_ context.Context, o *domain.VoucherOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.creates++
	if r.createErr != nil {
		return r.createErr
	}
	if r.stock[o.VoucherID] <= 0 {
		return domain.ErrStockNotEnough
	}
	for _, existing := range r.orders {
		if existing.ID == o.ID || (existing.UserID == o.UserID && existing.VoucherID == o.VoucherID) {
			return domain.ErrOrderExists
		}
	}
	r.stock[o.VoucherID]--
	r.orders[o.ID] = o
	return nil
}

func (r *memRepo) FindByID(_ context.Context, id int64) (*domain.VoucherOrder, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrOrderNotFound
	}
	return o, nil
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

func (r *memRepo) stockOf(voucherID int64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stock[voucherID]
}

// memLocker 是进程内的互斥锁，TryLock 轮询等待
type memLocker struct {
	mu      sync.Mutex
	held    map[string]bool
	lost    bool
	failErr error
}

func newMemLocker() *memLocker {
	return &memLocker{held: map[string]bool{}}
}

func (l *memLocker) TryLock(ctx context.Context, key string, wait, _ time.Duration) (port.Lock, error) {
	if l.failErr != nil {
		return nil, l.failErr
	}
	deadline := time.Now().Add(wait)
	for {
		l.mu.Lock()
		if !l.held[key] {
			l.held[key] = true
			l.mu.Unlock()
			return &memLock{locker: l, key: key}, nil
		}
		l.mu.Unlock()
		if time.Now().After(deadline) {
			return nil, port.ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, port.ErrLockNotAcquired
		case <-time.After(time.Millisecond):
		}
	}
}

type memLock struct {
	locker *memLocker
	key    string
}

func (l *memLock) Held(context.Context) (bool, error) {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	return l.locker.held[l.key] && !l.locker.lost, nil
}

func (l *memLock) Unlock(context.Context) error {
	l.locker.mu.Lock()
	defer l.locker.mu.Unlock()
	if !l.locker.held[l.key] {
		return port.ErrLockNotHeld
	}
	delete(l.locker.held, l.key)
	return nil
}

type fakeVoucherReader struct {
	err error
}

func (f *fakeVoucherReader) FindVoucher(_ context.Context, id int64) (*voucher.Voucher, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &voucher.Voucher{ID: id, Title: "100 元代金券", Type: voucher.VoucherTypeSeckill}, nil
}

func (f *fakeVoucherReader) FindSeckillVoucher(_ context.Context, id int64) (*voucher.SeckillVoucher, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &voucher.SeckillVoucher{VoucherID: id, Stock: 9}, nil
}

type memStore struct {
	mu     sync.Mutex
	values map[string][]byte
	ttls   map[string]time.Duration
	err    error
}

func newMemStore() *memStore {
	return &memStore{values: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (s *memStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.values[key] = value
	s.ttls[key] = ttl
	return nil
}

func (s *memStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	delete(s.values, key)
	return nil
}

type scheduled struct {
	msg   domain.CacheUpdateMessage
	delay time.Duration
}

type recordingPublisher struct {
	mu          sync.Mutex
	updates     []domain.CacheUpdateMessage
	cleans      []domain.CacheUpdateMessage
	retries     []scheduled
	updateErr   error
	scheduleErr error
}

func (p *recordingPublisher) PublishUpdate(_ context.Context, msg *domain.CacheUpdateMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.updateErr != nil {
		return p.updateErr
	}
	p.updates = append(p.updates, *msg)
	return nil
}

func (p *recordingPublisher) PublishClean(_ context.Context, msg *domain.CacheUpdateMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cleans = append(p.cleans, *msg)
	return nil
}

func (p *recordingPublisher) ScheduleRetry(_ context.Context, msg *domain.CacheUpdateMessage, delay time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.scheduleErr != nil {
		return p.scheduleErr
	}
	p.retries = append(p.retries, scheduled{msg: *msg, delay: delay})
	return nil
}

func (p *recordingPublisher) keys(msgs []domain.CacheUpdateMessage) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, m := range msgs {
		out = append(out, m.CacheKey)
	}
	return out
}

type countingNotifier struct {
	mu   sync.Mutex
	sent []int64
}

func (n *countingNotifier) SendOrderCreated(_ context.Context, o *domain.VoucherOrder) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, o.ID)
	return nil
}

type fakeSeckill struct {
	result    port.SeckillResult
	err       error
	cancelled []int64
}

func (f *fakeSeckill) AttemptSeckill(context.Context, int64, int64, int64) (port.SeckillResult, error) {
	return f.result, f.err
}

func (f *fakeSeckill) CancelSeckill(_ context.Context, _, _, orderID int64) error {
	f.cancelled = append(f.cancelled, orderID)
	return nil
}

type fakeProducer struct {
	sent []domain.SeckillMessage
	err  error
}

func (p *fakeProducer) Produce(_ context.Context, msg *domain.SeckillMessage) error {
	if p.err != nil {
		return p.err
	}
	p.sent = append(p.sent, *msg)
	return nil
}

type fixedIDs struct {
	next int64
	err  error
}

func (f *fixedIDs) NextID(context.Context, string) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.next++
	return f.next, nil
}

var errBoom = errors.New("boom")
