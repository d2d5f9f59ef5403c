package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/service/voucher/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type fakeRepo struct {
	nextID     int64
	created    []*domain.Voucher
	rolledBack bool
}

func (f *fakeRepo) CreateSeckillVoucher(ctx context.Context, v *domain.Voucher, onCreated func(context.Context, *domain.Voucher) error) error {
	v.ID = f.nextID
	if err := onCreated(ctx, v); err != nil {
		f.rolledBack = true
		return err
	}
	f.created = append(f.created, v)
	return nil
}

func (f *fakeRepo) FindVoucher(context.Context, int64) (*domain.Voucher, error) {
	return nil, domain.ErrVoucherNotFound
}

func (f *fakeRepo) FindSeckillVoucher(context.Context, int64) (*domain.SeckillVoucher, error) {
	return nil, domain.ErrVoucherNotFound
}

type fakePreparer struct {
	err   error
	calls []int64
}

func (f *fakePreparer) PrepareSeckillVoucher(_ context.Context, id int64, _ int, _, _ time.Time) error {
	f.calls = append(f.calls, id)
	return f.err
}

type fakeEvictor struct {
	evicted []int64
}

func (f *fakeEvictor) EvictVoucher(_ context.Context, id int64) {
	f.evicted = append(f.evicted, id)
}

func validRequest() *AddSeckillVoucherRequest {
	begin := time.Now().Add(time.Hour)
	return &AddSeckillVoucherRequest{ShopID: 1, Title: "t", Stock: 10, BeginTime: begin, EndTime: begin.Add(time.Hour)}
}

func TestAddSeckillVoucher(t *testing.T) {
	repo := &fakeRepo{nextID: 11}
	prep := &fakePreparer{}
	svc := NewVoucherService(repo, prep, noop.NewTracerProvider().Tracer("test"))

	id, err := svc.AddSeckillVoucher(context.Background(), validRequest())
	require.NoError(t, err)
	assert.EqualValues(t, 11, id)
	assert.Equal(t, []int64{11}, prep.calls)
	assert.Len(t, repo.created, 1)
}

func TestAddSeckillVoucher_EvictsStaleCaches(t *testing.T) {
	evictor := &fakeEvictor{}
	svc := NewVoucherService(&fakeRepo{nextID: 13}, &fakePreparer{}, noop.NewTracerProvider().Tracer("test")).
		WithCacheEvictor(evictor)

	_, err := svc.AddSeckillVoucher(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, []int64{13}, evictor.evicted)

	failing := NewVoucherService(&fakeRepo{nextID: 14}, &fakePreparer{err: errors.New("redis down")}, noop.NewTracerProvider().Tracer("test")).
		WithCacheEvictor(evictor)
	_, err = failing.AddSeckillVoucher(context.Background(), validRequest())
	assert.Error(t, err)
	assert.Equal(t, []int64{13}, evictor.evicted)
}

func TestAddSeckillVoucher_PrepareFailureRollsBack(t *testing.T) {
	repo := &fakeRepo{nextID: 12}
	svc := NewVoucherService(repo, &fakePreparer{err: errors.New("redis down")}, noop.NewTracerProvider().Tracer("test"))

	_, err := svc.AddSeckillVoucher(context.Background(), validRequest())
	assert.Error(t, err)
	assert.True(t, repo.rolledBack)
	assert.Empty(t, repo.created)
}

func TestAddSeckillVoucher_Validation(t *testing.T) {
	svc := NewVoucherService(&fakeRepo{}, &fakePreparer{}, noop.NewTracerProvider().Tracer("test"))

	req := validRequest()
	req.EndTime = req.BeginTime.Add(-time.Minute)
	_, err := svc.AddSeckillVoucher(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidVoucher)

	req = validRequest()
	req.Stock = -1
	_, err = svc.AddSeckillVoucher(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidVoucher)
}
