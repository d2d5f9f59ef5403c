package interfaces

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/identity"
	"github.com/JackieRio/dianpingPlus/internal/pkg/metrics"
	"github.com/JackieRio/dianpingPlus/internal/pkg/ratelimit"
	"github.com/JackieRio/dianpingPlus/internal/service/order/application"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain/port"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
)

type tokenResolver map[string]identity.User

func (r tokenResolver) Resolve(_ context.Context, token string) (identity.User, error) {
	if u, ok := r[token]; ok {
		return u, nil
	}
	return identity.User{}, identity.ErrUnauthenticated
}

type budgetAdmitter struct{ left int }

func (a *budgetAdmitter) Allow(context.Context, string, time.Duration, int) (bool, error) {
	a.left--
	return a.left >= 0, nil
}

type stubSeckill struct{ result port.SeckillResult }

func (s stubSeckill) AttemptSeckill(context.Context, int64, int64, int64) (port.SeckillResult, error) {
	return s.result, nil
}

func (stubSeckill) CancelSeckill(context.Context, int64, int64, int64) error { return nil }

type stubProducer struct{ err error }

func (p stubProducer) Produce(context.Context, *domain.SeckillMessage) error { return p.err }

type stubIDs struct{}

func (stubIDs) NextID(context.Context, string) (int64, error) { return 8000000001, nil }

type stubRepo struct{ domain.OrderRepository }

func (stubRepo) FindByID(_ context.Context, id int64) (*domain.VoucherOrder, error) {
	if id == 1 {
		return &domain.VoucherOrder{ID: 1, UserID: 1010, VoucherID: 7, PayType: 1, Status: domain.StatusUnpaid}, nil
	}
	return nil, domain.ErrOrderNotFound
}

func newServer(result port.SeckillResult, produceErr error, budget int) *http.ServeMux {
	svc := application.NewOrderApplicationService(stubIDs{}, stubSeckill{result: result}, stubProducer{err: produceErr},
		stubRepo{}, noop.NewTracerProvider().Tracer("test"), metrics.New())
	h := NewOrderHandler(svc,
		tokenResolver{"tok": {ID: "1010", NickName: "alice"}, "bad": {ID: "alice"}},
		&budgetAdmitter{left: budget},
		ratelimit.Rule{Name: "seckill", Window: 10 * time.Second, Limit: 10, Message: "秒杀活动太火爆，请稍后再试", Dimension: ratelimit.DimensionUser},
		metrics.New())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return mux
}

func doSeckill(t *testing.T, mux *http.ServeMux, token string) (int, response) {
	req := httptest.NewRequest(http.MethodPost, "/voucher-order/seckill/7", nil)
	if token != "" {
		req.Header.Set("authorization", token)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	var body response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func TestSeckillEndpoint_Accepted(t *testing.T) {
	status, body := doSeckill(t, newServer(port.SeckillResultSuccess, nil, 10), "tok")
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, body.Success)
	assert.Equal(t, CodeAccepted, body.Code)
	assert.Equal(t, map[string]any{"orderId": "8000000001"}, body.Data)
}

func TestSeckillEndpoint_Rejections(t *testing.T) {
	cases := []struct {
		result port.SeckillResult
		status int
		code   string
		msg    string
	}{
		{port.SeckillResultSoldOut, http.StatusConflict, CodeOutOfStock, "库存不足"},
		{port.SeckillResultAlreadyPurchased, http.StatusConflict, CodeDuplicate, "不能重复下单"},
		{port.SeckillResultNotFound, http.StatusNotFound, CodeNotFound, "秒杀券不存在"},
		{port.SeckillResultNotStarted, http.StatusForbidden, CodeNotStarted, "秒杀尚未开始"},
		{port.SeckillResultEnded, http.StatusForbidden, CodeEnded, "秒杀已经结束"},
	}
	for _, tc := range cases {
		status, body := doSeckill(t, newServer(tc.result, nil, 10), "tok")
		assert.Equal(t, tc.status, status, tc.code)
		assert.False(t, body.Success)
		assert.Equal(t, tc.code, body.Code)
		assert.Equal(t, tc.msg, body.ErrorMsg)
	}
}

func TestSeckillEndpoint_EnqueueFailureIsSystemBusy(t *testing.T) {
	status, body := doSeckill(t, newServer(port.SeckillResultSuccess, errors.New("kafka down"), 10), "tok")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, CodeSystemBusy, body.Code)
	assert.Equal(t, "系统繁忙，请稍后再试", body.ErrorMsg)
}

func TestSeckillEndpoint_RequiresLogin(t *testing.T) {
	mux := newServer(port.SeckillResultSuccess, nil, 10)

	status, body := doSeckill(t, mux, "")
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body.Code)

	status, _ = doSeckill(t, mux, "Bearer unknown")
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = doSeckill(t, mux, "bad")
	assert.Equal(t, http.StatusUnauthorized, status)
}

func TestSeckillEndpoint_RateLimited(t *testing.T) {
	mux := newServer(port.SeckillResultSuccess, nil, 1)

	status, _ := doSeckill(t, mux, "tok")
	assert.Equal(t, http.StatusOK, status)

	status, body := doSeckill(t, mux, "tok")
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Equal(t, ratelimit.CodeRateLimited, body.Code)
	assert.Equal(t, "秒杀活动太火爆，请稍后再试", body.ErrorMsg)
}

func TestGetOrder(t *testing.T) {
	mux := newServer(port.SeckillResultSuccess, nil, 10)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/voucher-order/1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"UNPAID"`)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/voucher-order/2", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
