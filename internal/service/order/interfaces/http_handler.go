package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/JackieRio/dianpingPlus/internal/pkg/identity"
	"github.com/JackieRio/dianpingPlus/internal/pkg/logger"
	"github.com/JackieRio/dianpingPlus/internal/pkg/metrics"
	"github.com/JackieRio/dianpingPlus/internal/pkg/ratelimit"
	"github.com/JackieRio/dianpingPlus/internal/service/order/application"
	"github.com/JackieRio/dianpingPlus/internal/service/order/domain"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// 秒杀下单的响应码
const (
	CodeAccepted   = "ACCEPTED"
	CodeOutOfStock = "OUT_OF_STOCK"
	CodeDuplicate  = "DUPLICATE"
	CodeNotFound   = "NOT_FOUND"
	CodeNotStarted = "NOT_STARTED"
	CodeEnded      = "ENDED"
	CodeSystemBusy = ratelimit.CodeSystemBusy
)

// OrderHandler 封装了秒杀下单的 HTTP 处理器
type OrderHandler struct {
	service  *application.OrderApplicationService
	resolver identity.Resolver
	admitter ratelimit.Admitter
	rule     ratelimit.Rule
	metrics  *metrics.Metrics
}

// NewOrderHandler 创建一个新的 HTTP 处理器实例
func NewOrderHandler(service *application.OrderApplicationService, resolver identity.Resolver, admitter ratelimit.Admitter, rule ratelimit.Rule, m *metrics.Metrics) *OrderHandler {
	return &OrderHandler{service: service, resolver: resolver, admitter: admitter, rule: rule, metrics: m}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *OrderHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	mux.Handle("/metrics", promhttp.Handler())

	// 先识别用户再限流，按用户维度的规则才能拿到 userId
	seckill := identity.Middleware(h.resolver, true)(
		ratelimit.Middleware(h.admitter, h.rule, h.onRateLimited)(
			http.HandlerFunc(h.handleSeckill)))
	mux.Handle("POST /voucher-order/seckill/{id}", seckill)
	mux.HandleFunc("GET /voucher-order/{id}", h.handleGetOrder)
}

type response struct {
	Success  bool   `json:"success"`
	Code     string `json:"code,omitempty"`
	ErrorMsg string `json:"errorMsg,omitempty"`
	Data     any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *OrderHandler) onRateLimited(rule ratelimit.Rule) {
	if h.metrics != nil {
		h.metrics.RateLimitedTotal.WithLabelValues(rule.Name).Inc()
	}
}

func (h *OrderHandler) handleSeckill(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	voucherID, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || voucherID <= 0 {
		writeJSON(w, http.StatusBadRequest, response{ErrorMsg: "invalid voucher id"})
		return
	}
	user, _ := identity.FromContext(ctx)
	userID, err := strconv.ParseInt(user.ID, 10, 64)
	if err != nil {
		writeJSON(w, http.StatusUnauthorized, response{Code: "UNAUTHORIZED", ErrorMsg: "用户未登录"})
		return
	}

	orderID, err := h.service.SeckillVoucher(ctx, voucherID, userID)
	if err != nil {
		status, code := classify(err)
		if code == CodeSystemBusy {
			logger.Ctx(ctx).Error().Err(err).Int64("voucherId", voucherID).Msg("seckill failed")
			writeJSON(w, status, response{Code: code, ErrorMsg: domain.ErrSystemBusy.Error()})
			return
		}
		writeJSON(w, status, response{Code: code, ErrorMsg: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Code:    CodeAccepted,
		Data:    application.SeckillOrderResponse{OrderID: strconv.FormatInt(orderID, 10)},
	})
}

func (h *OrderHandler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, response{ErrorMsg: "invalid order id"})
		return
	}
	o, err := h.service.FindOrder(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, response{Code: CodeNotFound, ErrorMsg: "订单不存在"})
	case err != nil:
		logger.Ctx(r.Context()).Error().Err(err).Int64("orderId", id).Msg("failed to load order")
		writeJSON(w, http.StatusServiceUnavailable, response{Code: CodeSystemBusy, ErrorMsg: domain.ErrSystemBusy.Error()})
	default:
		writeJSON(w, http.StatusOK, response{Success: true, Data: application.ToOrderView(o)})
	}
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrOutOfStock):
		return http.StatusConflict, CodeOutOfStock
	case errors.Is(err, domain.ErrDuplicateOrder):
		return http.StatusConflict, CodeDuplicate
	case errors.Is(err, domain.ErrVoucherNotFound):
		return http.StatusNotFound, CodeNotFound
	case errors.Is(err, domain.ErrSeckillNotStarted):
		return http.StatusForbidden, CodeNotStarted
	case errors.Is(err, domain.ErrSeckillEnded):
		return http.StatusForbidden, CodeEnded
	default:
		return http.StatusServiceUnavailable, CodeSystemBusy
	}
}
