package interfaces

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/JackieRio/dianpingPlus/internal/pkg/logger"
	"github.com/JackieRio/dianpingPlus/internal/service/voucher/application"
	"github.com/JackieRio/dianpingPlus/internal/service/voucher/domain"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// VoucherHandler 封装了优惠券的 HTTP 处理器
type VoucherHandler struct {
	service *application.VoucherService
}

func NewVoucherHandler(service *application.VoucherService) *VoucherHandler {
	return &VoucherHandler{service: service}
}

// RegisterRoutes 在 ServeMux 上注册所有路由
func (h *VoucherHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /voucher/seckill", h.handleAddSeckillVoucher)
	mux.HandleFunc("GET /voucher/{id}", h.handleGetVoucher)
}

type result struct {
	Success  bool   `json:"success"`
	ErrorMsg string `json:"errorMsg,omitempty"`
	Data     any    `json:"data,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body result) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *VoucherHandler) handleAddSeckillVoucher(w http.ResponseWriter, r *http.Request) {
	ctx := otel.GetTextMapPropagator().Extract(r.Context(), propagation.HeaderCarrier(r.Header))

	var req application.AddSeckillVoucherRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, result{ErrorMsg: "Invalid request body"})
		return
	}

	id, err := h.service.AddSeckillVoucher(ctx, &req)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidVoucher) {
			writeJSON(w, http.StatusBadRequest, result{ErrorMsg: err.Error()})
			return
		}
		logger.Ctx(ctx).Error().Err(err).Msg("failed to add seckill voucher")
		writeJSON(w, http.StatusInternalServerError, result{ErrorMsg: "系统繁忙，请稍后再试"})
		return
	}
	writeJSON(w, http.StatusOK, result{Success: true, Data: id})
}

func (h *VoucherHandler) handleGetVoucher(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, result{ErrorMsg: "invalid voucher id"})
		return
	}
	v, err := h.service.FindVoucher(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrVoucherNotFound):
		writeJSON(w, http.StatusNotFound, result{ErrorMsg: "优惠券不存在"})
	case err != nil:
		logger.Ctx(r.Context()).Error().Err(err).Int64("voucher_id", id).Msg("failed to load voucher")
		writeJSON(w, http.StatusInternalServerError, result{ErrorMsg: "系统繁忙，请稍后再试"})
	default:
		writeJSON(w, http.StatusOK, result{Success: true, Data: v})
	}
}
