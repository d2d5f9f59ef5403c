// internal/pkg/ratelimit/middleware.go
package ratelimit

import (
	"encoding/json"
	"net/http"

	"github.com/JackieRio/dianpingPlus/internal/pkg/logger"
)

const (
	CodeRateLimited = "RATE_LIMITED"
	CodeSystemBusy  = "SYSTEM_BUSY"
)

// Middleware 在路由注册时包裹需要限流的 handler。
// 限流存储不可用时直接拒绝，不做重试。
func Middleware(admitter Admitter, rule Rule, onReject ...func(rule Rule)) func(http.Handler) http.Handler {
	rule = rule.Normalize()
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := BuildKey(rule, r)
			allowed, err := admitter.Allow(r.Context(), key, rule.Window, rule.Limit)
			if err != nil {
				logger.Ctx(r.Context()).Error().Err(err).Str("key", key).Msg("rate limiter unavailable, rejecting")
				writeReject(w, http.StatusServiceUnavailable, CodeSystemBusy, DefaultMessage)
				return
			}
			if !allowed {
				logger.Ctx(r.Context()).Debug().Str("key", key).Msg("request rate limited")
				for _, fn := range onReject {
					fn(rule)
				}
				writeReject(w, http.StatusTooManyRequests, CodeRateLimited, rule.Message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeReject(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"success":  false,
		"code":     code,
		"errorMsg": msg,
	})
}
