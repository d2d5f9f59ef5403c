// internal/pkg/identity/identity.go
package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/JackieRio/dianpingPlus/internal/pkg/logger"
	"github.com/JackieRio/dianpingPlus/internal/pkg/redis"
	"github.com/pkg/errors"
)

// User 是经过认证的调用方。
type User struct {
	ID       string `json:"id"`
	NickName string `json:"nickName"`
}

var ErrUnauthenticated = errors.New("unauthenticated")

type ctxKey struct{}

// WithUser 把调用方放入 context。
func WithUser(ctx context.Context, u User) context.Context {
	return context.WithValue(ctx, ctxKey{}, u)
}

// FromContext 取出调用方。
func FromContext(ctx context.Context) (User, bool) {
	u, ok := ctx.Value(ctxKey{}).(User)
	return u, ok && u.ID != ""
}

// Resolver 根据登录 token 解析出调用方。
type Resolver interface {
	Resolve(ctx context.Context, token string) (User, error)
}

// Middleware 在请求入口解析一次 authorization 头，之后调用方随 context 传递。
// required 为 true 时未登录请求直接返回 401。
func Middleware(resolver Resolver, required bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get("authorization"))
			token = strings.TrimPrefix(token, "Bearer ")

			if token != "" {
				u, err := resolver.Resolve(r.Context(), token)
				switch {
				case err == nil:
					r = r.WithContext(WithUser(r.Context(), u))
				case errors.Is(err, ErrUnauthenticated):
					// 会话不存在，按匿名处理
				default:
					logger.Ctx(r.Context()).Error().Err(err).Msg("failed to resolve login token")
					writeUnauthorized(w, http.StatusServiceUnavailable, "SYSTEM_BUSY", "系统繁忙，请稍后再试")
					return
				}
			}

			if _, ok := FromContext(r.Context()); !ok && required {
				writeUnauthorized(w, http.StatusUnauthorized, "UNAUTHORIZED", "用户未登录")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "code": code, "errorMsg": msg})
}

// LoginTokenKeyPrefix 是登录会话 hash 的 key 前缀。
const LoginTokenKeyPrefix = "login:token:"

// RedisTokenResolver 从 Redis 登录会话中读取调用方。
type RedisTokenResolver struct {
	redisClient *redis.Client
}

func NewRedisTokenResolver(redisClient *redis.Client) *RedisTokenResolver {
	return &RedisTokenResolver{redisClient: redisClient}
}

func (r *RedisTokenResolver) Resolve(ctx context.Context, token string) (User, error) {
	fields, err := r.redisClient.GetClient().HGetAll(ctx, LoginTokenKeyPrefix+token).Result()
	if err != nil {
		return User{}, errors.Wrap(err, "read login session")
	}
	if len(fields) == 0 || fields["id"] == "" {
		return User{}, ErrUnauthenticated
	}
	return User{ID: fields["id"], NickName: fields["nickName"]}, nil
}
