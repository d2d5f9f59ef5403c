// internal/pkg/ratelimit/rule.go
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/JackieRio/dianpingPlus/internal/pkg/identity"
)

// Dimension 决定限流 key 按什么维度拆分。
type Dimension int

const (
	DimensionMethod Dimension = iota // 整个接口共享一个窗口
	DimensionIP
	DimensionUser
)

const (
	DefaultKeyPrefix = "rate_limit:"
	DefaultWindow    = 10 * time.Second
	DefaultLimit     = 20
	DefaultMessage   = "系统繁忙，请稍后再试"
)

// Rule 是一条路由上的限流配置。
type Rule struct {
	Key       string // key 前缀
	Name      string // 受保护的操作名，例如 VoucherOrderHandler:SeckillVoucher
	Window    time.Duration
	Limit     int
	Message   string
	Dimension Dimension
}

// Normalize 为未设置的字段填上默认值。
func (r Rule) Normalize() Rule {
	if r.Key == "" {
		r.Key = DefaultKeyPrefix
	}
	if r.Window <= 0 {
		r.Window = DefaultWindow
	}
	if r.Limit <= 0 {
		r.Limit = DefaultLimit
	}
	if r.Message == "" {
		r.Message = DefaultMessage
	}
	return r
}

// BuildKey 计算本次请求对应的限流 key。
func BuildKey(r Rule, req *http.Request) string {
	var sb strings.Builder
	sb.WriteString(r.Key)
	sb.WriteString(r.Name)

	switch r.Dimension {
	case DimensionIP:
		sb.WriteString(":ip:")
		sb.WriteString(ClientIP(req))
	case DimensionUser:
		sb.WriteString(":user:")
		if u, ok := identity.FromContext(req.Context()); ok {
			sb.WriteString(u.ID)
		} else {
			sb.WriteString("anonymous")
		}
	}
	return sb.String()
}

// ClientIP 依次尝试代理头，最后回退到连接地址。
func ClientIP(req *http.Request) string {
	for _, h := range []string{"X-Forwarded-For", "Proxy-Client-IP", "WL-Proxy-Client-IP"} {
		v := req.Header.Get(h)
		if v == "" || strings.EqualFold(v, "unknown") {
			continue
		}
		// X-Forwarded-For 可能是逗号分隔的链路，第一个是真实客户端
		if i := strings.IndexByte(v, ','); i >= 0 {
			v = v[:i]
		}
		return strings.TrimSpace(v)
	}
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}
