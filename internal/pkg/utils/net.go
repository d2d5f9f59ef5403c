// internal/pkg/utils/net.go
package utils

import (
	"net"
	"strings"

	"github.com/pkg/errors"
)

// GetOutboundIP 通过一次 UDP "拨号"获取本机对外的 IP，不会真正发包。
func GetOutboundIP() (string, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "", errors.Wrap(err, "dial udp")
	}
	defer conn.Close()

	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "", errors.New("unexpected local address type")
	}
	return addr.IP.String(), nil
}

// SplitAndTrim 拆分逗号分隔的配置项并去掉空白项。
func SplitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
