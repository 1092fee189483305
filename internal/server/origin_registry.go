package server

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/offline-edge/offline-edge/internal/config"
)

// OriginRoute 描述一个可被拦截的 origin：应用自身或白名单中的字体站点。
type OriginRoute struct {
	// Origin 是 scheme://host[:port]，用于还原请求的绝对 URL。
	Origin *url.URL
	// Host 是归一化后的主机名（小写、去端口）。
	Host string
	// App 为 true 表示应用自身的 origin，否则为外部字体 origin。
	App bool
	// ListenPort 记录当前监听端口，方便日志输出。
	ListenPort int
}

// OriginRegistry 提供 Host/Host:port 到 OriginRoute 的查询能力。
type OriginRegistry struct {
	routes  map[string]*OriginRoute
	ordered []*OriginRoute
}

// NewOriginRegistry 根据配置构建 Host 映射；应用 origin 与字体 origin 主机名不得重复。
func NewOriginRegistry(cfg *config.Config) (*OriginRegistry, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	registry := &OriginRegistry{routes: make(map[string]*OriginRoute)}
	if err := registry.add(cfg.App.Origin, true, cfg.Global.ListenPort); err != nil {
		return nil, err
	}
	for _, font := range cfg.App.FontOrigins {
		if err := registry.add(font, false, cfg.Global.ListenPort); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

func (r *OriginRegistry) add(raw string, app bool, port int) error {
	parsed, err := url.Parse(strings.TrimRight(strings.TrimSpace(raw), "/"))
	if err != nil || parsed.Host == "" {
		return fmt.Errorf("invalid origin %q", raw)
	}
	host, _ := normalizeHost(parsed.Host)
	if host == "" {
		return fmt.Errorf("invalid origin %q", raw)
	}
	if _, exists := r.routes[host]; exists {
		return fmt.Errorf("duplicate host mapping detected for %s", host)
	}
	route := &OriginRoute{
		Origin:     &url.URL{Scheme: parsed.Scheme, Host: parsed.Host},
		Host:       host,
		App:        app,
		ListenPort: port,
	}
	r.routes[host] = route
	r.ordered = append(r.ordered, route)
	return nil
}

// Lookup 根据 Host 或 Host:port 查找 OriginRoute。
func (r *OriginRegistry) Lookup(host string) (*OriginRoute, bool) {
	if r == nil {
		return nil, false
	}
	normalizedHost, _ := normalizeHost(host)
	if normalizedHost == "" {
		return nil, false
	}
	route, ok := r.routes[normalizedHost]
	return route, ok
}

// List 返回按配置顺序排列的 OriginRoute 副本。
func (r *OriginRegistry) List() []OriginRoute {
	if r == nil || len(r.ordered) == 0 {
		return nil
	}
	result := make([]OriginRoute, len(r.ordered))
	for i, route := range r.ordered {
		result[i] = *route
	}
	return result
}

func normalizeHost(raw string) (string, int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", 0
	}

	host := raw
	port := 0

	if strings.Contains(raw, ":") {
		if h, p, err := net.SplitHostPort(raw); err == nil {
			host = h
			if parsedPort, err := strconv.Atoi(p); err == nil {
				port = parsedPort
			}
		} else if idx := strings.LastIndex(raw, ":"); idx > -1 && strings.Count(raw[idx+1:], ":") == 0 {
			if parsedPort, err := strconv.Atoi(raw[idx+1:]); err == nil {
				host = raw[:idx]
				port = parsedPort
			}
		}
	}

	host = strings.TrimSuffix(host, ".")
	host = strings.ToLower(host)
	return host, port
}
