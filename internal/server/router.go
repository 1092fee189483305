package server

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/recover"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// DiagnosticsPrefix 是诊断路由的路径前缀。只对未映射到任何来源的 Host 生效，
// 已映射来源下的同名路径照常转发给 ProxyHandler。
const DiagnosticsPrefix = "/-/"

// ProxyHandler 处理已解析出 OriginRoute 的拦截请求，测试中可替换为假实现。
type ProxyHandler interface {
	Handle(fiber.Ctx, *OriginRoute) error
}

// ProxyHandlerFunc 把函数适配为 ProxyHandler。
type ProxyHandlerFunc func(fiber.Ctx, *OriginRoute) error

func (f ProxyHandlerFunc) Handle(c fiber.Ctx, route *OriginRoute) error {
	return f(c, route)
}

// AppOptions 描述监听端口上的 Fiber 应用。
type AppOptions struct {
	Logger     *logrus.Logger
	Registry   *OriginRegistry
	Proxy      ProxyHandler
	ListenPort int
}

const contextKeyRequestID = "_offline_edge_request_id"

// NewApp 构建带 Host 分流的 Fiber 应用。诊断路由由 routes 包随后注册，
// 只有 Host 未映射且路径位于 DiagnosticsPrefix 下的请求才会到达它们。
func NewApp(opts AppOptions) (*fiber.App, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Registry == nil {
		return nil, errors.New("origin registry is required")
	}
	if opts.Proxy == nil {
		return nil, errors.New("proxy handler is required")
	}
	if opts.ListenPort <= 0 {
		return nil, fmt.Errorf("invalid listen port: %d", opts.ListenPort)
	}

	app := fiber.New(fiber.Config{
		CaseSensitive: true,
	})

	app.Use(recover.New())
	app.Use(dispatchByHost(opts))

	return app, nil
}

// dispatchByHost 为每个请求分配 ID，再按 Host 在三条出路中选一条：
// 已映射来源交给 ProxyHandler；未映射 Host 的诊断路径交给后续路由；
// 其余返回 host_unmapped。
func dispatchByHost(opts AppOptions) fiber.Handler {
	return func(c fiber.Ctx) error {
		reqID := uuid.NewString()
		c.Locals(contextKeyRequestID, reqID)
		c.Set("X-Request-ID", reqID)

		rawHost := strings.TrimSpace(hostHeader(c))
		if route, ok := opts.Registry.Lookup(rawHost); ok {
			return opts.Proxy.Handle(c, route)
		}
		if strings.HasPrefix(string(c.Request().URI().Path()), DiagnosticsPrefix) {
			return c.Next()
		}

		opts.Logger.WithFields(logrus.Fields{
			"action":     "host_lookup",
			"host":       rawHost,
			"port":       opts.ListenPort,
			"request_id": reqID,
		}).Warn("host unmapped")
		if rawHost != "" {
			c.Set("X-Offline-Edge-Host", rawHost)
		}
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "host_unmapped",
		})
	}
}

func hostHeader(c fiber.Ctx) string {
	if raw := c.Request().Header.Peek(fiber.HeaderHost); len(raw) > 0 {
		return string(raw)
	}
	return c.Hostname()
}

// RequestID 返回 dispatchByHost 写入的请求 ID。
func RequestID(c fiber.Ctx) string {
	if reqID, ok := c.Locals(contextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}
