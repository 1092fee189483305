package routes

import (
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/offline-edge/offline-edge/internal/cache"
	"github.com/offline-edge/offline-edge/internal/lifecycle"
	"github.com/offline-edge/offline-edge/internal/server"
	"github.com/offline-edge/offline-edge/internal/strategy"
)

// DiagnosticsOptions 提供诊断接口所需的只读依赖。
type DiagnosticsOptions struct {
	Version    string
	Manager    *cache.Manager
	Controller *lifecycle.Controller
	Registry   *server.OriginRegistry
	Gatherer   prometheus.Gatherer
}

// RegisterDiagnostics 暴露 /-/ 下的健康检查、状态、策略与指标接口。
func RegisterDiagnostics(app *fiber.App, opts DiagnosticsOptions) {
	if app == nil {
		return
	}

	app.Get("/-/healthz", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok"})
	})

	if opts.Manager != nil && opts.Controller != nil {
		app.Get("/-/status", func(c fiber.Ctx) error {
			names, err := opts.Manager.Names(c.Context())
			if err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "namespace_list_failed"})
			}
			return c.JSON(statusPayload{
				Version:     opts.Version,
				CacheTag:    opts.Manager.Version(),
				State:       opts.Controller.State().String(),
				Controlling: opts.Controller.Controlling(),
				Static:      opts.Manager.StaticName(),
				Runtime:     opts.Manager.RuntimeName(),
				Namespaces:  nonNil(names),
				Origins:     encodeOrigins(opts.Registry.List()),
			})
		})
	}

	app.Get("/-/strategies", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"strategies": encodeDescriptors(strategy.List())})
	})

	app.Get("/-/strategies/:class", func(c fiber.Ctx) error {
		d, ok := strategy.Resolve(strategy.Class(c.Params("class")))
		if !ok {
			return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": "strategy_not_found"})
		}
		return c.JSON(encodeDescriptor(d))
	})

	if opts.Gatherer != nil {
		app.Get("/-/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})))
	}
}

type statusPayload struct {
	Version     string          `json:"version"`
	CacheTag    string          `json:"cache_version"`
	State       string          `json:"state"`
	Controlling bool            `json:"controlling"`
	Static      string          `json:"static_namespace"`
	Runtime     string          `json:"runtime_namespace"`
	Namespaces  []string        `json:"namespaces"`
	Origins     []originPayload `json:"origins"`
}

type originPayload struct {
	Host   string `json:"host"`
	Origin string `json:"origin"`
	App    bool   `json:"app"`
}

type descriptorPayload struct {
	Class       string   `json:"class"`
	Description string   `json:"description"`
	Order       string   `json:"order"`
	Namespace   string   `json:"namespace"`
	KeyMode     string   `json:"key_mode"`
	Fallbacks   []string `json:"fallbacks"`
}

func encodeDescriptors(list []strategy.Descriptor) []descriptorPayload {
	result := make([]descriptorPayload, 0, len(list))
	for _, d := range list {
		result = append(result, encodeDescriptor(d))
	}
	return result
}

func encodeDescriptor(d strategy.Descriptor) descriptorPayload {
	return descriptorPayload{
		Class:       string(d.Class),
		Description: d.Description,
		Order:       string(d.Order),
		Namespace:   d.Namespace,
		KeyMode:     string(d.KeyMode),
		Fallbacks:   nonNil(d.Fallbacks),
	}
}

func encodeOrigins(routes []server.OriginRoute) []originPayload {
	result := make([]originPayload, 0, len(routes))
	for _, route := range routes {
		result = append(result, originPayload{
			Host:   route.Host,
			Origin: route.Origin.String(),
			App:    route.App,
		})
	}
	return result
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
