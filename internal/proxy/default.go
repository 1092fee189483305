package proxy

import (
	"context"

	"github.com/offline-edge/offline-edge/internal/strategy"
)

func init() {
	strategy.MustRegister(strategy.Descriptor{
		Class:       strategy.Default,
		Description: "其他请求：优先网络，失败时查静态缓存",
		Order:       strategy.OrderNetworkFirst,
		Namespace:   "static",
		KeyMode:     strategy.KeyFullURL,
		Fallbacks:   []string{"static-entry", "offline", "synthetic-503"},
	})
}

// DefaultHandler 不写缓存，只在 GET 请求网络失败时读取静态命名空间。
var DefaultHandler Handler = HandlerFunc(serveDefault)

func serveDefault(ctx context.Context, req *Request, env *Env) Result {
	resp, err := env.fetch(ctx, req)
	if err == nil {
		return Result{Response: resp, Source: SourceNetwork}
	}
	if req.cacheable() {
		if cached := env.matchStatic(ctx, FullURLKey(req.URL)); cached != nil {
			return Result{Response: cached, Source: SourceCache}
		}
	}
	return env.offlineDocument(ctx)
}
