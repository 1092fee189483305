package proxy

import (
	"context"

	"github.com/offline-edge/offline-edge/internal/strategy"
)

func init() {
	strategy.MustRegister(strategy.Descriptor{
		Class:       strategy.StaticAsset,
		Description: "静态资源与字体：缓存优先，未命中时回源并写入",
		Order:       strategy.OrderCacheFirst,
		Namespace:   "static",
		KeyMode:     strategy.KeyFullURL,
		Fallbacks:   []string{"default-image (image only)", "offline", "synthetic-503"},
	})
}

// StaticHandler 命中缓存时直接返回，不发起任何网络请求。
// 只有 GET 读写缓存；其他方法直接回源，失败时走离线兜底。
var StaticHandler Handler = HandlerFunc(serveStatic)

func serveStatic(ctx context.Context, req *Request, env *Env) Result {
	key := FullURLKey(req.URL)
	cacheable := req.cacheable()
	if cacheable {
		if cached := env.matchStatic(ctx, key); cached != nil {
			return Result{Response: cached, Source: SourceCache}
		}
	}

	resp, err := env.fetch(ctx, req)
	if err == nil {
		if cacheable {
			env.putStatic(ctx, key, resp)
		}
		return Result{Response: resp, Source: SourceNetwork}
	}

	if req.Destination == DestinationImage {
		if cached := env.matchStatic(ctx, env.Keys.DefaultImage); cached != nil {
			return Result{Response: cached, Source: SourceFallback}
		}
	}
	return env.offlineDocument(ctx)
}
