package proxy

import (
	"context"
	"strings"

	"github.com/offline-edge/offline-edge/internal/cache"
	"github.com/offline-edge/offline-edge/internal/strategy"
)

func init() {
	strategy.MustRegister(strategy.Descriptor{
		Class:       strategy.APIGet,
		Description: "API GET：优先网络，仅缓存 2xx JSON，离线时返回旧数据或空载荷",
		Order:       strategy.OrderNetworkFirst,
		Namespace:   "runtime",
		KeyMode:     strategy.KeyPathOnly,
		Fallbacks:   []string{"runtime-entry", "offline-json"},
	})
}

// APIHandler 实现 API GET 策略。非 2xx 或非 JSON 的响应原样返回且不缓存；
// 离线时返回的缓存不做新鲜度检查。
var APIHandler Handler = HandlerFunc(serveAPI)

func serveAPI(ctx context.Context, req *Request, env *Env) Result {
	key := PathOnlyKey(req.URL)
	resp, err := env.fetch(ctx, req)
	if err == nil {
		if cacheableAPIResponse(resp) {
			env.putRuntime(ctx, key, resp)
		}
		return Result{Response: resp, Source: SourceNetwork}
	}
	if cached := env.matchRuntime(ctx, key); cached != nil {
		return Result{Response: cached, Source: SourceCache}
	}
	return Result{Response: OfflineAPI(), Source: SourceSynthetic}
}

func cacheableAPIResponse(resp *cache.Response) bool {
	return resp.OK() && strings.Contains(strings.ToLower(resp.ContentType()), "application/json")
}
