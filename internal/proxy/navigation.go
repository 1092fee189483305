package proxy

import (
	"context"

	"github.com/offline-edge/offline-edge/internal/strategy"
)

func init() {
	strategy.MustRegister(strategy.Descriptor{
		Class:       strategy.Navigation,
		Description: "页面导航：优先网络，成功后刷新根文档缓存",
		Order:       strategy.OrderNetworkFirst,
		Namespace:   "static",
		KeyMode:     strategy.KeyFixedRoot,
		Fallbacks:   []string{"root", "offline", "synthetic-503"},
	})
}

// NavigationHandler 先走网络；成功时把响应写入根文档键，失败时依次回退到
// 根文档、离线页与合成 503。
var NavigationHandler Handler = HandlerFunc(serveNavigation)

func serveNavigation(ctx context.Context, req *Request, env *Env) Result {
	resp, err := env.fetch(ctx, req)
	if err == nil {
		env.putStatic(ctx, env.Keys.Root, resp)
		return Result{Response: resp, Source: SourceNetwork}
	}
	if cached := env.matchStatic(ctx, env.Keys.Root); cached != nil {
		return Result{Response: cached, Source: SourceCache}
	}
	return env.offlineDocument(ctx)
}
