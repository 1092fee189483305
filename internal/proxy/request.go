package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/offline-edge/offline-edge/internal/cache"
	"github.com/offline-edge/offline-edge/internal/logging"
)

// DestinationImage 对应 Sec-Fetch-Dest: image。
const DestinationImage = "image"

// Request 是被拦截请求的只读视图，URL 总是绝对地址。
type Request struct {
	ID          string
	Method      string
	URL         *url.URL
	Header      http.Header
	Body        []byte
	Mode        string
	Destination string
	ClientIP    string
}

// cacheable 报告请求能否读写缓存：命名空间只保存 GET 响应。
func (r *Request) cacheable() bool {
	return r.Method == http.MethodGet
}

// Source 标识一次响应的来源，写入 X-Offline-Edge-Source。
type Source string

const (
	SourceNetwork   Source = "network"
	SourceCache     Source = "cache"
	SourceFallback  Source = "fallback"
	SourceSynthetic Source = "synthetic"
)

// Result 是 handler 的输出；Response 永不为空。
type Result struct {
	Response *cache.Response
	Source   Source
}

// Fetcher 执行一次网络请求。只有传输层失败才返回 error，任何 HTTP 状态码都算成功。
type Fetcher interface {
	Fetch(ctx context.Context, req *Request) (*cache.Response, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, req *Request) (*cache.Response, error)

// Fetch implements Fetcher.
func (f FetcherFunc) Fetch(ctx context.Context, req *Request) (*cache.Response, error) {
	return f(ctx, req)
}

// Keys 是固定的绝对缓存键。
type Keys struct {
	Root         string
	Offline      string
	DefaultImage string
}

// Env 汇集一次请求可借用的依赖。handler 本身不持有状态。
type Env struct {
	Manager *cache.Manager
	Writer  cache.Writer
	Fetcher Fetcher
	Keys    Keys
	Logger  *logrus.Logger
}

func (e *Env) logger() *logrus.Logger {
	if e.Logger == nil {
		return logging.Discard()
	}
	return e.Logger
}

func (e *Env) fetch(ctx context.Context, req *Request) (*cache.Response, error) {
	resp, err := e.Fetcher.Fetch(ctx, req)
	if err == nil && resp == nil {
		err = errors.New("fetcher returned no response")
	}
	if err != nil {
		e.logger().WithFields(logrus.Fields{
			"action":     "fetch",
			"method":     req.Method,
			"url":        req.URL.String(),
			"request_id": req.ID,
		}).WithError(err).Info("fetch_failed")
		return nil, err
	}
	return resp, nil
}

// matchStatic 在静态命名空间中查找 key；未命中或存储错误都返回 nil。
func (e *Env) matchStatic(ctx context.Context, key string) *cache.Response {
	ns, err := e.Manager.Static(ctx)
	if err != nil {
		e.logNamespaceError(e.Manager.StaticName(), key, err)
		return nil
	}
	return e.match(ctx, ns, key)
}

func (e *Env) matchRuntime(ctx context.Context, key string) *cache.Response {
	ns, err := e.Manager.Runtime(ctx)
	if err != nil {
		e.logNamespaceError(e.Manager.RuntimeName(), key, err)
		return nil
	}
	return e.match(ctx, ns, key)
}

func (e *Env) match(ctx context.Context, ns cache.Namespace, key string) *cache.Response {
	if key == "" {
		return nil
	}
	resp, err := ns.Match(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrNotFound) {
			e.logNamespaceError(ns.Name(), key, err)
		}
		return nil
	}
	return resp
}

func (e *Env) putStatic(ctx context.Context, key string, resp *cache.Response) {
	ns, err := e.Manager.Static(ctx)
	if err != nil {
		e.logNamespaceError(e.Manager.StaticName(), key, err)
		return
	}
	e.Writer.Put(ctx, ns, key, resp)
}

func (e *Env) putRuntime(ctx context.Context, key string, resp *cache.Response) {
	ns, err := e.Manager.Runtime(ctx)
	if err != nil {
		e.logNamespaceError(e.Manager.RuntimeName(), key, err)
		return
	}
	e.Writer.Put(ctx, ns, key, resp)
}

func (e *Env) logNamespaceError(namespace, key string, err error) {
	fields := logging.NamespaceFields("cache_lookup", namespace)
	fields["key"] = key
	e.logger().WithFields(fields).WithError(err).Warn("cache_unavailable")
}

// offlineDocument 依次尝试离线页缓存与合成 503。
func (e *Env) offlineDocument(ctx context.Context) Result {
	if cached := e.matchStatic(ctx, e.Keys.Offline); cached != nil {
		return Result{Response: cached, Source: SourceFallback}
	}
	return Result{Response: OfflineDocument(), Source: SourceSynthetic}
}

// FullURLKey 是静态命名空间使用的键：完整 URL（含查询串）。
func FullURLKey(u *url.URL) string {
	return u.String()
}

// PathOnlyKey 去掉查询串与片段，运行时命名空间以此为键。
func PathOnlyKey(u *url.URL) string {
	stripped := *u
	stripped.RawQuery = ""
	stripped.ForceQuery = false
	stripped.Fragment = ""
	stripped.RawFragment = ""
	return stripped.String()
}
