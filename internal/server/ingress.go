package server

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"

	"github.com/offline-edge/offline-edge/internal/cache"
	"github.com/offline-edge/offline-edge/internal/logging"
	"github.com/offline-edge/offline-edge/internal/metrics"
	"github.com/offline-edge/offline-edge/internal/proxy"
	"github.com/offline-edge/offline-edge/internal/strategy"
	"github.com/offline-edge/offline-edge/internal/upstream"
)

const (
	headerClass  = "X-Offline-Edge-Class"
	headerSource = "X-Offline-Edge-Source"
)

// ClientController reports whether the intermediary has claimed clients.
type ClientController interface {
	Controlling() bool
}

// IngressOptions 汇集 Ingress 的依赖。
type IngressOptions struct {
	Logger     *logrus.Logger
	Classifier *strategy.Classifier
	Dispatcher *proxy.Dispatcher
	Env        *proxy.Env
	Controller ClientController
	Metrics    *metrics.Recorder
}

// Ingress 实现 ProxyHandler：分类、分派并写回响应。
type Ingress struct {
	opts IngressOptions
}

// NewIngress 校验依赖并构造 Ingress。
func NewIngress(opts IngressOptions) (*Ingress, error) {
	if opts.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if opts.Classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if opts.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	if opts.Env == nil || opts.Env.Fetcher == nil || opts.Env.Manager == nil {
		return nil, errors.New("proxy env with fetcher and manager is required")
	}
	if opts.Controller == nil {
		return nil, errors.New("controller is required")
	}
	return &Ingress{opts: opts}, nil
}

// Handle 在未接管或 PassThrough 时原样转发，否则交给对应策略。
func (i *Ingress) Handle(c fiber.Ctx, route *OriginRoute) error {
	started := time.Now()
	req := buildRequest(c, route, RequestID(c))

	ctx := c.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	class := strategy.PassThrough
	if i.opts.Controller.Controlling() {
		class = i.opts.Classifier.Classify(req.Method, req.URL, req.Mode)
	}

	if !class.Intercepted() {
		return i.passThrough(ctx, c, req, started)
	}

	result := i.opts.Dispatcher.Dispatch(ctx, class, req, i.opts.Env)
	i.logResult(class, result.Source, req, result.Response.Status, started)
	return writeResult(c, class, result)
}

func (i *Ingress) passThrough(ctx context.Context, c fiber.Ctx, req *proxy.Request, started time.Time) error {
	resp, err := i.opts.Env.Fetcher.Fetch(ctx, req)
	if err != nil {
		i.logger(strategy.PassThrough, proxy.SourceNetwork, req).
			WithError(err).Warn("pass_through_failed")
		c.Set(headerClass, string(strategy.PassThrough))
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": "upstream_failed"})
	}
	result := proxy.Result{Response: resp, Source: proxy.SourceNetwork}
	i.logResult(strategy.PassThrough, result.Source, req, resp.Status, started)
	return writeResult(c, strategy.PassThrough, result)
}

func (i *Ingress) logger(class strategy.Class, source proxy.Source, req *proxy.Request) *logrus.Entry {
	fields := logging.RequestFields(string(class), string(source), req.Method, req.URL.Path, req.ID)
	fields["action"] = "proxy"
	return i.opts.Logger.WithFields(fields)
}

func (i *Ingress) logResult(class strategy.Class, source proxy.Source, req *proxy.Request, status int, started time.Time) {
	i.opts.Metrics.Request(string(class), string(source))
	i.logger(class, source, req).WithFields(logrus.Fields{
		"status":     status,
		"elapsed_ms": time.Since(started).Milliseconds(),
	}).Info("proxy_complete")
}

// buildRequest 把 fiber 请求还原为以 origin 为基准的绝对 URL 请求。
func buildRequest(c fiber.Ctx, route *OriginRoute, requestID string) *proxy.Request {
	uri := c.Request().URI()
	u := &url.URL{
		Scheme:   route.Origin.Scheme,
		Host:     route.Origin.Host,
		Path:     string(uri.Path()),
		RawQuery: string(uri.QueryString()),
	}
	header := fiberHeadersAsHTTP(c)
	return &proxy.Request{
		ID:          requestID,
		Method:      c.Method(),
		URL:         u,
		Header:      header,
		Body:        append([]byte(nil), c.Body()...),
		Mode:        header.Get("Sec-Fetch-Mode"),
		Destination: header.Get("Sec-Fetch-Dest"),
		ClientIP:    c.IP(),
	}
}

func fiberHeadersAsHTTP(c fiber.Ctx) http.Header {
	header := http.Header{}
	c.Request().Header.VisitAll(func(key, value []byte) {
		header.Add(string(key), string(value))
	})
	return header
}

func writeResult(c fiber.Ctx, class strategy.Class, result proxy.Result) error {
	resp := result.Response
	copyResponseHeaders(c, resp)
	c.Set(headerClass, string(class))
	c.Set(headerSource, string(result.Source))
	c.Status(resp.Status)
	if c.Method() == http.MethodHead {
		return nil
	}
	return c.Send(resp.Body)
}

func copyResponseHeaders(c fiber.Ctx, resp *cache.Response) {
	for key, values := range resp.Header {
		if upstream.IsHopByHopHeader(key) || http.CanonicalHeaderKey(key) == "Content-Length" {
			continue
		}
		for _, value := range values {
			c.Response().Header.Add(key, value)
		}
	}
}
