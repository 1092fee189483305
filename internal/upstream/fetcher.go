package upstream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/offline-edge/offline-edge/internal/cache"
	"github.com/offline-edge/offline-edge/internal/proxy"
)

// ErrUnroutable 表示请求的 origin 既不是应用本身也不在直连白名单中。
var ErrUnroutable = errors.New("origin not routable")

// HTTPFetcher 把应用 origin 的请求改写到 Upstream，字体等外部 origin 直连。
// 只有传输失败才返回 error，任何状态码都视为成功拉取。
type HTTPFetcher struct {
	client   *http.Client
	origin   string
	upstream *url.URL
	direct   map[string]struct{}
}

// NewHTTPFetcher 构造 fetcher。origin 与 direct 均为 scheme://host[:port] 形式。
func NewHTTPFetcher(client *http.Client, origin, upstreamURL string, direct []string) (*HTTPFetcher, error) {
	if client == nil {
		return nil, errors.New("http client is required")
	}
	originURL, err := url.Parse(origin)
	if err != nil || originURL.Host == "" {
		return nil, fmt.Errorf("invalid origin %q", origin)
	}
	target, err := url.Parse(upstreamURL)
	if err != nil || target.Host == "" {
		return nil, fmt.Errorf("invalid upstream %q", upstreamURL)
	}
	allowed := make(map[string]struct{}, len(direct))
	for _, raw := range direct {
		if u, err := url.Parse(raw); err == nil && u.Host != "" {
			allowed[originOf(u)] = struct{}{}
		}
	}
	return &HTTPFetcher{
		client:   client,
		origin:   originOf(originURL),
		upstream: target,
		direct:   allowed,
	}, nil
}

// Fetch 执行请求并完整读取响应体。
func (f *HTTPFetcher) Fetch(ctx context.Context, req *proxy.Request) (*cache.Response, error) {
	target, err := f.resolve(req.URL)
	if err != nil {
		return nil, err
	}
	upstreamReq, err := f.buildRequest(ctx, req, target)
	if err != nil {
		return nil, err
	}

	resp, err := f.client.Do(upstreamReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read upstream body: %w", err)
	}
	header := http.Header{}
	CopyHeaders(header, resp.Header)
	header.Del("Content-Length")
	return &cache.Response{
		Status: resp.StatusCode,
		Header: header,
		Body:   body,
	}, nil
}

func (f *HTTPFetcher) resolve(u *url.URL) (*url.URL, error) {
	if u == nil {
		return nil, ErrUnroutable
	}
	origin := originOf(u)
	if origin == f.origin {
		relative := &url.URL{Path: u.Path, RawPath: u.RawPath, RawQuery: u.RawQuery}
		if relative.Path == "" {
			relative.Path = "/"
		}
		return f.upstream.ResolveReference(relative), nil
	}
	if _, ok := f.direct[origin]; ok {
		return u, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnroutable, origin)
}

func (f *HTTPFetcher) buildRequest(ctx context.Context, req *proxy.Request, target *url.URL) (*http.Request, error) {
	var body io.Reader = http.NoBody
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	upstreamReq, err := http.NewRequestWithContext(ctx, req.Method, target.String(), body)
	if err != nil {
		return nil, err
	}

	CopyHeaders(upstreamReq.Header, req.Header)
	upstreamReq.Header.Del("Accept-Encoding")
	upstreamReq.Header.Del("Host")
	upstreamReq.Host = target.Host
	upstreamReq.Header.Set("X-Forwarded-Host", req.URL.Host)
	upstreamReq.Header.Set("X-Forwarded-Proto", req.URL.Scheme)
	if ip := req.ClientIP; ip != "" {
		if prior := upstreamReq.Header.Get("X-Forwarded-For"); prior != "" {
			upstreamReq.Header.Set("X-Forwarded-For", prior+", "+ip)
		} else {
			upstreamReq.Header.Set("X-Forwarded-For", ip)
		}
	}
	return upstreamReq, nil
}

func originOf(u *url.URL) string {
	host := strings.ToLower(u.Host)
	scheme := strings.ToLower(u.Scheme)
	switch {
	case scheme == "http" && strings.HasSuffix(host, ":80"):
		host = strings.TrimSuffix(host, ":80")
	case scheme == "https" && strings.HasSuffix(host, ":443"):
		host = strings.TrimSuffix(host, ":443")
	}
	return scheme + "://" + host
}
