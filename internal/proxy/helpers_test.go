package proxy

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"

	"github.com/offline-edge/offline-edge/internal/cache"
)

const testOrigin = "http://app.local"

var errOffline = errors.New("dial tcp: connection refused")

// fakeFetcher 记录调用次数；online 为 false 时模拟传输失败。
type fakeFetcher struct {
	mu       sync.Mutex
	online   bool
	response *cache.Response
	calls    int
}

func (f *fakeFetcher) Fetch(ctx context.Context, req *Request) (*cache.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if !f.online {
		return nil, errOffline
	}
	return f.response.Clone(), nil
}

func (f *fakeFetcher) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// recordingStore 包装内存存储并统计读写次数。
type recordingStore struct {
	cache.Store
	failPuts bool

	mu      sync.Mutex
	matches int
	puts    int
}

func (s *recordingStore) Open(ctx context.Context, name string) (cache.Namespace, error) {
	ns, err := s.Store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &recordingNamespace{Namespace: ns, store: s}, nil
}

func (s *recordingStore) counts() (matches, puts int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.matches, s.puts
}

type recordingNamespace struct {
	cache.Namespace
	store *recordingStore
}

func (n *recordingNamespace) Match(ctx context.Context, key string) (*cache.Response, error) {
	n.store.mu.Lock()
	n.store.matches++
	n.store.mu.Unlock()
	return n.Namespace.Match(ctx, key)
}

func (n *recordingNamespace) Put(ctx context.Context, key string, resp *cache.Response) error {
	n.store.mu.Lock()
	n.store.puts++
	fail := n.store.failPuts
	n.store.mu.Unlock()
	if fail {
		return errors.New("quota exceeded")
	}
	return n.Namespace.Put(ctx, key, resp)
}

type testEnv struct {
	env     *Env
	store   *recordingStore
	fetcher *fakeFetcher
	manager *cache.Manager
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := &recordingStore{Store: cache.NewMemoryStore()}
	manager := cache.NewManager(store, "v1.0.3")
	fetcher := &fakeFetcher{online: true, response: textResponse(http.StatusOK, "text/html", "<html>live</html>")}
	return &testEnv{
		env: &Env{
			Manager: manager,
			Writer:  cache.NewWriter(nil, nil),
			Fetcher: fetcher,
			Keys: Keys{
				Root:         testOrigin + "/",
				Offline:      testOrigin + "/static/offline.html",
				DefaultImage: testOrigin + "/static/default_chart.png",
			},
		},
		store:   store,
		fetcher: fetcher,
		manager: manager,
	}
}

func (te *testEnv) seedStatic(t *testing.T, key string, resp *cache.Response) {
	t.Helper()
	ns, err := te.manager.Static(context.Background())
	if err != nil {
		t.Fatalf("open static: %v", err)
	}
	if err := ns.Put(context.Background(), key, resp); err != nil {
		t.Fatalf("seed static: %v", err)
	}
}

func (te *testEnv) seedRuntime(t *testing.T, key string, resp *cache.Response) {
	t.Helper()
	ns, err := te.manager.Runtime(context.Background())
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	if err := ns.Put(context.Background(), key, resp); err != nil {
		t.Fatalf("seed runtime: %v", err)
	}
}

func (te *testEnv) lookupStatic(t *testing.T, key string) *cache.Response {
	t.Helper()
	ns, err := te.manager.Static(context.Background())
	if err != nil {
		t.Fatalf("open static: %v", err)
	}
	resp, err := ns.Match(context.Background(), key)
	if errors.Is(err, cache.ErrNotFound) {
		return nil
	}
	if err != nil {
		t.Fatalf("match static: %v", err)
	}
	return resp
}

func (te *testEnv) lookupRuntime(t *testing.T, key string) *cache.Response {
	t.Helper()
	ns, err := te.manager.Runtime(context.Background())
	if err != nil {
		t.Fatalf("open runtime: %v", err)
	}
	resp, err := ns.Match(context.Background(), key)
	if errors.Is(err, cache.ErrNotFound) {
		return nil
	}
	if err != nil {
		t.Fatalf("match runtime: %v", err)
	}
	return resp
}

func textResponse(status int, contentType, body string) *cache.Response {
	header := http.Header{}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}
	return &cache.Response{Status: status, Header: header, Body: []byte(body)}
}

func newRequest(t *testing.T, method, rawURL string) *Request {
	t.Helper()
	u, err := url.Parse(rawURL)
	if err != nil {
		t.Fatalf("parse %s: %v", rawURL, err)
	}
	return &Request{ID: "req-1", Method: method, URL: u, Header: http.Header{}}
}
