package lifecycle

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/offline-edge/offline-edge/internal/cache"
	"github.com/offline-edge/offline-edge/internal/metrics"
	"github.com/offline-edge/offline-edge/internal/proxy"
)

const origin = "http://app.local"

var manifest = []string{origin + "/", origin + "/static/offline.html", origin + "/static/app.js"}

func okFetcher(calls *atomic.Int32) proxy.Fetcher {
	return proxy.FetcherFunc(func(ctx context.Context, req *proxy.Request) (*cache.Response, error) {
		if calls != nil {
			calls.Add(1)
		}
		return &cache.Response{Status: http.StatusOK, Header: http.Header{}, Body: []byte("body:" + req.URL.Path)}, nil
	})
}

// deleteFailingStore 对指定命名空间的删除返回错误。
type deleteFailingStore struct {
	cache.Store
	failOn string
}

func (s *deleteFailingStore) Delete(ctx context.Context, name string) (bool, error) {
	if name == s.failOn {
		return false, errors.New("permission denied")
	}
	return s.Store.Delete(ctx, name)
}

func newController(t *testing.T, store cache.Store, fetcher proxy.Fetcher) (*Controller, *cache.Manager) {
	t.Helper()
	manager := cache.NewManager(store, "v1.0.3")
	c, err := NewController(Options{
		Manager:        manager,
		Fetcher:        fetcher,
		Manifest:       manifest,
		MaxRetries:     2,
		InitialBackoff: time.Millisecond,
		RetryCooldown:  time.Millisecond,
	})
	if err != nil {
		t.Fatalf("new controller: %v", err)
	}
	return c, manager
}

func TestActivatePrecachesManifest(t *testing.T) {
	var calls atomic.Int32
	c, manager := newController(t, cache.NewMemoryStore(), okFetcher(&calls))

	if err := c.Activate(context.Background()); err != nil {
		t.Fatalf("activate: %v", err)
	}
	if c.State() != StateInstalled || c.Controlling() {
		t.Fatalf("expected installed and not controlling, got %s", c.State())
	}
	if int(calls.Load()) != len(manifest) {
		t.Fatalf("expected %d fetches, got %d", len(manifest), calls.Load())
	}
	ns, _ := manager.Static(context.Background())
	for _, key := range manifest {
		if _, err := ns.Match(context.Background(), key); err != nil {
			t.Fatalf("missing precached %s: %v", key, err)
		}
	}
}

func TestActivateIsAllOrNothing(t *testing.T) {
	testCases := []struct {
		name string
		fail func(req *proxy.Request) (*cache.Response, error)
	}{
		{
			name: "transport error",
			fail: func(*proxy.Request) (*cache.Response, error) { return nil, errors.New("connection refused") },
		},
		{
			name: "non-ok status",
			fail: func(*proxy.Request) (*cache.Response, error) {
				return &cache.Response{Status: http.StatusNotFound}, nil
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			fetcher := proxy.FetcherFunc(func(ctx context.Context, req *proxy.Request) (*cache.Response, error) {
				if strings.HasSuffix(req.URL.Path, "app.js") {
					return tc.fail(req)
				}
				return &cache.Response{Status: http.StatusOK, Body: []byte("ok")}, nil
			})
			c, manager := newController(t, cache.NewMemoryStore(), fetcher)

			err := c.Activate(context.Background())
			if !errors.Is(err, ErrPrecache) {
				t.Fatalf("expected ErrPrecache, got %v", err)
			}
			if c.State() != StateInactive {
				t.Fatalf("failed activation must leave controller inactive, got %s", c.State())
			}
			ns, _ := manager.Static(context.Background())
			for _, key := range manifest {
				if _, err := ns.Match(context.Background(), key); !errors.Is(err, cache.ErrNotFound) {
					t.Fatalf("expected no entries after failed precache, %s returned %v", key, err)
				}
			}
		})
	}
}

func TestCutoverKeepsOnlyCurrentNamespaces(t *testing.T) {
	store := cache.NewMemoryStore()
	ctx := context.Background()
	for _, name := range []string{"static-v1.0.2", "runtime-v1.0.2", "static-v0.9", "static-v1.0.3", "runtime-v1.0.3"} {
		if _, err := store.Open(ctx, name); err != nil {
			t.Fatalf("open %s: %v", name, err)
		}
	}
	c, _ := newController(t, store, okFetcher(nil))

	if err := c.Cutover(ctx); err != nil {
		t.Fatalf("cutover: %v", err)
	}
	names, _ := store.Names(ctx)
	if len(names) != 2 || names[0] != "runtime-v1.0.3" || names[1] != "static-v1.0.3" {
		t.Fatalf("unexpected namespaces after cutover: %v", names)
	}
	if !c.Controlling() {
		t.Fatalf("expected controller to claim clients")
	}
}

func TestCutoverIsolatesDeletionFailures(t *testing.T) {
	base := cache.NewMemoryStore()
	ctx := context.Background()
	for _, name := range []string{"static-old", "runtime-old", "static-v1.0.3"} {
		_, _ = base.Open(ctx, name)
	}
	store := &deleteFailingStore{Store: base, failOn: "static-old"}

	reg := prometheus.NewRegistry()
	rec, err := metrics.NewRecorder(reg)
	if err != nil {
		t.Fatalf("recorder: %v", err)
	}
	manager := cache.NewManager(store, "v1.0.3")
	c, _ := NewController(Options{Manager: manager, Fetcher: okFetcher(nil), Metrics: rec})

	err = c.Cutover(ctx)
	if err == nil || !strings.Contains(err.Error(), "static-old") {
		t.Fatalf("expected joined deletion error, got %v", err)
	}
	names, _ := base.Names(ctx)
	for _, name := range names {
		if name == "runtime-old" {
			t.Fatalf("runtime-old should be deleted despite sibling failure")
		}
	}
	if !c.Controlling() {
		t.Fatalf("deletion failure must not block claiming")
	}
	if got, err := testutil.GatherAndCount(reg, "offline_edge_namespace_evictions_total"); err != nil || got != 2 {
		t.Fatalf("expected ok and failed eviction series, got %d", got)
	}
}

func TestStartRetriesThenCutsOver(t *testing.T) {
	var attempts atomic.Int32
	fetcher := proxy.FetcherFunc(func(ctx context.Context, req *proxy.Request) (*cache.Response, error) {
		if req.URL.Path == "/" && attempts.Add(1) < 2 {
			return nil, errors.New("connection refused")
		}
		return &cache.Response{Status: http.StatusOK, Body: []byte("ok")}, nil
	})
	store := cache.NewMemoryStore()
	_, _ = store.Open(context.Background(), "static-v1.0.2")
	c, _ := newController(t, store, fetcher)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	if attempts.Load() != 2 {
		t.Fatalf("expected 2 activation attempts, got %d", attempts.Load())
	}
	if !c.Controlling() {
		t.Fatalf("expected active after start, got %s", c.State())
	}
	names, _ := store.Names(context.Background())
	for _, name := range names {
		if name == "static-v1.0.2" {
			t.Fatalf("stale namespace survived start")
		}
	}
}

func TestStartRetriesAfterFailedRound(t *testing.T) {
	var attempts atomic.Int32
	fetcher := proxy.FetcherFunc(func(ctx context.Context, req *proxy.Request) (*cache.Response, error) {
		// 每轮 1 次尝试 + 2 次重试；前两轮全部失败，第三轮首次成功。
		if req.URL.Path == "/" && attempts.Add(1) <= 6 {
			return nil, errors.New("connection refused")
		}
		return &cache.Response{Status: http.StatusOK, Body: []byte("ok")}, nil
	})
	c, _ := newController(t, cache.NewMemoryStore(), fetcher)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	if attempts.Load() != 7 {
		t.Fatalf("expected activation on the 7th attempt, got %d", attempts.Load())
	}
	if !c.Controlling() {
		t.Fatalf("expected active after later round, got %s", c.State())
	}
}

func TestStartStopsWhenContextDone(t *testing.T) {
	var calls atomic.Int32
	fetcher := proxy.FetcherFunc(func(ctx context.Context, req *proxy.Request) (*cache.Response, error) {
		if req.URL.Path == "/" {
			calls.Add(1)
		}
		return nil, errors.New("connection refused")
	})
	c, _ := newController(t, cache.NewMemoryStore(), fetcher)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	err := c.Start(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if calls.Load() <= 3 {
		t.Fatalf("expected retries beyond the first round, got %d", calls.Load())
	}
	if c.State() != StateInactive {
		t.Fatalf("expected inactive, got %s", c.State())
	}
}

func TestNewControllerValidates(t *testing.T) {
	if _, err := NewController(Options{Fetcher: okFetcher(nil)}); err == nil {
		t.Fatalf("expected error without manager")
	}
	if _, err := NewController(Options{Manager: cache.NewManager(cache.NewMemoryStore(), "v1")}); err == nil {
		t.Fatalf("expected error without fetcher")
	}
}
