// Package lifecycle 负责中间层自身的两次状态迁移：激活（预缓存 + 立即接管）
// 与切换（清理旧版本命名空间 + 接管已有客户端）。
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/offline-edge/offline-edge/internal/cache"
	"github.com/offline-edge/offline-edge/internal/logging"
	"github.com/offline-edge/offline-edge/internal/metrics"
	"github.com/offline-edge/offline-edge/internal/proxy"
)

// State 是控制器的生命周期阶段。
type State int32

const (
	StateInactive State = iota
	StateInstalled
	StateActive
)

func (s State) String() string {
	switch s {
	case StateInstalled:
		return "installed"
	case StateActive:
		return "active"
	default:
		return "inactive"
	}
}

// ErrPrecache 表示预缓存失败，激活整体放弃，未写入任何条目。
var ErrPrecache = errors.New("precache failed")

// Options 描述控制器的依赖。
type Options struct {
	Manager  *cache.Manager
	Fetcher  proxy.Fetcher
	Manifest []string // 绝对 URL
	Logger   *logrus.Logger
	Metrics  *metrics.Recorder

	// MaxRetries 与 InitialBackoff 控制一轮激活内的指数退避重试。
	MaxRetries     int
	InitialBackoff time.Duration
	// RetryCooldown 是一轮失败后到下一轮开始的等待时间，<=0 时使用 1 分钟。
	RetryCooldown time.Duration
	// Concurrency 限制预缓存并发数，<=0 表示不限制。
	Concurrency int
}

// Controller 驱动 Inactive → Installed → Active。
type Controller struct {
	opts   Options
	logger *logrus.Logger
	state  atomic.Int32

	mu sync.Mutex // 串行化 Activate / Cutover
}

// NewController 校验依赖并返回处于 Inactive 的控制器。
func NewController(opts Options) (*Controller, error) {
	if opts.Manager == nil {
		return nil, errors.New("namespace manager is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("fetcher is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	return &Controller{opts: opts, logger: logger}, nil
}

// State 返回当前阶段。
func (c *Controller) State() State {
	return State(c.state.Load())
}

// Controlling 在 Cutover 完成后为 true；此前所有请求都应原样转发。
func (c *Controller) Controlling() bool {
	return c.State() == StateActive
}

// Activate 并发拉取预缓存清单，任一条目传输失败或非 2xx 即整体失败且不写入；
// 全部成功后一次性写入静态命名空间，并立即进入 Installed（skip waiting）。
func (c *Controller) Activate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	started := time.Now()
	fields := logging.NamespaceFields("activate", c.opts.Manager.StaticName())
	fields["entries"] = len(c.opts.Manifest)

	responses, err := c.fetchManifest(ctx)
	if err != nil {
		c.opts.Metrics.Activation(false)
		c.logger.WithFields(fields).WithError(err).Warn("precache_failed")
		return err
	}

	ns, err := c.opts.Manager.Static(ctx)
	if err != nil {
		c.opts.Metrics.Activation(false)
		return fmt.Errorf("%w: open %s: %v", ErrPrecache, c.opts.Manager.StaticName(), err)
	}
	for i, key := range c.opts.Manifest {
		if err := ns.Put(ctx, key, responses[i]); err != nil {
			c.opts.Metrics.Activation(false)
			c.logger.WithFields(fields).WithError(err).Warn("precache_store_failed")
			return fmt.Errorf("%w: store %s: %v", ErrPrecache, key, err)
		}
	}

	c.opts.Metrics.Precached(len(responses))
	c.opts.Metrics.Activation(true)
	c.state.CompareAndSwap(int32(StateInactive), int32(StateInstalled))
	fields["elapsed_ms"] = time.Since(started).Milliseconds()
	c.logger.WithFields(fields).Info("precache_complete")
	return nil
}

func (c *Controller) fetchManifest(ctx context.Context) ([]*cache.Response, error) {
	responses := make([]*cache.Response, len(c.opts.Manifest))
	g, gctx := errgroup.WithContext(ctx)
	if c.opts.Concurrency > 0 {
		g.SetLimit(c.opts.Concurrency)
	}
	for i, entry := range c.opts.Manifest {
		g.Go(func() error {
			u, err := url.Parse(entry)
			if err != nil {
				return fmt.Errorf("%w: parse %s: %v", ErrPrecache, entry, err)
			}
			resp, err := c.opts.Fetcher.Fetch(gctx, &proxy.Request{
				Method: http.MethodGet,
				URL:    u,
				Header: http.Header{},
			})
			if err != nil {
				return fmt.Errorf("%w: fetch %s: %v", ErrPrecache, entry, err)
			}
			if !resp.OK() {
				return fmt.Errorf("%w: fetch %s: status %d", ErrPrecache, entry, resp.Status)
			}
			responses[i] = resp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return responses, nil
}

// Cutover 删除所有非当前版本的命名空间，每个删除相互独立：单个失败只记录，
// 不阻止其他删除，也不阻止接管。返回所有删除错误的合并结果。
func (c *Controller) Cutover(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	names, listErr := c.opts.Manager.Names(ctx)
	if listErr != nil {
		c.logger.WithFields(logging.NamespaceFields("cutover", "")).WithError(listErr).Warn("namespace_list_failed")
		listErr = fmt.Errorf("list namespaces: %w", listErr)
	}

	var (
		wg   sync.WaitGroup
		errs = make([]error, len(names))
	)
	for i, name := range names {
		if c.opts.Manager.IsCurrent(name) {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = c.evict(ctx, name)
		}()
	}
	wg.Wait()

	c.state.Store(int32(StateActive))
	c.logger.WithFields(logging.NamespaceFields("cutover", c.opts.Manager.StaticName())).Info("clients_claimed")
	return errors.Join(append(errs, listErr)...)
}

func (c *Controller) evict(ctx context.Context, name string) error {
	fields := logging.NamespaceFields("evict", name)
	if _, err := c.opts.Manager.Delete(ctx, name); err != nil {
		c.opts.Metrics.Eviction(false)
		c.logger.WithFields(fields).WithError(err).Warn("namespace_delete_failed")
		return fmt.Errorf("delete %s: %w", name, err)
	}
	c.opts.Metrics.Eviction(true)
	c.logger.WithFields(fields).Info("namespace_deleted")
	return nil
}

// Start 以轮为单位激活：每轮按指数退避重试 Activate，整轮失败后等待
// RetryCooldown 再开始下一轮，直到成功或 ctx 取消。激活成功后执行 Cutover，
// Cutover 的删除错误只记录，不会令 Start 失败。只有 ctx 取消时才返回错误。
func (c *Controller) Start(ctx context.Context) error {
	cooldown := c.opts.RetryCooldown
	if cooldown <= 0 {
		cooldown = time.Minute
	}

	for round := 1; ; round++ {
		err := c.activateRound(ctx, round, cooldown)
		if err == nil {
			break
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("activation stopped: %w", ctxErr)
		}
		c.logger.WithFields(logrus.Fields{
			"action":      "activate",
			"round":       round,
			"cooldown_ms": cooldown.Milliseconds(),
		}).WithError(err).Error("activation_round_failed")

		timer := time.NewTimer(cooldown)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("activation stopped: %w", ctx.Err())
		case <-timer.C:
		}
	}

	if err := c.Cutover(ctx); err != nil {
		c.logger.WithFields(logging.NamespaceFields("cutover", "")).WithError(err).Warn("cutover_partial")
	}
	return nil
}

// activateRound 执行一轮退避重试，单次间隔不超过 cooldown。
func (c *Controller) activateRound(ctx context.Context, round int, cooldown time.Duration) error {
	b := backoff.NewExponentialBackOff()
	if c.opts.InitialBackoff > 0 {
		b.InitialInterval = c.opts.InitialBackoff
	}
	if cooldown < b.MaxInterval {
		b.MaxInterval = cooldown
	}
	maxTries := uint(1)
	if c.opts.MaxRetries > 0 {
		maxTries += uint(c.opts.MaxRetries)
	}

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := c.Activate(ctx)
		if err != nil {
			c.logger.WithFields(logrus.Fields{
				"action":  "activate",
				"round":   round,
				"attempt": attempt,
			}).WithError(err).Warn("activation_attempt_failed")
		}
		return struct{}{}, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(maxTries))
	if err != nil {
		return fmt.Errorf("activate after %d attempts: %w", attempt, err)
	}
	return nil
}
