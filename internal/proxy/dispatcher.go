package proxy

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/offline-edge/offline-edge/internal/logging"
	"github.com/offline-edge/offline-edge/internal/strategy"
)

// Dispatcher 根据分类选择 handler。handler 缺失或 panic 时返回合成 503，
// 调用方永远拿到一个响应。
type Dispatcher struct {
	logger   *logrus.Logger
	mu       sync.RWMutex
	handlers map[strategy.Class]Handler
}

// NewDispatcher 创建空的 Dispatcher；通常随后注册 DefaultRegistrations。
func NewDispatcher(logger *logrus.Logger) *Dispatcher {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Dispatcher{
		logger:   logger,
		handlers: make(map[strategy.Class]Handler),
	}
}

// NewDefaultDispatcher 返回已注册全部内置策略的 Dispatcher。
func NewDefaultDispatcher(logger *logrus.Logger) *Dispatcher {
	d := NewDispatcher(logger)
	for _, reg := range DefaultRegistrations() {
		d.MustRegister(reg)
	}
	return d
}

// Register 校验并注册一个 handler，同一分类只允许注册一次。
func (d *Dispatcher) Register(reg Registration) error {
	if err := reg.Validate(); err != nil {
		return err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, exists := d.handlers[reg.Class]; exists {
		return fmt.Errorf("%w: %s", ErrHandlerExists, reg.Class)
	}
	d.handlers[reg.Class] = reg.Handler
	return nil
}

// MustRegister panics when registration fails.
func (d *Dispatcher) MustRegister(reg Registration) {
	if err := d.Register(reg); err != nil {
		panic(err)
	}
}

// Dispatch 执行 class 对应的 handler。
func (d *Dispatcher) Dispatch(ctx context.Context, class strategy.Class, req *Request, env *Env) Result {
	handler := d.lookup(class)
	if handler == nil {
		d.logHandlerError(class, req, "strategy_handler_missing", nil)
		return Result{Response: OfflineDocument(), Source: SourceSynthetic}
	}
	return d.invoke(ctx, class, handler, req, env)
}

func (d *Dispatcher) invoke(ctx context.Context, class strategy.Class, handler Handler, req *Request, env *Env) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			d.logHandlerError(class, req, "strategy_handler_panic", fmt.Errorf("panic: %v", r))
			result = Result{Response: OfflineDocument(), Source: SourceSynthetic}
		}
	}()
	result = handler.Serve(ctx, req, env)
	if result.Response == nil {
		d.logHandlerError(class, req, "strategy_handler_empty", nil)
		result = Result{Response: OfflineDocument(), Source: SourceSynthetic}
	}
	return result
}

func (d *Dispatcher) lookup(class strategy.Class) Handler {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.handlers[class]
}

func (d *Dispatcher) logHandlerError(class strategy.Class, req *Request, code string, err error) {
	fields := logging.RequestFields(string(class), string(SourceSynthetic), req.Method, req.URL.Path, req.ID)
	fields["action"] = "dispatch"
	fields["error"] = code
	if err != nil {
		d.logger.WithFields(fields).Error(err.Error())
		return
	}
	d.logger.WithFields(fields).Error("strategy handler unavailable")
}
