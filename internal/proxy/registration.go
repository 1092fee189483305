package proxy

import (
	"errors"
	"fmt"

	"github.com/offline-edge/offline-edge/internal/strategy"
)

// Registration 把一个分类与其 handler 绑定，注册前先校验。
type Registration struct {
	Class   strategy.Class
	Handler Handler
}

// ErrHandlerExists indicates a handler has already been registered for the class.
var ErrHandlerExists = errors.New("strategy handler already registered")

// Validate ensures the class is interceptable and the handler is present.
func (r Registration) Validate() error {
	if !r.Class.Intercepted() {
		return fmt.Errorf("class %q is not intercepted", r.Class)
	}
	if r.Handler == nil {
		return errors.New("strategy handler required")
	}
	return nil
}

// DefaultRegistrations 返回四个内置策略的 handler。
func DefaultRegistrations() []Registration {
	return []Registration{
		{Class: strategy.Navigation, Handler: NavigationHandler},
		{Class: strategy.APIGet, Handler: APIHandler},
		{Class: strategy.StaticAsset, Handler: StaticHandler},
		{Class: strategy.Default, Handler: DefaultHandler},
	}
}
