package proxy

import "context"

// Handler 处理一个已分类的请求，并且总是返回某个响应。
type Handler interface {
	Serve(ctx context.Context, req *Request, env *Env) Result
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, req *Request, env *Env) Result

// Serve makes HandlerFunc satisfy Handler.
func (f HandlerFunc) Serve(ctx context.Context, req *Request, env *Env) Result {
	return f(ctx, req, env)
}
