package cache

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Response 是命名空间中的一条缓存记录：状态码、响应头与正文。
// 记录一旦写入不会被原地修改，只会被同一 key 的新写入整体覆盖。
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

// Clone 返回一份与原记录不共享底层缓冲的副本。
func (r *Response) Clone() *Response {
	if r == nil {
		return nil
	}
	return &Response{
		Status: r.Status,
		Header: r.Header.Clone(),
		Body:   append([]byte(nil), r.Body...),
	}
}

// ContentType 返回 Content-Type 头，缺失时为空串。
func (r *Response) ContentType() string {
	if r == nil || r.Header == nil {
		return ""
	}
	return r.Header.Get("Content-Type")
}

// OK 与 fetch Response.ok 语义一致：状态码位于 200-299。
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status <= 299
}

// Namespace 是一个独立的 key → Response 存储。
type Namespace interface {
	// Name 返回命名空间名称，例如 static-v1.0.3。
	Name() string
	// Match 返回 key 对应的记录副本；不存在时返回 ErrNotFound。
	Match(ctx context.Context, key string) (*Response, error)
	// Put 以覆盖方式写入记录；同一 key 并发写入以最后一次为准。
	Put(ctx context.Context, key string, resp *Response) error
}

// Store 管理全部命名空间的创建、枚举与删除。
type Store interface {
	// Open 打开命名空间，不存在时创建。
	Open(ctx context.Context, name string) (Namespace, error)
	// Names 返回当前存在的命名空间名称（已排序）。
	Names(ctx context.Context) ([]string, error)
	// Delete 删除整个命名空间，返回其删除前是否存在。
	Delete(ctx context.Context, name string) (bool, error)
	Close() error
}

// ErrNotFound 表示缓存不存在。
var ErrNotFound = errors.New("cache entry not found")

func validateName(name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("namespace name required")
	}
	if strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return fmt.Errorf("invalid namespace name %q", name)
	}
	return nil
}
