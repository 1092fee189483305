package cache

import (
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options 选择命名空间后端并提供其连接参数。
type Options struct {
	Backend     string
	Path        string
	RedisAddr   string
	RedisDB     int
	RedisPrefix string
}

// Open 根据 Options.Backend 构建对应的 Store。
func Open(opts Options) (Store, error) {
	switch opts.Backend {
	case "memory":
		return NewMemoryStore(), nil
	case "", "fs":
		return NewFSStore(opts.Path)
	case "sqlite":
		return NewSQLiteStore(opts.Path)
	case "redis":
		client := redis.NewClient(&redis.Options{
			Addr:         opts.RedisAddr,
			DB:           opts.RedisDB,
			DialTimeout:  2 * time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		})
		return NewRedisStore(RedisStoreOpts{
			Client:       client,
			ClientCloser: client,
			Prefix:       opts.RedisPrefix,
		})
	default:
		return nil, fmt.Errorf("unsupported storage backend %q", opts.Backend)
	}
}
