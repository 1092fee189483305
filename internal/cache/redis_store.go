package cache

import (
	"context"
	"errors"
	"io"
	"sort"

	"github.com/redis/go-redis/v9"
)

// RedisStoreOpts 描述 redis 后端依赖：命名空间集合保存在 <Prefix>:namespaces，
// 每个命名空间的条目保存在哈希 <Prefix>:ns:<name> 中。
type RedisStoreOpts struct {
	// Client 不能为空。
	Client redis.Cmdable
	// ClientCloser 在 Close 时关闭 Client，可选。
	ClientCloser io.Closer
	// Prefix 为所有键的前缀，默认 offline-edge。
	Prefix string
}

func (opts *RedisStoreOpts) init() error {
	if opts.Client == nil {
		return errors.New("nil redis client")
	}
	if opts.Prefix == "" {
		opts.Prefix = "offline-edge"
	}
	return nil
}

// NewRedisStore 基于已有 redis 客户端构建存储。
func NewRedisStore(opts RedisStoreOpts) (Store, error) {
	if err := opts.init(); err != nil {
		return nil, err
	}
	return &redisStore{opts: opts}, nil
}

type redisStore struct {
	opts RedisStoreOpts
}

type redisNamespace struct {
	store *redisStore
	name  string
	key   string
}

func (s *redisStore) namespacesKey() string {
	return s.opts.Prefix + ":namespaces"
}

func (s *redisStore) entriesKey(name string) string {
	return s.opts.Prefix + ":ns:" + name
}

func (s *redisStore) Open(ctx context.Context, name string) (Namespace, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := s.opts.Client.SAdd(ctx, s.namespacesKey(), name).Err(); err != nil {
		return nil, err
	}
	return &redisNamespace{store: s, name: name, key: s.entriesKey(name)}, nil
}

func (s *redisStore) Names(ctx context.Context) ([]string, error) {
	names, err := s.opts.Client.SMembers(ctx, s.namespacesKey()).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

func (s *redisStore) Delete(ctx context.Context, name string) (bool, error) {
	var removed *redis.IntCmd
	_, err := s.opts.Client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.entriesKey(name))
		removed = pipe.SRem(ctx, s.namespacesKey(), name)
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed.Val() > 0, nil
}

func (s *redisStore) Close() error {
	if c := s.opts.ClientCloser; c != nil {
		return c.Close()
	}
	return nil
}

func (n *redisNamespace) Name() string { return n.name }

func (n *redisNamespace) Match(ctx context.Context, key string) (*Response, error) {
	data, err := n.store.opts.Client.HGet(ctx, n.key, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	_, resp, err := decodeRecord(data)
	return resp, err
}

func (n *redisNamespace) Put(ctx context.Context, key string, resp *Response) error {
	data, err := encodeRecord(key, resp)
	if err != nil {
		return err
	}
	return n.store.opts.Client.HSet(ctx, n.key, key, data).Err()
}
