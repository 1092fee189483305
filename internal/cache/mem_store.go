package cache

import (
	"context"
	"sort"
	"sync"
)

// NewMemoryStore 返回进程内存储，进程退出后内容丢失。
func NewMemoryStore() Store {
	return &memStore{spaces: make(map[string]*memNamespace)}
}

type memStore struct {
	mu     sync.RWMutex
	spaces map[string]*memNamespace
}

type memNamespace struct {
	name    string
	mu      sync.RWMutex
	entries map[string]*Response
}

func (s *memStore) Open(ctx context.Context, name string) (Namespace, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.spaces[name]
	if !ok {
		ns = &memNamespace{name: name, entries: make(map[string]*Response)}
		s.spaces[name] = ns
	}
	return ns, nil
}

func (s *memStore) Names(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.spaces))
	for name := range s.spaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *memStore) Delete(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.spaces[name]
	delete(s.spaces, name)
	return ok, nil
}

func (s *memStore) Close() error { return nil }

func (n *memNamespace) Name() string { return n.name }

func (n *memNamespace) Match(ctx context.Context, key string) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n.mu.RLock()
	defer n.mu.RUnlock()
	resp, ok := n.entries[key]
	if !ok {
		return nil, ErrNotFound
	}
	return resp.Clone(), nil
}

func (n *memNamespace) Put(ctx context.Context, key string, resp *Response) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.entries[key] = resp.Clone()
	return nil
}
