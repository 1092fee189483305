package cache

import (
	"context"
	"sync"
)

// Manager 将 Store 绑定到一个版本标签，并独占命名空间的生命周期。
type Manager struct {
	store   Store
	version string

	mu     sync.Mutex
	opened map[string]Namespace
}

// NewManager 创建指定版本的命名空间管理器。
func NewManager(store Store, version string) *Manager {
	return &Manager{
		store:   store,
		version: version,
		opened:  make(map[string]Namespace),
	}
}

// Version 返回当前版本标签。
func (m *Manager) Version() string { return m.version }

// StaticName 返回 static-<version>。
func (m *Manager) StaticName() string { return "static-" + m.version }

// RuntimeName 返回 runtime-<version>。
func (m *Manager) RuntimeName() string { return "runtime-" + m.version }

// IsCurrent 判断 name 是否为当前版本的静态或运行时命名空间。
func (m *Manager) IsCurrent(name string) bool {
	return name == m.StaticName() || name == m.RuntimeName()
}

// Static 打开当前版本的静态命名空间。
func (m *Manager) Static(ctx context.Context) (Namespace, error) {
	return m.open(ctx, m.StaticName())
}

// Runtime 打开当前版本的运行时命名空间。
func (m *Manager) Runtime(ctx context.Context) (Namespace, error) {
	return m.open(ctx, m.RuntimeName())
}

// Names 枚举存储中的全部命名空间，包括旧版本遗留的。
func (m *Manager) Names(ctx context.Context) ([]string, error) {
	return m.store.Names(ctx)
}

// Delete 删除整个命名空间并丢弃已缓存的句柄。
func (m *Manager) Delete(ctx context.Context, name string) (bool, error) {
	m.mu.Lock()
	delete(m.opened, name)
	m.mu.Unlock()
	return m.store.Delete(ctx, name)
}

func (m *Manager) open(ctx context.Context, name string) (Namespace, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ns, ok := m.opened[name]; ok {
		return ns, nil
	}
	ns, err := m.store.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	m.opened[name] = ns
	return ns, nil
}
