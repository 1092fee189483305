package strategy

import (
	"fmt"
	"sort"
	"sync"
)

// Order describes whether a handler consults the network or the cache first.
type Order string

const (
	OrderNetworkFirst Order = "network-first"
	OrderCacheFirst   Order = "cache-first"
)

// KeyMode describes how a handler derives cache keys from the request URL.
type KeyMode string

const (
	KeyFullURL   KeyMode = "full-url"
	KeyPathOnly  KeyMode = "path-only"
	KeyFixedRoot KeyMode = "fixed-root"
)

// Descriptor records the static behaviour of one handler, for diagnostics.
type Descriptor struct {
	Class       Class
	Description string
	Order       Order
	Namespace   string // "static" or "runtime"
	KeyMode     KeyMode
	Fallbacks   []string
}

var globalRegistry = newRegistry()

type registry struct {
	mu          sync.RWMutex
	descriptors map[Class]Descriptor
}

func newRegistry() *registry {
	return &registry{descriptors: make(map[Class]Descriptor)}
}

// Register adds a descriptor; registering a class twice is an error.
func Register(d Descriptor) error {
	return globalRegistry.register(d)
}

// MustRegister panics when Register fails; intended for init().
func MustRegister(d Descriptor) {
	if err := Register(d); err != nil {
		panic(err)
	}
}

// Resolve returns the descriptor for class.
func Resolve(class Class) (Descriptor, bool) {
	return globalRegistry.resolve(class)
}

// List returns all descriptors in classification priority order.
func List() []Descriptor {
	return globalRegistry.list()
}

func (r *registry) register(d Descriptor) error {
	if !d.Class.Intercepted() {
		return fmt.Errorf("class %q cannot have a handler", d.Class)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.descriptors[d.Class]; exists {
		return fmt.Errorf("class %s already registered", d.Class)
	}
	d.Fallbacks = append([]string(nil), d.Fallbacks...)
	r.descriptors[d.Class] = d
	return nil
}

func (r *registry) resolve(class Class) (Descriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[class]
	return d, ok
}

func (r *registry) list() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	priority := make(map[Class]int)
	for i, class := range Classes() {
		priority[class] = i
	}
	result := make([]Descriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool {
		return priority[result[i].Class] < priority[result[j].Class]
	})
	return result
}
