package strategy

import (
	"sort"
	"sync"

	"github.com/yanun0323/errors"
)

// Factory builds a fresh strategy instance.
type Factory func() Strategy

// Registry maps strategy class names to factories. It replaces
// filesystem-based class loading: classes are registered at process
// start, and Replace swaps in new code at runtime. Instances created
// before a Replace keep running the code they were built with; only
// instances created afterwards pick up the new factory.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

// Register adds a new strategy class.
func (r *Registry) Register(class string, factory Factory) error {
	if class == "" || factory == nil {
		return errors.New("invalid strategy class registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.factories[class]; ok {
		return errors.Errorf("strategy class already registered: %s", class)
	}
	r.factories[class] = factory
	return nil
}

// Replace swaps the factory for a class, registering it when absent.
func (r *Registry) Replace(class string, factory Factory) error {
	if class == "" || factory == nil {
		return errors.New("invalid strategy class registration")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[class] = factory
	return nil
}

// Create builds a fresh instance of a registered class.
func (r *Registry) Create(class string) (Strategy, error) {
	r.mu.RLock()
	factory, ok := r.factories[class]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.Errorf("unknown strategy class: %s", class)
	}
	return factory(), nil
}

// Classes returns the registered class names, sorted.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.factories))
	for class := range r.factories {
		out = append(out, class)
	}
	sort.Strings(out)
	return out
}
