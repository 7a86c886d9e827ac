package component

import (
	"log/slog"
	"sync"
)

// Registry is an insertion-ordered set of named components.
// Re-registering a name replaces the previous entry in place and logs a warning.
type Registry[T Named] struct {
	kind   string
	logger *slog.Logger
	mu     sync.RWMutex
	index  map[string]int
	items  []T
}

// NewRegistry creates an empty registry. kind is used in diagnostics ("mode", "interface").
func NewRegistry[T Named](kind string, logger *slog.Logger) *Registry[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry[T]{
		kind:   kind,
		logger: logger,
		index:  make(map[string]int),
	}
}

// Add registers items in order. It returns true if any existing entry was overwritten.
func (r *Registry[T]) Add(items ...T) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	overwrote := false
	for _, item := range items {
		name := item.Name()
		if i, exists := r.index[name]; exists {
			r.logger.Warn("Overwriting component", "kind", r.kind, "name", name)
			r.items[i] = item
			overwrote = true
			continue
		}
		r.index[name] = len(r.items)
		r.items = append(r.items, item)
	}
	return overwrote
}

// Get looks up a component by name.
func (r *Registry[T]) Get(name string) (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[name]
	if !ok {
		var zero T
		return zero, false
	}
	return r.items[i], true
}

// Has reports whether name is registered.
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.index[name]
	return ok
}

// List returns a snapshot in registration order.
func (r *Registry[T]) List() []T {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]T, len(r.items))
	copy(out, r.items)
	return out
}

// Names returns registered names in registration order.
func (r *Registry[T]) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, len(r.items))
	for i, item := range r.items {
		out[i] = item.Name()
	}
	return out
}

// Len returns the number of registered components.
func (r *Registry[T]) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.items)
}

// First returns the earliest registered component.
func (r *Registry[T]) First() (T, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.items) == 0 {
		var zero T
		return zero, false
	}
	return r.items[0], true
}
