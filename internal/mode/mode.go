// Package mode defines the lifecycle contract for mutually exclusive rig modes.
package mode

import (
	"context"
	"sync"

	"github.com/smazurov/paws/internal/component"
	"github.com/smazurov/paws/internal/sink"
)

// Mode is a top-level behaviour rendered by the driver. Exactly one mode is active at a time.
type Mode interface {
	component.Named
	// Activate is called after the mode became active. sinks is the subscribed interface set,
	// valid until Deactivate. prev is nil on the first activation.
	Activate(ctx context.Context, sinks *sink.Set, prev Mode) error
	// Deactivate is called before next becomes active. Animated modes return once their
	// last frame has finished.
	Deactivate(ctx context.Context, next Mode) error
}

// Initializer is implemented by modes that need setup during driver start.
type Initializer interface {
	Init(ctx context.Context) error
}

// Base tracks the subscribed interface set. Embed it in concrete modes.
type Base struct {
	component.Identity
	mu    sync.RWMutex
	sinks *sink.Set
}

// NewBase creates a Base. An empty name is replaced with a UUID.
func NewBase(name string) Base {
	return Base{Identity: component.NewIdentity(name)}
}

// Subscribe stores the interface set handed over by the driver.
func (b *Base) Subscribe(sinks *sink.Set) {
	b.mu.Lock()
	b.sinks = sinks
	b.mu.Unlock()
}

// Unsubscribe clears the interface set. After it returns the set must not be used.
func (b *Base) Unsubscribe() {
	b.mu.Lock()
	b.sinks = nil
	b.mu.Unlock()
}

// Subscribed returns the interface set while the mode is active.
func (b *Base) Subscribed() (*sink.Set, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.sinks, b.sinks != nil
}

// Active reports whether an interface set is subscribed.
func (b *Base) Active() bool {
	_, ok := b.Subscribed()
	return ok
}

// Activate implements Mode.
func (b *Base) Activate(_ context.Context, sinks *sink.Set, _ Mode) error {
	b.Subscribe(sinks)
	return nil
}

// Deactivate implements Mode.
func (b *Base) Deactivate(_ context.Context, _ Mode) error {
	b.Unsubscribe()
	return nil
}

// NameOf returns m's name, or "" for nil.
func NameOf(m Mode) string {
	if m == nil {
		return ""
	}
	return m.Name()
}
