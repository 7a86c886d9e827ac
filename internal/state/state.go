// Package state implements the state handler mode: a set of named states, one of them
// active, with optional timed transition states bridging a switch between two of them.
package state

import (
	"context"
	"slices"
	"time"

	"github.com/smazurov/paws/internal/component"
	"github.com/smazurov/paws/internal/sink"
)

// State is a named behaviour inside a Handler.
type State interface {
	component.Named
	// Length is the run time of a state used as a transition. ok is false when unset.
	Length() (length time.Duration, ok bool)
	// Transitions lists the bridges into this state keyed by the previous state's name.
	Transitions() []Transition
	// Activate runs after the handler made this state active.
	Activate(ctx context.Context, h *Handler, prev State) error
	// Deactivate runs before the handler replaces this state with next.
	Deactivate(ctx context.Context, h *Handler, next State) error
	// OnTransition runs when this state is picked as the bridge from prev into next.
	OnTransition(ctx context.Context, h *Handler, prev, next State) error
	// ExecuteFrame renders one frame.
	ExecuteFrame(ctx context.Context, f Frame) error
}

// Transition selects State as a bridge when the previous state's name is in From.
// A transition state may be shared by several tables.
type Transition struct {
	From  []string
	State State
}

// Matches reports whether prev is a source of this transition.
func (t Transition) Matches(prev string) bool {
	return slices.Contains(t.From, prev)
}

// CurrentTransition is the bridge in progress for an active state. Until is zero until the
// first transition frame has run.
type CurrentTransition struct {
	State State
	From  string
	Until time.Duration
	set   bool
}

// Started reports whether the end time has been fixed.
func (c CurrentTransition) Started() bool {
	return c.set
}

// Frame is the input to ExecuteFrame.
type Frame struct {
	Sinks   *sink.Set
	Handler *Handler
	T       time.Duration
	DT      time.Duration
}

// Supply sends buffers to the named sinks concurrently and waits for all of them.
// Names that are not subscribed are skipped.
func (f Frame) Supply(ctx context.Context, buffers map[string][]byte) error {
	deliveries := make([]sink.Delivery, 0, len(buffers))
	for _, s := range f.Sinks.List() {
		if buf, ok := buffers[s.Name()]; ok {
			deliveries = append(deliveries, sink.Delivery{Sink: s, Buffer: buf})
		}
	}
	return sink.SupplyAll(ctx, deliveries...)
}

// SupplyEach sends the same buffer to every named sink that is subscribed.
func (f Frame) SupplyEach(ctx context.Context, names []string, buf []byte) error {
	buffers := make(map[string][]byte, len(names))
	for _, name := range names {
		buffers[name] = buf
	}
	return f.Supply(ctx, buffers)
}

// Base provides names, lengths, transition tables and no-op hooks. Embed it and implement
// ExecuteFrame.
type Base struct {
	component.Identity
	length      time.Duration
	hasLength   bool
	transitions []Transition
}

// BaseOption configures a Base.
type BaseOption func(*Base)

// WithLength marks the state as usable as a transition of the given length.
func WithLength(d time.Duration) BaseOption {
	return func(b *Base) {
		b.length = d
		b.hasLength = true
	}
}

// WithTransitions sets the transition table.
func WithTransitions(ts ...Transition) BaseOption {
	return func(b *Base) { b.transitions = append(b.transitions, ts...) }
}

// NewBase creates a Base. An empty name is replaced with a UUID.
func NewBase(name string, opts ...BaseOption) Base {
	b := Base{Identity: component.NewIdentity(name)}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

// Length implements State.
func (b *Base) Length() (time.Duration, bool) {
	return b.length, b.hasLength
}

// SetLength overrides the transition length.
func (b *Base) SetLength(d time.Duration) {
	b.length = d
	b.hasLength = true
}

// Transitions implements State.
func (b *Base) Transitions() []Transition {
	return b.transitions
}

// AddTransition appends an entry to the transition table.
func (b *Base) AddTransition(from []string, via State) {
	b.transitions = append(b.transitions, Transition{From: from, State: via})
}

// Activate implements State.
func (b *Base) Activate(context.Context, *Handler, State) error { return nil }

// Deactivate implements State.
func (b *Base) Deactivate(context.Context, *Handler, State) error { return nil }

// OnTransition implements State.
func (b *Base) OnTransition(context.Context, *Handler, State, State) error { return nil }

func nameOf(s State) string {
	if s == nil {
		return ""
	}
	return s.Name()
}
