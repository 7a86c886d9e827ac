package mode

import "context"

// Buffer target kinds.
const (
	KindPixel  = "pixel"
	KindStream = "stream"
)

// BufferTarget is implemented by modes that accept raw frame buffers from controllers.
type BufferTarget interface {
	Mode
	Kind() string
	BufferSize() int
	// Update replaces the whole frame. It reports whether the frame was sent to the sinks.
	Update(ctx context.Context, buf []byte) (bool, error)
	// PotentialUpdate appends a fragment and commits once the frame is complete.
	PotentialUpdate(ctx context.Context, fragment []byte) (bool, error)
}

// StateMachine is implemented by modes that sequence named states.
type StateMachine interface {
	Mode
	ListStateNames() []string
	CurrentState() string
	SetState(ctx context.Context, name string) (bool, error)
}

// AsBufferTarget returns m as a BufferTarget if it supports that role.
func AsBufferTarget(m Mode) (BufferTarget, bool) {
	if m == nil {
		return nil, false
	}
	bt, ok := m.(BufferTarget)
	return bt, ok
}

// AsStateMachine returns m as a StateMachine if it supports that role.
func AsStateMachine(m Mode) (StateMachine, bool) {
	if m == nil {
		return nil, false
	}
	sm, ok := m.(StateMachine)
	return sm, ok
}
