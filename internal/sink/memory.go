package sink

import (
	"context"
	"sync"

	"github.com/smazurov/paws/internal/component"
)

// Recorder is an in-memory sink that keeps a copy of every supplied buffer.
// It backs the "memory" interface type and tests.
type Recorder struct {
	component.Identity
	size    int
	fixed   bool
	mu      sync.Mutex
	frames  [][]byte
	limit   int
	failErr error
	onFrame func([]byte)
}

// RecorderOption configures a Recorder.
type RecorderOption func(*Recorder)

// WithHistory keeps at most n frames. Zero keeps everything.
func WithHistory(n int) RecorderOption {
	return func(r *Recorder) { r.limit = n }
}

// WithFailure makes every Supply return err.
func WithFailure(err error) RecorderOption {
	return func(r *Recorder) { r.failErr = err }
}

// WithFrameHook calls fn with each accepted buffer copy.
func WithFrameHook(fn func([]byte)) RecorderOption {
	return func(r *Recorder) { r.onFrame = fn }
}

// NewRecorder creates a recorder with a fixed buffer size. A negative size makes it
// unconstrained.
func NewRecorder(name string, size int, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		Identity: component.NewIdentity(name),
		size:     max(size, 0),
		fixed:    size >= 0,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// BufferSize implements Sink.
func (r *Recorder) BufferSize() (int, bool) {
	return r.size, r.fixed
}

// Supply implements Sink.
func (r *Recorder) Supply(_ context.Context, buf []byte) error {
	if err := CheckSize(r, buf); err != nil {
		return err
	}
	if r.failErr != nil {
		return r.failErr
	}

	frame := make([]byte, len(buf))
	copy(frame, buf)

	r.mu.Lock()
	r.frames = append(r.frames, frame)
	if r.limit > 0 && len(r.frames) > r.limit {
		r.frames = r.frames[len(r.frames)-r.limit:]
	}
	hook := r.onFrame
	r.mu.Unlock()

	if hook != nil {
		hook(frame)
	}
	return nil
}

// Frames returns every recorded buffer, oldest first.
func (r *Recorder) Frames() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([][]byte, len(r.frames))
	copy(out, r.frames)
	return out
}

// Last returns the most recent buffer.
func (r *Recorder) Last() ([]byte, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.frames) == 0 {
		return nil, false
	}
	return r.frames[len(r.frames)-1], true
}

// Count returns the number of recorded buffers.
func (r *Recorder) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.frames)
}

// Noop discards every buffer after validating its size.
type Noop struct {
	component.Identity
	size  int
	fixed bool
}

// NewNoop creates a discarding sink. A negative size makes it unconstrained.
func NewNoop(name string, size int) *Noop {
	return &Noop{Identity: component.NewIdentity(name), size: max(size, 0), fixed: size >= 0}
}

// BufferSize implements Sink.
func (n *Noop) BufferSize() (int, bool) {
	return n.size, n.fixed
}

// Supply implements Sink.
func (n *Noop) Supply(_ context.Context, buf []byte) error {
	return CheckSize(n, buf)
}
