// Package drawer implements modes that take raw frame buffers from controllers and split
// them across an ordered list of interfaces.
package drawer

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/paws/internal/events"
	"github.com/smazurov/paws/internal/layout"
	"github.com/smazurov/paws/internal/metrics"
	"github.com/smazurov/paws/internal/mode"
	"github.com/smazurov/paws/internal/rigerr"
	"github.com/smazurov/paws/internal/sink"
)

// Composer holds one logical frame sized as the sum of its interfaces' buffer sizes.
// Each committed frame is sliced in interface order; interfaces without a fixed size
// receive the whole frame.
//
// Fragments sent through PotentialUpdate are appended at a cursor. A reset marker moves
// the cursor back to zero. Reaching the commit threshold commits the frame; passing it
// is an overflow that drops the partial frame.
type Composer struct {
	mode.Base
	kind   string
	sinks  []sink.Sink
	size   int
	bus    *events.Bus
	logger *slog.Logger

	mirrorWidth int
	resetMarker []byte

	mu        sync.Mutex
	state     []byte
	potential []byte
	cursor    int
	threshold int
}

// Option configures a Composer.
type Option func(*Composer)

// WithEventBus publishes commit and overflow events to bus.
func WithEventBus(bus *events.Bus) Option {
	return func(c *Composer) { c.bus = bus }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Composer) { c.logger = l }
}

// WithResetMarker sets the fragment that resets reassembly. The default is an empty
// fragment.
func WithResetMarker(marker []byte) Option {
	return func(c *Composer) { c.resetMarker = marker }
}

// WithMirroredFragments makes fragment reassembly commit at half the frame size. The half
// frame holds rows of width pixels and is expanded with the mirror layout before commit.
func WithMirroredFragments(width int) Option {
	return func(c *Composer) { c.mirrorWidth = width }
}

// NewPixelDrawer creates a drawer for whole-frame pixel writes.
func NewPixelDrawer(name string, sinks []sink.Sink, opts ...Option) (*Composer, error) {
	return newComposer(name, mode.KindPixel, sinks, opts...)
}

// NewStreamDrawer creates a drawer for streamed, usually fragmented, writes.
func NewStreamDrawer(name string, sinks []sink.Sink, opts ...Option) (*Composer, error) {
	return newComposer(name, mode.KindStream, sinks, opts...)
}

func newComposer(name, kind string, sinks []sink.Sink, opts ...Option) (*Composer, error) {
	size := sink.TotalSize(sinks...)
	c := &Composer{
		Base:   mode.NewBase(name),
		kind:   kind,
		sinks:  sinks,
		size:   size,
		logger: slog.Default(),
		state:  make([]byte, size),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("mode", c.Name(), "kind", kind)

	c.threshold = size
	if c.mirrorWidth > 0 {
		half := size / 2
		row := c.mirrorWidth * layout.BytesPerPixel
		if size%2 != 0 || half%row != 0 {
			return nil, fmt.Errorf("drawer %s: %d bytes cannot hold mirrored rows of %d pixels", c.Name(), size, c.mirrorWidth)
		}
		c.threshold = half
	}
	c.potential = make([]byte, c.threshold)
	return c, nil
}

// Kind implements mode.BufferTarget.
func (c *Composer) Kind() string {
	return c.kind
}

// BufferSize implements mode.BufferTarget.
func (c *Composer) BufferSize() int {
	return c.size
}

// Threshold is the number of fragment bytes that commits a frame.
func (c *Composer) Threshold() int {
	return c.threshold
}

// Interfaces returns the interfaces the frame is split across.
func (c *Composer) Interfaces() []sink.Sink {
	return c.sinks
}

// State returns a copy of the current frame.
func (c *Composer) State() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]byte, len(c.state))
	copy(out, c.state)
	return out
}

// Cursor returns the number of fragment bytes accumulated.
func (c *Composer) Cursor() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cursor
}

// Update implements mode.BufferTarget.
func (c *Composer) Update(ctx context.Context, buf []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.update(ctx, buf)
}

func (c *Composer) update(ctx context.Context, buf []byte) (bool, error) {
	if len(buf) != c.size {
		return false, rigerr.SizeMismatch(c.Name(), c.size, len(buf))
	}
	copy(c.state, buf)
	metrics.RecordCommit(c.Name())

	delivered := false
	var err error
	if c.Active() {
		err = c.fanOut(ctx)
		delivered = err == nil
	}

	if c.bus != nil {
		data := make([]byte, len(c.state))
		copy(data, c.state)
		c.bus.Publish(events.FrameCommittedEvent{
			Mode:      c.Name(),
			Kind:      c.kind,
			Size:      c.size,
			Delivered: delivered,
			Data:      data,
			Timestamp: events.Now(),
		})
	}
	return delivered, err
}

// fanOut sends the current frame to every interface. Callers hold mu.
func (c *Composer) fanOut(ctx context.Context) error {
	deliveries := make([]sink.Delivery, 0, len(c.sinks))
	offset := 0
	for _, s := range c.sinks {
		size, fixed := s.BufferSize()
		if !fixed {
			deliveries = append(deliveries, sink.Delivery{Sink: s, Buffer: c.state})
			continue
		}
		deliveries = append(deliveries, sink.Delivery{Sink: s, Buffer: c.state[offset : offset+size]})
		offset += size
	}
	return sink.SupplyAll(ctx, deliveries...)
}

// PotentialUpdate implements mode.BufferTarget.
func (c *Composer) PotentialUpdate(ctx context.Context, fragment []byte) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isReset(fragment) {
		c.cursor = 0
		return false, nil
	}

	next := c.cursor + len(fragment)
	if next > c.threshold {
		c.cursor = 0
		c.logger.Warn("Fragment overflow, dropping partial frame", "received", next, "expected", c.threshold)
		metrics.RecordOverflow(c.Name())
		c.bus.Publish(events.FragmentOverflowEvent{
			Mode:      c.Name(),
			Received:  next,
			Expected:  c.threshold,
			Timestamp: events.Now(),
		})
		return false, rigerr.New(rigerr.CodeOverflow,
			fmt.Sprintf("%s received %d of %d bytes", c.Name(), next, c.threshold), nil)
	}

	copy(c.potential[c.cursor:], fragment)
	c.cursor = next
	if c.cursor < c.threshold {
		return false, nil
	}

	c.cursor = 0
	frame := c.potential
	if c.mirrorWidth > 0 {
		expanded, err := layout.Expand(c.potential, c.mirrorWidth, layout.Mirror)
		if err != nil {
			return false, err
		}
		frame = expanded
	}
	return c.update(ctx, frame)
}

func (c *Composer) isReset(fragment []byte) bool {
	if len(c.resetMarker) == 0 {
		return len(fragment) == 0
	}
	return bytes.Equal(fragment, c.resetMarker)
}

// Activate implements mode.Mode. The last known frame is sent immediately.
func (c *Composer) Activate(ctx context.Context, sinks *sink.Set, _ mode.Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Subscribe(sinks)
	if err := c.fanOut(ctx); err != nil {
		return fmt.Errorf("drawer %s: %w", c.Name(), err)
	}
	return nil
}

// Deactivate implements mode.Mode. It waits for an in-flight fan-out.
func (c *Composer) Deactivate(_ context.Context, _ mode.Mode) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.Unsubscribe()
	return nil
}
