package state

import (
	"context"

	"github.com/smazurov/paws/internal/sink"
)

// FrameFunc renders a frame for a Func state.
type FrameFunc func(ctx context.Context, f Frame) error

// Func is a state whose frame routine is supplied by the caller.
type Func struct {
	Base
	fn FrameFunc
}

// NewFunc creates a state that calls fn on every frame.
func NewFunc(name string, fn FrameFunc, opts ...BaseOption) *Func {
	return &Func{Base: NewBase(name, opts...), fn: fn}
}

// ExecuteFrame implements State.
func (s *Func) ExecuteFrame(ctx context.Context, f Frame) error {
	if s.fn == nil {
		return nil
	}
	return s.fn(ctx, f)
}

// Fill paints a solid colour on fixed-size interfaces. With no interface names it paints
// every subscribed interface that declares a size.
type Fill struct {
	Base
	color      [3]byte
	interfaces []string
}

// NewFill creates a solid colour state. Black makes a blank state.
func NewFill(name string, color [3]byte, interfaces []string, opts ...BaseOption) *Fill {
	return &Fill{Base: NewBase(name, opts...), color: color, interfaces: interfaces}
}

// ExecuteFrame implements State.
func (s *Fill) ExecuteFrame(ctx context.Context, f Frame) error {
	targets := f.Sinks.List()
	if len(s.interfaces) > 0 {
		targets = make([]sink.Sink, 0, len(s.interfaces))
		for _, name := range s.interfaces {
			if sk, ok := f.Sinks.Get(name); ok {
				targets = append(targets, sk)
			}
		}
	}

	buffers := make(map[string][]byte, len(targets))
	for _, sk := range targets {
		size, ok := sk.BufferSize()
		if !ok {
			continue
		}
		buf := make([]byte, size)
		for i := 0; i+2 < size; i += 3 {
			buf[i], buf[i+1], buf[i+2] = s.color[0], s.color[1], s.color[2]
		}
		buffers[sk.Name()] = buf
	}
	return f.Supply(ctx, buffers)
}
