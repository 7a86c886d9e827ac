package state

import (
	"context"
	"sync"
	"time"

	"github.com/smazurov/paws/internal/gif"
)

// GifDefinition binds a decoded animation to an interface.
type GifDefinition struct {
	Interface string
	Timeline  *gif.Timeline
}

// Gif plays one animation per interface. Playback restarts whenever the state is activated
// or used as a transition.
type Gif struct {
	Base
	defs []GifDefinition

	mu      sync.Mutex
	start   time.Duration
	started bool
}

// NewGif creates a GIF state.
func NewGif(name string, defs []GifDefinition, opts ...BaseOption) *Gif {
	return &Gif{Base: NewBase(name, opts...), defs: defs}
}

// Definitions returns the interface bindings.
func (g *Gif) Definitions() []GifDefinition {
	return g.defs
}

// Length returns the explicit length if one was set, otherwise the longest animation.
func (g *Gif) Length() (time.Duration, bool) {
	if d, ok := g.Base.Length(); ok {
		return d, true
	}
	var longest time.Duration
	for _, def := range g.defs {
		longest = max(longest, def.Timeline.Length())
	}
	return longest, len(g.defs) > 0
}

func (g *Gif) restart() {
	g.mu.Lock()
	g.started = false
	g.mu.Unlock()
}

// Activate implements State.
func (g *Gif) Activate(context.Context, *Handler, State) error {
	g.restart()
	return nil
}

// OnTransition implements State.
func (g *Gif) OnTransition(context.Context, *Handler, State, State) error {
	g.restart()
	return nil
}

// ExecuteFrame implements State.
func (g *Gif) ExecuteFrame(ctx context.Context, f Frame) error {
	g.mu.Lock()
	var elapsed time.Duration
	if !g.started {
		g.start = f.T
		g.started = true
	} else {
		elapsed = f.T - g.start
	}
	g.mu.Unlock()

	buffers := make(map[string][]byte, len(g.defs))
	for _, def := range g.defs {
		frame, err := def.Timeline.FrameAt(elapsed)
		if err != nil {
			return err
		}
		buffers[def.Interface] = frame
	}
	return f.Supply(ctx, buffers)
}
