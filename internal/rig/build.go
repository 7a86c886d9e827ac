package rig

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/smazurov/paws/internal/animation"
	"github.com/smazurov/paws/internal/drawer"
	"github.com/smazurov/paws/internal/driver"
	"github.com/smazurov/paws/internal/events"
	"github.com/smazurov/paws/internal/gif"
	"github.com/smazurov/paws/internal/layout"
	"github.com/smazurov/paws/internal/logging"
	"github.com/smazurov/paws/internal/mode"
	"github.com/smazurov/paws/internal/sink"
	"github.com/smazurov/paws/internal/sink/spistrip"
	"github.com/smazurov/paws/internal/sink/terminal"
	"github.com/smazurov/paws/internal/state"
	"periph.io/x/conn/v3/physic"
)

// DefaultFPS is the frame rate of state handlers when the rig file sets none.
const DefaultFPS = 30

// Env holds the collaborators a build needs.
type Env struct {
	Bus *events.Bus
	// Gifs caches decoded timelines. Nil decodes every file.
	Gifs *gif.Cache
	// BaseDir resolves relative GIF paths. Usually the directory of the rig file.
	BaseDir string
	// Terminal receives terminal interface output. Defaults to stdout.
	Terminal io.Writer
	// Clock drives animation loops. Nil uses the wall clock.
	Clock animation.Clock
}

// Rig is the built set of interfaces and modes.
type Rig struct {
	Device      string
	DefaultMode string
	Interfaces  []sink.Sink
	Modes       []mode.Mode
}

type builder struct {
	file   *File
	env    Env
	logger *slog.Logger

	specs map[string]InterfaceSpec
	sinks map[string]sink.Sink
	order []sink.Sink
}

// Build validates f and creates every interface and mode it describes. Nothing is started.
func Build(f *File, env Env) (*Rig, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if env.Terminal == nil {
		env.Terminal = os.Stdout
	}
	b := &builder{
		file:   f,
		env:    env,
		logger: logging.GetLogger("rig"),
		specs:  make(map[string]InterfaceSpec, len(f.Interfaces)),
		sinks:  make(map[string]sink.Sink, len(f.Interfaces)),
	}

	for _, spec := range f.Interfaces {
		s, err := b.buildInterface(spec)
		if err != nil {
			return nil, fmt.Errorf("interface %q: %w", spec.Name, err)
		}
		b.specs[spec.Name] = spec
		b.sinks[spec.Name] = s
		b.order = append(b.order, s)
	}

	r := &Rig{Device: f.Device, DefaultMode: f.DefaultMode, Interfaces: b.order}
	for _, spec := range f.Modes {
		m, err := b.buildMode(spec)
		if err != nil {
			return nil, fmt.Errorf("mode %q: %w", spec.Name, err)
		}
		r.Modes = append(r.Modes, m)
	}

	b.logger.Info("Rig built", "device", f.Device, "interfaces", len(r.Interfaces), "modes", len(r.Modes))
	return r, nil
}

// Apply registers the rig with d and selects its default mode.
func (r *Rig) Apply(d *driver.Driver) error {
	d.AddInterfaces(r.Interfaces...)
	d.AddModes(r.Modes...)
	if r.DefaultMode != "" {
		return d.SetDefaultMode(r.DefaultMode)
	}
	return nil
}

// Close releases hardware held by interfaces that were built but never handed to a driver.
func (r *Rig) Close() error {
	return sink.CloseAll(r.Interfaces...)
}

func (b *builder) buildInterface(spec InterfaceSpec) (sink.Sink, error) {
	switch spec.Type {
	case InterfaceTerminal:
		return terminal.New(spec.Name, b.env.Terminal, terminal.Options{
			Width:   spec.Width,
			Height:  spec.Height,
			Symbol:  spec.Symbol,
			Profile: spec.Profile,
			FPS:     b.fps(0),
			Clock:   b.env.Clock,
		})
	case InterfaceSPI:
		return spistrip.New(spec.Name, spistrip.Options{
			Port:   spec.Port,
			Pixels: spec.Pixels,
			Freq:   physic.Frequency(spec.FreqKHz) * physic.KiloHertz,
		})
	case InterfaceMemory:
		return sink.NewRecorder(spec.Name, spec.Size, sink.WithHistory(1)), nil
	case InterfaceNoop:
		return sink.NewNoop(spec.Name, spec.Size), nil
	}
	return nil, fmt.Errorf("unknown type %q", spec.Type)
}

func (b *builder) fps(override int) int {
	switch {
	case override > 0:
		return override
	case b.file.FPS > 0:
		return b.file.FPS
	}
	return DefaultFPS
}

func (b *builder) modeSinks(names []string) []sink.Sink {
	if len(names) == 0 {
		return b.order
	}
	out := make([]sink.Sink, 0, len(names))
	for _, name := range names {
		out = append(out, b.sinks[name])
	}
	return out
}

func (b *builder) buildMode(spec ModeSpec) (mode.Mode, error) {
	drawerOpts := []drawer.Option{
		drawer.WithEventBus(b.env.Bus),
		drawer.WithLogger(logging.GetLogger("drawer")),
	}
	if spec.MirrorWidth > 0 {
		drawerOpts = append(drawerOpts, drawer.WithMirroredFragments(spec.MirrorWidth))
	}

	switch spec.Type {
	case ModePixel:
		return drawer.NewPixelDrawer(spec.Name, b.modeSinks(spec.Interfaces), drawerOpts...)
	case ModeStream:
		return drawer.NewStreamDrawer(spec.Name, b.modeSinks(spec.Interfaces), drawerOpts...)
	case ModeStates:
		return b.buildHandler(spec)
	}
	return nil, fmt.Errorf("unknown type %q", spec.Type)
}

// buildHandler builds transition states first so regular states can reference them.
// Transition states are not registered with the handler.
func (b *builder) buildHandler(spec ModeSpec) (*state.Handler, error) {
	bridges := make(map[string]state.State)
	for _, s := range spec.States {
		if !s.Transition {
			continue
		}
		st, err := b.buildState(s, nil)
		if err != nil {
			return nil, fmt.Errorf("state %q: %w", s.Name, err)
		}
		bridges[s.Name] = st
	}

	var states []state.State
	for _, s := range spec.States {
		if s.Transition {
			continue
		}
		transitions := make([]state.Transition, 0, len(s.Transitions))
		for _, t := range s.Transitions {
			via, ok := bridges[t.Via]
			if !ok {
				return nil, fmt.Errorf("state %q: %q is not a transition state", s.Name, t.Via)
			}
			transitions = append(transitions, state.Transition{From: t.From, State: via})
		}
		st, err := b.buildState(s, transitions)
		if err != nil {
			return nil, fmt.Errorf("state %q: %w", s.Name, err)
		}
		states = append(states, st)
	}

	schedOpts := []animation.Option{
		animation.WithFrameRate(b.fps(spec.FPS)),
		animation.WithLogger(logging.GetLogger("scheduler")),
	}
	if b.env.Clock != nil {
		schedOpts = append(schedOpts, animation.WithClock(b.env.Clock))
	}
	return state.NewHandler(spec.Name, states,
		state.WithEventBus(b.env.Bus),
		state.WithLogger(logging.GetLogger("states")),
		state.WithSchedulerOptions(schedOpts...),
	), nil
}

func (b *builder) buildState(spec StateSpec, transitions []state.Transition) (state.State, error) {
	var opts []state.BaseOption
	if spec.Length != "" {
		d, err := time.ParseDuration(spec.Length)
		if err != nil {
			return nil, fmt.Errorf("length: %w", err)
		}
		opts = append(opts, state.WithLength(d))
	}
	if len(transitions) > 0 {
		opts = append(opts, state.WithTransitions(transitions...))
	}

	switch spec.Type {
	case StateGif:
		defs, err := b.gifDefinitions(spec.Gifs)
		if err != nil {
			return nil, err
		}
		return state.NewGif(spec.Name, defs, opts...), nil
	case StatePulser:
		return state.NewPulser(spec.Name, state.PulserOptions{
			Interfaces: spec.Interfaces,
			Number:     spec.Number,
			Intensity:  spec.Intensity,
			Speed:      spec.Speed,
		}, opts...), nil
	case StateFill:
		color := [3]byte{byte(spec.Color[0]), byte(spec.Color[1]), byte(spec.Color[2])}
		return state.NewFill(spec.Name, color, spec.Interfaces, opts...), nil
	case StateBlank:
		return state.NewFill(spec.Name, [3]byte{}, spec.Interfaces, opts...), nil
	}
	return nil, fmt.Errorf("unknown type %q", spec.Type)
}

func (b *builder) gifDefinitions(specs []GifSpec) ([]state.GifDefinition, error) {
	var errs []error
	defs := make([]state.GifDefinition, 0, len(specs))
	for _, g := range specs {
		target, ok := b.sinks[g.Interface]
		if !ok {
			errs = append(errs, fmt.Errorf("gif %s: unknown interface %q", g.File, g.Interface))
			continue
		}
		tl, err := b.loadGif(g)
		if err != nil {
			errs = append(errs, fmt.Errorf("gif %s: %w", g.File, err))
			continue
		}
		if size, fixed := target.BufferSize(); fixed && size != tl.BufferSize() {
			errs = append(errs, fmt.Errorf("gif %s renders %d bytes, interface %q takes %d", g.File, tl.BufferSize(), g.Interface, size))
			continue
		}
		defs = append(defs, state.GifDefinition{Interface: g.Interface, Timeline: tl})
	}
	return defs, errors.Join(errs...)
}

// loadGif decodes a GIF. Terminal interfaces supply the frame size when the GIF sets none.
func (b *builder) loadGif(g GifSpec) (*gif.Timeline, error) {
	transform, err := layout.ParseTransform(g.Transform)
	if err != nil {
		return nil, err
	}
	opts := gif.Options{Transform: transform, Width: g.Width, Height: g.Height}
	if in := b.specs[g.Interface]; opts.Width == 0 && opts.Height == 0 && in.Width > 0 && in.Height > 0 {
		opts.Width = in.Width / transform.Factor()
		opts.Height = in.Height
	}

	path := g.File
	if !filepath.IsAbs(path) && b.env.BaseDir != "" {
		path = filepath.Join(b.env.BaseDir, path)
	}
	if b.env.Gifs != nil {
		return b.env.Gifs.Load(path, opts)
	}
	return gif.LoadFile(path, opts)
}
