// Package rig loads a rig definition file and builds the interfaces and modes it
// describes.
//
//	device = "wolf"
//	default_mode = "face"
//	fps = 30
//
//	[[interfaces]]
//	name = "matrix"
//	type = "terminal"
//	width = 64
//	height = 32
//
//	[[modes]]
//	name = "face"
//	type = "states"
//
//	[[modes.states]]
//	name = "blink"
//	type = "gif"
//	transition = true
//	gifs = [{ interface = "matrix", file = "blink.gif", transform = "mirror" }]
//
//	[[modes.states]]
//	name = "idle"
//	type = "gif"
//	gifs = [{ interface = "matrix", file = "idle.gif" }]
//	transitions = [{ via = "blink", from = ["happy"] }]
package rig

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/pelletier/go-toml/v2"
	"github.com/smazurov/paws/internal/layout"
)

// Interface types.
const (
	InterfaceTerminal = "terminal"
	InterfaceSPI      = "spi"
	InterfaceMemory   = "memory"
	InterfaceNoop     = "noop"
)

// Mode types.
const (
	ModeStates = "states"
	ModePixel  = "pixel"
	ModeStream = "stream"
)

// State types.
const (
	StateGif    = "gif"
	StatePulser = "pulser"
	StateFill   = "fill"
	StateBlank  = "blank"
)

// File is a parsed rig definition.
type File struct {
	Device      string          `toml:"device"`
	DefaultMode string          `toml:"default_mode"`
	FPS         int             `toml:"fps"`
	Interfaces  []InterfaceSpec `toml:"interfaces"`
	Modes       []ModeSpec      `toml:"modes"`
}

// InterfaceSpec describes one sink.
type InterfaceSpec struct {
	Name string `toml:"name"`
	Type string `toml:"type"`

	// Size is the buffer size of memory and noop sinks. Negative accepts any size.
	Size int `toml:"size"`

	Width   int    `toml:"width"`
	Height  int    `toml:"height"`
	Symbol  string `toml:"symbol"`
	Profile string `toml:"profile"`

	Port    string `toml:"port"`
	Pixels  int    `toml:"pixels"`
	FreqKHz int    `toml:"freq_khz"`
}

// ModeSpec describes one mode.
type ModeSpec struct {
	Name string `toml:"name"`
	Type string `toml:"type"`

	// Interfaces lists the sinks of a drawer in buffer order. Empty uses every interface.
	Interfaces []string `toml:"interfaces"`
	// MirrorWidth enables mirrored fragment reassembly with rows of this many pixels.
	MirrorWidth int `toml:"mirror_width"`

	// FPS overrides the rig frame rate for a state handler.
	FPS    int         `toml:"fps"`
	States []StateSpec `toml:"states"`
}

// StateSpec describes one state of a state handler.
type StateSpec struct {
	Name string `toml:"name"`
	Type string `toml:"type"`
	// Transition marks a bridge state. It is only reachable through transitions.
	Transition bool `toml:"transition"`
	// Length is the run time of a transition state, e.g. "1.2s". GIF states default to
	// the length of their longest animation.
	Length string `toml:"length"`

	Interfaces []string `toml:"interfaces"`
	Color      []int    `toml:"color"`

	Number    int     `toml:"number"`
	Intensity float64 `toml:"intensity"`
	Speed     float64 `toml:"speed"`

	Gifs        []GifSpec        `toml:"gifs"`
	Transitions []TransitionSpec `toml:"transitions"`
}

// GifSpec binds a GIF file to an interface.
type GifSpec struct {
	Interface string `toml:"interface"`
	File      string `toml:"file"`
	Transform string `toml:"transform"`
	Width     int    `toml:"width"`
	Height    int    `toml:"height"`
}

// TransitionSpec plays the state Via when entering from any state in From.
type TransitionSpec struct {
	Via  string   `toml:"via"`
	From []string `toml:"from"`
}

// Load reads and validates a rig file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rig file: %w", err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// Parse decodes and validates a rig definition. Unknown keys are rejected.
func Parse(data []byte) (*File, error) {
	var f File
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		var strict *toml.StrictMissingError
		if errors.As(err, &strict) {
			return nil, fmt.Errorf("unknown keys:\n%s", strict.String())
		}
		return nil, fmt.Errorf("parse rig file: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks names, types and references. All problems are reported together.
func (f *File) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if f.FPS < 0 {
		fail("fps must not be negative")
	}

	interfaces := make(map[string]bool, len(f.Interfaces))
	for i, in := range f.Interfaces {
		if in.Name == "" {
			fail("interfaces[%d]: missing name", i)
			continue
		}
		if interfaces[in.Name] {
			fail("interface %q: duplicate name", in.Name)
		}
		interfaces[in.Name] = true

		switch in.Type {
		case InterfaceTerminal, InterfaceMemory, InterfaceNoop:
		case InterfaceSPI:
			if in.Pixels <= 0 {
				fail("interface %q: spi needs pixels", in.Name)
			}
		default:
			fail("interface %q: unknown type %q", in.Name, in.Type)
		}
	}

	if len(f.Modes) == 0 {
		fail("no modes defined")
	}
	modes := make(map[string]bool, len(f.Modes))
	for i, m := range f.Modes {
		if m.Name == "" {
			fail("modes[%d]: missing name", i)
			continue
		}
		if modes[m.Name] {
			fail("mode %q: duplicate name", m.Name)
		}
		modes[m.Name] = true

		for _, name := range m.Interfaces {
			if !interfaces[name] {
				fail("mode %q: unknown interface %q", m.Name, name)
			}
		}

		switch m.Type {
		case ModePixel, ModeStream:
			if len(m.States) > 0 {
				fail("mode %q: %s modes have no states", m.Name, m.Type)
			}
		case ModeStates:
			errs = append(errs, validateStates(m, interfaces)...)
		default:
			fail("mode %q: unknown type %q", m.Name, m.Type)
		}
	}

	if f.DefaultMode != "" && !modes[f.DefaultMode] {
		fail("default_mode %q is not defined", f.DefaultMode)
	}
	return errors.Join(errs...)
}

func validateStates(m ModeSpec, interfaces map[string]bool) []error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("mode %q: "+format, append([]any{m.Name}, args...)...))
	}

	bridges := make(map[string]bool)
	names := make(map[string]bool)
	regular := 0
	for _, s := range m.States {
		if names[s.Name] {
			fail("duplicate state %q", s.Name)
		}
		names[s.Name] = true
		if s.Transition {
			bridges[s.Name] = true
		} else {
			regular++
		}
	}
	if regular == 0 {
		fail("needs at least one state that is not a transition")
	}

	for i, s := range m.States {
		if s.Name == "" {
			fail("states[%d]: missing name", i)
			continue
		}
		if s.Length != "" {
			if d, err := time.ParseDuration(s.Length); err != nil || d <= 0 {
				fail("state %q: invalid length %q", s.Name, s.Length)
			}
		}
		for _, name := range s.Interfaces {
			if !interfaces[name] {
				fail("state %q: unknown interface %q", s.Name, name)
			}
		}

		switch s.Type {
		case StateGif:
			if len(s.Gifs) == 0 {
				fail("state %q: gif state needs gifs", s.Name)
			}
			for _, g := range s.Gifs {
				if !interfaces[g.Interface] {
					fail("state %q: unknown interface %q", s.Name, g.Interface)
				}
				if g.File == "" {
					fail("state %q: gif for %q has no file", s.Name, g.Interface)
				}
				if _, err := layout.ParseTransform(g.Transform); err != nil {
					fail("state %q: %v", s.Name, err)
				}
			}
		case StateFill:
			if len(s.Color) != 3 || slices.ContainsFunc(s.Color, func(c int) bool { return c < 0 || c > 255 }) {
				fail("state %q: color must be three values in 0..255", s.Name)
			}
		case StatePulser, StateBlank:
		default:
			fail("state %q: unknown type %q", s.Name, s.Type)
		}

		if s.Transition && s.Type != StateGif && s.Length == "" {
			fail("state %q: transition states need a length", s.Name)
		}

		for _, t := range s.Transitions {
			switch {
			case !names[t.Via]:
				fail("state %q: unknown transition state %q", s.Name, t.Via)
			case !bridges[t.Via]:
				fail("state %q: %q is not marked as a transition", s.Name, t.Via)
			}
			for _, from := range t.From {
				if !names[from] {
					fail("state %q: transition from unknown state %q", s.Name, from)
				}
			}
		}
	}
	return errs
}
