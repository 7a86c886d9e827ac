// Package terminal renders a rig interface as a grid of coloured symbols in a terminal.
package terminal

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"github.com/smazurov/paws/internal/animation"
	"github.com/smazurov/paws/internal/component"
	"github.com/smazurov/paws/internal/logging"
	"github.com/smazurov/paws/internal/sink"
)

// Options configures a terminal sink.
type Options struct {
	Width  int
	Height int
	// Symbol represents one LED. Defaults to "!".
	Symbol string
	// FPS caps the redraw rate. Buffers supplied between redraws are coalesced.
	FPS int
	// Profile forces a colour profile: "truecolor", "ansi256", "ansi" or "ascii".
	// Empty detects it from the output.
	Profile string
	Clock   animation.Clock
}

func (o *Options) defaults() {
	if o.Width <= 0 {
		o.Width = 64
	}
	if o.Height <= 0 {
		o.Height = 32
	}
	if o.Symbol == "" {
		o.Symbol = "!"
	}
	if o.FPS <= 0 {
		o.FPS = 30
	}
}

// ParseProfile maps a profile name to a termenv profile.
func ParseProfile(name string) (termenv.Profile, error) {
	switch strings.ToLower(name) {
	case "truecolor", "true-color", "24bit":
		return termenv.TrueColor, nil
	case "ansi256", "256":
		return termenv.ANSI256, nil
	case "ansi", "16":
		return termenv.ANSI, nil
	case "ascii", "none":
		return termenv.Ascii, nil
	}
	return termenv.Ascii, fmt.Errorf("unknown color profile %q", name)
}

// Sink draws the latest supplied buffer at most FPS times per second.
type Sink struct {
	component.Identity
	opts     Options
	output   *termenv.Output
	renderer *lipgloss.Renderer
	header   lipgloss.Style
	loop     *animation.Loop
	logger   *slog.Logger

	mu     sync.Mutex
	frame  []byte
	queued bool
	drawn  int

	cancel context.CancelFunc
	done   chan struct{}
}

var _ sink.Sink = (*Sink)(nil)

// New creates a terminal sink writing to out.
func New(name string, out io.Writer, opts Options) (*Sink, error) {
	opts.defaults()

	var outputOpts []termenv.OutputOption
	if opts.Profile != "" {
		profile, err := ParseProfile(opts.Profile)
		if err != nil {
			return nil, err
		}
		outputOpts = append(outputOpts, termenv.WithProfile(profile))
	}

	s := &Sink{
		Identity: component.NewIdentity(name),
		opts:     opts,
		output:   termenv.NewOutput(out, outputOpts...),
		renderer: lipgloss.NewRenderer(out, outputOpts...),
		loop:     animation.NewLoop(opts.FPS, opts.Clock),
		logger:   logging.GetLogger("sinks"),
	}
	s.header = s.renderer.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	return s, nil
}

// BufferSize implements sink.Sink.
func (s *Sink) BufferSize() (int, bool) {
	return s.opts.Width * s.opts.Height * 3, true
}

// Init clears the screen and starts the redraw loop. The loop stops with ctx or Close.
func (s *Sink) Init(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.done != nil {
		return nil
	}

	s.output.ClearScreen()
	s.output.HideCursor()

	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go func() {
		defer close(s.done)
		_ = s.loop.Run(loopCtx)
	}()
	s.logger.Debug("Terminal sink started", "sink", s.Name(), "width", s.opts.Width, "height", s.opts.Height)
	return nil
}

// Supply stores a copy of buf and schedules a redraw.
func (s *Sink) Supply(_ context.Context, buf []byte) error {
	if err := sink.CheckSize(s, buf); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.frame = append(s.frame[:0], buf...)
	if !s.queued {
		s.queued = true
		s.loop.Request(s.draw)
	}
	return nil
}

func (s *Sink) draw(time.Time) {
	s.mu.Lock()
	frame := make([]byte, len(s.frame))
	copy(frame, s.frame)
	s.queued = false
	s.drawn++
	s.mu.Unlock()

	s.output.MoveCursor(1, 1)
	if _, err := io.WriteString(s.output, s.Render(frame)); err != nil {
		s.logger.Debug("Terminal write failed", "sink", s.Name(), "error", err)
	}
}

// Render formats a buffer as the header line followed by one line per row.
func (s *Sink) Render(frame []byte) string {
	var b strings.Builder
	b.WriteString(s.header.Render(s.Name()))
	b.WriteString("\n\n")

	for y := range s.opts.Height {
		for x := range s.opts.Width {
			i := (y*s.opts.Width + x) * 3
			if i+2 >= len(frame) {
				b.WriteString(s.opts.Symbol)
			} else {
				hex := fmt.Sprintf("#%02x%02x%02x", frame[i], frame[i+1], frame[i+2])
				b.WriteString(s.output.String(s.opts.Symbol).Foreground(s.output.Color(hex)).String())
			}
			b.WriteByte(' ')
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Redraws returns how many times the grid has been written.
func (s *Sink) Redraws() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.drawn
}

// Close stops the redraw loop and restores the cursor.
func (s *Sink) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	s.output.ShowCursor()
	return nil
}
