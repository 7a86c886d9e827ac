package terminal

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/muesli/termenv"
	"github.com/smazurov/paws/internal/rigerr"
)

func newTestSink(t *testing.T, out *bytes.Buffer, opts Options) *Sink {
	t.Helper()
	if opts.Profile == "" {
		opts.Profile = "ascii"
	}
	s, err := New("face", out, opts)
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestDefaults(t *testing.T) {
	s := newTestSink(t, &bytes.Buffer{}, Options{})
	size, fixed := s.BufferSize()
	if !fixed || size != 64*32*3 {
		t.Errorf("BufferSize() = %d, %v", size, fixed)
	}
	if s.opts.Symbol != "!" {
		t.Errorf("symbol = %q", s.opts.Symbol)
	}
}

func TestRenderGrid(t *testing.T) {
	s := newTestSink(t, &bytes.Buffer{}, Options{Width: 3, Height: 2, Symbol: "o"})

	got := s.Render(make([]byte, 18))
	want := "face\n\no o o \no o o \n"
	if got != want {
		t.Errorf("Render() = %q, want %q", got, want)
	}
}

func TestRenderTrueColor(t *testing.T) {
	s := newTestSink(t, &bytes.Buffer{}, Options{Width: 1, Height: 1, Profile: "truecolor"})

	got := s.Render([]byte{255, 0, 128})
	if !strings.Contains(got, "38;2;255;0;128") {
		t.Errorf("expected a 24-bit foreground sequence, got %q", got)
	}
}

func TestSupplyCoalescesRedraws(t *testing.T) {
	out := &bytes.Buffer{}
	s := newTestSink(t, out, Options{Width: 2, Height: 1, Symbol: "#"})
	ctx := context.Background()

	for range 3 {
		if err := s.Supply(ctx, make([]byte, 6)); err != nil {
			t.Fatal(err)
		}
	}
	if n := s.loop.Pending(); n != 1 {
		t.Fatalf("pending redraws = %d, want 1", n)
	}

	s.loop.Tick()
	if s.Redraws() != 1 {
		t.Errorf("redraws = %d, want 1", s.Redraws())
	}
	if !strings.Contains(out.String(), "# # \n") {
		t.Errorf("output = %q", out.String())
	}

	if err := s.Supply(ctx, make([]byte, 6)); err != nil {
		t.Fatal(err)
	}
	if n := s.loop.Pending(); n != 1 {
		t.Errorf("a redraw should be queued again after drawing, pending = %d", n)
	}
}

func TestSupplyRejectsWrongSize(t *testing.T) {
	s := newTestSink(t, &bytes.Buffer{}, Options{Width: 2, Height: 2})
	if err := s.Supply(context.Background(), make([]byte, 5)); !errors.Is(err, rigerr.ErrSizeMismatch) {
		t.Fatalf("expected size mismatch, got %v", err)
	}
	if s.loop.Pending() != 0 {
		t.Error("rejected buffer should not schedule a redraw")
	}
}

func TestInitAndClose(t *testing.T) {
	out := &bytes.Buffer{}
	s := newTestSink(t, out, Options{Width: 1, Height: 1, FPS: 200})

	if err := s.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := s.Supply(context.Background(), []byte{1, 2, 3}); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(time.Second)
	for s.Redraws() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if s.Redraws() == 0 {
		t.Error("loop never redrew")
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close() = %v", err)
	}
}

func TestParseProfile(t *testing.T) {
	tests := map[string]termenv.Profile{
		"truecolor": termenv.TrueColor,
		"ANSI256":   termenv.ANSI256,
		"ansi":      termenv.ANSI,
		"ascii":     termenv.Ascii,
	}
	for name, want := range tests {
		got, err := ParseProfile(name)
		if err != nil || got != want {
			t.Errorf("ParseProfile(%q) = %v, %v", name, got, err)
		}
	}
	if _, err := ParseProfile("cmyk"); err == nil {
		t.Error("unknown profile should fail")
	}
	if _, err := New("x", &bytes.Buffer{}, Options{Profile: "cmyk"}); err == nil {
		t.Error("New should reject an unknown profile")
	}
}
