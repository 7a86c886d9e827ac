package rig

import (
	"bytes"
	"context"
	"image"
	"image/color"
	stdgif "image/gif"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/paws/internal/driver"
	"github.com/smazurov/paws/internal/events"
	"github.com/smazurov/paws/internal/gif"
	"github.com/smazurov/paws/internal/mode"
	"github.com/smazurov/paws/internal/sink"
	"github.com/smazurov/paws/internal/state"
)

// writeGIF writes a single-colour animation of w x 1 pixels with the given frame count.
func writeGIF(t *testing.T, dir, name string, w, frames int) {
	t.Helper()
	palette := color.Palette{color.NRGBA{0, 0, 0, 255}, color.NRGBA{0, 255, 0, 255}}

	anim := &stdgif.GIF{Config: image.Config{Width: w, Height: 1, ColorModel: palette}}
	for range frames {
		img := image.NewPaletted(image.Rect(0, 0, w, 1), palette)
		img.SetColorIndex(0, 0, 1)
		anim.Image = append(anim.Image, img)
		anim.Delay = append(anim.Delay, 10)
	}

	var buf bytes.Buffer
	if err := stdgif.EncodeAll(&buf, anim); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}
}

const wolfRig = `
device = "wolf"
default_mode = "face"
fps = 50

[[interfaces]]
name = "eyes"
type = "memory"
size = 12

[[interfaces]]
name = "tail"
type = "noop"
size = 30

[[modes]]
name = "face"
type = "states"

[[modes.states]]
name = "blink"
type = "gif"
transition = true
gifs = [{ interface = "eyes", file = "blink.gif", transform = "mirror" }]

[[modes.states]]
name = "idle"
type = "gif"
gifs = [{ interface = "eyes", file = "idle.gif", width = 2, height = 1, transform = "duplicate" }]
transitions = [{ via = "blink", from = ["happy"] }]

[[modes.states]]
name = "happy"
type = "fill"
color = [255, 128, 0]
interfaces = ["tail"]

[[modes.states]]
name = "sleep"
type = "pulser"
number = 10
interfaces = ["tail"]

[[modes.states]]
name = "off"
type = "blank"

[[modes]]
name = "draw"
type = "pixel"
interfaces = ["tail", "eyes"]

[[modes]]
name = "remote"
type = "stream"
interfaces = ["eyes"]
mirror_width = 2
`

func buildWolf(t *testing.T) (*Rig, *gif.Cache) {
	t.Helper()
	dir := t.TempDir()
	writeGIF(t, dir, "blink.gif", 2, 3)
	writeGIF(t, dir, "idle.gif", 2, 2)

	f, err := Parse([]byte(wolfRig))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	cache, err := gif.NewCache(8)
	if err != nil {
		t.Fatal(err)
	}
	r, err := Build(f, Env{Bus: events.New(), Gifs: cache, BaseDir: dir, Terminal: io.Discard})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	return r, cache
}

func TestBuildWolfRig(t *testing.T) {
	r, cache := buildWolf(t)

	if r.Device != "wolf" || r.DefaultMode != "face" {
		t.Errorf("device = %q, default = %q", r.Device, r.DefaultMode)
	}
	if got := len(r.Interfaces); got != 2 {
		t.Fatalf("interfaces = %d", got)
	}
	if _, ok := r.Interfaces[0].(*sink.Recorder); !ok {
		t.Errorf("eyes should be a recorder, got %T", r.Interfaces[0])
	}
	if cache.Len() != 2 {
		t.Errorf("cached timelines = %d, want 2", cache.Len())
	}

	names := make([]string, 0, len(r.Modes))
	for _, m := range r.Modes {
		names = append(names, m.Name())
	}
	if !slices.Equal(names, []string{"face", "draw", "remote"}) {
		t.Errorf("modes = %v", names)
	}

	sm, ok := mode.AsStateMachine(r.Modes[0])
	if !ok {
		t.Fatal("face should be a state machine")
	}
	if got := sm.ListStateNames(); !slices.Equal(got, []string{"idle", "happy", "sleep", "off"}) {
		t.Errorf("states = %v, transition states must not be registered", got)
	}

	handler := r.Modes[0].(*state.Handler)
	idle := handler.ListStates()[0]
	transitions := idle.Transitions()
	if len(transitions) != 1 || transitions[0].State.Name() != "blink" || !transitions[0].Matches("happy") {
		t.Fatalf("idle transitions = %+v", transitions)
	}
	if length, ok := transitions[0].State.Length(); !ok || length != 300*time.Millisecond {
		t.Errorf("blink length = %v, %v", length, ok)
	}

	pixel, ok := mode.AsBufferTarget(r.Modes[1])
	if !ok || pixel.Kind() != mode.KindPixel || pixel.BufferSize() != 42 {
		t.Errorf("draw mode = %v", pixel)
	}
	stream, ok := mode.AsBufferTarget(r.Modes[2])
	if !ok || stream.Kind() != mode.KindStream || stream.BufferSize() != 12 {
		t.Errorf("remote mode = %v", stream)
	}
}

func TestApplyAndStart(t *testing.T) {
	r, _ := buildWolf(t)
	d := driver.New()
	if err := r.Apply(d); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		_ = d.Shutdown(context.Background())
	})
	if err := d.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if d.ModeName() != "face" {
		t.Errorf("active mode = %q", d.ModeName())
	}

	eyes := r.Interfaces[0].(*sink.Recorder)
	deadline := time.Now().Add(time.Second)
	for eyes.Count() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	last, ok := eyes.Last()
	if !ok {
		t.Fatal("idle state never drew the eyes")
	}
	if !bytes.Equal(last, []byte{0, 255, 0, 0, 0, 0, 0, 255, 0, 0, 0, 0}) {
		t.Errorf("eyes frame = %v", last)
	}

	if changed, err := d.SetMode(ctx, "draw"); err != nil || !changed {
		t.Fatalf("SetMode(draw) = %v, %v", changed, err)
	}
	target, _ := d.ActiveBufferTarget()
	frame := make([]byte, 42)
	frame[30] = 7
	if _, err := target.Update(ctx, frame); err != nil {
		t.Fatal(err)
	}
	if last, _ := eyes.Last(); last[0] != 7 {
		t.Errorf("eyes should receive bytes 30..41 of the frame, got %v", last)
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name string
		rig  string
		want string
	}{
		{
			name: "no modes",
			rig:  `[[interfaces]]` + "\nname = \"a\"\ntype = \"noop\"\n",
			want: "no modes defined",
		},
		{
			name: "unknown interface type",
			rig:  "[[interfaces]]\nname = \"a\"\ntype = \"laser\"\n[[modes]]\nname = \"m\"\ntype = \"pixel\"\n",
			want: `unknown type "laser"`,
		},
		{
			name: "spi without pixels",
			rig:  "[[interfaces]]\nname = \"a\"\ntype = \"spi\"\n[[modes]]\nname = \"m\"\ntype = \"pixel\"\n",
			want: "spi needs pixels",
		},
		{
			name: "unknown default mode",
			rig:  "default_mode = \"x\"\n[[modes]]\nname = \"m\"\ntype = \"pixel\"\n",
			want: `default_mode "x" is not defined`,
		},
		{
			name: "mode references unknown interface",
			rig:  "[[modes]]\nname = \"m\"\ntype = \"stream\"\ninterfaces = [\"ghost\"]\n",
			want: `unknown interface "ghost"`,
		},
		{
			name: "transition via regular state",
			rig: `
[[modes]]
name = "face"
type = "states"
[[modes.states]]
name = "a"
type = "blank"
[[modes.states]]
name = "b"
type = "blank"
transitions = [{ via = "a", from = ["a"] }]
`,
			want: `"a" is not marked as a transition`,
		},
		{
			name: "transition without length",
			rig: `
[[modes]]
name = "face"
type = "states"
[[modes.states]]
name = "fade"
type = "fill"
color = [1, 2, 3]
transition = true
[[modes.states]]
name = "a"
type = "blank"
`,
			want: "transition states need a length",
		},
		{
			name: "only transitions",
			rig: `
[[modes]]
name = "face"
type = "states"
[[modes.states]]
name = "fade"
type = "blank"
transition = true
length = "1s"
`,
			want: "at least one state",
		},
		{
			name: "bad colour",
			rig: `
[[modes]]
name = "face"
type = "states"
[[modes.states]]
name = "a"
type = "fill"
color = [300, 0]
`,
			want: "color must be three values",
		},
		{
			name: "bad transform",
			rig: `
[[interfaces]]
name = "eyes"
type = "memory"
[[modes]]
name = "face"
type = "states"
[[modes.states]]
name = "a"
type = "gif"
gifs = [{ interface = "eyes", file = "a.gif", transform = "spin" }]
`,
			want: `unknown transform "spin"`,
		},
		{
			name: "unknown key",
			rig:  "fsp = 30\n[[modes]]\nname = \"m\"\ntype = \"pixel\"\n",
			want: "unknown keys",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.rig))
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to contain %q", err, tt.want)
			}
		})
	}
}

func TestBuildRejectsGifSizeMismatch(t *testing.T) {
	dir := t.TempDir()
	writeGIF(t, dir, "wide.gif", 5, 1)

	f, err := Parse([]byte(`
[[interfaces]]
name = "eyes"
type = "memory"
size = 6
[[modes]]
name = "face"
type = "states"
[[modes.states]]
name = "a"
type = "gif"
gifs = [{ interface = "eyes", file = "wide.gif" }]
`))
	if err != nil {
		t.Fatal(err)
	}
	_, err = Build(f, Env{BaseDir: dir})
	if err == nil || !strings.Contains(err.Error(), "renders 15 bytes") {
		t.Fatalf("Build() error = %v", err)
	}
}

func TestBuildValidatesFile(t *testing.T) {
	f := &File{
		Interfaces: []InterfaceSpec{{Name: "eyes", Type: InterfaceMemory, Size: 6}},
		Modes: []ModeSpec{{
			Name: "face",
			Type: ModeStates,
			States: []StateSpec{{
				Name: "a",
				Type: StateGif,
				Gifs: []GifSpec{{Interface: "ghost", File: "blink.gif"}},
			}},
		}},
	}

	_, err := Build(f, Env{BaseDir: t.TempDir(), Terminal: io.Discard})
	if err == nil || !strings.Contains(err.Error(), `unknown interface "ghost"`) {
		t.Fatalf("Build() error = %v", err)
	}
}

func TestBuildScalesGifToTerminal(t *testing.T) {
	dir := t.TempDir()
	writeGIF(t, dir, "face.gif", 8, 1)

	f, err := Parse([]byte(`
[[interfaces]]
name = "panel"
type = "terminal"
width = 4
height = 2
profile = "ascii"
[[modes]]
name = "face"
type = "states"
[[modes.states]]
name = "a"
type = "gif"
gifs = [{ interface = "panel", file = "face.gif", transform = "mirror" }]
`))
	if err != nil {
		t.Fatal(err)
	}
	r, err := Build(f, Env{BaseDir: dir, Terminal: io.Discard})
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	g := r.Modes[0].(*state.Handler).ListStates()[0].(*state.Gif)
	if size := g.Definitions()[0].Timeline.BufferSize(); size != 24 {
		t.Errorf("timeline buffer = %d, want 24", size)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "rig.toml")); err == nil {
		t.Error("expected an error for a missing rig file")
	}
}
