package gif

import (
	"bytes"
	"errors"
	"image"
	"image/color"
	stdgif "image/gif"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/smazurov/paws/internal/layout"
	"github.com/smazurov/paws/internal/rigerr"
)

func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }

func threeFrameTimeline(t *testing.T) *Timeline {
	t.Helper()
	frames := [][]byte{{0}, {1}, {2}}
	// cumulative 100, 250, 400
	tl, err := NewTimeline(frames, []time.Duration{ms(100), ms(150), ms(150)})
	if err != nil {
		t.Fatal(err)
	}
	return tl
}

func TestTimelineCumulativeDelays(t *testing.T) {
	tl := threeFrameTimeline(t)

	want := []time.Duration{ms(100), ms(250), ms(400)}
	for i, d := range tl.Delays() {
		if d != want[i] {
			t.Errorf("delays[%d] = %v, want %v", i, d, want[i])
		}
	}
	if tl.Length() != ms(400) {
		t.Errorf("Length() = %v, want 400ms", tl.Length())
	}
}

func TestFrameIndex(t *testing.T) {
	tl := threeFrameTimeline(t)

	tests := []struct {
		elapsed time.Duration
		want    int
	}{
		{0, 0},
		{ms(50), 0},
		{ms(99), 0},
		{ms(100), 1}, // first delay strictly greater than 100 is 250
		{ms(150), 1},
		{ms(250), 2},
		{ms(399), 2},
		{ms(400), 0}, // wraps to zero
		{ms(550), 1},
		{ms(-50), 2}, // negative wraps backwards
	}
	for _, tt := range tests {
		got, err := tl.FrameIndex(tt.elapsed)
		if err != nil {
			t.Fatalf("FrameIndex(%v) error: %v", tt.elapsed, err)
		}
		if got != tt.want {
			t.Errorf("FrameIndex(%v) = %d, want %d", tt.elapsed, got, tt.want)
		}
	}

	buf, err := tl.FrameAt(ms(150))
	if err != nil || buf[0] != 1 {
		t.Errorf("FrameAt(150ms) = %v, %v", buf, err)
	}
}

func TestCorruptTimeline(t *testing.T) {
	if _, err := NewTimeline(nil, nil); !errors.Is(err, rigerr.ErrCorruptTimeline) {
		t.Errorf("empty timeline: %v", err)
	}
	if _, err := NewTimeline([][]byte{{0}, {1}}, []time.Duration{ms(10)}); !errors.Is(err, rigerr.ErrCorruptTimeline) {
		t.Errorf("length mismatch: %v", err)
	}
	if _, err := NewTimeline([][]byte{{0}}, []time.Duration{0}); !errors.Is(err, rigerr.ErrCorruptTimeline) {
		t.Errorf("zero delay: %v", err)
	}

	broken := &Timeline{frames: [][]byte{{0}}, delays: []time.Duration{0}}
	if _, err := broken.FrameIndex(ms(10)); !errors.Is(err, rigerr.ErrCorruptTimeline) {
		t.Errorf("zero-length lookup: %v", err)
	}
}

// encodeGIF builds a 2x1 animation: red then blue, 10cs and 0cs (defaults to 10cs).
func encodeGIF(t *testing.T) []byte {
	t.Helper()
	palette := color.Palette{color.Transparent, color.NRGBA{255, 0, 0, 255}, color.NRGBA{0, 0, 255, 255}}

	red := image.NewPaletted(image.Rect(0, 0, 2, 1), palette)
	red.SetColorIndex(0, 0, 1)
	red.SetColorIndex(1, 0, 1)

	blue := image.NewPaletted(image.Rect(1, 0, 2, 1), palette)
	blue.SetColorIndex(1, 0, 2)

	var buf bytes.Buffer
	err := stdgif.EncodeAll(&buf, &stdgif.GIF{
		Image:    []*image.Paletted{red, blue},
		Delay:    []int{10, 0},
		Disposal: []byte{stdgif.DisposalNone, stdgif.DisposalNone},
		Config:   image.Config{Width: 2, Height: 1, ColorModel: palette},
	})
	if err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeComposesFrames(t *testing.T) {
	tl, err := Decode(bytes.NewReader(encodeGIF(t)), Options{})
	if err != nil {
		t.Fatal(err)
	}
	if tl.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tl.Len())
	}
	if tl.Length() != ms(200) {
		t.Errorf("Length() = %v, want 200ms", tl.Length())
	}

	if got := tl.Frame(0); !bytes.Equal(got, []byte{255, 0, 0, 255, 0, 0}) {
		t.Errorf("frame 0 = %v", got)
	}
	// Second frame only covers x=1; x=0 keeps the red pixel.
	if got := tl.Frame(1); !bytes.Equal(got, []byte{255, 0, 0, 0, 0, 255}) {
		t.Errorf("frame 1 = %v", got)
	}
}

func TestDecodeMirrorAndScale(t *testing.T) {
	tl, err := Decode(bytes.NewReader(encodeGIF(t)), Options{Transform: layout.Mirror})
	if err != nil {
		t.Fatal(err)
	}
	if tl.BufferSize() != 12 {
		t.Errorf("mirror BufferSize() = %d, want 12", tl.BufferSize())
	}

	scaled, err := Decode(bytes.NewReader(encodeGIF(t)), Options{Width: 4, Height: 2})
	if err != nil {
		t.Fatal(err)
	}
	w, h, _ := scaled.Bounds()
	if w != 4 || h != 2 || scaled.BufferSize() != 24 {
		t.Errorf("scaled bounds %dx%d size %d", w, h, scaled.BufferSize())
	}
}

func TestCacheReusesTimelines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blink.gif")
	if err := os.WriteFile(path, encodeGIF(t), 0o600); err != nil {
		t.Fatal(err)
	}

	cache, err := NewCache(4)
	if err != nil {
		t.Fatal(err)
	}
	loads := 0
	cache.load = func(p string, o Options) (*Timeline, error) {
		loads++
		return LoadFile(p, o)
	}

	a, err := cache.Load(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	b, _ := cache.Load(path, Options{})
	if a != b || loads != 1 {
		t.Errorf("expected a single decode, got %d", loads)
	}

	if _, err := cache.Load(path, Options{Transform: layout.Duplicate}); err != nil {
		t.Fatal(err)
	}
	if loads != 2 || cache.Len() != 2 {
		t.Errorf("transform should be part of the key: loads=%d len=%d", loads, cache.Len())
	}

	if _, err := cache.Load(filepath.Join(t.TempDir(), "missing.gif"), Options{}); err == nil {
		t.Error("expected error for missing file")
	}
}
