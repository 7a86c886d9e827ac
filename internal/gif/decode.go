package gif

import (
	"fmt"
	"image"
	"image/color"
	stdgif "image/gif"
	"io"
	"os"
	"time"

	"golang.org/x/image/draw"

	"github.com/smazurov/paws/internal/layout"
)

// defaultDelay replaces a zero GIF delay. Zero is commonly shown as 100ms.
const defaultDelay = 10

// centisecond is the GIF delay unit.
const centisecond = 10 * time.Millisecond

// Options controls how frames are rendered.
type Options struct {
	Transform layout.Transform
	// Width and Height scale every frame when set. Zero keeps the source size.
	Width  int
	Height int
}

// LoadFile decodes the GIF at path.
func LoadFile(path string, opts Options) (*Timeline, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open gif: %w", err)
	}
	defer f.Close()

	tl, err := Decode(f, opts)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tl, nil
}

// Decode reads every frame, composes it onto the logical screen honouring disposal
// methods, and renders it into device layout.
func Decode(r io.Reader, opts Options) (*Timeline, error) {
	g, err := stdgif.DecodeAll(r)
	if err != nil {
		return nil, fmt.Errorf("decode gif: %w", err)
	}
	if len(g.Image) == 0 {
		return nil, fmt.Errorf("decode gif: no frames")
	}

	screen := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	if screen.Empty() {
		screen = g.Image[0].Bounds()
	}
	canvas := image.NewNRGBA(screen)

	outW, outH := screen.Dx(), screen.Dy()
	if opts.Width > 0 && opts.Height > 0 {
		outW, outH = opts.Width, opts.Height
	}

	frames := make([][]byte, 0, len(g.Image))
	durations := make([]time.Duration, 0, len(g.Image))
	for i, frame := range g.Image {
		disposal := byte(0)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}

		var previous *image.NRGBA
		if disposal == stdgif.DisposalPrevious {
			previous = image.NewNRGBA(screen)
			draw.Draw(previous, screen, canvas, screen.Min, draw.Src)
		}

		draw.Draw(canvas, frame.Bounds(), frame, frame.Bounds().Min, draw.Over)
		frames = append(frames, layout.Render(scale(canvas, outW, outH), opts.Transform))

		delay := defaultDelay
		if i < len(g.Delay) && g.Delay[i] > 0 {
			delay = g.Delay[i]
		}
		durations = append(durations, time.Duration(delay)*centisecond)

		switch disposal {
		case stdgif.DisposalBackground:
			draw.Draw(canvas, frame.Bounds(), image.NewUniform(color.Transparent), image.Point{}, draw.Src)
		case stdgif.DisposalPrevious:
			draw.Draw(canvas, screen, previous, screen.Min, draw.Src)
		}
	}

	tl, err := NewTimeline(frames, durations)
	if err != nil {
		return nil, err
	}
	tl.width, tl.height, tl.transform = outW, outH, opts.Transform
	return tl, nil
}

func scale(src *image.NRGBA, w, h int) image.Image {
	if src.Bounds().Dx() == w && src.Bounds().Dy() == h {
		return src
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.NearestNeighbor.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return dst
}
