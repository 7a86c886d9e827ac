// Package layout converts images and raw RGB rows into device buffer layout.
//
// Device buffers are packed RGB, three bytes per pixel, rows top to bottom.
// Mirror and Duplicate produce rows twice as wide as the source.
package layout

import (
	"fmt"
	"image"
	"image/color"
	"strings"
)

// BytesPerPixel is the packed RGB pixel size.
const BytesPerPixel = 3

// Transform selects how a source row maps onto the device row.
type Transform int

const (
	// Normal copies each pixel to the same position.
	Normal Transform = iota
	// Mirror writes each pixel at x and at 2w-1-x of a double-width row.
	Mirror
	// Duplicate writes each pixel at x and at x+w of a double-width row.
	Duplicate
)

func (t Transform) String() string {
	switch t {
	case Mirror:
		return "mirror"
	case Duplicate:
		return "duplicate"
	default:
		return "normal"
	}
}

// ParseTransform accepts "normal", "mirror" and "duplicate". Empty means normal.
func ParseTransform(s string) (Transform, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "normal":
		return Normal, nil
	case "mirror":
		return Mirror, nil
	case "duplicate":
		return Duplicate, nil
	default:
		return Normal, fmt.Errorf("unknown transform %q", s)
	}
}

// Factor is the output row width multiplier.
func (t Transform) Factor() int {
	if t == Normal {
		return 1
	}
	return 2
}

// Size returns the device buffer length for a w×h source.
func (t Transform) Size(w, h int) int {
	return w * t.Factor() * h * BytesPerPixel
}

// put writes one pixel and its copy according to t.
func (t Transform) put(dst []byte, w, x, y int, r, g, b byte) {
	row := w * t.Factor()
	i := BytesPerPixel * (row*y + x)
	dst[i], dst[i+1], dst[i+2] = r, g, b

	switch t {
	case Mirror:
		j := BytesPerPixel * (row*y + row - 1 - x)
		dst[j], dst[j+1], dst[j+2] = r, g, b
	case Duplicate:
		j := i + BytesPerPixel*w
		dst[j], dst[j+1], dst[j+2] = r, g, b
	}
}

// Render converts img to a device buffer. Colours are premultiplied by alpha and floored.
func Render(img image.Image, t Transform) []byte {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	dst := make([]byte, t.Size(w, h))

	for y := range h {
		for x := range w {
			c := color.NRGBAModel.Convert(img.At(bounds.Min.X+x, bounds.Min.Y+y)).(color.NRGBA)
			t.put(dst, w, x, y, premultiply(c.R, c.A), premultiply(c.G, c.A), premultiply(c.B, c.A))
		}
	}
	return dst
}

// Expand applies t to a packed RGB buffer whose rows are width pixels wide.
func Expand(src []byte, width int, t Transform) ([]byte, error) {
	if width <= 0 {
		return nil, fmt.Errorf("layout: width must be positive, got %d", width)
	}
	rowBytes := width * BytesPerPixel
	if len(src)%rowBytes != 0 {
		return nil, fmt.Errorf("layout: %d bytes is not a whole number of %d-pixel rows", len(src), width)
	}
	if t == Normal {
		out := make([]byte, len(src))
		copy(out, src)
		return out, nil
	}

	h := len(src) / rowBytes
	dst := make([]byte, t.Size(width, h))
	for y := range h {
		for x := range width {
			i := BytesPerPixel * (width*y + x)
			t.put(dst, width, x, y, src[i], src[i+1], src[i+2])
		}
	}
	return dst, nil
}

func premultiply(c, a uint8) byte {
	return byte(uint16(c) * uint16(a) / 255)
}
