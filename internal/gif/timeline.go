// Package gif turns animated GIFs into pre-rendered device frames with a cumulative delay
// table for mapping loop time to frames.
package gif

import (
	"fmt"
	"sort"
	"time"

	"github.com/smazurov/paws/internal/layout"
	"github.com/smazurov/paws/internal/rigerr"
)

// Timeline is an immutable sequence of device buffers. delays[i] is the cumulative time at
// which frame i ends, so the table is strictly increasing.
type Timeline struct {
	frames    [][]byte
	delays    []time.Duration
	width     int
	height    int
	transform layout.Transform
}

// NewTimeline builds a timeline from per-frame display durations.
func NewTimeline(frames [][]byte, durations []time.Duration) (*Timeline, error) {
	if len(frames) == 0 {
		return nil, rigerr.New(rigerr.CodeCorruptTimeline, "timeline has no frames", nil)
	}
	if len(frames) != len(durations) {
		return nil, rigerr.New(rigerr.CodeCorruptTimeline,
			fmt.Sprintf("%d frames but %d delays", len(frames), len(durations)), nil)
	}

	delays := make([]time.Duration, len(durations))
	var total time.Duration
	for i, d := range durations {
		if d <= 0 {
			return nil, rigerr.New(rigerr.CodeCorruptTimeline,
				fmt.Sprintf("frame %d has non-positive delay %v", i, d), nil)
		}
		total += d
		delays[i] = total
	}
	return &Timeline{frames: frames, delays: delays}, nil
}

// Length is the loop length, the last cumulative delay.
func (tl *Timeline) Length() time.Duration {
	return tl.delays[len(tl.delays)-1]
}

// Len returns the number of frames.
func (tl *Timeline) Len() int {
	return len(tl.frames)
}

// Delays returns a copy of the cumulative delay table.
func (tl *Timeline) Delays() []time.Duration {
	out := make([]time.Duration, len(tl.delays))
	copy(out, tl.delays)
	return out
}

// BufferSize is the length of every frame buffer.
func (tl *Timeline) BufferSize() int {
	return len(tl.frames[0])
}

// Bounds returns the source size in pixels and the transform used to render it.
func (tl *Timeline) Bounds() (width, height int, transform layout.Transform) {
	return tl.width, tl.height, tl.transform
}

// Frame returns frame i. The buffer is shared and must not be modified.
func (tl *Timeline) Frame(i int) []byte {
	return tl.frames[i]
}

// FrameIndex maps elapsed loop time to a frame index. Elapsed time wraps at Length; a
// wrapped value of exactly zero is frame 0, otherwise the first frame whose cumulative
// delay is strictly greater is returned.
func (tl *Timeline) FrameIndex(elapsed time.Duration) (int, error) {
	length := tl.Length()
	if length <= 0 {
		return 0, rigerr.New(rigerr.CodeCorruptTimeline, "timeline length is zero", nil)
	}

	r := elapsed % length
	if r < 0 {
		r += length
	}
	if r == 0 {
		return 0, nil
	}

	i := sort.Search(len(tl.delays), func(i int) bool { return tl.delays[i] > r })
	if i == len(tl.delays) {
		return 0, rigerr.New(rigerr.CodeCorruptTimeline, fmt.Sprintf("no frame ends after %v", r), nil)
	}
	return i, nil
}

// FrameAt returns the buffer shown at elapsed loop time.
func (tl *Timeline) FrameAt(elapsed time.Duration) ([]byte, error) {
	i, err := tl.FrameIndex(elapsed)
	if err != nil {
		return nil, err
	}
	return tl.frames[i], nil
}
