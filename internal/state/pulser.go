package state

import (
	"context"
	"math"
	"math/rand/v2"
	"time"
)

// PulserOptions configures a Pulser.
type PulserOptions struct {
	// Interfaces receive the pulse buffer.
	Interfaces []string
	// Number of LEDs, default 100.
	Number int
	// Intensity scales the brightness, default 1.
	Intensity float64
	// Speed scales every LED frequency, default 1.
	Speed float64
	// Rand seeds the LED frequencies. Nil uses the global source.
	Rand *rand.Rand
}

// Pulser drives each LED with its own slow sine wave, grey on all three channels.
type Pulser struct {
	Base
	interfaces []string
	intensity  float64
	freqs      []float64
	buf        []byte
}

// NewPulser creates a pulser state.
func NewPulser(name string, opts PulserOptions, baseOpts ...BaseOption) *Pulser {
	if opts.Number <= 0 {
		opts.Number = 100
	}
	if opts.Intensity == 0 {
		opts.Intensity = 1
	}
	if opts.Speed == 0 {
		opts.Speed = 1
	}
	random := rand.Float64
	if opts.Rand != nil {
		random = opts.Rand.Float64
	}

	freqs := make([]float64, opts.Number)
	for i := range freqs {
		freqs[i] = 5 * random() * opts.Speed
	}

	return &Pulser{
		Base:       NewBase(name, baseOpts...),
		interfaces: opts.Interfaces,
		intensity:  opts.Intensity,
		freqs:      freqs,
		buf:        make([]byte, opts.Number*3),
	}
}

// BufferSize is the length of the pulse buffer.
func (p *Pulser) BufferSize() int {
	return len(p.buf)
}

// Level returns the channel value of LED i at t.
func (p *Pulser) Level(i int, t time.Duration) byte {
	ms := float64(t) / float64(time.Millisecond)
	v := math.Max(0, 255*math.Sin(p.freqs[i]*ms/1000)) * p.intensity
	return byte(int(v) & 0xFF)
}

// ExecuteFrame implements State.
func (p *Pulser) ExecuteFrame(ctx context.Context, f Frame) error {
	for i := range p.freqs {
		c := p.Level(i, f.T)
		p.buf[i*3], p.buf[i*3+1], p.buf[i*3+2] = c, c, c
	}
	return f.SupplyEach(ctx, p.interfaces, p.buf)
}
