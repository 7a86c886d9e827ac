// Package random provides a debug controller that cycles through registered modes.
package random

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/smazurov/paws/internal/component"
	"github.com/smazurov/paws/internal/driver"
)

// Controller switches to a randomly chosen mode, waits between MinDelay and
// MinDelay+Spread, and repeats until its context ends.
type Controller struct {
	component.Identity
	logger   *slog.Logger
	rand     *rand.Rand
	minDelay time.Duration
	spread   time.Duration
	done     chan struct{}
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the controller logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// WithRand sets the random source. Tests use a seeded one.
func WithRand(r *rand.Rand) Option {
	return func(c *Controller) { c.rand = r }
}

// WithDelay overrides the wait between switches.
func WithDelay(minDelay, spread time.Duration) Option {
	return func(c *Controller) {
		c.minDelay = minDelay
		c.spread = spread
	}
}

// New creates a random mode controller with a 1s to 11s switch interval.
func New(name string, opts ...Option) *Controller {
	if name == "" {
		name = "random"
	}
	c := &Controller{
		Identity: component.NewIdentity(name),
		logger:   slog.Default(),
		rand:     rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		minDelay: time.Second,
		spread:   10 * time.Second,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Init implements driver.Controller. The loop runs until ctx is done.
func (c *Controller) Init(ctx context.Context, d *driver.Driver) error {
	go c.run(ctx, d)
	return nil
}

// Done is closed when the loop has exited.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

func (c *Controller) run(ctx context.Context, d *driver.Driver) {
	defer close(c.done)

	for {
		c.pick(ctx, d)

		timer := time.NewTimer(c.nextDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

func (c *Controller) pick(ctx context.Context, d *driver.Driver) {
	names := d.ModeNames()
	if len(names) == 0 {
		return
	}
	choice := names[c.rand.IntN(len(names))]
	changed, err := d.SetMode(ctx, choice)
	if err != nil {
		c.logger.Error("Random mode switch failed", "mode", choice, "error", err)
		return
	}
	if changed {
		c.logger.Debug("Random mode selected", "mode", choice)
	}
}

func (c *Controller) nextDelay() time.Duration {
	if c.spread <= 0 {
		return c.minDelay
	}
	return c.minDelay + time.Duration(c.rand.Float64()*float64(c.spread))
}
