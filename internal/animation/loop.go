package animation

import (
	"context"
	"sync"
	"time"
)

// Loop is a fixed-rate callback loop for display paths that redraw on demand.
// Callbacks requested between two frames all run at the next due frame, in request order.
type Loop struct {
	clock  Clock
	period time.Duration

	mu      sync.Mutex
	pending []func(now time.Time)
}

// NewLoop creates a loop running at fps frames per second.
func NewLoop(fps int, clock Clock) *Loop {
	if clock == nil {
		clock = SystemClock{}
	}
	if fps <= 0 {
		fps = 30
	}
	return &Loop{clock: clock, period: PeriodFromFPS(fps)}
}

// Request queues fn for the next frame.
func (l *Loop) Request(fn func(now time.Time)) {
	l.mu.Lock()
	l.pending = append(l.pending, fn)
	l.mu.Unlock()
}

// Pending returns the number of queued callbacks.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Run executes frames until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	pacer := NewPacer(l.clock.Now(), l.period)
	for {
		l.Tick()
		wait := pacer.Advance(l.clock.Now())
		if err := l.clock.Sleep(ctx, wait); err != nil {
			return nil
		}
	}
}

// Tick runs every queued callback once.
func (l *Loop) Tick() {
	l.mu.Lock()
	due := l.pending
	l.pending = nil
	l.mu.Unlock()

	now := l.clock.Now()
	for _, fn := range due {
		fn(now)
	}
}
