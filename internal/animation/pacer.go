package animation

import "time"

// Pacer keeps a fixed frame cadence against a wall clock.
//
// After each frame the due time is advanced by whole periods until it lies more than a
// quarter period ahead of now. A short stall is absorbed without a burst of catch-up
// frames, and the cadence never drifts from the start time.
type Pacer struct {
	period time.Duration
	next   time.Time
}

// NewPacer creates a pacer whose first frame is due at start.
func NewPacer(start time.Time, period time.Duration) *Pacer {
	return &Pacer{period: period, next: start}
}

// Period returns the frame period.
func (p *Pacer) Period() time.Duration {
	return p.period
}

// Due reports whether a frame is due at now.
func (p *Pacer) Due(now time.Time) bool {
	return !now.Before(p.next)
}

// Next returns the current due time.
func (p *Pacer) Next() time.Time {
	return p.next
}

// Advance moves the due time forward and returns how long to sleep until it.
func (p *Pacer) Advance(now time.Time) time.Duration {
	if p.period <= 0 {
		p.next = now
		return 0
	}
	slack := now.Add(p.period / 4)
	for !p.next.After(slack) {
		p.next = p.next.Add(p.period)
	}
	return p.next.Sub(now)
}

// PeriodFromFPS converts a frame rate into a period. Non-positive rates give zero.
func PeriodFromFPS(fps int) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Second / time.Duration(fps)
}
