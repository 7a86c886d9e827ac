// Package animation provides the frame loops that drive animated modes and displays.
package animation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/smazurov/paws/internal/metrics"
)

// FrameFunc renders one frame. t is the time since the loop started and dt the time
// since the previous frame.
type FrameFunc func(ctx context.Context, t, dt time.Duration) error

// ErrStopped is returned by Wait on a scheduler that was never started.
var ErrStopped = errors.New("animation: scheduler not running")

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock sets the time source.
func WithClock(c Clock) Option {
	return func(s *Scheduler) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Scheduler) { s.logger = l }
}

// WithFrameRate paces the loop at fps frames per second. Zero runs frames back to back.
func WithFrameRate(fps int) Option {
	return func(s *Scheduler) { s.period = PeriodFromFPS(fps) }
}

// WithPeriod paces the loop at an explicit frame period.
func WithPeriod(d time.Duration) Option {
	return func(s *Scheduler) { s.period = d }
}

// WithErrorHandler is called from the loop goroutine when a frame fails.
func WithErrorHandler(fn func(error)) Option {
	return func(s *Scheduler) { s.onError = fn }
}

// Scheduler runs a FrameFunc in a serialized loop.
//
// The scheduler is Idle until Start and returns to Idle once a requested stop has been
// observed. Stop is checked only after a frame returns, so the in-flight frame always
// completes and at most one frame runs at a time. A frame error halts the loop.
type Scheduler struct {
	name    string
	frame   FrameFunc
	clock   Clock
	logger  *slog.Logger
	period  time.Duration
	onError func(error)

	mu       sync.Mutex
	running  bool
	stopping bool // Stop was called on the running loop
	stop     context.CancelFunc
	done     chan struct{}
	err      error
	frames   uint64
}

// NewScheduler creates an idle scheduler. name labels metrics and logs.
func NewScheduler(name string, frame FrameFunc, opts ...Option) *Scheduler {
	s := &Scheduler{
		name:   name,
		frame:  frame,
		clock:  SystemClock{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("loop", name)
	return s
}

// Start moves the scheduler from Idle to Running and runs the first frame immediately.
// It returns false if the loop is already running and no stop was requested. If a stopped
// loop is still finishing its last frame, Start waits for it first.
func (s *Scheduler) Start(ctx context.Context) bool {
	s.mu.Lock()
	if s.running && !s.stopping {
		s.mu.Unlock()
		return false
	}
	prev := s.done
	s.mu.Unlock()

	if prev != nil {
		<-prev
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}

	stopCtx, stop := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.running = true
	s.stopping = false
	s.stop = stop
	s.done = done
	s.err = nil
	s.frames = 0

	go s.run(ctx, stopCtx, done)
	s.logger.Debug("Animation loop started", "period", s.period)
	return true
}

// Stop requests the loop to end after the in-flight frame. It returns a channel that is
// closed once the loop has exited.
func (s *Scheduler) Stop() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stop != nil {
		s.stop()
	}
	if s.running {
		s.stopping = true
	}
	if s.done == nil {
		closed := make(chan struct{})
		close(closed)
		return closed
	}
	return s.done
}

// StopAndWait stops the loop and waits for the last frame. It returns the error that
// halted the loop, if any.
func (s *Scheduler) StopAndWait(ctx context.Context) error {
	done := s.Stop()
	select {
	case <-done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until the loop exits and returns its error.
func (s *Scheduler) Wait(ctx context.Context) error {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	if done == nil {
		return ErrStopped
	}
	select {
	case <-done:
		return s.Err()
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether the loop is active. A loop that has been asked to stop stays
// running until its in-flight frame returns.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// Err returns the error that halted the last loop.
func (s *Scheduler) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Frames returns the number of frames executed by the current or last loop.
func (s *Scheduler) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Name returns the loop label.
func (s *Scheduler) Name() string {
	return s.name
}

func (s *Scheduler) run(ctx, stopCtx context.Context, done chan struct{}) {
	defer close(done)

	start := s.clock.Now()
	var pacer *Pacer
	if s.period > 0 {
		pacer = NewPacer(start, s.period)
	}

	var (
		prev       time.Duration
		rateFrames int
		rateStart  time.Duration
	)

	var loopErr error
	for {
		t := s.clock.Now().Sub(start)
		dt := t - prev
		prev = t

		began := time.Now()
		err := s.frame(ctx, t, dt)
		metrics.ObserveFrame(s.name, time.Since(began))

		s.mu.Lock()
		s.frames++
		s.mu.Unlock()

		if err != nil {
			loopErr = fmt.Errorf("%s frame at %v: %w", s.name, t, err)
			break
		}

		rateFrames++
		if elapsed := t - rateStart; elapsed >= time.Second {
			metrics.SetFPS(s.name, float64(rateFrames)/elapsed.Seconds())
			rateFrames = 0
			rateStart = t
		}

		if stopCtx.Err() != nil || ctx.Err() != nil {
			break
		}

		if pacer != nil {
			wait := pacer.Advance(s.clock.Now())
			if sleepErr := s.clock.Sleep(stopCtx, wait); sleepErr != nil {
				break
			}
			if ctx.Err() != nil {
				break
			}
		} else {
			runtime.Gosched()
		}
	}

	metrics.DeleteFPS(s.name)

	s.mu.Lock()
	s.running = false
	s.stopping = false
	s.err = loopErr
	frames := s.frames
	s.mu.Unlock()

	if loopErr != nil {
		s.logger.Error("Animation loop halted", "error", loopErr, "frames", frames)
		if s.onError != nil {
			s.onError(loopErr)
		}
		return
	}
	s.logger.Debug("Animation loop stopped", "frames", frames)
}
