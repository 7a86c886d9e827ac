package state

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/smazurov/paws/internal/animation"
	"github.com/smazurov/paws/internal/component"
	"github.com/smazurov/paws/internal/events"
	"github.com/smazurov/paws/internal/metrics"
	"github.com/smazurov/paws/internal/mode"
	"github.com/smazurov/paws/internal/rigerr"
	"github.com/smazurov/paws/internal/sink"
)

// Handler is an animated mode that owns a registry of states and renders the active one.
//
// Frames and state switches are serialized: SetState waits for an in-flight frame and no
// frame starts while a switch is running. The transition record of each state lives in the
// handler, so a transition state shared by several tables is only ever driven from here.
type Handler struct {
	mode.Base
	states    *component.Registry[State]
	scheduler *animation.Scheduler
	bus       *events.Bus
	logger    *slog.Logger

	// frameMu serializes frames with state switches and guards lastT.
	frameMu sync.Mutex
	lastT   time.Duration

	mu          sync.RWMutex
	active      State
	activated   bool
	transitions map[string]*CurrentTransition
}

// HandlerOption configures a Handler.
type HandlerOption func(*handlerConfig)

type handlerConfig struct {
	logger    *slog.Logger
	bus       *events.Bus
	schedOpts []animation.Option
}

// WithLogger sets the handler logger.
func WithLogger(l *slog.Logger) HandlerOption {
	return func(c *handlerConfig) { c.logger = l }
}

// WithEventBus publishes state, transition and fault events to bus.
func WithEventBus(bus *events.Bus) HandlerOption {
	return func(c *handlerConfig) { c.bus = bus }
}

// WithSchedulerOptions passes options to the animation scheduler.
func WithSchedulerOptions(opts ...animation.Option) HandlerOption {
	return func(c *handlerConfig) { c.schedOpts = append(c.schedOpts, opts...) }
}

// NewHandler creates a handler. The first state becomes the active state; it is activated
// when the handler mode is first activated.
func NewHandler(name string, states []State, opts ...HandlerOption) *Handler {
	cfg := handlerConfig{logger: slog.Default()}
	for _, opt := range opts {
		opt(&cfg)
	}

	h := &Handler{
		Base:        mode.NewBase(name),
		bus:         cfg.bus,
		transitions: make(map[string]*CurrentTransition),
	}
	h.logger = cfg.logger.With("handler", h.Name())
	h.states = component.NewRegistry[State]("state", h.logger)
	h.states.Add(states...)
	if len(states) > 0 {
		h.active = states[0]
	}

	schedOpts := append([]animation.Option{
		animation.WithLogger(cfg.logger),
		animation.WithErrorHandler(h.reportFault),
	}, cfg.schedOpts...)
	h.scheduler = animation.NewScheduler(h.Name(), h.AnimationFrame, schedOpts...)
	return h
}

// AddStates registers more states. It never changes the active state.
func (h *Handler) AddStates(states ...State) {
	h.states.Add(states...)
}

// ListStates returns the registered states in insertion order.
func (h *Handler) ListStates() []State {
	return h.states.List()
}

// ListStateNames returns the registered state names in insertion order.
func (h *Handler) ListStateNames() []string {
	return h.states.Names()
}

// State returns the active state.
func (h *Handler) State() State {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.active
}

// CurrentState returns the active state's name.
func (h *Handler) CurrentState() string {
	return nameOf(h.State())
}

// CurrentTransition returns the transition in progress for the named state.
func (h *Handler) CurrentTransition(stateName string) (CurrentTransition, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	ct, ok := h.transitions[stateName]
	if !ok || ct.State == nil {
		return CurrentTransition{}, false
	}
	return *ct, true
}

// Scheduler exposes the animation loop, mainly for frame counts.
func (h *Handler) Scheduler() *animation.Scheduler {
	return h.scheduler
}

// SetState activates the named state. It returns false for unknown names. Errors from the
// outgoing or incoming state's hooks are returned after the active state has been swapped.
func (h *Handler) SetState(ctx context.Context, name string) (bool, error) {
	next, ok := h.states.Get(name)
	if !ok {
		return false, nil
	}

	h.frameMu.Lock()
	defer h.frameMu.Unlock()

	h.mu.RLock()
	prev := h.active
	wasActivated := h.activated
	h.mu.RUnlock()

	// An initial state that never ran is not a predecessor.
	if !wasActivated {
		prev = nil
	}

	var deactivateErr error
	if prev != nil {
		deactivateErr = prev.Deactivate(ctx, h, next)
	}

	h.mu.Lock()
	h.active = next
	h.activated = deactivateErr == nil
	h.mu.Unlock()

	if deactivateErr != nil {
		return true, fmt.Errorf("deactivate state %s: %w", prev.Name(), deactivateErr)
	}
	if err := h.activate(ctx, next, prev); err != nil {
		return true, err
	}

	metrics.RecordStateChange(h.Name(), next.Name())
	h.bus.Publish(events.StateChangedEvent{
		Handler:   h.Name(),
		Previous:  nameOf(prev),
		Current:   next.Name(),
		Timestamp: events.Now(),
	})
	return true, nil
}

// activate runs next's hook and looks up a transition from prev. Callers hold frameMu.
func (h *Handler) activate(ctx context.Context, next, prev State) error {
	h.logger.Debug("=> OnActive", "state", next.Name(), "from", nameOf(prev))

	h.mu.Lock()
	delete(h.transitions, next.Name())
	h.mu.Unlock()

	if err := next.Activate(ctx, h, prev); err != nil {
		return fmt.Errorf("activate state %s: %w", next.Name(), err)
	}

	if prev == nil {
		return nil
	}
	for _, tr := range next.Transitions() {
		if !tr.Matches(prev.Name()) || tr.State == nil {
			continue
		}
		h.logger.Debug("Running Transition", "state", next.Name(), "via", tr.State.Name())

		h.mu.Lock()
		h.transitions[next.Name()] = &CurrentTransition{State: tr.State, From: prev.Name()}
		h.mu.Unlock()

		if err := tr.State.OnTransition(ctx, h, prev, next); err != nil {
			return fmt.Errorf("transition %s: %w", tr.State.Name(), err)
		}
		metrics.RecordTransition(h.Name(), tr.State.Name())
		break
	}
	return nil
}

// resolve picks the state to render at t for active. Callers hold frameMu.
func (h *Handler) resolve(active State, t time.Duration) (State, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	ct, ok := h.transitions[active.Name()]
	if !ok || ct.State == nil {
		return active, nil
	}

	if ct.set && t >= ct.Until {
		h.logger.Debug("Ending Transition", "state", active.Name(), "via", ct.State.Name())
		delete(h.transitions, active.Name())
		h.bus.Publish(events.TransitionEvent{
			Handler:   h.Name(),
			From:      ct.From,
			To:        active.Name(),
			Via:       ct.State.Name(),
			Phase:     events.PhaseEnded,
			Timestamp: events.Now(),
		})
		return active, nil
	}

	if !ct.set {
		length, ok := ct.State.Length()
		if !ok {
			return nil, rigerr.New(rigerr.CodeMissingTransitionLength,
				fmt.Sprintf("transition %s into %s", ct.State.Name(), active.Name()), nil)
		}
		ct.Until = t + length
		ct.set = true
		h.logger.Debug("Starting Transition", "state", active.Name(), "via", ct.State.Name(), "until", ct.Until)
		h.bus.Publish(events.TransitionEvent{
			Handler:   h.Name(),
			From:      ct.From,
			To:        active.Name(),
			Via:       ct.State.Name(),
			Phase:     events.PhaseStarted,
			LengthMs:  length.Milliseconds(),
			Timestamp: events.Now(),
		})
	}
	return ct.State, nil
}

// AnimationFrame renders one frame. It does nothing while no interface set is subscribed.
func (h *Handler) AnimationFrame(ctx context.Context, t, dt time.Duration) error {
	sinks, ok := h.Subscribed()
	if !ok {
		return nil
	}

	h.frameMu.Lock()
	defer h.frameMu.Unlock()

	h.mu.RLock()
	active, activated := h.active, h.activated
	h.mu.RUnlock()
	if active == nil || !activated {
		return nil
	}
	h.lastT = t

	target, err := h.resolve(active, t)
	if err != nil {
		return err
	}
	return target.ExecuteFrame(ctx, Frame{Sinks: sinks, Handler: h, T: t, DT: dt})
}

// Activate implements mode.Mode. It activates the initial state on first use and starts
// the animation loop.
func (h *Handler) Activate(ctx context.Context, sinks *sink.Set, _ mode.Mode) error {
	h.Subscribe(sinks)

	h.frameMu.Lock()
	h.mu.RLock()
	initial, activated := h.active, h.activated
	h.mu.RUnlock()

	if initial != nil && !activated {
		h.mu.Lock()
		h.activated = true
		h.mu.Unlock()
		if err := h.activate(ctx, initial, nil); err != nil {
			h.frameMu.Unlock()
			return err
		}
	}
	h.rebaseTransitions()
	h.frameMu.Unlock()

	if !h.scheduler.Start(context.WithoutCancel(ctx)) {
		h.logger.Warn("Animation loop already running")
	}
	return nil
}

// rebaseTransitions moves started transitions onto the clock of the next loop, which
// starts again at t=0. The remaining length is kept. Callers hold frameMu.
func (h *Handler) rebaseTransitions() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ct := range h.transitions {
		if ct.set {
			ct.Until = max(ct.Until-h.lastT, 0)
		}
	}
	h.lastT = 0
}

// Deactivate implements mode.Mode. It waits for the last frame before releasing the
// interface set.
func (h *Handler) Deactivate(ctx context.Context, _ mode.Mode) error {
	err := h.scheduler.StopAndWait(ctx)
	h.Unsubscribe()
	if err != nil && ctx.Err() != nil {
		return err
	}
	return nil
}

func (h *Handler) reportFault(err error) {
	h.bus.Publish(events.SchedulerFaultEvent{
		Loop:      h.Name(),
		Error:     err.Error(),
		Timestamp: events.Now(),
	})
}
