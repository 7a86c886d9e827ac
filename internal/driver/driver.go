// Package driver owns the registries of interfaces, modes and controllers and switches the
// single active mode.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/smazurov/paws/internal/component"
	"github.com/smazurov/paws/internal/events"
	"github.com/smazurov/paws/internal/metrics"
	"github.com/smazurov/paws/internal/mode"
	"github.com/smazurov/paws/internal/rigerr"
	"github.com/smazurov/paws/internal/sink"
)

// Controller feeds input into the driver: switches modes, sets states, draws buffers.
type Controller interface {
	component.Named
	// Init is called once during Start, after modes were initialized. Controllers that
	// listen for input start their goroutines here and stop them when ctx is done.
	Init(ctx context.Context, d *Driver) error
}

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the driver logger.
func WithLogger(l *slog.Logger) Option {
	return func(d *Driver) { d.logger = l }
}

// WithEventBus publishes mode changes to bus.
func WithEventBus(bus *events.Bus) Option {
	return func(d *Driver) { d.bus = bus }
}

// Driver is the central coordinator of a rig.
type Driver struct {
	logger *slog.Logger
	bus    *events.Bus

	interfaces  *component.Registry[sink.Sink]
	modes       *component.Registry[mode.Mode]
	controllers *component.Registry[Controller]

	// switchMu serializes SetMode calls.
	switchMu    sync.Mutex
	mu          sync.RWMutex
	active      mode.Mode
	defaultMode string
}

// New creates an empty driver.
func New(opts ...Option) *Driver {
	d := &Driver{logger: slog.Default()}
	for _, opt := range opts {
		opt(d)
	}
	d.interfaces = component.NewRegistry[sink.Sink]("interface", d.logger)
	d.modes = component.NewRegistry[mode.Mode]("mode", d.logger)
	d.controllers = component.NewRegistry[Controller]("controller", d.logger)
	return d
}

// AddInterfaces registers hardware interfaces. It returns true if a name was overwritten.
func (d *Driver) AddInterfaces(sinks ...sink.Sink) bool {
	return d.interfaces.Add(sinks...)
}

// AddModes registers modes. It returns true if a name was overwritten.
func (d *Driver) AddModes(modes ...mode.Mode) bool {
	return d.modes.Add(modes...)
}

// AddControllers registers controllers. It returns true if a name was overwritten.
func (d *Driver) AddControllers(controllers ...Controller) bool {
	return d.controllers.Add(controllers...)
}

// SetDefaultMode selects the mode activated by Start.
func (d *Driver) SetDefaultMode(name string) error {
	if !d.modes.Has(name) {
		return rigerr.New(rigerr.CodeUnknownMode, fmt.Sprintf("no mode named %q", name), nil)
	}
	d.mu.Lock()
	d.defaultMode = name
	d.mu.Unlock()
	return nil
}

// Interfaces returns a snapshot of the registered interfaces.
func (d *Driver) Interfaces() *sink.Set {
	return sink.NewSet(d.interfaces.List()...)
}

// Modes returns the registered modes in registration order.
func (d *Driver) Modes() []mode.Mode {
	return d.modes.List()
}

// ModeNames returns the registered mode names in registration order.
func (d *Driver) ModeNames() []string {
	return d.modes.Names()
}

// Controllers returns the registered controllers.
func (d *Driver) Controllers() []Controller {
	return d.controllers.List()
}

// Mode returns the active mode, or nil before Start.
func (d *Driver) Mode() mode.Mode {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.active
}

// ModeName returns the active mode name, or "".
func (d *Driver) ModeName() string {
	return mode.NameOf(d.Mode())
}

// SetMode switches to the mode registered as name. It returns false without side effects
// when name is unknown or already active.
//
// The active pointer is swapped before the new mode's Activate runs. If a hook fails the
// error is returned and the driver stays on the new mode.
func (d *Driver) SetMode(ctx context.Context, name string) (bool, error) {
	next, ok := d.modes.Get(name)
	if !ok {
		return false, nil
	}

	d.switchMu.Lock()
	defer d.switchMu.Unlock()

	prev := d.Mode()
	if prev != nil && prev.Name() == name {
		return false, nil
	}

	logger := d.logger.With("from", mode.NameOf(prev), "to", name)
	logger.Debug("Switching mode")

	if prev != nil {
		if err := prev.Deactivate(ctx, next); err != nil {
			d.swap(prev, next)
			return true, fmt.Errorf("deactivate %s: %w", prev.Name(), err)
		}
	}

	d.swap(prev, next)
	if err := next.Activate(ctx, d.Interfaces(), prev); err != nil {
		return true, fmt.Errorf("activate %s: %w", name, err)
	}

	logger.Info("Mode changed")
	return true, nil
}

func (d *Driver) swap(prev, next mode.Mode) {
	d.mu.Lock()
	d.active = next
	d.mu.Unlock()

	metrics.RecordModeSwitch(mode.NameOf(prev), next.Name())

	kind := ""
	if bt, ok := mode.AsBufferTarget(next); ok {
		kind = bt.Kind()
	}
	d.bus.Publish(events.ModeChangedEvent{
		Previous:  mode.NameOf(prev),
		Current:   next.Name(),
		Kind:      kind,
		Timestamp: events.Now(),
	})
}

// ActiveBufferTarget returns the active mode if it accepts raw buffers.
func (d *Driver) ActiveBufferTarget() (mode.BufferTarget, bool) {
	return mode.AsBufferTarget(d.Mode())
}

// ActiveStateMachine returns the active mode if it sequences states.
func (d *Driver) ActiveStateMachine() (mode.StateMachine, bool) {
	return mode.AsStateMachine(d.Mode())
}

// Start initializes interfaces, then modes, then controllers, each phase concurrently,
// and activates the default mode. Without a default the first registered mode is used.
func (d *Driver) Start(ctx context.Context) error {
	if d.modes.Len() == 0 {
		return rigerr.ErrNoModesRegistered
	}

	if err := sink.Init(ctx, d.interfaces.List()...); err != nil {
		return fmt.Errorf("init interfaces: %w", err)
	}
	d.logger.Debug("Interfaces initialized", "count", d.interfaces.Len())

	if err := runAll(d.modes.List(), func(m mode.Mode) error {
		if in, ok := m.(mode.Initializer); ok {
			return in.Init(ctx)
		}
		return nil
	}); err != nil {
		return fmt.Errorf("init modes: %w", err)
	}
	d.logger.Debug("Modes initialized", "count", d.modes.Len())

	if err := runAll(d.controllers.List(), func(c Controller) error {
		return c.Init(ctx, d)
	}); err != nil {
		return fmt.Errorf("init controllers: %w", err)
	}
	d.logger.Debug("Controllers initialized", "count", d.controllers.Len())

	d.mu.RLock()
	name := d.defaultMode
	d.mu.RUnlock()
	if name == "" {
		first, _ := d.modes.First()
		name = first.Name()
	}

	if _, err := d.SetMode(ctx, name); err != nil {
		return err
	}
	d.logger.Info("Driver started", "mode", name, "interfaces", d.interfaces.Len(), "modes", d.modes.Len(), "controllers", d.controllers.Len())
	return nil
}

// Shutdown deactivates the active mode and closes the interfaces.
func (d *Driver) Shutdown(ctx context.Context) error {
	d.switchMu.Lock()
	defer d.switchMu.Unlock()

	var errs []error
	if active := d.Mode(); active != nil {
		if err := active.Deactivate(ctx, nil); err != nil {
			errs = append(errs, fmt.Errorf("deactivate %s: %w", active.Name(), err))
		}
		d.mu.Lock()
		d.active = nil
		d.mu.Unlock()
	}
	if err := sink.CloseAll(d.interfaces.List()...); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func runAll[T component.Named](items []T, fn func(T) error) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, item := range items {
		wg.Add(1)
		go func(item T) {
			defer wg.Done()
			if err := fn(item); err != nil {
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", item.Name(), err))
				mu.Unlock()
			}
		}(item)
	}
	wg.Wait()
	return errors.Join(errs...)
}
