package driver

import (
	"bytes"
	"context"
	"errors"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/smazurov/paws/internal/drawer"
	"github.com/smazurov/paws/internal/events"
	"github.com/smazurov/paws/internal/mode"
	"github.com/smazurov/paws/internal/rigerr"
	"github.com/smazurov/paws/internal/sink"
)

type hookMode struct {
	mode.Base
	mu          sync.Mutex
	calls       *[]string
	activateErr error
}

func newHookMode(name string, calls *[]string) *hookMode {
	return &hookMode{Base: mode.NewBase(name), calls: calls}
}

func (m *hookMode) record(s string) {
	m.mu.Lock()
	*m.calls = append(*m.calls, s)
	m.mu.Unlock()
}

func (m *hookMode) Activate(ctx context.Context, sinks *sink.Set, prev mode.Mode) error {
	m.record(m.Name() + ".activate(" + mode.NameOf(prev) + ")")
	if m.activateErr != nil {
		return m.activateErr
	}
	return m.Base.Activate(ctx, sinks, prev)
}

func (m *hookMode) Deactivate(ctx context.Context, next mode.Mode) error {
	m.record(m.Name() + ".deactivate(" + mode.NameOf(next) + ")")
	return m.Base.Deactivate(ctx, next)
}

type phaseRecorder struct {
	mu     sync.Mutex
	phases []string
}

func (p *phaseRecorder) add(s string) {
	p.mu.Lock()
	p.phases = append(p.phases, s)
	p.mu.Unlock()
}

type initSink struct {
	*sink.Recorder
	rec *phaseRecorder
}

func (s initSink) Init(context.Context) error {
	time.Sleep(10 * time.Millisecond)
	s.rec.add("interface")
	return nil
}

type initMode struct {
	*hookMode
	rec *phaseRecorder
}

func (m initMode) Init(context.Context) error {
	m.rec.add("mode")
	return nil
}

type fakeController struct {
	name string
	rec  *phaseRecorder
	seen *Driver
}

func (c *fakeController) Name() string { return c.name }

func (c *fakeController) Init(_ context.Context, d *Driver) error {
	c.rec.add("controller")
	c.seen = d
	return nil
}

func TestSetModeUnknown(t *testing.T) {
	var calls []string
	d := New()
	d.AddModes(newHookMode("a", &calls))
	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	ok, err := d.SetMode(context.Background(), "missing")
	if ok || err != nil {
		t.Errorf("SetMode(missing) = %v, %v", ok, err)
	}
	if d.ModeName() != "a" {
		t.Errorf("active mode = %q, want a", d.ModeName())
	}
}

func TestSetModeIdempotent(t *testing.T) {
	var calls []string
	d := New()
	d.AddModes(newHookMode("a", &calls), newHookMode("b", &calls))
	_ = d.Start(context.Background())
	calls = calls[:0]

	ok, err := d.SetMode(context.Background(), "a")
	if ok || err != nil {
		t.Errorf("SetMode(active) = %v, %v", ok, err)
	}
	if len(calls) != 0 {
		t.Errorf("hooks fired: %v", calls)
	}
}

func TestSetModeHookOrder(t *testing.T) {
	var calls []string
	d := New()
	d.AddModes(newHookMode("a", &calls), newHookMode("b", &calls))
	_ = d.Start(context.Background())

	ok, err := d.SetMode(context.Background(), "b")
	if !ok || err != nil {
		t.Fatalf("SetMode(b) = %v, %v", ok, err)
	}
	want := []string{"a.activate()", "a.deactivate(b)", "b.activate(a)"}
	if !slices.Equal(calls, want) {
		t.Errorf("calls = %v, want %v", calls, want)
	}
}

func TestSetModeActivateFailureKeepsNewMode(t *testing.T) {
	var calls []string
	broken := newHookMode("broken", &calls)
	broken.activateErr = errors.New("no hardware")

	d := New()
	d.AddModes(newHookMode("a", &calls), broken)
	_ = d.Start(context.Background())

	ok, err := d.SetMode(context.Background(), "broken")
	if !ok || err == nil {
		t.Fatalf("SetMode(broken) = %v, %v", ok, err)
	}
	if d.ModeName() != "broken" {
		t.Errorf("active mode = %q, want broken", d.ModeName())
	}
}

func TestSetDefaultModeUnknown(t *testing.T) {
	d := New()
	if err := d.SetDefaultMode("ghost"); !errors.Is(err, rigerr.ErrUnknownMode) {
		t.Errorf("SetDefaultMode() = %v", err)
	}
}

func TestStartWithoutModes(t *testing.T) {
	d := New()
	if err := d.Start(context.Background()); !errors.Is(err, rigerr.ErrNoModesRegistered) {
		t.Errorf("Start() = %v", err)
	}
	if d.Mode() != nil {
		t.Error("no mode should be active")
	}
}

func TestStartPhasesAndDefault(t *testing.T) {
	var calls []string
	rec := &phaseRecorder{}
	ctrl := &fakeController{name: "random", rec: rec}

	d := New()
	d.AddInterfaces(
		initSink{sink.NewRecorder("a", 3), rec},
		initSink{sink.NewRecorder("b", 3), rec},
	)
	d.AddModes(
		initMode{newHookMode("first", &calls), rec},
		initMode{newHookMode("second", &calls), rec},
	)
	d.AddControllers(ctrl)
	if err := d.SetDefaultMode("second"); err != nil {
		t.Fatal(err)
	}

	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	want := []string{"interface", "interface", "mode", "mode", "controller"}
	if !slices.Equal(rec.phases, want) {
		t.Errorf("phases = %v, want %v", rec.phases, want)
	}
	if d.ModeName() != "second" {
		t.Errorf("active mode = %q, want second", d.ModeName())
	}
	if ctrl.seen != d {
		t.Error("controller did not receive the driver")
	}
}

func TestAddModeOverwrite(t *testing.T) {
	var calls []string
	d := New()
	d.AddModes(newHookMode("a", &calls))
	if !d.AddModes(newHookMode("a", &calls)) {
		t.Error("re-registering a name should report the overwrite")
	}
	if len(d.Modes()) != 1 {
		t.Errorf("Modes() = %d entries, want 1", len(d.Modes()))
	}
}

func TestModeChangedEvent(t *testing.T) {
	bus := events.New()
	changes := make(chan events.ModeChangedEvent, 4)
	defer bus.Subscribe(func(e events.ModeChangedEvent) { changes <- e })()

	var calls []string
	d := New(WithEventBus(bus))
	d.AddModes(newHookMode("a", &calls), newHookMode("b", &calls))
	_ = d.Start(context.Background())
	_, _ = d.SetMode(context.Background(), "b")

	var got []events.ModeChangedEvent
	for len(got) < 2 {
		select {
		case e := <-changes:
			got = append(got, e)
		case <-time.After(time.Second):
			t.Fatalf("timed out, got %v", got)
		}
	}
	if got[1].Previous != "a" || got[1].Current != "b" {
		t.Errorf("second change = %+v", got[1])
	}
}

func TestEndToEndPixelDrawer(t *testing.T) {
	a := sink.NewRecorder("a", 10)
	b := sink.NewRecorder("b", 20)

	d := New()
	d.AddInterfaces(a, b)
	pixels, err := drawer.NewPixelDrawer("PixelDrawer", d.Interfaces().List())
	if err != nil {
		t.Fatal(err)
	}
	d.AddModes(pixels)
	if err := d.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	target, ok := d.ActiveBufferTarget()
	if !ok {
		t.Fatal("active mode should accept buffers")
	}
	if _, ok := d.ActiveStateMachine(); ok {
		t.Error("pixel drawer is not a state machine")
	}

	buf := make([]byte, 30)
	for i := range buf {
		buf[i] = byte(100 + i)
	}
	if ok, err := target.Update(context.Background(), buf); !ok || err != nil {
		t.Fatalf("Update() = %v, %v", ok, err)
	}

	gotA, _ := a.Last()
	gotB, _ := b.Last()
	if !bytes.Equal(gotA, buf[0:10]) {
		t.Errorf("interface a got %v", gotA)
	}
	if !bytes.Equal(gotB, buf[10:30]) {
		t.Errorf("interface b got %v", gotB)
	}
}

func TestShutdownDeactivates(t *testing.T) {
	var calls []string
	d := New()
	d.AddModes(newHookMode("a", &calls))
	_ = d.Start(context.Background())

	if err := d.Shutdown(context.Background()); err != nil {
		t.Fatal(err)
	}
	if d.Mode() != nil {
		t.Error("no mode should be active after shutdown")
	}
	if calls[len(calls)-1] != "a.deactivate()" {
		t.Errorf("calls = %v", calls)
	}
}
